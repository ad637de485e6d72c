package cli

import (
	"fmt"

	"github.com/dbddv01/MicroGptSequence/internal/actions"
	"github.com/dbddv01/MicroGptSequence/internal/sequences"
	"github.com/spf13/cobra"
)

var validateSkipActions bool

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateSkipActions, "skip-actions", false, "do not check action names against the actions directory")
}

type validateResult struct {
	Sequence string              `json:"sequence"`
	Steps    int                 `json:"steps"`
	Issues   []sequences.Issue   `json:"issues"`
	Actions  *actions.LoadReport `json:"actions,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate [table]",
	Short: "Check a sequence table",
	Long: `Load a sequence table and report problems that would stop a run:
unknown successor steps, conditions that do not parse, steps that cannot be
reached from Start, and actions missing from the actions directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		path := cfg.Sequence
		if len(args) == 1 {
			path = args[0]
		}

		table, err := newTableLoader(cfg).Load(path)
		if err != nil {
			return err
		}

		result := validateResult{
			Sequence: table.Source,
			Steps:    len(table.Steps),
			Issues:   table.Validate(),
		}

		if !validateSkipActions {
			registry, report, err := newActionLoader(cfg).Load(cfg.ActionsDir)
			if err != nil {
				return err
			}
			result.Actions = report
			result.Issues = append(result.Issues, missingActions(table, registry)...)
		}

		if IsJSONOutput() || IsJSONLOutput() {
			if err := WriteOutput(cmd.OutOrStdout(), result); err != nil {
				return err
			}
		} else {
			out := cmd.OutOrStdout()
			if len(result.Issues) == 0 {
				fmt.Fprintf(out, "%s: %d steps, no issues\n", result.Sequence, result.Steps)
			} else {
				rows := make([][]string, 0, len(result.Issues))
				for _, issue := range result.Issues {
					rows = append(rows, []string{issue.Step, issue.Field, issue.Message})
				}
				if err := writeTable(out, []string{"STEP", "FIELD", "ISSUE"}, rows); err != nil {
					return err
				}
			}
		}

		if len(result.Issues) > 0 {
			return fmt.Errorf("%s: %d issues", result.Sequence, len(result.Issues))
		}
		return nil
	},
}

// missingActions reports steps whose action is not in registry.
func missingActions(table *sequences.Table, registry *actions.Registry) []sequences.Issue {
	var issues []sequences.Issue
	for _, name := range table.Order {
		step := table.Steps[name]
		if step.Action == actions.NestedSequence || registry.Has(step.Action) {
			continue
		}
		issues = append(issues, sequences.Issue{
			Step:    name,
			Field:   sequences.ColumnAction,
			Message: fmt.Sprintf("action %q is not defined", step.Action),
		})
	}
	return issues
}
