package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var actionsCallStdin bool

func init() {
	rootCmd.AddCommand(actionsCmd)
	actionsCmd.AddCommand(actionsListCmd)
	actionsCmd.AddCommand(actionsCallCmd)

	actionsCallCmd.Flags().BoolVar(&actionsCallStdin, "stdin", false, "read the input from stdin")
}

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Inspect and call actions",
	Long:  "Inspect the actions compiled from the actions directory, or call one directly.",
}

type actionRow struct {
	Name   string `json:"name"`
	Loaded bool   `json:"loaded"`
	File   string `json:"file,omitempty"`
	Reason string `json:"reason,omitempty"`
}

var actionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded and omitted actions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		_, report, err := newActionLoader(cfg).Load(cfg.ActionsDir)
		if err != nil {
			return err
		}

		rows := make([]actionRow, 0, len(report.Loaded)+len(report.Omitted))
		for _, name := range report.Loaded {
			rows = append(rows, actionRow{Name: name, Loaded: true})
		}
		for _, omitted := range report.Omitted {
			rows = append(rows, actionRow{Name: omitted.Name, File: omitted.File, Reason: omitted.Reason})
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), rows)
		}

		if len(rows) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No actions in %s\n", cfg.ActionsDir)
			return nil
		}

		tableRows := make([][]string, 0, len(rows))
		for _, row := range rows {
			name := row.Name
			if name == "" {
				name = row.File
			}
			tableRows = append(tableRows, []string{name, formatYesNo(row.Loaded), row.Reason})
		}
		return writeTable(cmd.OutOrStdout(), []string{"NAME", "LOADED", "REASON"}, tableRows)
	},
}

var actionsCallCmd = &cobra.Command{
	Use:   "call <name> [input]",
	Short: "Call an action once",
	Long:  "Call an action with the given input and print its output. Use --stdin to read the input from standard input.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		registry, _, err := newActionLoader(cfg).Load(cfg.ActionsDir)
		if err != nil {
			return err
		}

		input := ""
		switch {
		case actionsCallStdin:
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			input = strings.TrimRight(string(data), "\r\n")
		case len(args) == 2:
			input = args[1]
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		output, err := registry.Dispatch(ctx, args[0], input)
		if err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), map[string]string{"action": args[0], "input": input, "output": output})
		}
		fmt.Fprintln(cmd.OutOrStdout(), output)
		return nil
	},
}
