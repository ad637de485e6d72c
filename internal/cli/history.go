package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dbddv01/MicroGptSequence/internal/db"
	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs to list")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Long:  "List runs recorded in the SQLite step log, newest first. Requires database in config or --database.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer database.Close()

		runs, err := db.NewStepRepository(database).ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
			return nil
		}

		rows := make([][]string, 0, len(runs))
		for _, run := range runs {
			rows = append(rows, []string{
				run.RunID,
				run.Sequence,
				strconv.Itoa(run.Depth),
				strconv.Itoa(run.Steps),
				run.StartedAt.Local().Format(time.DateTime),
			})
		}
		return writeTable(cmd.OutOrStdout(), []string{"RUN", "SEQUENCE", "DEPTH", "STEPS", "STARTED"}, rows)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the steps of a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer database.Close()

		records, err := db.NewStepRepository(database).ListByRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("run %q: %w", args[0], db.ErrStepNotFound)
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), records)
		}

		rows := make([][]string, 0, len(records))
		for _, record := range records {
			rows = append(rows, []string{
				strconv.Itoa(record.Step),
				record.Name,
				truncate(record.Prompt, 40),
				truncate(record.Output, 60),
			})
		}
		return writeTable(cmd.OutOrStdout(), []string{"STEP", "NAME", "PROMPT", "RESPONSE"}, rows)
	},
}
