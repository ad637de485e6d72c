package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/dbddv01/MicroGptSequence/internal/actions"
	"github.com/dbddv01/MicroGptSequence/internal/config"
	"github.com/dbddv01/MicroGptSequence/internal/engine"
	"github.com/dbddv01/MicroGptSequence/internal/llm"
	"github.com/dbddv01/MicroGptSequence/internal/logging"
	"github.com/dbddv01/MicroGptSequence/internal/prompts"
	"github.com/dbddv01/MicroGptSequence/internal/sequences"
	"github.com/dbddv01/MicroGptSequence/internal/steplog"
	"github.com/dbddv01/MicroGptSequence/internal/watcher"
	"github.com/spf13/cobra"
)

var (
	runPrompts  []string
	runNoWatch  bool
	runMaxDepth int
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArrayVarP(&runPrompts, "prompt", "p", nil, "initial prompt (repeatable; overrides the prompt file)")
	runCmd.Flags().BoolVar(&runNoWatch, "no-watch", false, "do not reload actions while running")
	runCmd.Flags().IntVar(&runMaxDepth, "max-depth", 0, "maximum nested sequence depth")
	bindConfigFlag("max_depth", runCmd.Flags().Lookup("max-depth"))
}

var runCmd = &cobra.Command{
	Use:   "run [table]",
	Short: "Run a sequence for every initial prompt",
	Long: `Run the sequence table once per initial prompt.

Each prompt starts a fresh run at the Start step. A failed run is reported
and the next prompt still runs. Actions are reloaded from the actions
directory whenever its files change, unless --no-watch is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg := GetConfig()
		if len(args) == 1 {
			cfg.Sequence = args[0]
		}
		if runNoWatch {
			cfg.Watch = false
		}
		logger := logging.Component("cli")

		progress := startProgress(cmd.ErrOrStderr(), "Loading actions")
		loader := newActionLoader(cfg)
		registry, report, err := loader.Load(cfg.ActionsDir)
		if err != nil {
			progress.Fail(err)
			return err
		}
		progress.Done(fmt.Sprintf("%d loaded", len(report.Loaded)))
		for _, omitted := range report.Omitted {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", omitted.Error())
		}
		store := actions.NewStore(registry)

		tables := newTableLoader(cfg)
		table, err := tables.Load(cfg.Sequence)
		if err != nil {
			return err
		}

		seeds := runPrompts
		if len(seeds) == 0 {
			seeds, err = prompts.Load(cfg.Prompts)
			if err != nil {
				return err
			}
		}

		sink, banner, err := openSinks(ctx, cmd, cfg)
		if err != nil {
			return err
		}
		defer sink.Close()

		var wg sync.WaitGroup
		watchCtx, cancelWatch := context.WithCancel(ctx)
		defer func() {
			cancelWatch()
			wg.Wait()
		}()
		if cfg.Watch {
			w := watcher.New(cfg.ActionsDir, loader, store, watcher.Config{Debounce: cfg.WatchDebounce})
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := w.Run(watchCtx); err != nil {
					logger.Warn().Err(err).Msg("action watcher stopped")
				}
			}()
		}

		eng := engine.New(store, tables, sink)
		eng.MaxDepth = cfg.MaxDepth
		if banner != nil {
			eng.OnRunStart = banner.runStarted
			eng.OnRunFinish = banner.runFinished
		}

		results := eng.RunAll(ctx, table, seeds)

		if IsJSONOutput() {
			if err := WriteOutput(cmd.OutOrStdout(), results); err != nil {
				return err
			}
		}

		failed := 0
		for _, result := range results {
			if result.Err != nil {
				failed++
			}
		}
		if ctx.Err() != nil {
			return fmt.Errorf("interrupted after %d of %d runs", len(results), len(seeds))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d runs failed", failed, len(results))
		}
		return nil
	},
}

func newActionLoader(cfg *config.Config) *actions.Loader {
	return actions.NewLoader(llm.NewClient(llm.Options{
		URL:          cfg.LLM.URL,
		Model:        cfg.LLM.Model,
		SystemPrompt: cfg.LLM.SystemPrompt,
		Temperature:  cfg.LLM.Temperature,
		Timeout:      cfg.LLM.Timeout,
	}))
}

func newTableLoader(cfg *config.Config) *sequences.Loader {
	return sequences.NewLoader(cfg.DelimiterRune(), cfg.SearchPaths...)
}

// openSinks builds the step log sinks for a run. The banner sink is nil when
// console output is suppressed.
func openSinks(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (steplog.Sink, *bannerSink, error) {
	var sinks steplog.MultiSink
	closeAll := func() { _ = sinks.Close() }

	if path := strings.TrimSpace(cfg.LogFile); path != "" {
		csvSink, err := steplog.OpenCSV(path)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, csvSink)
	}

	if strings.TrimSpace(cfg.Database) != "" {
		database, err := openDatabase(ctx)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, steplog.NewDatabaseSink(database, true))
	}

	var banner *bannerSink
	switch {
	case IsJSONLOutput():
		sinks = append(sinks, steplog.NewJSONLinesSink(cmd.OutOrStdout()))
	case !IsQuiet():
		banner = newBannerSink(cmd.OutOrStdout(), cfg.Theme)
		sinks = append(sinks, banner)
	}

	return sinks, banner, nil
}
