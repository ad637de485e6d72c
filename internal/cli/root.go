// Package cli implements the microgptseq command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/dbddv01/MicroGptSequence/internal/config"
	"github.com/dbddv01/MicroGptSequence/internal/db"
	"github.com/dbddv01/MicroGptSequence/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfgFile        string
	jsonOutput     bool
	jsonlOutput    bool
	quiet          bool
	noProgress     bool
	nonInteractive bool
	logLevel       string
	logFormat      string

	appConfig *config.Config

	// configFlags maps config keys to command flags that override them.
	configFlags = map[string]*pflag.Flag{}
)

var rootCmd = &cobra.Command{
	Use:   "microgptseq",
	Short: "Run conditional prompt sequences",
	Long: `microgptseq runs step tables of prompts through named actions.

Each step formats a template from earlier results, calls an action, and
branches on an optional condition. Actions are compiled from fragment files
and reloaded while runs are in flight.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput && jsonlOutput {
			return fmt.Errorf("--json and --jsonl are mutually exclusive")
		}
		return initConfig(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./microgptseq.yaml, then ~/.config/microgptseq/config.yaml)")
	flags.BoolVar(&jsonOutput, "json", false, "output JSON")
	flags.BoolVar(&jsonlOutput, "jsonl", false, "output JSON lines")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress step banners")
	flags.BoolVar(&noProgress, "no-progress", false, "disable progress output")
	flags.BoolVar(&nonInteractive, "non-interactive", false, "never prompt; use defaults")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "", "log format (console, json)")

	flags.String("sequence", "", "sequence table (default table_data.csv)")
	flags.String("prompts", "", "initial prompt file (default initial_prompts.txt)")
	flags.String("actions-dir", "", "action fragment directory (default functions)")
	flags.String("log-file", "", "CSV step log (default sequence_log.csv)")
	flags.String("database", "", "SQLite step log")
	flags.String("delimiter", "", "column delimiter for delimited tables (default |)")

	bindConfigFlag("sequence", flags.Lookup("sequence"))
	bindConfigFlag("prompts", flags.Lookup("prompts"))
	bindConfigFlag("actions_dir", flags.Lookup("actions-dir"))
	bindConfigFlag("log_file", flags.Lookup("log-file"))
	bindConfigFlag("database", flags.Lookup("database"))
	bindConfigFlag("delimiter", flags.Lookup("delimiter"))
	bindConfigFlag("logging.level", flags.Lookup("log-level"))
	bindConfigFlag("logging.format", flags.Lookup("log-format"))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func bindConfigFlag(key string, flag *pflag.Flag) {
	if flag != nil {
		configFlags[key] = flag
	}
}

func initConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(cfgFile, configFlags)
	if err != nil {
		return err
	}
	appConfig = cfg

	if err := logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	return nil
}

// GetConfig returns the loaded configuration, or defaults before loading.
func GetConfig() *config.Config {
	if appConfig == nil {
		return config.DefaultConfig()
	}
	return appConfig
}

// IsJSONOutput reports whether --json was given.
func IsJSONOutput() bool {
	return jsonOutput
}

// IsJSONLOutput reports whether --jsonl was given.
func IsJSONLOutput() bool {
	return jsonlOutput
}

// IsQuiet reports whether step banners are suppressed.
func IsQuiet() bool {
	return quiet || IsJSONOutput() || IsJSONLOutput()
}

// WriteOutput writes v as indented JSON, or as JSON lines with --jsonl.
// Slices are written one element per line in JSONL mode.
func WriteOutput(w io.Writer, v any) error {
	if IsJSONLOutput() {
		enc := json.NewEncoder(w)
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice {
			for i := 0; i < rv.Len(); i++ {
				if err := enc.Encode(rv.Index(i).Interface()); err != nil {
					return err
				}
			}
			return nil
		}
		return enc.Encode(v)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// openDatabase opens and migrates the configured step database.
func openDatabase(ctx context.Context) (*db.DB, error) {
	path := strings.TrimSpace(GetConfig().Database)
	if path == "" {
		return nil, fmt.Errorf("no database configured (set database in config or --database)")
	}

	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return database, nil
}
