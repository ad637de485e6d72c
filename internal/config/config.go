// Package config loads microgptseq settings from flags, environment and file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. MICROGPTSEQ_LLM_URL.
const EnvPrefix = "MICROGPTSEQ"

// Config is the resolved configuration.
type Config struct {
	// Sequence is the main step table.
	Sequence string `mapstructure:"sequence"`

	// Prompts is the initial prompt file, one seed per line.
	Prompts string `mapstructure:"prompts"`

	// ActionsDir holds the action fragment files.
	ActionsDir string `mapstructure:"actions_dir"`

	// LogFile is the CSV step log. Empty disables it.
	LogFile string `mapstructure:"log_file"`

	// Database is the SQLite step log. Empty disables it.
	Database string `mapstructure:"database"`

	// Delimiter separates columns in delimited tables.
	Delimiter string `mapstructure:"delimiter"`

	// SearchPaths are extra directories for nested sequence references.
	SearchPaths []string `mapstructure:"search_paths"`

	// Watch enables hot reload of the action directory.
	Watch bool `mapstructure:"watch"`

	// WatchDebounce is the quiet period before a reload.
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`

	// MaxDepth bounds nested sequence recursion.
	MaxDepth int `mapstructure:"max_depth"`

	// Theme is the console banner palette (default, high-contrast).
	Theme string `mapstructure:"theme"`

	LLM     LLMConfig     `mapstructure:"llm"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// LLMConfig configures the chat completion backend behind llm().
type LLMConfig struct {
	URL          string        `mapstructure:"url"`
	Model        string        `mapstructure:"model"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Temperature  *float64      `mapstructure:"temperature"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Sequence:      "table_data.csv",
		Prompts:       "initial_prompts.txt",
		ActionsDir:    "functions",
		LogFile:       "sequence_log.csv",
		Delimiter:     "|",
		Watch:         true,
		WatchDebounce: 200 * time.Millisecond,
		MaxDepth:      32,
		Theme:         "default",
		LLM: LLMConfig{
			URL:     "http://localhost:8080/v1/chat/completions",
			Timeout: 120 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/microgptseq or ~/.config/microgptseq.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "microgptseq")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "microgptseq")
	}
	return filepath.Join(home, ".config", "microgptseq")
}

// Load resolves configuration. Precedence: changed flags, environment,
// config file, defaults. An explicit path must exist; otherwise
// ./microgptseq.yaml and DefaultConfigDir()/config.yaml are tried.
// flags maps config keys to the flags that override them.
func Load(path string, flags map[string]*pflag.Flag) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag.Name, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("microgptseq")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
			fallback := filepath.Join(DefaultConfigDir(), "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				v.SetConfigFile(fallback)
				if err := v.ReadInConfig(); err != nil {
					return nil, fmt.Errorf("read config %s: %w", fallback, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if v.IsSet("llm.temperature") {
		temp := v.GetFloat64("llm.temperature")
		cfg.LLM.Temperature = &temp
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("sequence", d.Sequence)
	v.SetDefault("prompts", d.Prompts)
	v.SetDefault("actions_dir", d.ActionsDir)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("database", d.Database)
	v.SetDefault("delimiter", d.Delimiter)
	v.SetDefault("search_paths", d.SearchPaths)
	v.SetDefault("watch", d.Watch)
	v.SetDefault("watch_debounce", d.WatchDebounce)
	v.SetDefault("max_depth", d.MaxDepth)
	v.SetDefault("theme", d.Theme)
	v.SetDefault("llm.url", d.LLM.URL)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.system_prompt", d.LLM.SystemPrompt)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Validate checks the resolved values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Sequence) == "" {
		return errors.New("sequence is required")
	}
	if strings.TrimSpace(c.ActionsDir) == "" {
		return errors.New("actions_dir is required")
	}
	if utf8.RuneCountInString(c.Delimiter) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", c.Delimiter)
	}
	if r := c.DelimiterRune(); r == '"' || r == '\r' || r == '\n' {
		return fmt.Errorf("delimiter %q is not allowed", c.Delimiter)
	}
	if c.WatchDebounce < 0 {
		return errors.New("watch_debounce must not be negative")
	}
	if c.MaxDepth < 1 {
		return errors.New("max_depth must be at least 1")
	}
	if c.LLM.Timeout < 0 {
		return errors.New("llm.timeout must not be negative")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// DelimiterRune returns the delimiter as a rune.
func (c *Config) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}
