package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"gopkg.in/yaml.v3"

	"github.com/harrison/playcheck/internal/parser"
)

// ConfigError reports an invalid configuration or invocation. It is fatal:
// the binary exits with status 2 before any snippet runs.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", msg, e.Err)
	}
	return "configuration error: " + msg
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a ConfigError.
func NewConfigError(field, reason string, err error) *ConfigError {
	return &ConfigError{Field: field, Reason: reason, Err: err}
}

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// AdapterConfig selects and configures the snippet runtime
type AdapterConfig struct {
	// Kind is the adapter name (yaegi, command)
	Kind string `yaml:"kind"`

	// Imports are packages available to every yaegi snippet
	Imports []string `yaml:"imports"`

	// EchoValues reports the value of a trailing expression that prints nothing
	EchoValues bool `yaml:"echo_values"`

	// Command is the interpreter command line for the command adapter
	Command string `yaml:"command"`

	// SentinelTemplate prints its %s argument in the interpreter's language
	SentinelTemplate string `yaml:"sentinel_template"`
}

// HistoryConfig controls the run history database
type HistoryConfig struct {
	// Enabled records every run in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the SQLite history database
	DBPath string `yaml:"db_path"`
}

// Config represents playcheck configuration options
type Config struct {
	// Timeout bounds a single snippet evaluation
	Timeout time.Duration `yaml:"timeout"`

	// Parallel is the number of documents verified at once
	Parallel int `yaml:"parallel"`

	// StrictWhitespace compares output without trimming trailing whitespace
	StrictWhitespace bool `yaml:"strict_whitespace"`

	// Format is the report format (json, text)
	Format string `yaml:"format"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs are written; empty disables file logs
	LogDir string `yaml:"log_dir"`

	// Extensions are scanned when a directory is given
	Extensions []string `yaml:"extensions"`

	Adapter     AdapterConfig      `yaml:"adapter"`
	History     HistoryConfig      `yaml:"history"`
	Conventions parser.Conventions `yaml:"conventions"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:          2 * time.Second,
		Parallel:         1,
		StrictWhitespace: false,
		Format:           "json",
		LogLevel:         "info",
		LogDir:           ".playcheck/logs",
		Extensions:       []string{".go", ".swift", ".txt", ".md", ".markdown"},
		Adapter: AdapterConfig{
			Kind:             "yaegi",
			Imports:          []string{"fmt", "strings", "math"},
			EchoValues:       true,
			SentinelTemplate: `print("%s")`,
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  ".playcheck/history.db",
		},
		Conventions: parser.DefaultConventions(),
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns a ConfigError
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewConfigError("", "failed to read config file", err)
	}

	// Use a temporary struct to handle duration parsing
	type yamlConfig struct {
		Timeout    string        `yaml:"timeout"`
		Parallel   int           `yaml:"parallel"`
		Format     string        `yaml:"format"`
		LogLevel   string        `yaml:"log_level"`
		LogDir     string        `yaml:"log_dir"`
		Extensions []string      `yaml:"extensions"`
		Adapter    AdapterConfig `yaml:"adapter"`
		History    HistoryConfig `yaml:"history"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, NewConfigError("", "failed to parse config file", err)
	}

	if yamlCfg.Timeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.Timeout)
		if err != nil {
			return nil, NewConfigError("timeout", fmt.Sprintf("invalid duration %q", yamlCfg.Timeout), err)
		}
		cfg.Timeout = timeout
	}
	if yamlCfg.Parallel != 0 {
		cfg.Parallel = yamlCfg.Parallel
	}
	if yamlCfg.Format != "" {
		cfg.Format = yamlCfg.Format
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if len(yamlCfg.Extensions) > 0 {
		cfg.Extensions = yamlCfg.Extensions
	}

	// Booleans and strings that may be set to their zero value are applied
	// only when the key is present
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err != nil {
		return nil, NewConfigError("", "failed to parse config file", err)
	}

	if _, exists := rawMap["log_dir"]; exists {
		cfg.LogDir = yamlCfg.LogDir
	}
	if v, exists := rawMap["strict_whitespace"]; exists {
		b, ok := v.(bool)
		if !ok {
			return nil, NewConfigError("strict_whitespace", fmt.Sprintf("must be a boolean, got %v", v), nil)
		}
		cfg.StrictWhitespace = b
	}

	if adapterMap, ok := rawMap["adapter"].(map[string]interface{}); ok {
		a := yamlCfg.Adapter
		if _, exists := adapterMap["kind"]; exists {
			cfg.Adapter.Kind = a.Kind
		}
		if _, exists := adapterMap["imports"]; exists {
			cfg.Adapter.Imports = a.Imports
		}
		if _, exists := adapterMap["echo_values"]; exists {
			cfg.Adapter.EchoValues = a.EchoValues
		}
		if _, exists := adapterMap["command"]; exists {
			cfg.Adapter.Command = a.Command
		}
		if _, exists := adapterMap["sentinel_template"]; exists {
			cfg.Adapter.SentinelTemplate = a.SentinelTemplate
		}
	}

	if historyMap, ok := rawMap["history"].(map[string]interface{}); ok {
		if _, exists := historyMap["enabled"]; exists {
			cfg.History.Enabled = yamlCfg.History.Enabled
		}
		if _, exists := historyMap["db_path"]; exists {
			cfg.History.DBPath = yamlCfg.History.DBPath
		}
	}

	// Conventions decode over the defaults so a partial section keeps the
	// remaining markers
	if conv, exists := rawMap["conventions"]; exists && conv != nil {
		section, err := yaml.Marshal(conv)
		if err != nil {
			return nil, NewConfigError("conventions", "failed to read section", err)
		}
		if err := yaml.Unmarshal(section, &cfg.Conventions); err != nil {
			return nil, NewConfigError("conventions", "failed to parse section", err)
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .playcheck/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, DirName, "config.yaml"))
}

// Flags holds CLI flag values. A nil field was not set on the command line.
type Flags struct {
	Timeout          *time.Duration
	Parallel         *int
	StrictWhitespace *bool
	Format           *string
	LogLevel         *string
	LogDir           *string
	Adapter          *string
	Command          *string
	NoHistory        *bool
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(f Flags) {
	if f.Timeout != nil {
		c.Timeout = *f.Timeout
	}
	if f.Parallel != nil {
		c.Parallel = *f.Parallel
	}
	if f.StrictWhitespace != nil {
		c.StrictWhitespace = *f.StrictWhitespace
	}
	if f.Format != nil {
		c.Format = *f.Format
	}
	if f.LogLevel != nil {
		c.LogLevel = *f.LogLevel
	}
	if f.LogDir != nil {
		c.LogDir = *f.LogDir
	}
	if f.Adapter != nil {
		c.Adapter.Kind = *f.Adapter
	}
	if f.Command != nil {
		c.Adapter.Command = *f.Command
		// --command without --adapter implies the command adapter
		if f.Adapter == nil {
			c.Adapter.Kind = "command"
		}
	}
	if f.NoHistory != nil && *f.NoHistory {
		c.History.Enabled = false
	}
}

// CommandArgs splits the command adapter's command line into argv using
// shell quoting rules. Variables and backticks are not expanded.
func (c *Config) CommandArgs() ([]string, error) {
	p := shellwords.NewParser()
	args, err := p.Parse(c.Adapter.Command)
	if err != nil {
		return nil, NewConfigError("adapter.command", fmt.Sprintf("cannot split %q", c.Adapter.Command), err)
	}
	// Parse stops at an unquoted ; & | < or >
	if p.Position >= 0 {
		return nil, NewConfigError("adapter.command", fmt.Sprintf("%q contains a shell operator; wrap the pipeline in sh -c", c.Adapter.Command), nil)
	}
	return args, nil
}

// Validate validates the configuration values
// Returns a ConfigError if any values are invalid
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return NewConfigError("timeout", fmt.Sprintf("must be > 0, got %v", c.Timeout), nil)
	}
	if c.Parallel < 1 {
		return NewConfigError("parallel", fmt.Sprintf("must be >= 1, got %d", c.Parallel), nil)
	}

	switch c.Format {
	case "json", "text":
	default:
		return NewConfigError("format", fmt.Sprintf("invalid value %q, must be one of: json, text", c.Format), nil)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return NewConfigError("log_level", fmt.Sprintf("invalid value %q, must be one of: trace, debug, info, warn, error", c.LogLevel), nil)
	}

	if len(c.Extensions) == 0 {
		return NewConfigError("extensions", "at least one extension is required", nil)
	}

	switch c.Adapter.Kind {
	case "yaegi":
	case "command":
		args, err := c.CommandArgs()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			return NewConfigError("adapter.command", "required when adapter.kind is command", nil)
		}
		if !strings.Contains(c.Adapter.SentinelTemplate, "%s") {
			return NewConfigError("adapter.sentinel_template", fmt.Sprintf("%q must contain %%s", c.Adapter.SentinelTemplate), nil)
		}
	default:
		return NewConfigError("adapter.kind", fmt.Sprintf("invalid value %q, must be one of: yaegi, command", c.Adapter.Kind), nil)
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return NewConfigError("history.db_path", "cannot be empty when history is enabled", nil)
	}

	if err := c.Conventions.Validate(); err != nil {
		return NewConfigError("conventions", err.Error(), nil)
	}

	return nil
}
