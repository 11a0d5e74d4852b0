package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s", cfg.Timeout)
	}
	if cfg.Parallel != 1 {
		t.Errorf("Parallel = %d, want 1", cfg.Parallel)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want %q", cfg.Format, "json")
	}
	if cfg.Adapter.Kind != "yaegi" {
		t.Errorf("Adapter.Kind = %q, want %q", cfg.Adapter.Kind, "yaegi")
	}
	if !cfg.History.Enabled {
		t.Error("History.Enabled = false, want true")
	}
	if cfg.Conventions.ProseMarker != "//:" {
		t.Errorf("Conventions.ProseMarker = %q, want %q", cfg.Conventions.ProseMarker, "//:")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid, got: %v", err)
	}
}

// TestLoadConfigValidFile tests loading a valid YAML config file
func TestLoadConfigValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `timeout: 500ms
parallel: 4
format: text
log_level: debug
log_dir: ""
strict_whitespace: true
extensions: [".swift"]
adapter:
  kind: command
  command: swift -
history:
  enabled: false
conventions:
  prose_marker: "#:"
  nested_comments: false
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Timeout != 500*time.Millisecond {
		t.Errorf("Timeout = %v, want 500ms", cfg.Timeout)
	}
	if cfg.Parallel != 4 {
		t.Errorf("Parallel = %d, want 4", cfg.Parallel)
	}
	if cfg.Format != "text" {
		t.Errorf("Format = %q, want %q", cfg.Format, "text")
	}
	if cfg.LogDir != "" {
		t.Errorf("LogDir = %q, want empty (explicitly disabled)", cfg.LogDir)
	}
	if !cfg.StrictWhitespace {
		t.Error("StrictWhitespace = false, want true")
	}
	if len(cfg.Extensions) != 1 || cfg.Extensions[0] != ".swift" {
		t.Errorf("Extensions = %v, want [.swift]", cfg.Extensions)
	}
	if cfg.Adapter.Kind != "command" || cfg.Adapter.Command != "swift -" {
		t.Errorf("Adapter = %+v, want command 'swift -'", cfg.Adapter)
	}
	if cfg.Adapter.SentinelTemplate != `print("%s")` {
		t.Errorf("SentinelTemplate = %q, want default", cfg.Adapter.SentinelTemplate)
	}
	if cfg.History.Enabled {
		t.Error("History.Enabled = true, want false")
	}
	if cfg.History.DBPath != ".playcheck/history.db" {
		t.Errorf("History.DBPath = %q, want default", cfg.History.DBPath)
	}
	if cfg.Conventions.ProseMarker != "#:" {
		t.Errorf("ProseMarker = %q, want %q", cfg.Conventions.ProseMarker, "#:")
	}
	if cfg.Conventions.NestedComments {
		t.Error("NestedComments = true, want false")
	}
	if cfg.Conventions.ResultMarker != "//" {
		t.Errorf("ResultMarker = %q, want default kept", cfg.Conventions.ResultMarker)
	}
}

// TestLoadConfigFileNotExists tests fallback to defaults when file doesn't exist
func TestLoadConfigFileNotExists(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadConfig() should not error on missing file, got: %v", err)
	}
	if cfg.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want default", cfg.Timeout)
	}
}

// TestLoadConfigErrors tests malformed files
func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "malformed yaml", content: "timeout: [unclosed"},
		{name: "bad duration", content: "timeout: soon"},
		{name: "non-boolean strict", content: "strict_whitespace: maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}
			_, err := LoadConfig(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !IsConfigError(err) {
				t.Errorf("expected ConfigError, got %T: %v", err, err)
			}
		})
	}
}

// TestLoadConfigFromDir tests the .playcheck/config.yaml location
func TestLoadConfigFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, DirName), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, DirName, "config.yaml"), []byte("parallel: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFromDir(dir)
	if err != nil {
		t.Fatalf("LoadConfigFromDir() error = %v", err)
	}
	if cfg.Parallel != 3 {
		t.Errorf("Parallel = %d, want 3", cfg.Parallel)
	}
}

// TestMergeWithFlags tests that set flags win over file values
func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Parallel = 8
	cfg.Format = "text"

	timeout := 5 * time.Second
	parallel := 2
	command := "python3 -"
	noHistory := true

	cfg.MergeWithFlags(Flags{
		Timeout:   &timeout,
		Parallel:  &parallel,
		Command:   &command,
		NoHistory: &noHistory,
	})

	if cfg.Timeout != timeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, timeout)
	}
	if cfg.Parallel != 2 {
		t.Errorf("Parallel = %d, want 2", cfg.Parallel)
	}
	if cfg.Format != "text" {
		t.Errorf("Format = %q, want file value kept", cfg.Format)
	}
	if cfg.Adapter.Kind != "command" {
		t.Errorf("Adapter.Kind = %q, want command implied by --command", cfg.Adapter.Kind)
	}
	if got, err := cfg.CommandArgs(); err != nil || len(got) != 2 || got[0] != "python3" {
		t.Errorf("CommandArgs() = %v, want [python3 -]", got)
	}
	if cfg.History.Enabled {
		t.Error("History.Enabled = true, want false after --no-history")
	}
}

func TestCommandArgs(t *testing.T) {
	tests := []struct {
		command string
		want    []string
	}{
		{command: "python3 -", want: []string{"python3", "-"}},
		{command: `python3 -c "import sys; exec(sys.stdin.read())"`, want: []string{"python3", "-c", "import sys; exec(sys.stdin.read())"}},
		{command: `sh -c 'echo "$HOME"'`, want: []string{"sh", "-c", `echo "$HOME"`}},
		{command: `/opt/my\ tools/repl --quiet`, want: []string{"/opt/my tools/repl", "--quiet"}},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Adapter.Command = tt.command
			got, err := cfg.CommandArgs()
			if err != nil {
				t.Fatalf("CommandArgs() error = %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("CommandArgs() = %q, want %q", got, tt.want)
			}
		})
	}

	for _, bad := range []string{`python3 -c 'unclosed`, "python3 - | tee log"} {
		cfg := DefaultConfig()
		cfg.Adapter.Command = bad
		if _, err := cfg.CommandArgs(); !IsConfigError(err) {
			t.Errorf("CommandArgs(%q) error = %v, want ConfigError", bad, err)
		}
	}
}

// TestValidate tests configuration validation
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, field: "timeout"},
		{name: "zero parallel", modify: func(c *Config) { c.Parallel = 0 }, field: "parallel"},
		{name: "bad format", modify: func(c *Config) { c.Format = "xml" }, field: "format"},
		{name: "bad log level", modify: func(c *Config) { c.LogLevel = "loud" }, field: "log_level"},
		{name: "no extensions", modify: func(c *Config) { c.Extensions = nil }, field: "extensions"},
		{name: "unknown adapter", modify: func(c *Config) { c.Adapter.Kind = "jvm" }, field: "adapter.kind"},
		{name: "command without command", modify: func(c *Config) { c.Adapter.Kind = "command" }, field: "adapter.command"},
		{
			name: "unterminated quote in command",
			modify: func(c *Config) {
				c.Adapter.Kind = "command"
				c.Adapter.Command = `python3 -c "import sys`
			},
			field: "adapter.command",
		},
		{
			name: "bad sentinel",
			modify: func(c *Config) {
				c.Adapter.Kind = "command"
				c.Adapter.Command = "swift -"
				c.Adapter.SentinelTemplate = "print()"
			},
			field: "adapter.sentinel_template",
		},
		{name: "empty history path", modify: func(c *Config) { c.History.DBPath = "" }, field: "history.db_path"},
		{
			name:   "history disabled allows empty path",
			modify: func(c *Config) { c.History.Enabled = false; c.History.DBPath = "" },
		},
		{name: "bad conventions", modify: func(c *Config) { c.Conventions.BlockClose = "" }, field: "conventions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()

			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Validate() error = %v, want ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

// TestFindProjectRoot tests upward discovery of the .playcheck directory
func TestFindProjectRoot(t *testing.T) {
	t.Setenv("PLAYCHECK_HOME", "")

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, DirName), 0755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "docs", "guide")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot() error = %v", err)
	}
	want, _ := filepath.EvalSymlinks(root)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != want {
		t.Errorf("FindProjectRoot() = %q, want %q", got, root)
	}

	t.Setenv("PLAYCHECK_HOME", "/opt/playcheck")
	got, err = FindProjectRoot(nested)
	if err != nil {
		t.Fatal(err)
	}
	if got != "/opt/playcheck" {
		t.Errorf("FindProjectRoot() = %q, want env override", got)
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("/proj", ".playcheck/history.db"); got != "/proj/.playcheck/history.db" {
		t.Errorf("ResolvePath() = %q", got)
	}
	if got := ResolvePath("/proj", "/abs/h.db"); got != "/abs/h.db" {
		t.Errorf("ResolvePath() = %q, want absolute unchanged", got)
	}
	if got := ResolvePath("/proj", ""); got != "" {
		t.Errorf("ResolvePath() = %q, want empty", got)
	}
}
