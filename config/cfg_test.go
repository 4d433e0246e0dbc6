package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rupor-github/gencfg"

	"cssscope/scope"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}

	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
	if cfg.Scoping.ScopeClass != ".scoped" {
		t.Errorf("ScopeClass = %q, want .scoped", cfg.Scoping.ScopeClass)
	}
	if cfg.Scoping.CommaSplit != scope.CommaSplitLegacy {
		t.Errorf("CommaSplit = %v, want legacy", cfg.Scoping.CommaSplit)
	}
	if cfg.Scoping.OutputSuffix != ".scoped" {
		t.Errorf("OutputSuffix = %q, want .scoped", cfg.Scoping.OutputSuffix)
	}
	if cfg.Scoping.Workers < 1 {
		t.Errorf("Workers = %d, want positive", cfg.Scoping.Workers)
	}
	if cfg.Watch.Debounce != 300*time.Millisecond {
		t.Errorf("Debounce = %v, want 300ms", cfg.Watch.Debounce)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "test.log")

	path := writeConfig(t, `version: 1
scoping:
  scope_class: ".fill-in-the-blank-experiment"
  comma_split: nested
  output_suffix: ".min"
  workers: 2
  verify: true
watch:
  debounce: 1s
logging:
  console:
    level: debug
  file:
    level: debug
    destination: `+logPath+`
    mode: append
`)

	cfg, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Scoping.ScopeClass != ".fill-in-the-blank-experiment" {
		t.Errorf("ScopeClass = %q", cfg.Scoping.ScopeClass)
	}
	if cfg.Scoping.CommaSplit != scope.CommaSplitNested {
		t.Errorf("CommaSplit = %v, want nested", cfg.Scoping.CommaSplit)
	}
	if cfg.Scoping.OutputSuffix != ".min" {
		t.Errorf("OutputSuffix = %q", cfg.Scoping.OutputSuffix)
	}
	if cfg.Scoping.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Scoping.Workers)
	}
	if !cfg.Scoping.Verify {
		t.Error("Expected Verify to be true")
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("Debounce = %v, want 1s", cfg.Watch.Debounce)
	}
	if cfg.Logging.FileLogger.Mode != "append" {
		t.Errorf("FileLogger.Mode = %q", cfg.Logging.FileLogger.Mode)
	}
	// values absent from the file come from the template
	if cfg.Reporting.Destination == "" {
		t.Error("Expected reporting destination default")
	}
	// sanitizer makes sure log directory exists
	if _, err := os.Stat(filepath.Dir(logPath)); err != nil {
		t.Errorf("log directory was not created: %v", err)
	}
}

func TestLoadConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "version: 1\nscoping:\n  scope_class: x\n invalid indent\n"},
		{"unknown field", "version: 1\nunknown_field: value\n"},
		{"wrong version", "version: 2\n"},
		{"class without dot", "version: 1\nscoping:\n  scope_class: widget\n"},
		{"unknown comma split", "version: 1\nscoping:\n  comma_split: smart\n"},
		{"suffix with separator", "version: 1\nscoping:\n  output_suffix: a/b\n"},
		{"no workers", "version: 1\nscoping:\n  workers: 0\n"},
		{"negative debounce", "version: 1\nwatch:\n  debounce: -1s\n"},
		{"bad log level", "version: 1\nlogging:\n  console:\n    level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfiguration(writeConfig(t, tt.content)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestLoadConfiguration_NonExistentFile(t *testing.T) {
	if _, err := LoadConfiguration("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfiguration_WithOptions(t *testing.T) {
	option := func(opts *gencfg.ProcessingOptions) {}

	cfg, err := LoadConfiguration("", option)
	if err != nil {
		t.Fatalf("LoadConfiguration() with options error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if !strings.Contains(string(data), "scope_class") {
		t.Error("Prepare() output does not look like configuration")
	}

	if _, err = unmarshalConfig(data, &Config{}, true); err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	cfg.Scoping.ScopeClass = ".dumped"

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	cfg2, err := unmarshalConfig(data, &Config{}, true)
	if err != nil {
		t.Fatalf("Dumped config cannot be loaded: %v", err)
	}
	if cfg2.Scoping.ScopeClass != ".dumped" {
		t.Errorf("ScopeClass after dump/load = %q", cfg2.Scoping.ScopeClass)
	}
	if cfg2.Watch.Debounce != cfg.Watch.Debounce {
		t.Errorf("Debounce after dump/load = %v, want %v", cfg2.Watch.Debounce, cfg.Watch.Debounce)
	}
}
