package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ListenAddr != ":8042" {
		t.Errorf("ListenAddr: want :8042, got %s", cfg.ListenAddr)
	}
	if cfg.Report.TopAssignees != 10 {
		t.Errorf("TopAssignees: want 10, got %d", cfg.Report.TopAssignees)
	}
	if cfg.Report.TypeClasses["Bugs"] != "Bug" {
		t.Errorf("TypeClasses[Bugs]: want Bug, got %q", cfg.Report.TypeClasses["Bugs"])
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestExpandHomeWithTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}
	got := expandHome("~/foo")
	want := filepath.Join(home, "foo")
	if got != want {
		t.Errorf("expandHome(~/foo): want %s, got %s", want, got)
	}
}

func TestExpandHomeAbsolute(t *testing.T) {
	got := expandHome("/absolute/path")
	if got != "/absolute/path" {
		t.Errorf("expandHome(/absolute/path): want /absolute/path, got %s", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen addr", func(c *Config) { c.ListenAddr = "" }},
		{"port zero", func(c *Config) { c.ListenAddr = ":0" }},
		{"port too high", func(c *Config) { c.ListenAddr = ":99999" }},
		{"port non numeric", func(c *Config) { c.ListenAddr = ":abc" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"no terminal statuses", func(c *Config) { c.Report.TerminalStatuses = nil }},
		{"no date layouts", func(c *Config) { c.Report.DateLayouts = nil }},
		{"threshold zero", func(c *Config) { c.Report.MajorityThreshold = 0 }},
		{"threshold above one", func(c *Config) { c.Report.MajorityThreshold = 1.5 }},
		{"top assignees zero", func(c *Config) { c.Report.TopAssignees = 0 }},
		{"trend buckets zero", func(c *Config) { c.Report.TrendBuckets = 0 }},
		{"blank trend type", func(c *Config) { c.Report.TrendType = " " }},
		{"blank default project", func(c *Config) { c.Report.DefaultProject = "" }},
		{"hours per day zero", func(c *Config) { c.Report.HoursPerDay = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LENS_CONFIG", "")
	t.Setenv("LENS_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel: want debug from env, got %s", cfg.LogLevel)
	}
	if cfg.Report.TrendBuckets != 12 {
		t.Errorf("TrendBuckets: want default 12, got %d", cfg.Report.TrendBuckets)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lens.yaml")
	body := `listen_addr: ":9000"
report:
  terminal_statuses: [Done, Cerrado]
  top_assignees: 5
  type_classes:
    Defects: Bug
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr: want :9000, got %s", cfg.ListenAddr)
	}
	if len(cfg.Report.TerminalStatuses) != 2 || cfg.Report.TerminalStatuses[1] != "Cerrado" {
		t.Errorf("TerminalStatuses: got %v", cfg.Report.TerminalStatuses)
	}
	if cfg.Report.TopAssignees != 5 {
		t.Errorf("TopAssignees: want 5, got %d", cfg.Report.TopAssignees)
	}
	if cfg.Report.TypeClasses["Defects"] != "Bug" {
		t.Errorf("TypeClasses[Defects]: want Bug, got %q", cfg.Report.TypeClasses["Defects"])
	}
	// Untouched keys keep their defaults.
	if cfg.Report.TrendType != "Bug" {
		t.Errorf("TrendType: want Bug, got %s", cfg.Report.TrendType)
	}
}

func TestLoadEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	if err := os.WriteFile(path, []byte("log_level: warn\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("LENS_CONFIG", path)
	t.Setenv("LENS_LOG_LEVEL", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel: want warn, got %s", cfg.LogLevel)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("report: [unterminated"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(path, []byte("report:\n  majority_threshold: 2\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lens.yaml")
	cfg := DefaultConfig()
	cfg.ListenAddr = ":9999"
	cfg.Report.TrendBuckets = 6

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ListenAddr != ":9999" {
		t.Errorf("ListenAddr: want :9999, got %s", loaded.ListenAddr)
	}
	if loaded.Report.TrendBuckets != 6 {
		t.Errorf("TrendBuckets: want 6, got %d", loaded.Report.TrendBuckets)
	}
}
