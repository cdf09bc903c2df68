package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the working directory when no config path
// is given.
const DefaultFileName = "sprintlens.yaml"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds the lens configuration.
type Config struct {
	LogLevel   string `yaml:"log_level"`   // default "info"
	LogFormat  string `yaml:"log_format"`  // auto, console or json
	ListenAddr string `yaml:"listen_addr"` // default ":8042"

	Report Report `yaml:"report"`
}

// Report holds the matching rules and sizing knobs of a generation pass.
type Report struct {
	// TerminalStatuses are the status labels meaning "work finished".
	TerminalStatuses []string `yaml:"terminal_statuses"`

	// InProgressStatuses and ToDoStatuses drive the bug breakdown.
	InProgressStatuses []string `yaml:"in_progress_statuses"`
	ToDoStatuses       []string `yaml:"to_do_statuses"`

	// CriticalPriorities are the priority labels counted as critical.
	CriticalPriorities []string `yaml:"critical_priorities"`

	// TypeClasses maps a filter token (e.g. "Bugs") to the issue type it
	// selects (e.g. "Bug").
	TypeClasses map[string]string `yaml:"type_classes"`

	// ShowAllWords are the words that turn a selection into a wildcard.
	ShowAllWords []string `yaml:"show_all_words"`

	// DateLayouts are tried in order by the date normalizer.
	DateLayouts []string `yaml:"date_layouts"`

	// MajorityThreshold is the share of a column that must parse under one
	// layout for that layout to be adopted.
	MajorityThreshold float64 `yaml:"majority_threshold"`

	TopAssignees    int     `yaml:"top_assignees"`
	TrendType       string  `yaml:"trend_type"`
	TrendBuckets    int     `yaml:"trend_buckets"`
	DefaultProject  string  `yaml:"default_project"`
	UnassignedLabel string  `yaml:"unassigned_label"`
	HoursPerDay     float64 `yaml:"hours_per_day"`
}

// DefaultDateLayouts is the ordered layout list used when none is configured.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-Jan-06",
	"02-Jan-2006",
	"02 Jan 2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000-0700",
	"02/Jan/06 3:04 PM",
	"02/01/2006 15:04",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:   "info",
		LogFormat:  "auto",
		ListenAddr: ":8042",
		Report: Report{
			TerminalStatuses:   []string{"Done", "Closed", "Resolved"},
			InProgressStatuses: []string{"In Progress", "In Development", "In Testing", "In Review"},
			ToDoStatuses:       []string{"To Do", "Open", "Backlog"},
			CriticalPriorities: []string{"Critical", "Highest", "Blocker"},
			TypeClasses: map[string]string{
				"Bugs":            "Bug",
				"Stories":         "Story",
				"Tests":           "Test",
				"Tasks":           "Task",
				"Epics":           "Epic",
				"Test Executions": "Test Execution",
			},
			ShowAllWords:      []string{"all", "todos", "todas"},
			DateLayouts:       append([]string(nil), DefaultDateLayouts...),
			MajorityThreshold: 0.5,
			TopAssignees:      10,
			TrendType:         "Bug",
			TrendBuckets:      12,
			DefaultProject:    "UNSPECIFIED",
			UnassignedLabel:   "Unassigned",
			HoursPerDay:       8,
		},
	}
}

// resolvePath picks the config file: the explicit path, then $LENS_CONFIG,
// then DefaultFileName in the working directory. explicit reports whether
// the file must exist.
func resolvePath(path string) (resolved string, explicit bool) {
	if path != "" {
		return path, true
	}
	if env := os.Getenv("LENS_CONFIG"); env != "" {
		return env, true
	}
	return DefaultFileName, false
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// Load reads the configuration file. If no path is given and the default
// file does not exist, it returns the default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	resolved, explicit := resolvePath(path)
	resolved = expandHome(resolved)

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", resolved, err)
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// applyEnv lets the environment override the logging knobs.
func applyEnv(cfg *Config) {
	if v := os.Getenv("LENS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LENS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}

// Validate checks that the Config contains valid values.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen_addr must not be empty", ErrInvalid)
	}
	_, portStr, err := net.SplitHostPort(c.ListenAddr)
	if err != nil {
		return fmt.Errorf("%w: listen_addr %q: %v", ErrInvalid, c.ListenAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("%w: port in listen_addr %q: %v", ErrInvalid, c.ListenAddr, err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: port %d out of range (1-65535)", ErrInvalid, port)
	}

	switch c.LogFormat {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("%w: log_format %q (want auto, console or json)", ErrInvalid, c.LogFormat)
	}

	return c.Report.Validate()
}

// Validate checks the report rules.
func (r *Report) Validate() error {
	if len(r.TerminalStatuses) == 0 {
		return fmt.Errorf("%w: terminal_statuses must not be empty", ErrInvalid)
	}
	if len(r.DateLayouts) == 0 {
		return fmt.Errorf("%w: date_layouts must not be empty", ErrInvalid)
	}
	if r.MajorityThreshold <= 0 || r.MajorityThreshold > 1 {
		return fmt.Errorf("%w: majority_threshold %v must be in (0, 1]", ErrInvalid, r.MajorityThreshold)
	}
	if r.TopAssignees < 1 {
		return fmt.Errorf("%w: top_assignees must be positive", ErrInvalid)
	}
	if r.TrendBuckets < 1 {
		return fmt.Errorf("%w: trend_buckets must be positive", ErrInvalid)
	}
	if strings.TrimSpace(r.TrendType) == "" {
		return fmt.Errorf("%w: trend_type must not be empty", ErrInvalid)
	}
	if strings.TrimSpace(r.DefaultProject) == "" {
		return fmt.Errorf("%w: default_project must not be empty", ErrInvalid)
	}
	if r.HoursPerDay <= 0 {
		return fmt.Errorf("%w: hours_per_day must be positive", ErrInvalid)
	}
	return nil
}

// Save writes the configuration as YAML to path.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
