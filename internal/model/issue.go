package model

import (
	"strings"
	"time"
)

// Well-known issue type names. Comparisons against them are case-insensitive
// (see SameType).
const (
	TypeBug           = "Bug"
	TypeStory         = "Story"
	TypeTask          = "Task"
	TypeTest          = "Test"
	TypeTestExecution = "Test Execution"
	TypeEpic          = "Epic"
)

// Issue is one normalized work item. Timestamps are nil when the source value
// was missing or could not be parsed.
type Issue struct {
	Key       string     `json:"key"`
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	Priority  string     `json:"priority"`
	Assignee  string     `json:"assignee"`
	Sprint    string     `json:"sprint"`
	Project   string     `json:"project"`
	EpicName  string     `json:"epic_name,omitempty"`
	EpicLink  string     `json:"epic_link,omitempty"`
	Summary   string     `json:"summary"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// ResolvedAt is the explicit resolution timestamp from the source. The
	// effective resolution (with the last-update fallback) is computed by the
	// metrics package and carried on Row.
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	// TimeSpent is the logged effort in seconds, nil when absent.
	TimeSpent *float64 `json:"time_spent,omitempty"`
}

// IsType reports whether the issue's type equals name, ignoring case and
// surrounding whitespace.
func (i *Issue) IsType(name string) bool {
	return SameType(i.Type, name)
}

// SameType compares two type labels case-insensitively.
func SameType(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Row is the flattened minimal projection of an Issue that is embedded in the
// snapshot and used for client-side filtering.
type Row struct {
	Key      string     `json:"key"`
	Summary  string     `json:"summary"`
	Type     string     `json:"type"`
	Priority string     `json:"priority"`
	Status   string     `json:"status"`
	Assignee string     `json:"assignee"`
	Sprint   string     `json:"sprint"`
	Project  string     `json:"project"`
	Created  *time.Time `json:"created,omitempty"`
	Resolved *time.Time `json:"resolved,omitempty"`
	Epic     string     `json:"epic"`

	// TimeSpent is the logged effort in seconds.
	TimeSpent *float64 `json:"time_spent,omitempty"`
}

// IsType reports whether the row's type equals name, ignoring case.
func (r *Row) IsType(name string) bool {
	return SameType(r.Type, name)
}
