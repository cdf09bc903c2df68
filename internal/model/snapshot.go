package model

import (
	"sort"
	"time"
)

// Counts maps a category label to the number of rows in it.
type Counts map[string]int

// Keys returns the labels sorted by descending count, then label.
func (c Counts) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if c[keys[i]] != c[keys[j]] {
			return c[keys[i]] > c[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Total sums every bucket.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// TrendPoint is one time bucket of a trend series.
type TrendPoint struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Views holds the chart aggregates derived from one set of rows. Each field
// is an independent projection of the same rows.
type Views struct {
	ByPriority Counts       `json:"priority"`
	ByStatus   Counts       `json:"status"`
	ByAssignee Counts       `json:"assignee"`
	ByType     Counts       `json:"type"`
	Trend      []TrendPoint `json:"trend"`
}

// KPIs are the scalar metrics of a record set.
type KPIs struct {
	TotalIssues    int `json:"total_issues"`
	ResolvedIssues int `json:"resolved_issues"`
	BacklogIssues  int `json:"backlog_issues"`
	AssignedIssues int `json:"assigned_issues"`
	TotalSprints   int `json:"total_sprints"`

	TotalBugs      int `json:"total_bugs"`
	BugsDone       int `json:"bugs_done"`
	BugsInProgress int `json:"bugs_in_progress"`
	BugsToDo       int `json:"bugs_to_do"`
	CriticalBugs   int `json:"critical_bugs"`
	CriticalOpen   int `json:"critical_bugs_pending"`
	TotalStories   int `json:"total_stories"`
	TotalTests     int `json:"total_tests"`

	LeadTimeMedian   Measure `json:"lead_time_days"`
	LeadTimeMean     Measure `json:"lead_time_days_mean"`
	MTTR             Measure `json:"mttr_days"`
	BacklogAgeMedian Measure `json:"backlog_age_days"`
	BacklogAgeMean   Measure `json:"backlog_age_days_mean"`
	AvgTimeSpent     Measure `json:"avg_time_spent_days"`

	DefectRate       Measure `json:"defect_rate"`
	TestCoverage     Measure `json:"test_coverage"`
	TestExecutionPct Measure `json:"test_execution_pct"`
	ResolutionRate   Measure `json:"resolution_rate"`
}

// AgingEntry is one unresolved issue and its age.
type AgingEntry struct {
	Key     string  `json:"key"`
	Type    string  `json:"type"`
	Status  string  `json:"status"`
	AgeDays float64 `json:"age_days"`
}

// Recommendation is an advisory derived from KPI thresholds.
type Recommendation struct {
	Metric   string `json:"metric"`
	Priority string `json:"priority"`
	Text     string `json:"text"`
}

// Dimensions lists the distinct candidate values of each filterable
// dimension over the full record set, sorted.
type Dimensions struct {
	Sprints    []string `json:"sprints"`
	Types      []string `json:"types"`
	Priorities []string `json:"priorities"`
	Statuses   []string `json:"statuses"`
}

// Diagnostics records the degradations recovered during generation.
type Diagnostics struct {
	DateLayouts    map[string]string `json:"date_layouts,omitempty"`
	Unparsable     map[string]int    `json:"unparsable,omitempty"`
	MissingColumns []string          `json:"missing_columns,omitempty"`
	DuplicateKeys  []string          `json:"duplicate_keys,omitempty"`
}

// Snapshot is the frozen output of one generation pass.
// RuleTables records the matching rules and view settings a snapshot was
// generated with, so later filtering reproduces its baseline.
type RuleTables struct {
	TerminalStatuses   []string          `json:"terminal_statuses"`
	InProgressStatuses []string          `json:"in_progress_statuses"`
	ToDoStatuses       []string          `json:"to_do_statuses"`
	CriticalPriorities []string          `json:"critical_priorities"`
	TypeClasses        map[string]string `json:"type_classes"`
	ShowAllWords       []string          `json:"show_all_words"`
	TopAssignees       int               `json:"top_assignees"`
	TrendType          string            `json:"trend_type"`
	TrendBuckets       int               `json:"trend_buckets"`
	UnassignedLabel    string            `json:"unassigned_label"`
	HoursPerDay        float64           `json:"hours_per_day"`
}

type Snapshot struct {
	GenerationID string    `json:"generation_id"`
	GeneratedAt  time.Time `json:"generated_at"`
	Source       string    `json:"source"`

	KPIs               KPIs               `json:"kpis"`
	PriorityBugs       Counts             `json:"priority_bugs"`
	LeadTimeByPriority map[string]Measure `json:"lead_time_by_priority"`
	BacklogAging       []AgingEntry       `json:"backlog_aging"`
	Recommendations    []Recommendation   `json:"recommendations,omitempty"`

	Views       Views       `json:"views"`
	Rows        []Row       `json:"rows"`
	Epics       []*Epic     `json:"epics"`
	Dimensions  Dimensions  `json:"dimensions"`
	Diagnostics Diagnostics `json:"diagnostics"`
	Rules       *RuleTables `json:"rules,omitempty"`
}

// Epic returns the epic with the given key, or nil.
func (s *Snapshot) Epic(key string) *Epic {
	for _, e := range s.Epics {
		if e.Key == key {
			return e
		}
	}
	return nil
}
