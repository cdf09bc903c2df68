// Package filter re-aggregates a frozen record set under user selections.
// An Engine never modifies the rows it was built from: every call derives a
// new subset and recomputes its views from that subset alone.
package filter

import (
	"maps"
	"slices"
	"strings"

	"github.com/jmaddaus/sprintlens/internal/config"
	"github.com/jmaddaus/sprintlens/internal/metrics"
	"github.com/jmaddaus/sprintlens/internal/model"
	"github.com/jmaddaus/sprintlens/internal/rules"
)

// Selection holds one optional value per dimension. Empty values and
// show-all labels select everything.
type Selection struct {
	Sprint   string `json:"sprint,omitempty" form:"sprint"`
	Type     string `json:"type,omitempty" form:"type"`
	Priority string `json:"priority,omitempty" form:"priority"`
	Status   string `json:"status,omitempty" form:"status"`
}

// Option is one candidate value annotated against the current subset.
type Option struct {
	Value   string `json:"value"`
	Count   int    `json:"count"`
	Enabled bool   `json:"enabled"`
}

// Options annotates every candidate of every dimension.
type Options struct {
	Sprints    []Option `json:"sprints"`
	Types      []Option `json:"types"`
	Priorities []Option `json:"priorities"`
	Statuses   []Option `json:"statuses"`
}

// View is the result of applying one selection.
type View struct {
	Selection Selection   `json:"selection"`
	Total     int         `json:"total"`
	KPIs      model.KPIs  `json:"kpis"`
	Views     model.Views `json:"views"`
	Options   Options     `json:"options"`
	Rows      []model.Row `json:"rows"`
}

// Engine filters one record set.
type Engine struct {
	rows     []model.Row
	dims     model.Dimensions
	rules    *rules.Set
	calc     *metrics.Calculator
	settings Settings
}

// New returns an Engine over rows. The rows are shared, not copied, and must
// not be modified afterwards.
func New(rows []model.Row, dims model.Dimensions, r *rules.Set, calc *metrics.Calculator, s Settings) *Engine {
	return &Engine{rows: rows, dims: dims, rules: r, calc: calc, settings: s}
}

// ForSnapshot returns an Engine over a snapshot's rows. Ages are measured
// from the snapshot's generation time and the rule tables recorded in the
// snapshot override cfg, so that the unfiltered view reproduces the
// snapshot's figures. cfg only applies to documents without recorded rules.
func ForSnapshot(snap *model.Snapshot, cfg config.Report) *Engine {
	if snap.Rules != nil {
		cfg = withTables(cfg, snap.Rules)
	}
	r := rules.New(cfg)
	calc := &metrics.Calculator{
		Rules:           r,
		Now:             snap.GeneratedAt,
		UnassignedLabel: cfg.UnassignedLabel,
		HoursPerDay:     cfg.HoursPerDay,
	}
	return New(snap.Rows, snap.Dimensions, r, calc, SettingsFrom(cfg))
}

// TablesFrom captures the parts of cfg that filtering depends on.
func TablesFrom(cfg config.Report) *model.RuleTables {
	return &model.RuleTables{
		TerminalStatuses:   slices.Clone(cfg.TerminalStatuses),
		InProgressStatuses: slices.Clone(cfg.InProgressStatuses),
		ToDoStatuses:       slices.Clone(cfg.ToDoStatuses),
		CriticalPriorities: slices.Clone(cfg.CriticalPriorities),
		TypeClasses:        maps.Clone(cfg.TypeClasses),
		ShowAllWords:       slices.Clone(cfg.ShowAllWords),
		TopAssignees:       cfg.TopAssignees,
		TrendType:          cfg.TrendType,
		TrendBuckets:       cfg.TrendBuckets,
		UnassignedLabel:    cfg.UnassignedLabel,
		HoursPerDay:        cfg.HoursPerDay,
	}
}

func withTables(cfg config.Report, t *model.RuleTables) config.Report {
	cfg.TerminalStatuses = t.TerminalStatuses
	cfg.InProgressStatuses = t.InProgressStatuses
	cfg.ToDoStatuses = t.ToDoStatuses
	cfg.CriticalPriorities = t.CriticalPriorities
	cfg.TypeClasses = t.TypeClasses
	cfg.ShowAllWords = t.ShowAllWords
	cfg.TopAssignees = t.TopAssignees
	cfg.TrendType = t.TrendType
	cfg.TrendBuckets = t.TrendBuckets
	cfg.UnassignedLabel = t.UnassignedLabel
	cfg.HoursPerDay = t.HoursPerDay
	return cfg
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func (e *Engine) matchSprint(row *model.Row, v string) bool {
	return e.rules.IsShowAll(v) || strings.Contains(row.Sprint, strings.TrimSpace(v))
}

func (e *Engine) matchType(row *model.Row, v string) bool {
	return e.rules.IsShowAll(v) || row.IsType(e.rules.TypeForToken(v))
}

func (e *Engine) matchPriority(row *model.Row, v string) bool {
	return e.rules.IsShowAll(v) || containsFold(row.Priority, strings.TrimSpace(v))
}

func (e *Engine) matchStatus(row *model.Row, v string) bool {
	return e.rules.IsShowAll(v) || containsFold(row.Status, strings.TrimSpace(v))
}

// Match reports whether row satisfies every dimension of sel.
func (e *Engine) Match(row *model.Row, sel Selection) bool {
	return e.matchSprint(row, sel.Sprint) &&
		e.matchType(row, sel.Type) &&
		e.matchPriority(row, sel.Priority) &&
		e.matchStatus(row, sel.Status)
}

// Apply returns the rows matching sel, in source order.
func (e *Engine) Apply(sel Selection) []model.Row {
	out := []model.Row{}
	for i := range e.rows {
		if e.Match(&e.rows[i], sel) {
			out = append(out, e.rows[i])
		}
	}
	return out
}

// Baseline is the view of the unfiltered record set.
func (e *Engine) Baseline() View {
	return e.View(Selection{})
}

// View applies sel and recomputes the KPIs, the chart views and the option
// annotations from the matching rows.
func (e *Engine) View(sel Selection) View {
	rows := e.Apply(sel)
	return View{
		Selection: sel,
		Total:     len(rows),
		KPIs:      e.calc.KPIs(rows),
		Views:     Compute(rows, e.settings),
		Options:   e.options(rows),
		Rows:      rows,
	}
}

// options counts, for every candidate, the rows of the current subset that
// the candidate would select. Candidates with no rows stay listed but are
// disabled.
func (e *Engine) options(rows []model.Row) Options {
	return Options{
		Sprints:    e.annotate(rows, e.dims.Sprints, e.matchSprint),
		Types:      e.annotate(rows, e.dims.Types, e.matchType),
		Priorities: e.annotate(rows, e.dims.Priorities, e.matchPriority),
		Statuses:   e.annotate(rows, e.dims.Statuses, e.matchStatus),
	}
}

func (e *Engine) annotate(rows []model.Row, values []string, match func(*model.Row, string) bool) []Option {
	out := make([]Option, len(values))
	for i, v := range values {
		n := 0
		for j := range rows {
			if match(&rows[j], v) {
				n++
			}
		}
		out[i] = Option{Value: v, Count: n, Enabled: n > 0}
	}
	return out
}
