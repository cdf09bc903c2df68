package filter

import (
	"sort"
	"strings"

	"github.com/jmaddaus/sprintlens/internal/config"
	"github.com/jmaddaus/sprintlens/internal/metrics"
	"github.com/jmaddaus/sprintlens/internal/model"
	"github.com/jmaddaus/sprintlens/internal/rules"
)

// UnspecifiedSprint labels trend rows with no sprint.
const UnspecifiedSprint = "Unspecified"

// Settings sizes the chart views.
type Settings struct {
	TopAssignees    int
	TrendType       string
	TrendBuckets    int
	UnassignedLabel string
}

// SettingsFrom extracts the view settings from the report configuration.
func SettingsFrom(cfg config.Report) Settings {
	return Settings{
		TopAssignees:    cfg.TopAssignees,
		TrendType:       cfg.TrendType,
		TrendBuckets:    cfg.TrendBuckets,
		UnassignedLabel: cfg.UnassignedLabel,
	}
}

// Compute derives every chart view from rows. Each view is projected from
// the rows directly, never from another view.
func Compute(rows []model.Row, s Settings) model.Views {
	return model.Views{
		ByPriority: ByPriority(rows),
		ByStatus:   ByStatus(rows),
		ByAssignee: ByAssignee(rows, s.TopAssignees, s.UnassignedLabel),
		ByType:     ByType(rows),
		Trend:      Trend(rows, s.TrendType, s.TrendBuckets),
	}
}

func countBy(rows []model.Row, label func(*model.Row) string) model.Counts {
	out := model.Counts{}
	for i := range rows {
		out[label(&rows[i])]++
	}
	return out
}

// ByPriority counts rows per priority.
func ByPriority(rows []model.Row) model.Counts {
	return countBy(rows, func(r *model.Row) string { return metrics.Label(r.Priority) })
}

// ByStatus counts rows per status.
func ByStatus(rows []model.Row) model.Counts {
	return countBy(rows, func(r *model.Row) string { return metrics.Label(r.Status) })
}

// ByType counts rows per raw type.
func ByType(rows []model.Row) model.Counts {
	return countBy(rows, func(r *model.Row) string { return metrics.Label(r.Type) })
}

// ByAssignee counts rows per assignee and keeps the n largest buckets, ties
// broken by name.
func ByAssignee(rows []model.Row, n int, unassigned string) model.Counts {
	all := countBy(rows, func(r *model.Row) string {
		if a := strings.TrimSpace(r.Assignee); a != "" {
			return a
		}
		return unassigned
	})
	if n <= 0 || len(all) <= n {
		return all
	}
	top := make(model.Counts, n)
	for _, k := range all.Keys()[:n] {
		top[k] = all[k]
	}
	return top
}

// Trend counts rows of type typ per sprint, ordered by sprint ordinal, and
// keeps the last buckets entries.
func Trend(rows []model.Row, typ string, buckets int) []model.TrendPoint {
	counts := map[string]int{}
	for i := range rows {
		if !rows[i].IsType(typ) {
			continue
		}
		label := strings.TrimSpace(rows[i].Sprint)
		if label == "" {
			label = UnspecifiedSprint
		}
		counts[label]++
	}

	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return rules.SprintLess(labels[i], labels[j]) })
	if buckets > 0 && len(labels) > buckets {
		labels = labels[len(labels)-buckets:]
	}

	out := make([]model.TrendPoint, len(labels))
	for i, l := range labels {
		out[i] = model.TrendPoint{Label: l, Count: counts[l]}
	}
	return out
}

// Dimensions lists the candidate values of each filterable dimension. Types
// are listed by the class token that selects them.
func Dimensions(rows []model.Row, r *rules.Set) model.Dimensions {
	sprints := map[string]bool{}
	types := map[string]bool{}
	priorities := map[string]bool{}
	statuses := map[string]bool{}
	for i := range rows {
		row := &rows[i]
		if v := strings.TrimSpace(row.Sprint); v != "" {
			sprints[v] = true
		}
		if v := strings.TrimSpace(row.Type); v != "" {
			types[r.TokenForType(v)] = true
		}
		if v := strings.TrimSpace(row.Priority); v != "" {
			priorities[v] = true
		}
		if v := strings.TrimSpace(row.Status); v != "" {
			statuses[v] = true
		}
	}

	d := model.Dimensions{
		Sprints:    keys(sprints),
		Types:      keys(types),
		Priorities: keys(priorities),
		Statuses:   keys(statuses),
	}
	sort.Slice(d.Sprints, func(i, j int) bool { return rules.SprintLess(d.Sprints[i], d.Sprints[j]) })
	return d
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
