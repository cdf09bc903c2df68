// Package metrics derives the delivery and quality figures of a record set.
// Every figure is a pure function of the rows it is given, so the same code
// serves the full set at generation time and any filtered subset afterwards.
package metrics

import (
	"sort"
	"strings"
	"time"

	"github.com/jmaddaus/sprintlens/internal/model"
	"github.com/jmaddaus/sprintlens/internal/rules"
	"github.com/jmaddaus/sprintlens/internal/temporal"
)

// UnknownLabel buckets rows whose category value is blank.
const UnknownLabel = "Unknown"

// Calculator computes metrics relative to a fixed reference time.
type Calculator struct {
	Rules           *rules.Set
	Now             time.Time
	UnassignedLabel string
	HoursPerDay     float64
}

// Result is everything the calculator derives from one set of rows.
type Result struct {
	KPIs               model.KPIs
	PriorityBugs       model.Counts
	LeadTimeByPriority map[string]model.Measure
	BacklogAging       []model.AgingEntry
}

// EffectiveResolved applies the resolution policy: the explicit resolution
// timestamp, else the last update when the status is terminal, else nil.
func EffectiveResolved(iss *model.Issue, r *rules.Set) *time.Time {
	if iss.ResolvedAt != nil {
		return iss.ResolvedAt
	}
	if iss.UpdatedAt != nil && r.IsTerminal(iss.Status) {
		return iss.UpdatedAt
	}
	return nil
}

// Project flattens issues into rows. epicOf maps an issue key to the key of
// the epic it belongs to.
func Project(issues []*model.Issue, r *rules.Set, epicOf map[string]string) []model.Row {
	rows := make([]model.Row, len(issues))
	for i, iss := range issues {
		rows[i] = model.Row{
			Key:       iss.Key,
			Summary:   iss.Summary,
			Type:      iss.Type,
			Priority:  iss.Priority,
			Status:    iss.Status,
			Assignee:  iss.Assignee,
			Sprint:    iss.Sprint,
			Project:   iss.Project,
			Created:   iss.CreatedAt,
			Resolved:  EffectiveResolved(iss, r),
			Epic:      epicOf[iss.Key],
			TimeSpent: iss.TimeSpent,
		}
	}
	return rows
}

// LeadTime returns the row's lead time in days, or false when the row is
// unresolved or has no creation time. Negative values from malformed input
// are returned as is.
func LeadTime(row *model.Row) (float64, bool) {
	if row.Resolved == nil || row.Created == nil {
		return 0, false
	}
	return temporal.Days(*row.Created, *row.Resolved), true
}

// Calculate derives every metric from rows.
func (c *Calculator) Calculate(rows []model.Row) Result {
	return Result{
		KPIs:               c.KPIs(rows),
		PriorityBugs:       c.PriorityBugs(rows),
		LeadTimeByPriority: c.LeadTimeByPriority(rows),
		BacklogAging:       c.BacklogAging(rows),
	}
}

// KPIs computes the scalar metrics.
func (c *Calculator) KPIs(rows []model.Row) model.KPIs {
	var (
		k         model.KPIs
		leads     []float64
		bugLeads  []float64
		spent     []float64
		terminal  int
		execs     int
		execsDone int
		sprints   = map[string]bool{}
	)
	k.TotalIssues = len(rows)

	for i := range rows {
		row := &rows[i]
		done := c.Rules.IsTerminal(row.Status)
		if done {
			terminal++
		}
		if row.Resolved != nil {
			k.ResolvedIssues++
		} else {
			k.BacklogIssues++
		}
		if a := strings.TrimSpace(row.Assignee); a != "" && a != c.UnassignedLabel {
			k.AssignedIssues++
		}
		if s := strings.TrimSpace(row.Sprint); s != "" {
			sprints[s] = true
		}
		if row.TimeSpent != nil && c.HoursPerDay > 0 {
			spent = append(spent, *row.TimeSpent/3600/c.HoursPerDay)
		}

		lead, resolved := LeadTime(row)
		if resolved {
			leads = append(leads, lead)
		}

		switch {
		case row.IsType(model.TypeBug):
			k.TotalBugs++
			switch {
			case done:
				k.BugsDone++
			case c.Rules.IsInProgress(row.Status):
				k.BugsInProgress++
			case c.Rules.IsToDo(row.Status):
				k.BugsToDo++
			}
			if c.Rules.IsCritical(row.Priority) {
				k.CriticalBugs++
				if !done {
					k.CriticalOpen++
				}
			}
			if resolved {
				bugLeads = append(bugLeads, lead)
			}
		case row.IsType(model.TypeStory):
			k.TotalStories++
		case row.IsType(model.TypeTest):
			k.TotalTests++
		case row.IsType(model.TypeTestExecution):
			execs++
			if done {
				execsDone++
			}
		}
	}
	k.TotalSprints = len(sprints)

	k.LeadTimeMedian = Median(leads)
	k.LeadTimeMean = Mean(leads)
	k.MTTR = Median(bugLeads)
	k.AvgTimeSpent = Mean(spent)

	ages := c.ages(rows)
	k.BacklogAgeMedian = Median(ages)
	k.BacklogAgeMean = Mean(ages)

	k.DefectRate = Percent(k.TotalBugs, k.TotalStories)
	k.TestCoverage = Percent(k.TotalTests, k.TotalStories)
	k.TestExecutionPct = Percent(execsDone, execs)
	k.ResolutionRate = Percent(terminal, k.TotalIssues)
	return k
}

func (c *Calculator) ages(rows []model.Row) []float64 {
	var ages []float64
	for i := range rows {
		if rows[i].Resolved == nil && rows[i].Created != nil {
			ages = append(ages, temporal.Days(*rows[i].Created, c.Now))
		}
	}
	return ages
}

// BacklogAging lists every unresolved row with a creation time, oldest first.
func (c *Calculator) BacklogAging(rows []model.Row) []model.AgingEntry {
	out := []model.AgingEntry{}
	for i := range rows {
		row := &rows[i]
		if row.Resolved != nil || row.Created == nil {
			continue
		}
		out = append(out, model.AgingEntry{
			Key:     row.Key,
			Type:    row.Type,
			Status:  row.Status,
			AgeDays: temporal.Days(*row.Created, c.Now),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AgeDays != out[j].AgeDays {
			return out[i].AgeDays > out[j].AgeDays
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// PriorityBugs counts bugs per priority.
func (c *Calculator) PriorityBugs(rows []model.Row) model.Counts {
	out := model.Counts{}
	for i := range rows {
		if rows[i].IsType(model.TypeBug) {
			out[Label(rows[i].Priority)]++
		}
	}
	return out
}

// LeadTimeByPriority is the median lead time of resolved rows per priority.
func (c *Calculator) LeadTimeByPriority(rows []model.Row) map[string]model.Measure {
	groups := map[string][]float64{}
	for i := range rows {
		if lead, ok := LeadTime(&rows[i]); ok {
			p := Label(rows[i].Priority)
			groups[p] = append(groups[p], lead)
		}
	}
	out := make(map[string]model.Measure, len(groups))
	for p, leads := range groups {
		out[p] = Median(leads)
	}
	return out
}

// Label returns the trimmed value, or UnknownLabel when blank.
func Label(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return UnknownLabel
	}
	return v
}
