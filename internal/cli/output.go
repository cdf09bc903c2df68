package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmaddaus/sprintlens/internal/filter"
	"github.com/jmaddaus/sprintlens/internal/model"
)

// printJSON outputs v as indented JSON to stdout.
func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// formatMeasure renders a measure for humans: grouped digits, one decimal,
// "n/a" when unavailable and a marker on substituted zeros.
func formatMeasure(m model.Measure, unit string) string {
	if !m.Available() {
		return "n/a"
	}
	s := humanize.FormatFloat("#,###.#", m.Value) + unit
	if m.State == model.MeasureDefault {
		s += " (no data)"
	}
	return s
}

func formatCount(n int) string {
	return humanize.Comma(int64(n))
}

func printGenerated(g generated, pretty bool) {
	if !pretty {
		printJSON(g)
		return
	}
	size := ""
	if fi, err := os.Stat(g.Output); err == nil {
		size = " (" + humanize.Bytes(uint64(fi.Size())) + ")"
	}
	fmt.Printf("Generation %s\n", g.GenerationID)
	fmt.Printf("  Output:  %s%s [%s]\n", g.Output, size, g.Format)
	fmt.Printf("  Issues:  %s\n", formatCount(g.Issues))
	fmt.Printf("  Epics:   %s\n", formatCount(g.Epics))
}

// summary is the JSON form of lens summary.
type summary struct {
	GenerationID       string                   `json:"generation_id"`
	GeneratedAt        time.Time                `json:"generated_at"`
	Source             string                   `json:"source"`
	KPIs               model.KPIs               `json:"kpis"`
	PriorityBugs       model.Counts             `json:"priority_bugs"`
	LeadTimeByPriority map[string]model.Measure `json:"lead_time_by_priority"`
	Recommendations    []model.Recommendation   `json:"recommendations"`
	Diagnostics        model.Diagnostics        `json:"diagnostics"`
}

func printSummary(snap *model.Snapshot, pretty bool) {
	if !pretty {
		printJSON(summary{
			GenerationID:       snap.GenerationID,
			GeneratedAt:        snap.GeneratedAt,
			Source:             snap.Source,
			KPIs:               snap.KPIs,
			PriorityBugs:       snap.PriorityBugs,
			LeadTimeByPriority: snap.LeadTimeByPriority,
			Recommendations:    snap.Recommendations,
			Diagnostics:        snap.Diagnostics,
		})
		return
	}

	fmt.Printf("Snapshot %s\n", snap.GenerationID)
	fmt.Printf("  Source %s, generated %s\n\n", snap.Source, humanize.Time(snap.GeneratedAt))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	printKPIRows(w, snap.KPIs)
	w.Flush()

	if len(snap.LeadTimeByPriority) > 0 {
		fmt.Println("\nMedian lead time by priority:")
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, p := range sortedKeys(snap.LeadTimeByPriority) {
			fmt.Fprintf(w, "  %s\t%s\n", p, formatMeasure(snap.LeadTimeByPriority[p], " d"))
		}
		w.Flush()
	}

	if len(snap.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, r := range snap.Recommendations {
			fmt.Printf("  [%s] %s: %s\n", r.Priority, r.Metric, r.Text)
		}
	}

	d := snap.Diagnostics
	if len(d.MissingColumns) > 0 || len(d.DuplicateKeys) > 0 || len(d.Unparsable) > 0 {
		fmt.Println("\nDiagnostics:")
		if len(d.MissingColumns) > 0 {
			fmt.Printf("  missing columns: %s\n", strings.Join(d.MissingColumns, ", "))
		}
		if len(d.DuplicateKeys) > 0 {
			fmt.Printf("  renamed duplicate keys: %s\n", strings.Join(d.DuplicateKeys, ", "))
		}
		for _, col := range sortedKeys(d.Unparsable) {
			fmt.Printf("  unparsable %s values: %s\n", col, formatCount(d.Unparsable[col]))
		}
	}
}

func printKPIRows(w *tabwriter.Writer, k model.KPIs) {
	rows := []struct{ label, value string }{
		{"Issues", formatCount(k.TotalIssues)},
		{"Resolved", formatCount(k.ResolvedIssues)},
		{"Backlog", formatCount(k.BacklogIssues)},
		{"Assigned", formatCount(k.AssignedIssues)},
		{"Sprints", formatCount(k.TotalSprints)},
		{"Bugs", fmt.Sprintf("%s (done %s, in progress %s, to do %s)",
			formatCount(k.TotalBugs), formatCount(k.BugsDone), formatCount(k.BugsInProgress), formatCount(k.BugsToDo))},
		{"Critical bugs", fmt.Sprintf("%s (%s pending)", formatCount(k.CriticalBugs), formatCount(k.CriticalOpen))},
		{"Stories", formatCount(k.TotalStories)},
		{"Tests", formatCount(k.TotalTests)},
		{"Lead time (median)", formatMeasure(k.LeadTimeMedian, " d")},
		{"Lead time (mean)", formatMeasure(k.LeadTimeMean, " d")},
		{"MTTR", formatMeasure(k.MTTR, " d")},
		{"Backlog age (median)", formatMeasure(k.BacklogAgeMedian, " d")},
		{"Backlog age (mean)", formatMeasure(k.BacklogAgeMean, " d")},
		{"Time spent (mean)", formatMeasure(k.AvgTimeSpent, " d")},
		{"Defect rate", formatMeasure(k.DefectRate, "%")},
		{"Test coverage", formatMeasure(k.TestCoverage, "%")},
		{"Test execution", formatMeasure(k.TestExecutionPct, "%")},
		{"Resolution rate", formatMeasure(k.ResolutionRate, "%")},
	}
	fmt.Fprintln(w, "METRIC\tVALUE")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\n", r.label, r.value)
	}
}

func printView(v filter.View, pretty bool) {
	if !pretty {
		printJSON(v)
		return
	}

	var sel []string
	for _, kv := range []struct{ k, v string }{
		{"sprint", v.Selection.Sprint},
		{"type", v.Selection.Type},
		{"priority", v.Selection.Priority},
		{"status", v.Selection.Status},
	} {
		if kv.v != "" {
			sel = append(sel, kv.k+"="+kv.v)
		}
	}
	if len(sel) == 0 {
		sel = []string{"all"}
	}
	fmt.Printf("Selection: %s (%s issues)\n\n", strings.Join(sel, " "), formatCount(v.Total))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	printKPIRows(w, v.KPIs)
	w.Flush()

	for _, section := range []struct {
		title  string
		counts model.Counts
	}{
		{"Priority", v.Views.ByPriority},
		{"Status", v.Views.ByStatus},
		{"Type", v.Views.ByType},
		{"Assignee", v.Views.ByAssignee},
	} {
		fmt.Printf("\n%s:\n", section.title)
		printCountRows(section.counts)
	}

	if len(v.Views.Trend) > 0 {
		fmt.Println("\nTrend:")
		printTrendRows(v.Views.Trend)
	}

	fmt.Println("\nOptions (count in current selection, - when empty):")
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, dim := range []struct {
		name string
		opts []filter.Option
	}{
		{"sprint", v.Options.Sprints},
		{"type", v.Options.Types},
		{"priority", v.Options.Priorities},
		{"status", v.Options.Statuses},
	} {
		var parts []string
		for _, o := range dim.opts {
			if o.Enabled {
				parts = append(parts, fmt.Sprintf("%s (%d)", o.Value, o.Count))
			} else {
				parts = append(parts, o.Value+" (-)")
			}
		}
		fmt.Fprintf(w, "  %s\t%s\n", dim.name, strings.Join(parts, ", "))
	}
	w.Flush()

	if len(v.Rows) > 0 {
		fmt.Println()
		printRows(v.Rows)
	}
}

// printRows outputs rows as a tabwriter-formatted table.
func printRows(rows []model.Row) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tTYPE\tSTATUS\tPRIORITY\tSPRINT\tASSIGNEE\tEPIC\tSUMMARY")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Key, r.Type, r.Status, r.Priority, r.Sprint, r.Assignee, r.Epic, r.Summary)
	}
	w.Flush()
}

func printCountRows(c model.Counts) {
	if len(c) == 0 {
		fmt.Println("  (none)")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, k := range c.Keys() {
		fmt.Fprintf(w, "  %s\t%s\n", k, formatCount(c[k]))
	}
	w.Flush()
}

func printTrendRows(points []model.TrendPoint) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, p := range points {
		fmt.Fprintf(w, "  %s\t%s\n", p.Label, formatCount(p.Count))
	}
	w.Flush()
}

func printTrend(points []model.TrendPoint, pretty bool) {
	if !pretty {
		printJSON(points)
		return
	}
	if len(points) == 0 {
		fmt.Println("No sprints found.")
		return
	}
	printTrendRows(points)
}

func printCounts(c model.Counts, pretty bool) {
	if !pretty {
		printJSON(c)
		return
	}
	printCountRows(c)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
