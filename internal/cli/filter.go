package cli

import (
	"fmt"

	"github.com/jmaddaus/sprintlens/internal/filter"
	"github.com/jmaddaus/sprintlens/internal/report"
)

const filterUsage = `Usage:
  lens filter <snapshot.json> [--sprint s] [--type t] [--priority p] [--status s]

Re-aggregates a generated snapshot. The CSV export is never read again.
Omitted selections match everything. Matching rules come from the snapshot
itself; the config's report tables only apply to snapshots that predate them.`

func runFilter(args []string, e *env) error {
	fs := newFlagSet("filter", filterUsage)
	var sel filter.Selection
	fs.StringVar(&sel.Sprint, "sprint", "", "Sprint label substring")
	fs.StringVar(&sel.Type, "type", "", "Type token (e.g. Bugs, Stories) or type name")
	fs.StringVar(&sel.Priority, "priority", "", "Priority substring, case-insensitive")
	fs.StringVar(&sel.Status, "status", "", "Status substring, case-insensitive")
	rows := fs.Bool("rows", false, "Include the matching rows in the output")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("filter requires a snapshot path\n%s", filterUsage)
	}

	snap, err := report.Load(fs.Arg(0))
	if err != nil {
		return err
	}

	view := filter.ForSnapshot(snap, e.cfg.Report).View(sel)
	e.log.Debug().
		Str("sprint", sel.Sprint).
		Str("type", sel.Type).
		Str("priority", sel.Priority).
		Str("status", sel.Status).
		Int("total", view.Total).
		Msg("view computed")

	if !*rows {
		view.Rows = nil
	}
	printView(view, e.pretty)
	return nil
}
