package cli

import (
	"fmt"

	"github.com/jmaddaus/sprintlens/internal/report"
)

const summaryUsage = `Usage:
  lens summary <snapshot.json>`

func runSummary(args []string, e *env) error {
	fs := newFlagSet("summary", summaryUsage)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("summary requires a snapshot path\n%s", summaryUsage)
	}

	snap, err := report.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	printSummary(snap, e.pretty)
	return nil
}
