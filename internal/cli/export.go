package cli

import (
	"context"
	"fmt"

	"github.com/jmaddaus/sprintlens/internal/store"
)

const exportUsage = `Usage:
  lens export <input.csv> <output.db> [flags]

Runs a generation pass and writes it to a SQLite database. The database
holds one generation: a previous one is replaced.`

func runExport(args []string, e *env) error {
	fs := newFlagSet("export", exportUsage)
	now := fs.String("now", "", "Reference time for ages, RFC3339 (default: current time)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("export requires an input and a database path\n%s", exportUsage)
	}
	input, dbPath := fs.Arg(0), fs.Arg(1)

	res, err := runPipeline(e, input, *now)
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.SaveSnapshot(context.Background(), res.Snapshot); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	e.log.Info().Str("db", dbPath).Str("generation", res.Snapshot.GenerationID).Msg("generation exported")

	printGenerated(generated{
		GenerationID: res.Snapshot.GenerationID,
		Output:       dbPath,
		Format:       "sqlite",
		Issues:       len(res.Snapshot.Rows),
		Epics:        len(res.Snapshot.Epics),
	}, e.pretty)
	return nil
}
