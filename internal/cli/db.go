package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jmaddaus/sprintlens/internal/store"
	_ "modernc.org/sqlite"
)

const dbUsage = `Usage:
  lens db <command> <db-path> [args]

Commands:
  version   <db-path>               Show current DB schema version
  check     <db-path>               Check if DB is compatible with this binary
  downgrade <db-path> <version>     Downgrade DB to target version
  trend     <db-path> [type]        Count issues of a type per sprint (default: Bug)
  count     <db-path> <dimension>   Count issues by priority, status, assignee,
                                    type, sprint, project or epic

Examples:
  lens db version report.db
  lens db downgrade report.db 1
  lens db trend report.db Story
  lens db count report.db priority`

func runDB(args []string, gf globalFlags) error {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, dbUsage)
		return fmt.Errorf("usage: lens db <command> <db-path>")
	}

	command := args[0]
	dbPath := args[1]

	switch command {
	case "version":
		return runDBVersion(dbPath)
	case "check":
		return runDBCheck(dbPath)
	case "downgrade":
		if len(args) < 3 {
			return fmt.Errorf("downgrade requires a target version\n%s", dbUsage)
		}
		target, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[2])
		}
		return runDBDowngrade(dbPath, target)
	case "trend":
		issueType := "Bug"
		if len(args) > 2 {
			issueType = args[2]
		}
		return runDBTrend(dbPath, issueType, gf.pretty)
	case "count":
		if len(args) < 3 {
			return fmt.Errorf("count requires a dimension\n%s", dbUsage)
		}
		return runDBCount(dbPath, args[2], gf.pretty)
	default:
		return fmt.Errorf("unknown db subcommand: %s\n%s", command, dbUsage)
	}
}

func runDBVersion(dbPath string) error {
	db, err := store.OpenRawDB(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	version, err := store.ReadDBVersion(db)
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}

	fmt.Printf("database: %s\n", dbPath)
	fmt.Printf("schema version: %d\n", version)
	fmt.Printf("binary supports: %d\n", store.DBSchemaVersion)
	return nil
}

func runDBCheck(dbPath string) error {
	db, err := store.OpenRawDB(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	version, err := store.ReadDBVersion(db)
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}

	fmt.Printf("database: %s\n", dbPath)
	fmt.Printf("schema version: %d\n", version)
	fmt.Printf("binary supports: %d\n", store.DBSchemaVersion)

	if version > store.DBSchemaVersion {
		return fmt.Errorf("INCOMPATIBLE: database is newer than this binary.\nRun: lens db downgrade %s %d", dbPath, store.DBSchemaVersion)
	}

	fmt.Printf("\nOK: database is compatible.\n")
	return nil
}

func runDBDowngrade(dbPath string, target int) error {
	db, err := store.OpenRawDB(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	current, err := store.ReadDBVersion(db)
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}

	fmt.Printf("database: %s\n", dbPath)
	fmt.Printf("current version: %d\n", current)
	fmt.Printf("target version: %d\n", target)

	if target >= current {
		return fmt.Errorf("target version %d must be less than current version %d", target, current)
	}

	if err := store.DowngradeDB(db, current, target); err != nil {
		return fmt.Errorf("downgrade: %w", err)
	}

	fmt.Printf("downgraded: %d -> %d\n", current, target)
	return nil
}

// openExport opens an existing export. A missing file is an error rather
// than a new empty database.
func openExport(dbPath string) (*store.SQLiteStore, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return store.NewSQLiteStore(dbPath)
}

func runDBTrend(dbPath, issueType string, pretty bool) error {
	st, err := openExport(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	points, err := st.TrendBySprint(context.Background(), issueType)
	if err != nil {
		return fmt.Errorf("trend: %w", err)
	}
	printTrend(points, pretty)
	return nil
}

func runDBCount(dbPath, dimension string, pretty bool) error {
	st, err := openExport(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	counts, err := st.CountBy(context.Background(), dimension)
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}
	printCounts(counts, pretty)
	return nil
}
