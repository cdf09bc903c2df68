// Package report assembles the snapshot document of a generation pass and
// reads and writes it.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jmaddaus/sprintlens/internal/filter"
	"github.com/jmaddaus/sprintlens/internal/metrics"
	"github.com/jmaddaus/sprintlens/internal/model"
	"github.com/jmaddaus/sprintlens/internal/rules"
)

// ErrInvalidSnapshot is returned when a document cannot be used as a snapshot.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Input carries the outputs of every generation stage.
type Input struct {
	Source      string
	GeneratedAt time.Time
	Rows        []model.Row
	Metrics     metrics.Result
	Epics       []*model.Epic
	Diagnostics model.Diagnostics
	Rules       *rules.Set
	Settings    filter.Settings
	Tables      *model.RuleTables
}

// Assemble freezes the stage outputs into a snapshot. The chart views are
// the unfiltered baseline computed with the filter package's projections.
func Assemble(in Input) *model.Snapshot {
	rows := in.Rows
	if rows == nil {
		rows = []model.Row{}
	}
	epics := in.Epics
	if epics == nil {
		epics = []*model.Epic{}
	}
	return &model.Snapshot{
		GenerationID:       uuid.NewString(),
		GeneratedAt:        in.GeneratedAt.UTC(),
		Source:             in.Source,
		KPIs:               in.Metrics.KPIs,
		PriorityBugs:       in.Metrics.PriorityBugs,
		LeadTimeByPriority: in.Metrics.LeadTimeByPriority,
		BacklogAging:       in.Metrics.BacklogAging,
		Recommendations:    metrics.Advise(in.Metrics.KPIs),
		Views:              filter.Compute(rows, in.Settings),
		Rows:               rows,
		Epics:              epics,
		Dimensions:         filter.Dimensions(rows, in.Rules),
		Diagnostics:        in.Diagnostics,
		Rules:              in.Tables,
	}
}

// Encode writes snap as indented JSON.
func Encode(w io.Writer, snap *model.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// Decode reads and validates a snapshot.
func Decode(r io.Reader) (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := Validate(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Validate checks that every row belongs to exactly one listed epic.
func Validate(snap *model.Snapshot) error {
	if snap.GenerationID == "" {
		return fmt.Errorf("%w: missing generation_id", ErrInvalidSnapshot)
	}
	owner := make(map[string]string, len(snap.Rows))
	for _, e := range snap.Epics {
		if e == nil {
			return fmt.Errorf("%w: null epic", ErrInvalidSnapshot)
		}
		for _, key := range e.Members {
			if prev, dup := owner[key]; dup {
				return fmt.Errorf("%w: %s is a member of both %s and %s", ErrInvalidSnapshot, key, prev, e.Key)
			}
			owner[key] = e.Key
		}
	}
	for _, row := range snap.Rows {
		if owner[row.Key] != row.Epic {
			return fmt.Errorf("%w: row %s is listed under epic %q but owned by %q",
				ErrInvalidSnapshot, row.Key, row.Epic, owner[row.Key])
		}
	}
	if len(owner) != len(snap.Rows) {
		return fmt.Errorf("%w: %d epic members for %d rows", ErrInvalidSnapshot, len(owner), len(snap.Rows))
	}
	return nil
}

// Load reads a snapshot document from path.
func Load(path string) (*model.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	snap, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return snap, nil
}

// WriteJSON writes the snapshot document to path.
func WriteJSON(path string, snap *model.Snapshot) error {
	return writeAtomic(path, func(w io.Writer) error { return Encode(w, snap) })
}

// WriteHTML writes the page embedding the snapshot document to path.
func WriteHTML(path string, snap *model.Snapshot) error {
	return writeAtomic(path, func(w io.Writer) error { return RenderPage(w, snap) })
}

// writeAtomic writes through a temporary file in the target directory and
// renames it into place, so a failed run leaves no partial output.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}
