package pipeline

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmaddaus/sprintlens/internal/config"
	"github.com/jmaddaus/sprintlens/internal/filter"
	"github.com/jmaddaus/sprintlens/internal/model"
	"github.com/jmaddaus/sprintlens/internal/report"
	"github.com/jmaddaus/sprintlens/internal/source"
)

func newPipeline() *Pipeline {
	fixed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return New(config.DefaultConfig().Report, zerolog.New(io.Discard)).
		WithClock(func() time.Time { return fixed })
}

func TestRunFixture(t *testing.T) {
	res, err := newPipeline().Run(context.Background(), filepath.Join("testdata", "export.csv"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	snap := res.Snapshot
	if snap.Source != "export.csv" {
		t.Errorf("Source: got %s", snap.Source)
	}
	if len(res.Issues) != 8 || len(snap.Rows) != 8 {
		t.Fatalf("issues %d, rows %d", len(res.Issues), len(snap.Rows))
	}
	if err := report.Validate(snap); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	// SHOP-3 carries no Resolved value; Done falls back to Updated.
	k := snap.KPIs
	if k.MTTR.State != model.MeasureComputed || k.MTTR.Value != 4 {
		t.Errorf("MTTR: want 4, got %+v", k.MTTR)
	}
	if k.TotalBugs != 3 || k.TotalStories != 2 {
		t.Errorf("bugs %d stories %d", k.TotalBugs, k.TotalStories)
	}
	if k.DefectRate.Value != 150 {
		t.Errorf("DefectRate: want 150, got %+v", k.DefectRate)
	}

	kinds := map[model.EpicKind]int{}
	for _, e := range snap.Epics {
		kinds[e.Kind]++
	}
	if kinds[model.EpicExplicit] != 1 || kinds[model.EpicNamed] != 1 || kinds[model.EpicProject] != 2 {
		t.Errorf("epic kinds: got %v", kinds)
	}
	if e := snap.Epic("SHOP-1"); e == nil || len(e.Members) != 3 {
		t.Errorf("SHOP-1 members: got %+v", e)
	}

	d := snap.Diagnostics
	if d.DateLayouts[source.ColCreated] != "2006-01-02" {
		t.Errorf("created layout: got %v", d.DateLayouts)
	}
	if len(d.DuplicateKeys) != 1 {
		t.Errorf("duplicates: got %v", d.DuplicateKeys)
	}
}

func TestRunThenFilterBaseline(t *testing.T) {
	res, err := newPipeline().Run(context.Background(), filepath.Join("testdata", "export.csv"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	e := filter.ForSnapshot(res.Snapshot, config.DefaultConfig().Report)
	base := e.Baseline()
	if base.Total != len(res.Snapshot.Rows) {
		t.Errorf("baseline total: want %d, got %d", len(res.Snapshot.Rows), base.Total)
	}
	if base.KPIs.MTTR != res.Snapshot.KPIs.MTTR || base.KPIs.BacklogAgeMean != res.Snapshot.KPIs.BacklogAgeMean {
		t.Errorf("baseline KPIs differ from snapshot")
	}
	if len(base.Views.Trend) != len(res.Snapshot.Views.Trend) {
		t.Errorf("baseline trend differs: %v vs %v", base.Views.Trend, res.Snapshot.Views.Trend)
	}
}

func TestFilterUsesRecordedRules(t *testing.T) {
	res, err := newPipeline().Run(context.Background(), filepath.Join("testdata", "export.csv"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Snapshot.Rules == nil || len(res.Snapshot.Rules.TerminalStatuses) == 0 {
		t.Fatalf("snapshot should record its rule tables, got %+v", res.Snapshot.Rules)
	}

	changed := config.DefaultConfig().Report
	changed.TerminalStatuses = []string{"never"}
	changed.TypeClasses = map[string]string{"Bugs": "Story"}
	changed.TrendType = "Story"

	base := filter.ForSnapshot(res.Snapshot, changed).Baseline()
	if base.KPIs != res.Snapshot.KPIs {
		t.Errorf("baseline KPIs should match the snapshot:\n got %+v\nwant %+v", base.KPIs, res.Snapshot.KPIs)
	}
	if len(base.Views.Trend) != len(res.Snapshot.Views.Trend) {
		t.Errorf("baseline trend differs: %v vs %v", base.Views.Trend, res.Snapshot.Views.Trend)
	}
}

func TestRunMissingInput(t *testing.T) {
	_, err := newPipeline().Run(context.Background(), filepath.Join(t.TempDir(), "none.csv"))
	if !errors.Is(err, source.ErrMissingInput) {
		t.Errorf("want ErrMissingInput, got %v", err)
	}
}

func TestGenerateCancelled(t *testing.T) {
	tbl, err := source.Read(strings.NewReader("Issue key,Issue Type\nA-1,Bug\n"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newPipeline().Generate(ctx, "x.csv", tbl); !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestGenerateMinimalColumns(t *testing.T) {
	tbl, err := source.Read(strings.NewReader("Issue key,Issue Type\nA-1,Bug\nA-2,Story\n"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	res, err := newPipeline().Generate(context.Background(), "min.csv", tbl)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	k := res.Snapshot.KPIs
	if k.MTTR.Available() || k.LeadTimeMedian.Available() {
		t.Errorf("lead times without dates should be unavailable: %+v", k)
	}
	if k.DefectRate.Value != 100 {
		t.Errorf("DefectRate: want 100, got %+v", k.DefectRate)
	}
	if len(res.Snapshot.Diagnostics.MissingColumns) == 0 {
		t.Error("missing columns should be reported")
	}
	if e := res.Snapshot.Epic("AUTO-UNSPECIFIED"); e == nil || len(e.Members) != 2 {
		t.Errorf("default project grouping: got %+v", e)
	}
}
