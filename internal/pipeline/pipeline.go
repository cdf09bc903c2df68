// Package pipeline runs one generation pass: read the export, normalize it,
// group and measure the records, and freeze the result into a snapshot.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmaddaus/sprintlens/internal/config"
	"github.com/jmaddaus/sprintlens/internal/filter"
	"github.com/jmaddaus/sprintlens/internal/hierarchy"
	"github.com/jmaddaus/sprintlens/internal/metrics"
	"github.com/jmaddaus/sprintlens/internal/model"
	"github.com/jmaddaus/sprintlens/internal/report"
	"github.com/jmaddaus/sprintlens/internal/rules"
	"github.com/jmaddaus/sprintlens/internal/source"
	"github.com/jmaddaus/sprintlens/internal/temporal"
)

// Pipeline holds what every pass shares.
type Pipeline struct {
	cfg config.Report
	log zerolog.Logger
	now func() time.Time
}

// New returns a Pipeline for the report configuration.
func New(cfg config.Report, log zerolog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, log: log, now: time.Now}
}

// WithClock replaces the reference time used for ages.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Result is the output of one pass.
type Result struct {
	Snapshot *model.Snapshot
	// Issues are the normalized records the snapshot was built from.
	Issues []*model.Issue
}

// Run reads the export at path and generates its snapshot.
func (p *Pipeline) Run(ctx context.Context, path string) (*Result, error) {
	tbl, err := source.Open(path)
	if err != nil {
		return nil, err
	}
	p.log.Info().Str("input", path).Int("records", len(tbl.Records)).Msg("export read")
	return p.Generate(ctx, filepath.Base(path), tbl)
}

// Generate runs every stage after reading. name is recorded as the
// snapshot's source.
func (p *Pipeline) Generate(ctx context.Context, name string, tbl *source.Table) (*Result, error) {
	started := p.now()
	r := rules.New(p.cfg)

	norm := temporal.Normalize(tbl, p.cfg, p.log)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	tree := hierarchy.Build(norm.Issues, p.cfg.DefaultProject, p.log)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("build hierarchy: %w", err)
	}

	rows := metrics.Project(norm.Issues, r, tree.EpicOf)
	calc := &metrics.Calculator{
		Rules:           r,
		Now:             started,
		UnassignedLabel: p.cfg.UnassignedLabel,
		HoursPerDay:     p.cfg.HoursPerDay,
	}
	res := calc.Calculate(rows)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("calculate metrics: %w", err)
	}

	snap := report.Assemble(report.Input{
		Source:      name,
		GeneratedAt: started,
		Rows:        rows,
		Metrics:     res,
		Epics:       tree.Epics,
		Diagnostics: norm.Diagnostics,
		Rules:       r,
		Settings:    filter.SettingsFrom(p.cfg),
		Tables:      filter.TablesFrom(p.cfg),
	})

	p.log.Info().
		Str("generation", snap.GenerationID).
		Int("issues", snap.KPIs.TotalIssues).
		Int("epics", len(snap.Epics)).
		Str("mttr_days", snap.KPIs.MTTR.String()).
		Str("defect_rate", snap.KPIs.DefectRate.String()).
		Msg("snapshot assembled")
	return &Result{Snapshot: snap, Issues: norm.Issues}, nil
}
