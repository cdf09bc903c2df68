package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmaddaus/sprintlens/internal/metrics"
	"github.com/jmaddaus/sprintlens/internal/model"
	"github.com/jmaddaus/sprintlens/internal/rules"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs
// migrations. Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: an in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %s: %w", pragma, err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Export
// ---------------------------------------------------------------------------

// SaveSnapshot clears every table and writes snap in a single transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"issues", "epics", "metrics", "generation"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO generation (id, generated_at, source, issue_count, epic_count) VALUES (?, ?, ?, ?, ?)`,
		snap.GenerationID, snap.GeneratedAt.UTC().Format(time.RFC3339), snap.Source, len(snap.Rows), len(snap.Epics)); err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}

	epicStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO epics (epic_key, epic_name, project, kind, position) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer epicStmt.Close()
	for i, e := range snap.Epics {
		if _, err := epicStmt.ExecContext(ctx, e.Key, e.Name, e.Project, string(e.Kind), i); err != nil {
			return fmt.Errorf("insert epic %s: %w", e.Key, err)
		}
	}

	issueStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO issues (issue_key, position, summary, issue_type, priority, status, assignee, sprint, sprint_no,
		 project, epic_key, created, resolved, lead_time_days, time_spent)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer issueStmt.Close()
	for i := range snap.Rows {
		r := &snap.Rows[i]
		var sprintNo, lead any
		if n, ok := rules.SprintOrdinal(r.Sprint); ok {
			sprintNo = n
		}
		if d, ok := metrics.LeadTime(r); ok {
			lead = d
		}
		var spent any
		if r.TimeSpent != nil {
			spent = *r.TimeSpent
		}
		if _, err := issueStmt.ExecContext(ctx,
			r.Key, i, r.Summary, r.Type, r.Priority, r.Status, r.Assignee, r.Sprint, sprintNo,
			r.Project, r.Epic, formatTime(r.Created), formatTime(r.Resolved), lead, spent); err != nil {
			return fmt.Errorf("insert issue %s: %w", r.Key, err)
		}
	}

	metricStmt, err := tx.PrepareContext(ctx, `INSERT INTO metrics (name, value, state) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer metricStmt.Close()
	for _, m := range flattenMetrics(snap) {
		var value any
		if m.Measure.Available() {
			value = m.Measure.Value
		}
		if _, err := metricStmt.ExecContext(ctx, m.name, value, string(m.Measure.State)); err != nil {
			return fmt.Errorf("insert metric %s: %w", m.name, err)
		}
	}

	return tx.Commit()
}

type namedMeasure struct {
	name string
	model.Measure
}

// flattenMetrics lists the scalar figures of a snapshot under stable names.
// Counts are stored as computed measures.
func flattenMetrics(snap *model.Snapshot) []namedMeasure {
	k := &snap.KPIs
	count := func(n int) model.Measure { return model.Computed(float64(n)) }
	out := []namedMeasure{
		{"total_issues", count(k.TotalIssues)},
		{"resolved_issues", count(k.ResolvedIssues)},
		{"backlog_issues", count(k.BacklogIssues)},
		{"assigned_issues", count(k.AssignedIssues)},
		{"total_sprints", count(k.TotalSprints)},
		{"total_bugs", count(k.TotalBugs)},
		{"bugs_done", count(k.BugsDone)},
		{"bugs_in_progress", count(k.BugsInProgress)},
		{"bugs_to_do", count(k.BugsToDo)},
		{"critical_bugs", count(k.CriticalBugs)},
		{"critical_bugs_pending", count(k.CriticalOpen)},
		{"total_stories", count(k.TotalStories)},
		{"total_tests", count(k.TotalTests)},
		{"lead_time_days", k.LeadTimeMedian},
		{"lead_time_days_mean", k.LeadTimeMean},
		{"mttr_days", k.MTTR},
		{"backlog_age_days", k.BacklogAgeMedian},
		{"backlog_age_days_mean", k.BacklogAgeMean},
		{"avg_time_spent_days", k.AvgTimeSpent},
		{"defect_rate", k.DefectRate},
		{"test_coverage", k.TestCoverage},
		{"test_execution_pct", k.TestExecutionPct},
		{"resolution_rate", k.ResolutionRate},
	}
	for p, m := range snap.LeadTimeByPriority {
		out = append(out, namedMeasure{"lead_time_days." + p, m})
	}
	return out
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func (s *SQLiteStore) Generation(ctx context.Context) (*Generation, error) {
	var g Generation
	var generatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, generated_at, source, issue_count, epic_count FROM generation LIMIT 1`).
		Scan(&g.ID, &generatedAt, &g.Source, &g.Issues, &g.Epics)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}
	g.GeneratedAt, err = time.Parse(time.RFC3339, generatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse generated_at: %w", err)
	}
	return &g, nil
}

func (s *SQLiteStore) ListIssues(ctx context.Context, filter IssueFilter) ([]model.Row, error) {
	query := `SELECT issue_key, summary, issue_type, priority, status, assignee, sprint, project, epic_key,
		created, resolved, time_spent FROM issues WHERE 1=1`
	var args []interface{}

	if filter.Type != "" {
		query += " AND lower(issue_type) = lower(?)"
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		query += " AND lower(status) = lower(?)"
		args = append(args, filter.Status)
	}
	if filter.Sprint != "" {
		query += " AND sprint = ?"
		args = append(args, filter.Sprint)
	}
	if filter.EpicKey != "" {
		query += " AND epic_key = ?"
		args = append(args, filter.EpicKey)
	}

	query += " ORDER BY position ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Row{}
	for rows.Next() {
		r, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListEpics(ctx context.Context) ([]*model.Epic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT epic_key, epic_name, project, kind FROM epics ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	var epics []*model.Epic
	byKey := map[string]*model.Epic{}
	for rows.Next() {
		e := &model.Epic{Members: []string{}}
		var kind string
		if err := rows.Scan(&e.Key, &e.Name, &e.Project, &kind); err != nil {
			rows.Close()
			return nil, err
		}
		e.Kind = model.EpicKind(kind)
		epics = append(epics, e)
		byKey[e.Key] = e
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	// Members are read after the epic cursor is closed: the store holds a
	// single connection.
	members, err := s.db.QueryContext(ctx, `SELECT epic_key, issue_key FROM issues ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer members.Close()
	for members.Next() {
		var epicKey, issueKey string
		if err := members.Scan(&epicKey, &issueKey); err != nil {
			return nil, err
		}
		if e, ok := byKey[epicKey]; ok {
			e.Members = append(e.Members, issueKey)
		}
	}
	return epics, members.Err()
}

func (s *SQLiteStore) Metrics(ctx context.Context) (map[string]model.Measure, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value, state FROM metrics`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]model.Measure{}
	for rows.Next() {
		var name, state string
		var value sql.NullFloat64
		if err := rows.Scan(&name, &value, &state); err != nil {
			return nil, err
		}
		m := model.Measure{Value: value.Float64, State: model.MeasureState(state)}
		if !value.Valid {
			m = model.Unavailable()
		}
		out[name] = m
	}
	return out, rows.Err()
}

func (s *SQLiteStore) TrendBySprint(ctx context.Context, issueType string) ([]model.TrendPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sprint, COUNT(*) FROM issues
		 WHERE lower(issue_type) = lower(?) AND sprint != ''
		 GROUP BY sprint
		 ORDER BY sprint_no IS NULL, sprint_no, sprint`, strings.TrimSpace(issueType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.TrendPoint{}
	for rows.Next() {
		var p model.TrendPoint
		if err := rows.Scan(&p.Label, &p.Count); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// dimensionColumns whitelists the columns CountBy may group on.
var dimensionColumns = map[string]string{
	"priority": "priority",
	"status":   "status",
	"assignee": "assignee",
	"type":     "issue_type",
	"sprint":   "sprint",
	"project":  "project",
	"epic":     "epic_key",
}

func (s *SQLiteStore) CountBy(ctx context.Context, dimension string) (model.Counts, error) {
	col, ok := dimensionColumns[dimension]
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", dimension)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT COALESCE(NULLIF(TRIM(%[1]s), ''), ?), COUNT(*) FROM issues GROUP BY 1`, col),
		metrics.UnknownLabel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := model.Counts{}
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		out[label] = n
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Scan helpers
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanIssue(row scanner) (*model.Row, error) {
	var r model.Row
	var created, resolved sql.NullString
	var spent sql.NullFloat64
	err := row.Scan(&r.Key, &r.Summary, &r.Type, &r.Priority, &r.Status, &r.Assignee,
		&r.Sprint, &r.Project, &r.Epic, &created, &resolved, &spent)
	if err != nil {
		return nil, err
	}
	r.Created = parseTime(created)
	r.Resolved = parseTime(resolved)
	if spent.Valid {
		v := spent.Float64
		r.TimeSpent = &v
	}
	return &r, nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}
