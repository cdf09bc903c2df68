package store

import (
	"context"
	"errors"
	"time"

	"github.com/jmaddaus/sprintlens/internal/model"
)

// ErrEmpty is returned when no generation has been exported yet.
var ErrEmpty = errors.New("no generation exported")

// IssueFilter holds optional exact-match criteria for listing issues.
type IssueFilter struct {
	Type    string // case-insensitive
	Status  string // case-insensitive
	Sprint  string
	EpicKey string
}

// Generation describes the exported snapshot.
type Generation struct {
	ID          string
	GeneratedAt time.Time
	Source      string
	Issues      int
	Epics       int
}

// Store persists one generation pass for ad-hoc SQL analysis.
type Store interface {
	// SaveSnapshot replaces whatever the store holds with snap.
	SaveSnapshot(ctx context.Context, snap *model.Snapshot) error

	Generation(ctx context.Context) (*Generation, error)
	ListIssues(ctx context.Context, filter IssueFilter) ([]model.Row, error)
	ListEpics(ctx context.Context) ([]*model.Epic, error)
	Metrics(ctx context.Context) (map[string]model.Measure, error)

	// TrendBySprint counts issues of one type per sprint, in sprint order.
	TrendBySprint(ctx context.Context, issueType string) ([]model.TrendPoint, error)
	// CountBy groups issues by one dimension: priority, status, assignee,
	// type, sprint, project or epic.
	CountBy(ctx context.Context, dimension string) (model.Counts, error)

	Close() error
}
