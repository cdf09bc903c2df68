package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmaddaus/sprintlens/internal/config"
	"github.com/jmaddaus/sprintlens/internal/filter"
	"github.com/jmaddaus/sprintlens/internal/model"
	"github.com/jmaddaus/sprintlens/internal/pipeline"
	"github.com/jmaddaus/sprintlens/internal/source"
)

const exportCSV = `Issue key,Issue Type,Status,Priority,Assignee,Sprint,Created,Resolved,Project key,Summary,Epic Name,Epic Link
SHOP-1,Epic,In Progress,High,Ana Ruiz,,2024-01-02,,SHOP,Checkout,,
SHOP-2,Story,Done,Medium,Ana Ruiz,Sprint 1,2024-01-03,2024-01-09,SHOP,Cart totals,,SHOP-1
SHOP-3,Bug,Done,Critical,Ben Ode,Sprint 2,2024-01-04,2024-01-08,SHOP,Wrong tax,Checkout,
SHOP-4,Bug,To Do,High,,Sprint 2,2024-01-05,,SHOP,Coupon ignored,Promotions,
SHOP-5,Bug,Done,Low,Cy Moss,Sprint 2,2024-01-05,2024-01-09,SHOP,Rounding,,
OPS-1,Task,To Do,,,,2024-01-07,,OPS,Rotate keys,,
`

// testServer creates a Server over a snapshot generated from exportCSV.
func testServer(t *testing.T) *Server {
	t.Helper()
	tbl, err := source.Read(strings.NewReader(exportCSV))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	fixed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	res, err := pipeline.New(cfg.Report, zerolog.Nop()).
		WithClock(func() time.Time { return fixed }).
		Generate(context.Background(), "export.csv", tbl)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return New(res.Snapshot, cfg, zerolog.Nop())
}

// doRequest is a helper that sends a GET request and returns the response.
func doRequest(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t)

	rr := doRequest(t, s, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		OK         bool   `json:"ok"`
		Generation string `json:"generation"`
	}
	decodeJSON(t, rr, &resp)
	if !resp.OK || resp.Generation != s.snap.GenerationID {
		t.Errorf("unexpected health response: %s", rr.Body.String())
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	s := testServer(t)

	rr := doRequest(t, s, "/api/snapshot")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var snap model.Snapshot
	decodeJSON(t, rr, &snap)
	if snap.GenerationID != s.snap.GenerationID {
		t.Errorf("GenerationID: want %s, got %s", s.snap.GenerationID, snap.GenerationID)
	}
	if len(snap.Rows) != 6 {
		t.Errorf("expected 6 rows, got %d", len(snap.Rows))
	}
	if snap.KPIs.MTTR != s.snap.KPIs.MTTR {
		t.Errorf("MTTR: want %+v, got %+v", s.snap.KPIs.MTTR, snap.KPIs.MTTR)
	}
}

func TestKPIsEndpoint(t *testing.T) {
	s := testServer(t)

	rr := doRequest(t, s, "/api/kpis")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		KPIs         model.KPIs   `json:"kpis"`
		PriorityBugs model.Counts `json:"priority_bugs"`
	}
	decodeJSON(t, rr, &resp)
	if resp.KPIs.TotalBugs != 3 {
		t.Errorf("TotalBugs: want 3, got %d", resp.KPIs.TotalBugs)
	}
	if resp.PriorityBugs.Total() != 3 {
		t.Errorf("priority bugs: got %v", resp.PriorityBugs)
	}
}

func TestListEpics(t *testing.T) {
	s := testServer(t)

	rr := doRequest(t, s, "/api/epics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Epics []epicSummary `json:"epics"`
		Total int           `json:"total"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Total != len(s.snap.Epics) {
		t.Errorf("total: want %d, got %d", len(s.snap.Epics), resp.Total)
	}
	size := 0
	for _, e := range resp.Epics {
		size += e.Size
	}
	if size != len(s.snap.Rows) {
		t.Errorf("epic sizes should cover every row: %d vs %d", size, len(s.snap.Rows))
	}

	rr = doRequest(t, s, "/api/epics?kind=explicit")
	decodeJSON(t, rr, &resp)
	if resp.Total != 1 || resp.Epics[0].Key != "SHOP-1" {
		t.Errorf("explicit epics: got %+v", resp.Epics)
	}
}

func TestGetEpic(t *testing.T) {
	s := testServer(t)

	rr := doRequest(t, s, "/api/epics/SHOP-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Epic model.Epic  `json:"epic"`
		Rows []model.Row `json:"rows"`
	}
	decodeJSON(t, rr, &resp)
	// SHOP-1 itself, SHOP-2 by link and SHOP-3 by name.
	if len(resp.Rows) != 3 || len(resp.Epic.Members) != 3 {
		t.Errorf("expected 3 members, got rows=%d members=%v", len(resp.Rows), resp.Epic.Members)
	}
}

func TestGetEpicNotFound(t *testing.T) {
	s := testServer(t)

	rr := doRequest(t, s, "/api/epics/NOPE-9")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestViewEndpoint(t *testing.T) {
	s := testServer(t)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"no selection", "", 6},
		{"type", "?type=Bug", 3},
		{"sprint substring", "?sprint=Sprint%202", 3},
		{"conjunction", "?type=Bug&status=done", 2},
		{"show all", "?priority=Show%20All", 6},
		{"no match", "?sprint=Sprint%209", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, s, "/api/view"+tt.query)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			var v filter.View
			decodeJSON(t, rr, &v)
			if v.Total != tt.want || len(v.Rows) != tt.want {
				t.Errorf("total: want %d, got %d (%d rows)", tt.want, v.Total, len(v.Rows))
			}
		})
	}
}

func TestViewLeavesSnapshotUntouched(t *testing.T) {
	s := testServer(t)
	before := s.snap.KPIs

	doRequest(t, s, "/api/view?type=Bug")
	rr := doRequest(t, s, "/api/view")
	var v filter.View
	decodeJSON(t, rr, &v)

	if s.snap.KPIs != before {
		t.Error("snapshot KPIs changed after a filtered view")
	}
	if v.KPIs.MTTR != before.MTTR || v.KPIs.TotalIssues != before.TotalIssues {
		t.Errorf("reset view should reproduce the snapshot: got %+v", v.KPIs)
	}
}

func TestPage(t *testing.T) {
	s := testServer(t)

	rr := doRequest(t, s, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %s", ct)
	}
	if !strings.Contains(rr.Body.String(), s.snap.GenerationID) {
		t.Error("page should carry the generation id")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := testServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunPortInUse(t *testing.T) {
	s := testServer(t)
	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	s.addr = ln.Addr().String()

	if err := s.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "in use") {
		t.Errorf("expected port in use error, got %v", err)
	}
}
