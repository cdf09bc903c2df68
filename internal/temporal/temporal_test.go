package temporal

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmaddaus/sprintlens/internal/config"
	"github.com/jmaddaus/sprintlens/internal/source"
)

func testParser() *Parser {
	return NewParser(config.DefaultDateLayouts, 0.5)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDetectMajority(t *testing.T) {
	p := testParser()
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"iso", []string{"2024-01-01", "2024-02-03", ""}, "2006-01-02"},
		{"day first slash", []string{"25/12/2023", "01/02/2024"}, "02/01/2006"},
		{"month first only", []string{"12/25/2023", "12/31/2023"}, "01/02/2006"},
		{"jira short", []string{"05-Mar-24", "17-Apr-24", "garbage"}, "02-Jan-06"},
		{"half is enough", []string{"2024-01-01", "nope"}, "2006-01-02"},
		{"one of three is not enough", []string{"yesterday", "soon", "2024-01-01"}, ""},
		{"two of five is not enough", []string{"2024-01-01", "2024-01-02", "x", "y", "z"}, ""},
		{"three of five is enough", []string{"2024-01-01", "2024-01-02", "2024-01-03", "y", "z"}, "2006-01-02"},
		{"nothing clears", []string{"yesterday", "soon", "later", "2024-01-01"}, ""},
		{"all empty", []string{"", " "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Detect(tt.values); got != tt.want {
				t.Errorf("Detect(%v) = %q, want %q", tt.values, got, tt.want)
			}
		})
	}
}

func TestParseColumnAdoptedLayout(t *testing.T) {
	col := testParser().ParseColumn([]string{"2024-01-01", "", "2024-13-45", "2024-01-04"})
	if col.Layout != "2006-01-02" {
		t.Fatalf("layout: want 2006-01-02, got %q", col.Layout)
	}
	if col.Unparsable != 1 {
		t.Errorf("unparsable: want 1, got %d", col.Unparsable)
	}
	if col.Times[1] != nil || col.Times[2] != nil {
		t.Error("empty and invalid values should be nil")
	}
	if !col.Times[3].Equal(date(2024, 1, 4)) {
		t.Errorf("times[3]: got %v", col.Times[3])
	}
}

func TestParseColumnLenientFallbackIsDayFirst(t *testing.T) {
	col := testParser().ParseColumn([]string{"3/4/2024", "March 5, 2024", "not a date"})
	if col.Layout != Lenient {
		t.Fatalf("layout: want lenient, got %q", col.Layout)
	}
	if col.Times[0] == nil || !col.Times[0].Equal(date(2024, 4, 3)) {
		t.Errorf("3/4/2024 should be 3 April, got %v", col.Times[0])
	}
	if col.Times[1] == nil || !col.Times[1].Equal(date(2024, 3, 5)) {
		t.Errorf("March 5, 2024: got %v", col.Times[1])
	}
	if col.Times[2] != nil || col.Unparsable != 1 {
		t.Errorf("garbage should be unparsable, got %v (%d)", col.Times[2], col.Unparsable)
	}
}

func TestParseColumnMinorityLayoutFallsBack(t *testing.T) {
	p := NewParser([]string{"2006-01-02", "02/01/2006"}, 0.5)
	col := p.ParseColumn([]string{"2024-01-02", "03/01/2024", "04.01.2024"})
	if col.Layout != Lenient {
		t.Fatalf("layout: want lenient, got %q", col.Layout)
	}
	if col.Unparsable != 0 {
		t.Errorf("unparsable: want 0, got %d", col.Unparsable)
	}
	want := []time.Time{date(2024, 1, 2), date(2024, 1, 3), date(2024, 1, 4)}
	for i, w := range want {
		if col.Times[i] == nil || !col.Times[i].Equal(w) {
			t.Errorf("times[%d]: want %v, got %v", i, w, col.Times[i])
		}
	}
}

func TestParseColumnEmpty(t *testing.T) {
	col := testParser().ParseColumn([]string{"", ""})
	if col.Layout != "" || col.Unparsable != 0 || len(col.Times) != 2 {
		t.Errorf("empty column: got %+v", col)
	}
}

func TestDays(t *testing.T) {
	if got := Days(date(2024, 1, 1), date(2024, 1, 4)); got != 3 {
		t.Errorf("Days: want 3, got %v", got)
	}
	half := date(2024, 1, 1).Add(12 * time.Hour)
	if got := Days(date(2024, 1, 1), half); got != 0.5 {
		t.Errorf("Days: want 0.5, got %v", got)
	}
}

func readTable(t *testing.T, in string) *source.Table {
	t.Helper()
	tbl, err := source.Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("source.Read: %v", err)
	}
	return tbl
}

func TestNormalize(t *testing.T) {
	tbl := readTable(t, "Issue key,Issue Type,Status,Assignee,Project key,Created,Resolved,Time Spent\n"+
		"A-1,Bug,Done,Ana,A,2024-01-01,2024-01-04,3600\n"+
		"A-2,Story,To Do,,,2024-01-01,,abc\n"+
		"A-1,Bug,To Do,Ben,A,bad,,\n")
	cfg := config.DefaultConfig().Report
	res := Normalize(tbl, cfg, zerolog.New(io.Discard))

	if len(res.Issues) != 3 {
		t.Fatalf("issues: want 3, got %d", len(res.Issues))
	}
	a1, a2, dup := res.Issues[0], res.Issues[1], res.Issues[2]
	if a1.ResolvedAt == nil || !a1.ResolvedAt.Equal(date(2024, 1, 4)) {
		t.Errorf("A-1 resolved: got %v", a1.ResolvedAt)
	}
	if a1.TimeSpent == nil || *a1.TimeSpent != 3600 {
		t.Errorf("A-1 time spent: got %v", a1.TimeSpent)
	}
	if a2.Assignee != cfg.UnassignedLabel {
		t.Errorf("A-2 assignee: want %s, got %s", cfg.UnassignedLabel, a2.Assignee)
	}
	if a2.Project != cfg.DefaultProject {
		t.Errorf("A-2 project: want %s, got %s", cfg.DefaultProject, a2.Project)
	}
	if a2.TimeSpent != nil {
		t.Errorf("A-2 time spent should be nil, got %v", *a2.TimeSpent)
	}
	if dup.Key != "A-1#2" {
		t.Errorf("duplicate key: want A-1#2, got %s", dup.Key)
	}
	if dup.CreatedAt != nil {
		t.Errorf("bad created should be nil, got %v", dup.CreatedAt)
	}

	d := res.Diagnostics
	if d.DateLayouts[source.ColCreated] != "2006-01-02" {
		t.Errorf("created layout: got %q", d.DateLayouts[source.ColCreated])
	}
	if d.Unparsable[source.ColCreated] != 1 || d.Unparsable[source.ColTimeSpent] != 1 {
		t.Errorf("unparsable: got %v", d.Unparsable)
	}
	if len(d.DuplicateKeys) != 1 || d.DuplicateKeys[0] != "A-1" {
		t.Errorf("duplicate keys: got %v", d.DuplicateKeys)
	}
	if _, ok := d.DateLayouts[source.ColUpdated]; ok {
		t.Error("absent Updated column should not report a layout")
	}
}

func TestNormalizeRenamesAroundExistingSuffix(t *testing.T) {
	tbl := readTable(t, "Issue key,Issue Type\nA-1#2,Bug\nA-1,Bug\nA-1,Bug\n")
	res := Normalize(tbl, config.DefaultConfig().Report, zerolog.New(io.Discard))
	seen := map[string]bool{}
	for _, iss := range res.Issues {
		if seen[iss.Key] {
			t.Errorf("key %s assigned twice", iss.Key)
		}
		seen[iss.Key] = true
	}
	if res.Issues[2].Key != "A-1#3" {
		t.Errorf("third key: want A-1#3, got %s", res.Issues[2].Key)
	}
}
