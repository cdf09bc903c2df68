// Package source reads issue-tracker exports: delimited text files with one
// header row and one record per line.
package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrMissingInput is returned when the export file does not exist.
	ErrMissingInput = errors.New("input file not found")
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("required column missing")
)

// Canonical column names. Every alias in the header is mapped to one of these.
const (
	ColKey       = "Issue key"
	ColType      = "Issue Type"
	ColStatus    = "Status"
	ColPriority  = "Priority"
	ColAssignee  = "Assignee"
	ColSprint    = "Sprint"
	ColCreated   = "Created"
	ColUpdated   = "Updated"
	ColResolved  = "Resolved"
	ColProject   = "Project key"
	ColSummary   = "Summary"
	ColEpicName  = "Epic Name"
	ColEpicLink  = "Epic Link"
	ColTimeSpent = "Time Spent"
)

// Required columns abort the read when absent.
var Required = []string{ColKey, ColType}

// Expected columns degrade gracefully when absent and are reported as missing.
var Expected = []string{
	ColStatus, ColPriority, ColAssignee, ColSprint, ColCreated,
	ColProject, ColSummary, ColEpicName, ColResolved, ColUpdated,
}

// aliases maps a lower-cased header label to its canonical column.
var aliases = map[string]string{
	"issue key":                 ColKey,
	"key":                       ColKey,
	"issue type":                ColType,
	"issuetype":                 ColType,
	"type":                      ColType,
	"status":                    ColStatus,
	"priority":                  ColPriority,
	"assignee":                  ColAssignee,
	"sprint":                    ColSprint,
	"created":                   ColCreated,
	"updated":                   ColUpdated,
	"resolved":                  ColResolved,
	"resolution date":           ColResolved,
	"resolutiondate":            ColResolved,
	"project key":               ColProject,
	"project":                   ColProject,
	"summary":                   ColSummary,
	"custom field (epic name)":  ColEpicName,
	"epic name":                 ColEpicName,
	"parent key":                ColEpicLink,
	"parent":                    ColEpicLink,
	"epic link":                 ColEpicLink,
	"custom field (epic link)":  ColEpicLink,
	"time spent":                ColTimeSpent,
	"timespent":                 ColTimeSpent,
	"σ time spent":              ColTimeSpent,
	"custom field (time spent)": ColTimeSpent,
}

// Record is one raw export row keyed by canonical column name. Values are
// trimmed; absent columns read as "".
type Record map[string]string

// Table is the raw content of one export.
type Table struct {
	// Columns lists the canonical columns present, in header order.
	Columns []string
	// Missing lists the expected columns that were absent.
	Missing []string
	Records []Record
}

// Has reports whether the canonical column was present in the header.
func (t *Table) Has(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Values returns the column's value for every record, in record order.
func (t *Table) Values(col string) []string {
	out := make([]string, len(t.Records))
	for i, r := range t.Records {
		out[i] = r[col]
	}
	return out
}

// Open reads the export at path.
func Open(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// Read parses an export from r. The delimiter is detected from the header
// line and a leading UTF-8 byte order mark is ignored.
func Read(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		br.Discard(3)
	}

	head, err := br.Peek(4096)
	if err != nil && err != io.EOF && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(head)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: %s (empty file)", ErrMissingColumn, ColKey)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make([]string, len(header))
	t := &Table{}
	seen := make(map[string]bool)
	for i, label := range header {
		col, ok := aliases[strings.ToLower(strings.TrimSpace(label))]
		if !ok {
			continue
		}
		index[i] = col
		if !seen[col] {
			seen[col] = true
			t.Columns = append(t.Columns, col)
		}
	}

	for _, col := range Required {
		if !seen[col] {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	for _, col := range Expected {
		if !seen[col] {
			t.Missing = append(t.Missing, col)
		}
	}

	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		rec := make(Record, len(t.Columns))
		for i, v := range fields {
			if i >= len(index) || index[i] == "" {
				continue
			}
			// Repeated columns (Jira repeats Sprint): the last non-empty wins.
			if v = strings.TrimSpace(v); v != "" || rec[index[i]] == "" {
				rec[index[i]] = v
			}
		}
		if isBlank(rec) {
			continue
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

func isBlank(r Record) bool {
	for _, v := range r {
		if v != "" {
			return false
		}
	}
	return true
}

// detectDelimiter picks the most frequent of comma, semicolon and tab in the
// header line, ignoring quoted text. Comma wins ties.
func detectDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	counts := map[rune]int{}
	quoted := false
	for _, b := range head {
		switch b {
		case '"':
			quoted = !quoted
		case ',', ';', '\t':
			if !quoted {
				counts[rune(b)]++
			}
		}
	}
	best := ','
	for _, d := range []rune{';', '\t'} {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}
