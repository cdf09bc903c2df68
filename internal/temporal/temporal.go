// Package temporal turns raw export records into canonical issues. Date
// columns are normalized batch-wise: the first layout under which a majority
// of the column parses is adopted for the whole column, and columns where no
// layout clears the threshold are parsed value by value, day first.
package temporal

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Lenient names the per-value fallback in diagnostics.
const Lenient = "lenient"

// Column is the normalized form of one date column.
type Column struct {
	// Times holds one entry per input value; nil marks a missing or
	// unparsable value.
	Times []*time.Time
	// Layout is the adopted layout, Lenient, or "" for an all-empty column.
	Layout     string
	Unparsable int
}

// Parser normalizes date columns.
type Parser struct {
	layouts   []string
	threshold float64
}

// NewParser returns a Parser trying layouts in order. threshold is the share
// of non-empty values that must parse under a layout for it to be adopted.
func NewParser(layouts []string, threshold float64) *Parser {
	return &Parser{layouts: layouts, threshold: threshold}
}

// needed is the number of successes a layout must reach: at least one, and at
// least threshold of the batch rounded up.
func (p *Parser) needed(n int) int {
	return max(1, int(math.Ceil(float64(n)*p.threshold)))
}

// Detect returns the first layout that clears the threshold over the
// non-empty values, or "" when none does.
func (p *Parser) Detect(values []string) string {
	batch := nonEmpty(values)
	if len(batch) == 0 {
		return ""
	}
	need := p.needed(len(batch))
	for _, layout := range p.layouts {
		ok := 0
		for _, v := range batch {
			if _, err := time.Parse(layout, v); err == nil {
				ok++
			}
		}
		if ok >= need {
			return layout
		}
	}
	return ""
}

// ParseColumn normalizes every value of a column. It never fails: values that
// do not parse become nil and are counted.
func (p *Parser) ParseColumn(values []string) Column {
	col := Column{Times: make([]*time.Time, len(values))}
	if len(nonEmpty(values)) == 0 {
		return col
	}

	layout := p.Detect(values)
	col.Layout = layout
	if layout == "" {
		col.Layout = Lenient
	}
	for i, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		var (
			ts  time.Time
			err error
		)
		if layout != "" {
			ts, err = time.Parse(layout, v)
		} else {
			ts, err = ParseLenient(v)
		}
		if err != nil {
			col.Unparsable++
			continue
		}
		ts = ts.UTC()
		col.Times[i] = &ts
	}
	return col
}

var numericDate = regexp.MustCompile(`^\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}`)

// dayFirst are tried before the general parser for all-numeric dates, which
// it would otherwise read month first.
var dayFirst = []string{
	"2/1/2006", "2/1/06", "2-1-2006", "2-1-06", "2.1.2006", "2.1.06",
	"2/1/2006 15:04", "2/1/2006 15:04:05", "2/1/06 15:04", "2/1/06 3:04 PM",
	"2-1-2006 15:04", "2.1.2006 15:04",
}

// ParseLenient parses a single value with no layout hint. All-numeric dates
// are read day first.
func ParseLenient(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if numericDate.MatchString(v) {
		for _, layout := range dayFirst {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts, nil
			}
		}
	}
	return dateparse.ParseIn(v, time.UTC)
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Days returns b - a in fractional days.
func Days(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}
