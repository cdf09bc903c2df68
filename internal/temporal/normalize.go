package temporal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmaddaus/sprintlens/internal/config"
	"github.com/jmaddaus/sprintlens/internal/model"
	"github.com/jmaddaus/sprintlens/internal/source"
)

// dateColumns are normalized in this order.
var dateColumns = []string{source.ColCreated, source.ColUpdated, source.ColResolved}

// Result is the canonical record set and what was recovered on the way.
type Result struct {
	Issues      []*model.Issue
	Diagnostics model.Diagnostics
}

// Normalize converts the raw table into canonical issues. The table is not
// modified. Blank assignees become the unassigned label, blank projects the
// default project, and repeated keys are renamed KEY#2, KEY#3 so keys stay
// unique downstream.
func Normalize(tbl *source.Table, cfg config.Report, log zerolog.Logger) Result {
	p := NewParser(cfg.DateLayouts, cfg.MajorityThreshold)
	diag := model.Diagnostics{
		DateLayouts:    map[string]string{},
		Unparsable:     map[string]int{},
		MissingColumns: append([]string(nil), tbl.Missing...),
	}
	for _, col := range tbl.Missing {
		log.Warn().Str("column", col).Msg("optional column missing")
	}

	dates := make(map[string]Column, len(dateColumns))
	for _, name := range dateColumns {
		if !tbl.Has(name) {
			continue
		}
		col := p.ParseColumn(tbl.Values(name))
		dates[name] = col
		if col.Layout != "" {
			diag.DateLayouts[name] = col.Layout
		}
		if col.Unparsable > 0 {
			diag.Unparsable[name] = col.Unparsable
		}
		ev := log.Info()
		if col.Layout == Lenient {
			ev = log.Warn()
		}
		ev.Str("column", name).Str("layout", col.Layout).Int("unparsable", col.Unparsable).
			Msg("date column normalized")
	}

	seen := make(map[string]int, len(tbl.Records))
	issues := make([]*model.Issue, 0, len(tbl.Records))
	for i, rec := range tbl.Records {
		key := rec[source.ColKey]
		if key == "" {
			key = fmt.Sprintf("ROW-%d", i+1)
		}
		seen[key]++
		if n := seen[key]; n > 1 {
			renamed := fmt.Sprintf("%s#%d", key, n)
			for seen[renamed] > 0 {
				n++
				renamed = fmt.Sprintf("%s#%d", key, n)
			}
			seen[renamed]++
			log.Warn().Str("key", key).Str("renamed", renamed).Msg("duplicate issue key")
			diag.DuplicateKeys = append(diag.DuplicateKeys, key)
			key = renamed
		}

		iss := &model.Issue{
			Key:      key,
			Type:     rec[source.ColType],
			Status:   rec[source.ColStatus],
			Priority: rec[source.ColPriority],
			Assignee: rec[source.ColAssignee],
			Sprint:   rec[source.ColSprint],
			Project:  rec[source.ColProject],
			EpicName: rec[source.ColEpicName],
			EpicLink: rec[source.ColEpicLink],
			Summary:  rec[source.ColSummary],
		}
		if iss.Assignee == "" {
			iss.Assignee = cfg.UnassignedLabel
		}
		if iss.Project == "" {
			iss.Project = cfg.DefaultProject
		}
		iss.CreatedAt = at(dates, source.ColCreated, i)
		iss.UpdatedAt = at(dates, source.ColUpdated, i)
		iss.ResolvedAt = at(dates, source.ColResolved, i)

		if raw := rec[source.ColTimeSpent]; raw != "" {
			secs, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
			if err != nil || secs < 0 {
				diag.Unparsable[source.ColTimeSpent]++
			} else {
				iss.TimeSpent = &secs
			}
		}
		issues = append(issues, iss)
	}

	log.Info().Int("issues", len(issues)).Int("duplicates", len(diag.DuplicateKeys)).
		Msg("records normalized")
	return Result{Issues: issues, Diagnostics: diag}
}

func at(dates map[string]Column, name string, i int) *time.Time {
	col, ok := dates[name]
	if !ok || i >= len(col.Times) {
		return nil
	}
	return col.Times[i]
}
