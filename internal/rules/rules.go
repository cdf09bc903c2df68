// Package rules holds the named matching rules shared by every stage: which
// statuses are terminal, which priorities are critical, which filter tokens
// select which issue types, and how sprint labels are ordered.
package rules

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jmaddaus/sprintlens/internal/config"
)

// Set is an immutable, case-insensitive view of the configured rule tables.
type Set struct {
	terminal   map[string]bool
	inProgress map[string]bool
	toDo       map[string]bool
	critical   map[string]bool
	classes    map[string]string
	tokens     map[string]string
	showAll    *regexp.Regexp
}

// New builds a Set from the report configuration.
func New(cfg config.Report) *Set {
	s := &Set{
		terminal:   lowerSet(cfg.TerminalStatuses),
		inProgress: lowerSet(cfg.InProgressStatuses),
		toDo:       lowerSet(cfg.ToDoStatuses),
		critical:   lowerSet(cfg.CriticalPriorities),
		classes:    make(map[string]string, len(cfg.TypeClasses)),
		tokens:     make(map[string]string, len(cfg.TypeClasses)),
	}
	for token, typ := range cfg.TypeClasses {
		token, typ = strings.TrimSpace(token), strings.TrimSpace(typ)
		s.classes[normalize(token)] = typ
		// Several tokens may select one type; the smallest one names it.
		if prev, ok := s.tokens[normalize(typ)]; !ok || token < prev {
			s.tokens[normalize(typ)] = token
		}
	}

	var words []string
	for _, w := range cfg.ShowAllWords {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, regexp.QuoteMeta(w))
		}
	}
	if len(words) > 0 {
		s.showAll = regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
	}
	return s
}

// Default returns the rules of the default configuration.
func Default() *Set {
	return New(config.DefaultConfig().Report)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func lowerSet(values []string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		if v = normalize(v); v != "" {
			m[v] = true
		}
	}
	return m
}

// IsTerminal reports whether status means the work is finished.
func (s *Set) IsTerminal(status string) bool {
	return s.terminal[normalize(status)]
}

// IsInProgress reports whether status is an in-flight state.
func (s *Set) IsInProgress(status string) bool {
	return s.inProgress[normalize(status)]
}

// IsToDo reports whether status is a not-yet-started state.
func (s *Set) IsToDo(status string) bool {
	return s.toDo[normalize(status)]
}

// IsCritical reports whether priority is in the critical class.
func (s *Set) IsCritical(priority string) bool {
	return s.critical[normalize(priority)]
}

// IsShowAll reports whether a selection value is a wildcard: empty, or a
// label containing one of the show-all words.
func (s *Set) IsShowAll(value string) bool {
	if strings.TrimSpace(value) == "" {
		return true
	}
	return s.showAll != nil && s.showAll.MatchString(value)
}

// TypeForToken resolves a type filter token to the issue type it selects.
// Equivalence-class tokens map through the class table; any other token
// selects the raw type with the same name.
func (s *Set) TypeForToken(token string) string {
	if typ, ok := s.classes[normalize(token)]; ok {
		return typ
	}
	return strings.TrimSpace(token)
}

// TokenForType returns the class token that selects typ, or typ itself when
// no class covers it.
func (s *Set) TokenForType(typ string) string {
	if token, ok := s.tokens[normalize(typ)]; ok {
		return token
	}
	return strings.TrimSpace(typ)
}

// Tokens returns the configured equivalence-class tokens, sorted.
func (s *Set) Tokens() []string {
	out := make([]string, 0, len(s.tokens))
	for _, token := range s.tokens {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

var ordinalRe = regexp.MustCompile(`\d+`)

// SprintOrdinal extracts the last integer token of a sprint label.
func SprintOrdinal(label string) (int, bool) {
	matches := ordinalRe.FindAllString(label, -1)
	if len(matches) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(matches[len(matches)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// SprintLess orders sprint labels by ordinal, then label. Labels without an
// ordinal sort after every numbered label.
func SprintLess(a, b string) bool {
	na, oka := SprintOrdinal(a)
	nb, okb := SprintOrdinal(b)
	switch {
	case oka && okb:
		if na != nb {
			return na < nb
		}
	case oka != okb:
		return oka
	}
	return a < b
}
