// Package hierarchy groups issues under epics. Every issue ends up in exactly
// one epic: its own if it is an epic, the epic it links to or names, or a
// per-project automatic grouping.
package hierarchy

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jmaddaus/sprintlens/internal/model"
)

// Result is the epic list and the issue to epic assignment.
type Result struct {
	Epics []*model.Epic
	// EpicOf maps every issue key to the key of its epic.
	EpicOf map[string]string
}

// builder carries the lookup tables of one pass. They are discarded with it.
type builder struct {
	defaultProject string

	epics     []*model.Epic
	byKey     map[string]*model.Epic
	byName    map[string]*model.Epic
	byProject map[string]*model.Epic
	epicOf    map[string]string
}

// Build assigns every issue to one epic in a single pass. Epic issues are
// registered up front so that records listed before their epic still attach
// to it. Synthetic epics are keyed SYN-<project>-<n>, automatic project
// groupings AUTO-<project>.
func Build(issues []*model.Issue, defaultProject string, log zerolog.Logger) Result {
	b := &builder{
		defaultProject: defaultProject,
		byKey:          map[string]*model.Epic{},
		byName:         map[string]*model.Epic{},
		byProject:      map[string]*model.Epic{},
		epicOf:         make(map[string]string, len(issues)),
	}

	for _, iss := range issues {
		if iss.IsType(model.TypeEpic) {
			b.register(iss)
		}
	}

	for _, iss := range issues {
		b.attach(b.resolve(iss), iss)
	}

	kinds := map[model.EpicKind]int{}
	for _, e := range b.epics {
		kinds[e.Kind]++
	}
	log.Info().Int("epics", len(b.epics)).
		Int("explicit", kinds[model.EpicExplicit]).
		Int("named", kinds[model.EpicNamed]).
		Int("project", kinds[model.EpicProject]).
		Msg("hierarchy built")

	return Result{Epics: b.epics, EpicOf: b.epicOf}
}

func (b *builder) project(iss *model.Issue) string {
	if p := strings.TrimSpace(iss.Project); p != "" {
		return p
	}
	return b.defaultProject
}

func (b *builder) register(iss *model.Issue) {
	if _, dup := b.byKey[iss.Key]; dup {
		return
	}
	name := strings.TrimSpace(iss.EpicName)
	summary := strings.TrimSpace(iss.Summary)
	if name == "" {
		name = summary
	}
	if name == "" {
		name = iss.Key
	}
	e := b.add(&model.Epic{Key: iss.Key, Name: name, Project: b.project(iss), Kind: model.EpicExplicit})
	// Both the epic name field and the summary are names other records use.
	for _, n := range []string{name, summary} {
		if _, taken := b.byName[n]; n != "" && !taken {
			b.byName[n] = e
		}
	}
}

// resolve picks the epic for iss, creating it when needed.
func (b *builder) resolve(iss *model.Issue) *model.Epic {
	if iss.IsType(model.TypeEpic) {
		return b.byKey[iss.Key]
	}
	if link := strings.TrimSpace(iss.EpicLink); link != "" {
		if e, ok := b.byKey[link]; ok && e.Kind == model.EpicExplicit {
			return e
		}
	}
	project := b.project(iss)
	if name := strings.TrimSpace(iss.EpicName); name != "" {
		if e, ok := b.byName[name]; ok {
			return e
		}
		e := b.add(&model.Epic{
			Key:     b.uniqueKey(fmt.Sprintf("SYN-%s-%d", project, len(b.epics)+1)),
			Name:    name,
			Project: project,
			Kind:    model.EpicNamed,
		})
		b.byName[name] = e
		return e
	}
	if e, ok := b.byProject[project]; ok {
		return e
	}
	e := b.add(&model.Epic{
		Key:     b.uniqueKey("AUTO-" + project),
		Name:    fmt.Sprintf("Project %s (automatic grouping)", project),
		Project: project,
		Kind:    model.EpicProject,
	})
	b.byProject[project] = e
	return e
}

func (b *builder) add(e *model.Epic) *model.Epic {
	e.Members = []string{}
	b.epics = append(b.epics, e)
	b.byKey[e.Key] = e
	return e
}

func (b *builder) attach(e *model.Epic, iss *model.Issue) {
	e.Members = append(e.Members, iss.Key)
	b.epicOf[iss.Key] = e.Key
}

// uniqueKey suffixes key until it collides with no registered epic.
func (b *builder) uniqueKey(key string) string {
	if _, taken := b.byKey[key]; !taken {
		return key
	}
	for n := 2; ; n++ {
		k := fmt.Sprintf("%s.%d", key, n)
		if _, taken := b.byKey[k]; !taken {
			return k
		}
	}
}
