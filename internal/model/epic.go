package model

// EpicKind records how an Epic came into existence.
type EpicKind string

const (
	// EpicExplicit is an Epic backed by an issue of type Epic.
	EpicExplicit EpicKind = "explicit"
	// EpicNamed is synthesized from an epic name that matched no Epic.
	EpicNamed EpicKind = "named"
	// EpicProject is the automatic per-project fallback grouping.
	EpicProject EpicKind = "project"
)

// Epic groups issues. Members holds issue keys in first-seen order; the
// issues themselves are shared and read-only.
type Epic struct {
	Key     string   `json:"epic_key"`
	Name    string   `json:"epic_name"`
	Project string   `json:"project"`
	Kind    EpicKind `json:"kind"`
	Members []string `json:"members"`
}

// Synthetic reports whether the Epic was not present in the source data.
func (e *Epic) Synthetic() bool {
	return e.Kind != EpicExplicit
}
