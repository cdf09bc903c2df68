package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmaddaus/sprintlens/internal/pipeline"
	"github.com/jmaddaus/sprintlens/internal/report"
)

const generateUsage = `Usage:
  lens generate <input.csv> <output> [flags]

Writes the snapshot document of one generation pass. An output ending in
.html gets the page embedding the document; anything else gets the JSON
document. Nothing is written when the pass fails.`

// generated is printed after a successful generate or export.
type generated struct {
	GenerationID string `json:"generation_id"`
	Output       string `json:"output"`
	Format       string `json:"format"`
	Issues       int    `json:"issues"`
	Epics        int    `json:"epics"`
}

func runGenerate(args []string, e *env) error {
	fs := newFlagSet("generate", generateUsage)
	format := fs.String("format", "", "Output format: json or html (default: from the output extension)")
	now := fs.String("now", "", "Reference time for ages, RFC3339 (default: current time)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("generate requires an input and an output path\n%s", generateUsage)
	}
	input, output := fs.Arg(0), fs.Arg(1)

	kind, err := outputFormat(*format, output)
	if err != nil {
		return err
	}
	res, err := runPipeline(e, input, *now)
	if err != nil {
		return err
	}

	switch kind {
	case "html":
		err = report.WriteHTML(output, res.Snapshot)
	default:
		err = report.WriteJSON(output, res.Snapshot)
	}
	if err != nil {
		return err
	}
	e.log.Info().Str("output", output).Str("format", kind).Msg("snapshot written")

	printGenerated(generated{
		GenerationID: res.Snapshot.GenerationID,
		Output:       output,
		Format:       kind,
		Issues:       len(res.Snapshot.Rows),
		Epics:        len(res.Snapshot.Epics),
	}, e.pretty)
	return nil
}

// outputFormat picks the document format from the flag or the extension.
func outputFormat(flagValue, output string) (string, error) {
	switch strings.ToLower(flagValue) {
	case "json", "html":
		return strings.ToLower(flagValue), nil
	case "":
	default:
		return "", fmt.Errorf("invalid format %q: use json or html", flagValue)
	}
	switch strings.ToLower(filepath.Ext(output)) {
	case ".html", ".htm":
		return "html", nil
	}
	return "json", nil
}

// runPipeline runs one generation pass over input. now, when set, replaces
// the clock.
func runPipeline(e *env, input, now string) (*pipeline.Result, error) {
	p := pipeline.New(e.cfg.Report, e.log)
	if now != "" {
		t, err := time.Parse(time.RFC3339, now)
		if err != nil {
			return nil, fmt.Errorf("invalid --now %q: want RFC3339", now)
		}
		p.WithClock(func() time.Time { return t })
	}

	ctx, stop := signalContext()
	defer stop()
	return p.Run(ctx, input)
}
