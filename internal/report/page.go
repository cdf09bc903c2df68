package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/jmaddaus/sprintlens/internal/model"
)

//go:embed templates/page.html.tmpl
var pageFS embed.FS

var page = template.Must(template.New("page.html.tmpl").Funcs(template.FuncMap{
	"pct": func(m model.Measure) string {
		if !m.Available() {
			return "n/a"
		}
		return fmt.Sprintf("%.1f%%", m.Value)
	},
	"days": func(m model.Measure) string {
		if !m.Available() {
			return "n/a"
		}
		return fmt.Sprintf("%.1f d", m.Value)
	},
}).ParseFS(pageFS, "templates/page.html.tmpl"))

// RenderPage writes the HTML page for snap. The full document is embedded
// as a script value for client-side filtering.
func RenderPage(w io.Writer, snap *model.Snapshot) error {
	return page.Execute(w, snap)
}
