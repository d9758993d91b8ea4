package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"cranesection/internal/domain/followup"
	"cranesection/internal/domain/roster"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = parsePages("followups", "reports", "roster", "error")

func parsePages(names ...string) map[string]*template.Template {
	funcs := template.FuncMap{
		"isLink": func(field string) bool {
			return field == followup.FieldImageURL || field == followup.FieldAudioURL
		},
	}
	out := make(map[string]*template.Template, len(names))
	for _, name := range names {
		out[name] = template.Must(template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
	return out
}

// pageData is shared by every page; each template reads the fields it needs.
type pageData struct {
	Title       string
	Active      string
	AuthEnabled bool
	SignedIn    bool
	Message     string
	Warnings    []string
	Error       string
	Back        string

	Sections         []string
	Statuses         []followup.Status
	EquipmentNumbers []int
	Header           []string
	Followups        []followup.Followup
	Form             followup.Followup
	Filter           followup.Filter

	Metrics followup.Metrics

	Roster  roster.Grid
	Days    []string
	Version string
}

// page renders the named template inside the layout.
func page(name string, data pageData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		tmpl, ok := pages[name]
		if !ok {
			return fmt.Errorf("unknown page %q", name)
		}
		return tmpl.ExecuteTemplate(w, "layout", data)
	})
}
