package template

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/ghaggin/automl/internal/middleware"
	"github.com/ghaggin/automl/internal/model"
)

//go:embed tmpl/*.html
var templates embed.FS

const (
	templateDir string = "tmpl"
)

type Data struct {
	PageTitle string
	User      *model.Session
	Flashes   []middleware.Flash

	// build
	Query string
	Error string

	// results
	JobID   string
	Results *model.Results
}

func Render(w http.ResponseWriter, r *http.Request, tmpl string, td *Data) error {
	return RenderStatus(w, r, http.StatusOK, tmpl, td)
}

// RenderStatus renders tmpl inside base.html. Nothing is written if either
// template fails.
func RenderStatus(w http.ResponseWriter, _ *http.Request, code int, tmpl string, td *Data) error {
	t, err := template.New("").Funcs(funcs).ParseFS(templates,
		templateDir+"/"+"base.html",
		templateDir+"/"+tmpl,
	)
	if err != nil {
		return err
	}

	buf := &bytes.Buffer{}

	err = t.ExecuteTemplate(buf, "base", td)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, err = buf.WriteTo(w)
	return err
}

var funcs = template.FuncMap{
	"percent": func(f float64) float64 { return f * 100 },
}
