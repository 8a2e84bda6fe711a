package http

import (
	"html/template"
	"net/http"

	"github.com/aussiebroadwan/warden/pkg/rbac"
)

// Page rendering belongs to the storefront. These stubs only give the
// route gate something to guard.
var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html><head><title>{{.Title}}</title></head>
<body><h1>{{.Title}}</h1>{{if .Email}}<p>Signed in as {{.Email}}</p>{{end}}</body></html>
`))

func PageHandler(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := struct{ Title, Email string }{Title: title}
		if p, ok := rbac.PrincipalFrom(r.Context()); ok {
			data.Email = p.Email
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = pageTmpl.Execute(w, data)
	}
}
