package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

// MountDocs serves the OpenAPI document at /docs/doc.json and the swagger UI under /docs
func MountDocs(r Router, doc []byte, enabled bool) {
	if !enabled {
		return
	}
	r.Get("/docs/doc.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(doc)
	})
	ui := httpSwagger.Handler(httpSwagger.URL("/docs/doc.json"))
	r.Get("/docs/*", func(w http.ResponseWriter, req *http.Request) { ui.ServeHTTP(w, req) })
}
