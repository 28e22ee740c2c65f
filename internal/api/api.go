// Package api carries the OpenAPI description of the HTTP surface. The
// router serves it verbatim and the contract tests validate live responses
// against it.
package api

import (
	_ "embed"
	"net/http"
)

//go:embed openapi.yaml
var spec []byte

// Spec returns the raw OpenAPI 3 document.
func Spec() []byte {
	return spec
}

// Handler serves the document.
// GET /openapi.yaml
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(spec)
}
