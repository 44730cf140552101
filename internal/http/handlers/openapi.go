package handlers

import (
	_ "embed"
	"encoding/json"
	"net/http"
)

//go:embed openapi.json
var openAPIDocument []byte

const redocHTML = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>brainsim API Docs</title>
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <style>body { margin: 0; } redoc { display: block; height: 100vh; }</style>
  </head>
  <body>
    <redoc spec-url="/v1/openapi.json"></redoc>
    <script src="https://cdn.jsdelivr.net/npm/redoc@2.2.0/bundles/redoc.standalone.js"></script>
  </body>
</html>`

// OpenAPIJSON serves the embedded API description with its server URL set to
// the host the caller reached, so "try it" requests go to this instance.
func (a *App) OpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	var doc map[string]any
	if err := json.Unmarshal(openAPIDocument, &doc); err != nil {
		a.log(r).Error().Err(err).Msg("openapi: embedded document is invalid")
		a.error(w, http.StatusInternalServerError, "openapi document unavailable")
		return
	}
	doc["servers"] = []map[string]string{{"url": publicURL(r, "")}}
	if a.Cases == nil {
		if paths, ok := doc["paths"].(map[string]any); ok {
			delete(paths, "/cases")
			delete(paths, "/cases/{id}")
		}
	}
	a.json(w, http.StatusOK, doc)
}

// OpenAPIDocs serves a Redoc page rendering OpenAPIJSON.
func (a *App) OpenAPIDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(redocHTML))
}
