package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DocsHandler serves the OpenAPI document for the ledger API and a Swagger UI
// page pointing at it. The document is re-read on each request so it can be
// edited without a restart.
type DocsHandler struct {
	specPath string
}

type openAPIHeader struct {
	OpenAPI string `yaml:"openapi"`
	Info    struct {
		Title string `yaml:"title"`
	} `yaml:"info"`
}

func NewDocsHandler(specPath string) *DocsHandler {
	return &DocsHandler{specPath: strings.TrimSpace(specPath)}
}

func (h *DocsHandler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.specPath == "" {
		http.Error(w, "openapi document not configured", http.StatusNotFound)
		return
	}

	content, err := os.ReadFile(h.specPath)
	if err != nil {
		http.Error(w, "openapi document not found", http.StatusNotFound)
		return
	}

	if _, err := parseOpenAPIHeader(content); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sum := sha256.Sum256(content)
	etag := `"` + hex.EncodeToString(sum[:8]) + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func parseOpenAPIHeader(content []byte) (openAPIHeader, error) {
	var header openAPIHeader
	if err := yaml.Unmarshal(content, &header); err != nil {
		return header, fmt.Errorf("openapi document is not valid yaml: %w", err)
	}
	if header.OpenAPI == "" {
		return header, fmt.Errorf("openapi document has no openapi version")
	}
	return header, nil
}

func (h *DocsHandler) SwaggerUI(w http.ResponseWriter, _ *http.Request) {
	title := "Contract Ledger API Docs"
	if h != nil && h.specPath != "" {
		if content, err := os.ReadFile(h.specPath); err == nil {
			if header, err := parseOpenAPIHeader(content); err == nil && header.Info.Title != "" {
				title = header.Info.Title
			}
		}
	}

	w.Header().Set("Content-Security-Policy", "default-src 'self'; connect-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; style-src 'self' 'unsafe-inline' https://unpkg.com; img-src 'self' data:")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, swaggerPage, htmlEscape(title))
}

func htmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;").Replace(s)
}

const swaggerPage = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>%s</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({ url: '/openapi.yaml', dom_id: '#swagger-ui', persistAuthorization: true });
    </script>
  </body>
</html>`
