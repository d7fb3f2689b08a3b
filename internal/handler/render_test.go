package handler

import (
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRenderTemplateWritesStatusAndBody(t *testing.T) {
	tmpl := template.Must(template.New("page.html").Parse(`<p>{{.Message}}</p>`))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rec := httptest.NewRecorder()
	renderTemplate(rec, tmpl, logger, "page.html", http.StatusUnauthorized, map[string]any{
		"Message": "nope",
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(rec.Body.String(), "<p>nope</p>") {
		t.Fatalf("body = %q, want rendered template", rec.Body.String())
	}
}

func TestRenderTemplateReportsFailure(t *testing.T) {
	tmpl := template.Must(template.New("page.html").Parse(`ok`))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rec := httptest.NewRecorder()
	renderTemplate(rec, tmpl, logger, "missing.html", http.StatusOK, nil)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}
