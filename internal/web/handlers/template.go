package handlers

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/csrf"

	"github.com/producthub/producthub/internal/models"
	"github.com/producthub/producthub/internal/web/templates"
)

const pageTitle = "Product Hub"

// TemplateData holds common data passed to templates
type TemplateData struct {
	Title     string
	Error     string // Sign-in view error region
	Message   string // Upload view message region
	Companies []models.Company
	Accept    string        // File input accept attribute
	Version   string        // Application version
	CSRFField template.HTML // Hidden CSRF input for forms
}

var pageNames = []string{"signin", "upload", "about", "404"}

// parseTemplates builds one template set per page, each sharing the base layout
func parseTemplates() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New(name).ParseFS(templates.FS,
			"layouts/base.html",
			"pages/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

// renderTemplate renders a page with the base layout
func (h *Handlers) renderTemplate(w http.ResponseWriter, r *http.Request, status int, templateName string, data TemplateData) error {
	tmpl, ok := h.templates[templateName]
	if !ok {
		return fmt.Errorf("unknown template %q", templateName)
	}

	if data.Title == "" {
		data.Title = pageTitle
	}
	data.CSRFField = csrf.TemplateField(r)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return tmpl.ExecuteTemplate(w, "base", data)
}
