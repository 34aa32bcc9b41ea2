package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	TemplateContactAutoReply    = "contact_autoreply.html"
	TemplateContactNotification = "contact_notification.html"
	TemplateNewsletterWelcome   = "newsletter_welcome.html"
)

// Renderer renders the embedded email templates.
type Renderer struct {
	templates *template.Template
	siteName  string
	siteURL   string
}

func NewRenderer(siteName string, siteURL string) (*Renderer, error) {
	tmpl, err := template.New("mail").Funcs(template.FuncMap{
		"year": func() int { return time.Now().Year() },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}

	return &Renderer{templates: tmpl, siteName: siteName, siteURL: siteURL}, nil
}

// Render executes the named template with data plus SiteName and SiteURL.
func (r *Renderer) Render(name string, data map[string]any) (string, error) {
	values := map[string]any{
		"SiteName": r.siteName,
		"SiteURL":  r.siteURL,
	}
	for key, value := range data {
		values[key] = value
	}

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, values); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
