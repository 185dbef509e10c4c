package mailer

import (
	"bytes"
	"embed"
	"fmt"
	htmpl "html/template"
	"reflect"
	"strings"
	texttpl "text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const TemplateEventAnnouncement = "event_announcement"

// defaultFn supports {{ .Value | default "Fallback" }}.
func defaultFn(fallback, value any) any {
	switch x := value.(type) {
	case nil:
		return fallback
	case string:
		if strings.TrimSpace(x) == "" {
			return fallback
		}
		return x
	}
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || rv.IsZero() {
		return fallback
	}
	return value
}

var (
	textTemplates = texttpl.Must(texttpl.New("").Funcs(texttpl.FuncMap{"default": defaultFn}).ParseFS(templateFS, "templates/*.txt.tmpl"))
	htmlTemplates = htmpl.Must(htmpl.New("").Funcs(htmpl.FuncMap{"default": defaultFn}).ParseFS(templateFS, "templates/*.html.tmpl"))
)

// Render produces subject, text and html bodies for a named template.
func Render(name string, data map[string]any) (subject, text, html string, err error) {
	switch name {
	case TemplateEventAnnouncement:
		subject = fmt.Sprintf("New event: %v", data["EventName"])
	default:
		return "", "", "", fmt.Errorf("unknown email template %q", name)
	}

	var tb bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&tb, name+".txt.tmpl", data); err != nil {
		return "", "", "", fmt.Errorf("render %s text: %w", name, err)
	}
	var hb bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&hb, name+".html.tmpl", data); err != nil {
		return "", "", "", fmt.Errorf("render %s html: %w", name, err)
	}
	return subject, tb.String(), hb.String(), nil
}
