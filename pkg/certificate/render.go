package certificate

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/alexsbc303/CPD-Cert/pkg/report"
)

//go:embed templates
var templates embed.FS

// Event carries the free-text event variables.
type Event struct {
	Title   string `json:"title" yaml:"title"`
	Details string `json:"details" yaml:"details"`
}

// Renderer turns template variables into a certificate document.
type Renderer interface {
	Render(vars map[string]any) ([]byte, error)
}

// Variables returns the template variables for one matched row.
func Variables(row report.MatchedRow, ev Event) map[string]any {
	return map[string]any{
		"name":              PrintedName(row),
		"membership_number": row.MembershipID,
		"event_title":       ev.Title,
		"event_details":     ev.Details,
		"salutation":        row.Salutation,
		"full_name":         row.FullName,
		"email":             row.Email,
		"total_minutes":     row.TotalMinutes,
	}
}

// MarkdownRenderer fills a markdown template, converts it to HTML with
// goldmark and wraps it in a printable page.
type MarkdownRenderer struct {
	body *texttemplate.Template
	page *htmltemplate.Template
	md   goldmark.Markdown
}

// NewMarkdownRenderer parses source as the certificate body. An empty source
// selects the built-in template. Unknown variables fail at render time.
func NewMarkdownRenderer(source string) (*MarkdownRenderer, error) {
	if strings.TrimSpace(source) == "" {
		data, err := templates.ReadFile("templates/certificate.md.tmpl")
		if err != nil {
			return nil, fmt.Errorf("failed to read built-in template: %w", err)
		}
		source = string(data)
	}

	body, err := texttemplate.New("certificate").
		Option("missingkey=error").
		Funcs(texttemplate.FuncMap{"escape": escapeMarkdown}).
		Parse(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate template: %w", err)
	}

	page, err := htmltemplate.ParseFS(templates, "templates/page.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	return &MarkdownRenderer{
		body: body,
		page: page,
		md:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}, nil
}

// Render implements Renderer.
func (r *MarkdownRenderer) Render(vars map[string]any) ([]byte, error) {
	var src bytes.Buffer
	if err := r.body.Execute(&src, vars); err != nil {
		return nil, fmt.Errorf("failed to execute certificate template: %w", err)
	}

	var body bytes.Buffer
	if err := r.md.Convert(src.Bytes(), &body); err != nil {
		return nil, fmt.Errorf("failed to convert markdown: %w", err)
	}

	var out bytes.Buffer
	err := r.page.Execute(&out, map[string]any{
		"Title": vars["event_title"],
		"Body":  htmltemplate.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute page template: %w", err)
	}
	return out.Bytes(), nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`,
	"<", `\<`, ">", `\>`, "#", `\#`, "|", `\|`, "~", `\~`, "!", `\!`,
)

// escapeMarkdown keeps user supplied text from being read as markup.
func escapeMarkdown(v any) string {
	return markdownEscaper.Replace(fmt.Sprint(v))
}
