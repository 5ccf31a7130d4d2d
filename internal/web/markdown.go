package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageFiles = []string{
	"dashboard.html",
	"learning_path.html",
	"module.html",
	"nodejs.html",
	"topic.html",
	"interview.html",
	"playground.html",
	"progress.html",
	"notes.html",
	"profile.html",
	"settings.html",
}

// newMarkdown renders GitHub-flavored markdown. Raw HTML in the source is
// dropped.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("monokai"),
			),
		),
	)
}

// newTrustedMarkdown is newMarkdown with raw HTML passed through. Only
// content-service topics go through it; their bodies are HTML.
func newTrustedMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("monokai"),
			),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)
}

func renderMarkdown(md goldmark.Markdown, src string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		slog.Warn("markdown render failed", "error", err)
		return template.HTML("<p>This content could not be rendered.</p>")
	}
	return template.HTML(buf.String())
}

// dedent strips the indentation shared by every non-blank line, so an
// indented HTML payload is not read as a code block.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	indent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent <= 0 {
		return s
	}
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = l[indent:]
	}
	return strings.Join(lines, "\n")
}

// parsePages builds one template set per page, each sharing layout.html.
func parsePages(md, trusted goldmark.Markdown) (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"markdown": func(s string) template.HTML {
			return renderMarkdown(md, s)
		},
		"trustedMarkdown": func(s string) template.HTML {
			return renderMarkdown(trusted, dedent(s))
		},
		"clock": formatClock,
		"isActive": func(current, href string) bool {
			return current == href
		},
	}

	base, err := template.New("layout.html").Funcs(funcs).ParseFS(templatesFS, "templates/layout.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(pageFiles))
	for _, name := range pageFiles {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templatesFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// formatClock renders seconds as HH:MM:SS.
func formatClock(seconds int64) string {
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
}
