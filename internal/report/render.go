package report

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

const page = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 860px; margin: 2rem auto; color: #222; }
table { border-collapse: collapse; width: 100%%; margin-bottom: 1rem; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
img { max-width: 280px; }
</style>
</head>
<body>
%s</body>
</html>
`

// Renderer converts report markdown into a standalone HTML page.
// Raw HTML in the markdown is escaped (WithUnsafe is not set).
type Renderer struct {
	md goldmark.Markdown
}

func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table),
			goldmark.WithRendererOptions(
				goldmarkHTML.WithHardWraps(),
			),
		),
	}
}

// Render builds the markdown for d and wraps the HTML body in a page.
func (r *Renderer) Render(d Data) ([]byte, error) {
	var body bytes.Buffer
	if err := r.md.Convert([]byte(BuildMarkdown(d)), &body); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return []byte(fmt.Sprintf(page, html.EscapeString(d.Title), body.String())), nil
}
