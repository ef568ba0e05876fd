// Package markup turns Markdown sources into standalone HTML documents that
// the browser can render and print.
package markup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"path/filepath"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// ErrConversion indicates Markdown conversion failed.
var ErrConversion = errors.New("markdown conversion failed")

// DefaultStyle is the chroma style used for fenced code blocks.
const DefaultStyle = "github"

// document wraps the rendered fragment. Arguments: title, highlight CSS, body.
const document = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; line-height: 1.5; margin: 0; }
pre { padding: 0.75em; overflow-x: auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #d0d7de; padding: 0.3em 0.6em; }
%s
</style>
</head>
<body>
%s
</body>
</html>`

// markdownExts are the file extensions treated as Markdown.
var markdownExts = map[string]bool{".md": true, ".markdown": true, ".mdown": true}

// IsMarkdown reports whether path has a Markdown extension.
func IsMarkdown(path string) bool {
	return markdownExts[strings.ToLower(filepath.Ext(path))]
}

// Converter renders Markdown to HTML with GFM, footnotes and highlighted code.
// It is safe for concurrent use.
type Converter struct {
	md  goldmark.Markdown
	css string
}

// NewConverter creates a Converter. An unknown style falls back to chroma's default.
func NewConverter(style string) (*Converter, error) {
	if style == "" {
		style = DefaultStyle
	}

	var css bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&css, styles.Get(style)); err != nil {
		return nil, fmt.Errorf("%w: highlight css: %v", ErrConversion, err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
			),
		),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		// Raw HTML is kept: pages may carry the scripts that signal readiness.
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
	return &Converter{md: md, css: css.String()}, nil
}

// ToHTML converts Markdown content to a standalone HTML5 document.
// Goldmark has no context support, so conversion runs in a goroutine and
// ctx only bounds the wait.
func (c *Converter) ToHTML(ctx context.Context, title, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		html string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		var buf bytes.Buffer
		if err := c.md.Convert([]byte(content), &buf); err != nil {
			done <- result{err: fmt.Errorf("%w: %v", ErrConversion, err)}
			return
		}
		if title == "" {
			title = "Document"
		}
		done <- result{html: fmt.Sprintf(document, html.EscapeString(title), c.css, buf.String())}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.html, r.err
	}
}
