package markup

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func newTestConverter(t *testing.T) *Converter {
	t.Helper()
	c, err := NewConverter("")
	if err != nil {
		t.Fatalf("NewConverter() error = %v", err)
	}
	return c
}

func TestIsMarkdown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{"README.md", true},
		{"notes.MARKDOWN", true},
		{"doc.mdown", true},
		{"page.html", false},
		{"md", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			if got := IsMarkdown(tt.path); got != tt.want {
				t.Errorf("IsMarkdown(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestConverter_ToHTML(t *testing.T) {
	t.Parallel()

	c := newTestConverter(t)

	tests := []struct {
		name     string
		title    string
		content  string
		contains []string
	}{
		{
			name:     "heading with id",
			content:  "# Quarterly Report",
			contains: []string{`<h1 id="quarterly-report">Quarterly Report</h1>`},
		},
		{
			name:     "GFM table",
			content:  "| a | b |\n|---|---|\n| 1 | 2 |",
			contains: []string{"<table>", "<td>1</td>"},
		},
		{
			name:     "highlighted code uses classes",
			content:  "```go\nfunc main() {}\n```",
			contains: []string{`class="chroma"`, ".chroma"},
		},
		{
			name:     "raw script kept",
			content:  "<script>window.htmlPdfDone = true</script>",
			contains: []string{"<script>window.htmlPdfDone = true</script>"},
		},
		{
			name:     "title escaped",
			title:    "a <b> & c",
			content:  "text",
			contains: []string{"<title>a &lt;b&gt; &amp; c</title>"},
		},
		{
			name:     "default title",
			content:  "text",
			contains: []string{"<title>Document</title>", "<!DOCTYPE html>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := c.ToHTML(context.Background(), tt.title, tt.content)
			if err != nil {
				t.Fatalf("ToHTML() error = %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("ToHTML() missing %q in:\n%s", want, got)
				}
			}
		})
	}
}

func TestConverter_ToHTML_CanceledContext(t *testing.T) {
	t.Parallel()

	c := newTestConverter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ToHTML(ctx, "", "# x")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ToHTML() error = %v, want %v", err, context.Canceled)
	}
}

func TestNewConverter_UnknownStyle(t *testing.T) {
	t.Parallel()

	// chroma falls back to its default style
	if _, err := NewConverter("no-such-style"); err != nil {
		t.Errorf("NewConverter() error = %v, want nil", err)
	}
}
