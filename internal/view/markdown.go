package view

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		emoji.Emoji,
	),
	goldmark.WithRendererOptions(
		// Raw HTML in snippets is dropped, never passed through.
		html.WithHardWraps(),
	),
)

var markdownPolicy = bluemonday.UGCPolicy()

// Markdown renders a text snippet as sanitised HTML.
func Markdown(src string) template.HTML {
	src = strings.TrimSpace(src)
	if src == "" {
		return template.HTML("")
	}
	var b bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &b); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	return template.HTML(markdownPolicy.SanitizeBytes(b.Bytes()))
}

// LooksLikeMarkdown is a cheap check used to decide whether to offer the
// rendered view by default.
func LooksLikeMarkdown(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		t := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(t, "# "), strings.HasPrefix(t, "## "), strings.HasPrefix(t, "- "),
			strings.HasPrefix(t, "* "), strings.HasPrefix(t, "```"), strings.HasPrefix(t, "> "):
			return true
		}
	}
	return strings.Contains(s, "](") || strings.Contains(s, "**")
}
