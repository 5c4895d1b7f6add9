package service

import (
	"bytes"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var (
	markdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
		),
	)
	ugcPolicy   = newUGCPolicy()
	plainPolicy = bluemonday.StrictPolicy()
)

func newUGCPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	return p
}

// sanitizeText strips all markup from user input and trims surrounding whitespace.
// Entities produced by the policy are unescaped so length limits count characters.
func sanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(s)))
}

// renderContent turns markdown post content into sanitized HTML.
func renderContent(source string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return ugcPolicy.Sanitize(html.EscapeString(source))
	}
	return string(ugcPolicy.SanitizeBytes(buf.Bytes()))
}

func charCount(s string) int {
	return utf8.RuneCountInString(s)
}
