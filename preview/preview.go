// Package preview renders conversation summary text for display.
package preview

import (
	"html"
	"net/url"
	"path"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

const maxTextRunes = 140

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".heic": true,
}

// Renderer turns a message text into safe HTML.
type Renderer struct {
	policy *bluemonday.Policy
}

func NewRenderer() *Renderer {
	p := bluemonday.UGCPolicy()
	p.RequireNoReferrerOnLinks(true)
	return &Renderer{policy: p}
}

// HTML renders an image URL as an <img>, anything else as Markdown
// shortened to a preview. The output is always sanitized.
func (r *Renderer) HTML(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if IsImageURL(text) {
		return r.policy.Sanitize(`<img src="` + html.EscapeString(text) + `" alt="">`)
	}
	unsafe := blackfriday.Run([]byte(truncate(text, maxTextRunes)),
		blackfriday.WithExtensions(blackfriday.CommonExtensions|blackfriday.HardLineBreak))
	return strings.TrimSpace(string(r.policy.SanitizeBytes(unsafe)))
}

// IsImageURL reports whether text is an https URL pointing at an image,
// including Firebase Storage download URLs.
func IsImageURL(text string) bool {
	u, err := url.Parse(text)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return false
	}
	if u.Host == "firebasestorage.googleapis.com" && u.Query().Get("alt") == "media" {
		return true
	}
	p, err := url.PathUnescape(u.EscapedPath())
	if err != nil {
		return false
	}
	return imageExtensions[strings.ToLower(path.Ext(p))]
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
