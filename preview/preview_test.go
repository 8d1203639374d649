package preview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsImageURL(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected bool
	}{
		{
			name:     "firebase download url",
			text:     "https://firebasestorage.googleapis.com/v0/b/dapper.appspot.com/o/dapImage.PNG?alt=media&token=abc",
			expected: true,
		},
		{
			name:     "firebase url without alt",
			text:     "https://firebasestorage.googleapis.com/v0/b/dapper.appspot.com/o/notes",
			expected: false,
		},
		{name: "jpeg", text: "https://example.com/cat.JPEG", expected: true},
		{name: "plain http", text: "http://example.com/cat.png", expected: false},
		{name: "page", text: "https://example.com/index.html", expected: false},
		{name: "text", text: "DAP", expected: false},
		{name: "sentence with url", text: "look https://example.com/cat.png", expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsImageURL(tt.text))
		})
	}
}

func TestHTML(t *testing.T) {
	r := NewRenderer()
	tests := []struct {
		name     string
		text     string
		contains []string
		excludes []string
	}{
		{
			name:     "empty",
			text:     "   ",
			excludes: []string{"<"},
		},
		{
			name:     "markdown",
			text:     "**hi** there",
			contains: []string{"<strong>hi</strong>"},
		},
		{
			name:     "image",
			text:     "https://firebasestorage.googleapis.com/v0/b/d/o/dapImage.PNG?alt=media&token=abc",
			contains: []string{"<img", `src="https://firebasestorage.googleapis.com/v0/b/d/o/dapImage.PNG?alt=media&amp;token=abc"`},
		},
		{
			name:     "script is stripped",
			text:     "hello <script>alert(1)</script>",
			contains: []string{"hello"},
			excludes: []string{"<script", "alert(1)"},
		},
		{
			name:     "links get no referrer",
			text:     "[site](https://example.com)",
			contains: []string{`href="https://example.com"`, "noreferrer"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.HTML(tt.text)
			for _, c := range tt.contains {
				assert.Contains(t, out, c)
			}
			for _, e := range tt.excludes {
				assert.NotContains(t, out, e)
			}
		})
	}
}

func TestHTMLTruncates(t *testing.T) {
	out := NewRenderer().HTML(strings.Repeat("a", 200))
	assert.Contains(t, out, strings.Repeat("a", maxTextRunes)+"…")
	assert.NotContains(t, out, strings.Repeat("a", maxTextRunes+1))
}
