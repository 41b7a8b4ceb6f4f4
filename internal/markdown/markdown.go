// Package markdown converts the small markdown dialect used by bot replies
// into HTML fragments.
//
// The dialect is a fixed, ordered list of substitutions. Output is not
// escaped: replies come from the trusted backend.
package markdown

import "regexp"

// LinkColor is the inline color applied to rendered links.
const LinkColor = "#800000"

type rule struct {
	name    string
	pattern *regexp.Regexp
	repl    string
}

// Renderer applies its rules in order. The zero value is not usable; use New.
type Renderer struct {
	rules []rule
}

// New returns a Renderer with the default rule set.
func New() *Renderer {
	return &Renderer{rules: defaultRules()}
}

// List markers run before newline conversion so they still see line starts;
// links run last so anchor text keeps its emphasis.
func defaultRules() []rule {
	return []rule{
		{name: "bold", pattern: regexp.MustCompile(`\*\*(.*?)\*\*`), repl: `<strong>$1</strong>`},
		{name: "italic", pattern: regexp.MustCompile(`\*(.*?)\*`), repl: `<em>$1</em>`},
		{name: "numbered", pattern: regexp.MustCompile(`(?m)^(\d+\.[ \t])`), repl: `<strong>$1</strong>`},
		{name: "bullet", pattern: regexp.MustCompile(`(?m)^-[ \t]`), repl: `• `},
		{name: "newline", pattern: regexp.MustCompile(`\r?\n`), repl: `<br>`},
		{name: "link", pattern: regexp.MustCompile(`\[(.*?)\]\((.*?)\)`), repl: `<a href="$2" target="_blank" style="color: ` + LinkColor + `;">$1</a>`},
	}
}

// Render converts text to an HTML fragment.
func (r *Renderer) Render(text string) string {
	for _, rl := range r.rules {
		text = rl.pattern.ReplaceAllString(text, rl.repl)
	}
	return text
}

var std = New()

// Render converts text with the default renderer.
func Render(text string) string {
	return std.Render(text)
}
