package markdown

import (
	"regexp"
	"strings"
)

// AutolinkColor is the inline color of links inserted by Autolink.
const AutolinkColor = "#1976d2"

var (
	urlPattern = regexp.MustCompile(`https?://[^\s<>"]+[^\s<>".,;:]`)
	// spans that already hold a URL and must be left alone
	protectedPattern = regexp.MustCompile(`<a\s[^>]*>.*?</a>|\[[^\]]*\]\([^)]*\)`)
)

// Autolink wraps bare http(s) URLs in anchors. URLs already inside an
// anchor or a markdown link are left untouched. Trailing punctuation is not
// part of the link.
func Autolink(text string) string {
	var b strings.Builder
	last := 0
	for _, loc := range protectedPattern.FindAllStringIndex(text, -1) {
		b.WriteString(linkify(text[last:loc[0]]))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(linkify(text[last:]))
	return b.String()
}

func linkify(s string) string {
	return urlPattern.ReplaceAllStringFunc(s, func(url string) string {
		return `<a href="` + url + `" target="_blank" style="color: ` + AutolinkColor + `; text-decoration: underline;">` + url + `</a>`
	})
}

// ExtractLinks returns the distinct URLs found in text, in order.
func ExtractLinks(text string) []string {
	seen := make(map[string]struct{})
	var links []string
	for _, url := range urlPattern.FindAllString(text, -1) {
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		links = append(links, url)
	}
	return links
}
