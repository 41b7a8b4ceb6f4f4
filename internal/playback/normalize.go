package playback

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

type substitution struct {
	pattern *regexp.Regexp
	repl    string
}

var (
	whitespace       = regexp.MustCompile(`\s+`)
	sentenceBoundary = regexp.MustCompile(`([.!?])\s*(\p{Lu})`)
	spaceBeforePunct = regexp.MustCompile(`\s+([.,;:!?])`)

	// Applied in order. Percent with a number goes first so "50%" reads as
	// "50 por ciento" rather than running the words together.
	speakable = []substitution{
		{regexp.MustCompile(`\bS/\.?`), "soles"},
		{regexp.MustCompile(`\bRUC\b`), "ruc"},
		{regexp.MustCompile(`\bSUNAT\b`), "Sunat"},
		{regexp.MustCompile(`\bIGV\b`), "i ge uve"},
		{regexp.MustCompile(`\bUIT\b`), "u i te"},
		{regexp.MustCompile(`\bDJ\b`), "declaración jurada"},
		{regexp.MustCompile(`\bN[º°]\s*`), "número "},
		{regexp.MustCompile(`(\d)\s*%`), "$1 por ciento "},
		{regexp.MustCompile(`%`), " por ciento "},
		{regexp.MustCompile(`\bArt\.`), "artículo"},
		{regexp.MustCompile(`\bInc\.`), "inciso"},
		{regexp.MustCompile(`\bwww\.`), "doble uve doble uve doble uve punto "},
	}

	blockElements = map[string]bool{
		"p": true, "div": true, "li": true, "ul": true, "ol": true, "br": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"table": true, "tr": true, "td": true, "th": true,
	}
)

// skippedClass marks the container of the speak/continue buttons.
const skippedClass = "message-actions"

// Normalize turns rendered reply content into text a speech engine reads
// well: markup and UI glyphs are dropped, bullets become pauses, and tax
// abbreviations are expanded to words.
func Normalize(content string) string {
	text := extractText(content)

	text = strings.Map(func(r rune) rune {
		switch {
		case r == '°':
			return r
		case r == '\u200d' || r == '\ufe0f':
			return -1
		case unicode.Is(unicode.So, r), unicode.Is(unicode.Me, r):
			return -1
		}
		return r
	}, text)

	text = strings.ReplaceAll(text, "•", " punto ")
	text = whitespace.ReplaceAllString(text, " ")
	text = sentenceBoundary.ReplaceAllString(text, "$1 $2")

	for _, s := range speakable {
		text = s.pattern.ReplaceAllString(text, s.repl)
	}

	text = whitespace.ReplaceAllString(text, " ")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

func extractText(content string) string {
	if !strings.ContainsAny(content, "<&") {
		return content
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return content
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" || hasClass(n, skippedClass) {
				return
			}
			if blockElements[n.Data] {
				b.WriteByte(' ')
				defer b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return b.String()
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}
