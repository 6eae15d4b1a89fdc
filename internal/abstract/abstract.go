package abstract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// abstractSelectors are tried in order against an article page. PubMed marks
// the abstract of the currently shown version as "abstract-content selected".
var abstractSelectors = []string{
	"div.abstract-content.selected",
	"div.abstract-content",
	"div#abstract",
	"section.abstract",
}

// FromHTML extracts the abstract text of an article page. When no
// abstract-like region is present it falls back to the single largest text
// block on the page. The result may be empty; it is never an error.
func FromHTML(input []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(input))
	if err == nil {
		for _, sel := range abstractSelectors {
			if text := normalizeWhitespace(doc.Find(sel).First().Text()); text != "" {
				return text
			}
		}
	}
	return largestTextBlock(input)
}

// blockTags are the elements considered as candidate text blocks for the
// fallback. Nested blocks score for themselves, not their ancestors, so a
// page wrapper does not absorb the whole document.
var blockTags = map[string]bool{
	"p":          true,
	"blockquote": true,
	"section":    true,
	"div":        true,
	"td":         true,
}

var skipTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"aside":    true,
	"iframe":   true,
}

func largestTextBlock(input []byte) string {
	root, err := html.Parse(bytes.NewReader(input))
	if err != nil || root == nil {
		return ""
	}
	var best string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			name := strings.ToLower(n.Data)
			if skipTags[name] {
				return
			}
			if blockTags[name] {
				if t := normalizeWhitespace(ownText(n)); len(t) > len(best) {
					best = t
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return best
}

// ownText gathers the text belonging to a block itself: direct text nodes and
// text inside inline descendants. Descent stops at nested block elements.
func ownText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		switch cur.Type {
		case html.TextNode:
			b.WriteString(cur.Data)
			return
		case html.ElementNode:
			name := strings.ToLower(cur.Data)
			if skipTags[name] {
				return
			}
			if cur != n && blockTags[name] {
				return
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
