// internal/browser/dom/simplify.go

// Package dom reduces raw page HTML to the compact form sent to the model.
// Scripts, styles and chrome (headers, navs, footers) are dropped; what
// survives is a flat list of interactive and content-bearing elements with a
// small attribute allowlist.
package dom

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// droppedTags are removed together with their entire subtree.
var droppedTags = map[string]struct{}{
	"script": {}, "style": {}, "meta": {}, "link": {},
	"header": {}, "footer": {}, "nav": {}, "aside": {}, "form": {},
}

// keptTags survive simplification as flattened elements.
var keptTags = map[string]struct{}{
	"a": {}, "button": {}, "input": {}, "select": {}, "textarea": {},
	"label": {}, "h1": {}, "h2": {}, "h3": {}, "p": {}, "li": {}, "span": {},
}

// interactiveTags are kept even when they carry no text.
var interactiveTags = map[string]struct{}{
	"input": {}, "select": {}, "textarea": {}, "button": {},
}

// keptAttrs is the attribute allowlist carried into the simplified output.
var keptAttrs = []string{
	"id", "class", "name", "type", "value", "href", "placeholder",
	"aria-label", "role", "title",
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Simplify parses raw page HTML and returns the flattened body, truncated at
// a tag boundary to stay within byteBudget. A budget of zero disables
// truncation.
func Simplify(rawHTML string, byteBudget int) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse page HTML: %w", err)
	}

	body := findElement(doc, "body")
	if body == nil {
		return "", fmt.Errorf("page HTML has no body element")
	}

	var sb strings.Builder
	sb.WriteString("<body>")
	collectKept(body, &sb)
	sb.WriteString("</body>")

	out := strings.TrimSpace(whitespaceRe.ReplaceAllString(sb.String(), " "))
	return truncateAtTagBoundary(out, byteBudget), nil
}

// collectKept walks the tree emitting every kept element, including ones
// nested inside other kept elements. Dropped subtrees are skipped entirely.
func collectKept(n *html.Node, sb *strings.Builder) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if _, dropped := droppedTags[c.Data]; dropped {
			continue
		}
		if _, kept := keptTags[c.Data]; kept {
			writeFlattened(c, sb)
		}
		collectKept(c, sb)
	}
}

// writeFlattened renders one element as <tag attrs>text</tag> with its
// descendant text collapsed. Textless elements are kept only when inherently
// interactive.
func writeFlattened(n *html.Node, sb *strings.Builder) {
	text := collapseText(n)
	if text == "" {
		if _, interactive := interactiveTags[n.Data]; !interactive {
			return
		}
	}

	sb.WriteByte('<')
	sb.WriteString(n.Data)
	for _, name := range keptAttrs {
		if val, ok := attrValue(n, name); ok {
			fmt.Fprintf(sb, ` %s="%s"`, name, html.EscapeString(val))
		}
	}
	sb.WriteByte('>')
	sb.WriteString(html.EscapeString(text))
	sb.WriteString("</")
	sb.WriteString(n.Data)
	sb.WriteString("> ")
}

// collapseText gathers descendant text, skipping dropped subtrees, and
// collapses runs of whitespace.
func collapseText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				if t := strings.TrimSpace(c.Data); t != "" {
					parts = append(parts, t)
				}
			case html.ElementNode:
				if _, dropped := droppedTags[c.Data]; !dropped {
					walk(c)
				}
			}
		}
	}
	walk(n)
	return whitespaceRe.ReplaceAllString(strings.Join(parts, " "), " ")
}

func attrValue(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// truncateAtTagBoundary cuts the document at the last closing bracket within
// the budget so the model never sees a torn tag.
func truncateAtTagBoundary(s string, byteBudget int) string {
	if byteBudget <= 0 || len(s) <= byteBudget {
		return s
	}
	cut := s[:byteBudget]
	if pos := strings.LastIndex(cut, ">"); pos != -1 {
		return cut[:pos+1]
	}
	return cut
}
