package render

import (
	"strings"

	"golang.org/x/net/html"
)

// skip elements whose text content is never part of the message body.
var skipElements = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"title":    true,
	"template": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"table": true, "ul": true, "ol": true, "blockquote": true,
}

// PlainText derives the text/plain alternative from rendered HTML. Block
// elements become line breaks, anchors keep their target in parentheses,
// everything else is stripped.
func PlainText(htmlStr string) string {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		// The input came out of our own renderer, so a parse failure means
		// it was not HTML to begin with.
		return htmlStr
	}

	var b strings.Builder
	walkText(doc, &b)
	return collapseBlankLines(b.String())
}

func walkText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		text := strings.TrimSpace(n.Data)
		if text != "" {
			b.WriteString(text)
			b.WriteString(" ")
		}
	case html.ElementNode:
		if skipElements[n.Data] {
			return
		}
		if blockElements[n.Data] {
			b.WriteString("\n")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, b)
	}

	if n.Type == html.ElementNode {
		if n.Data == "a" {
			if href := attrValue(n, "href"); href != "" && !strings.HasPrefix(href, "#") {
				b.WriteString("(" + href + ") ")
			}
		}
		if blockElements[n.Data] {
			b.WriteString("\n")
		}
	}
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		line = strings.TrimLeft(line, " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
