package ingest

import (
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// blockElements end a paragraph, so their text never runs into the next block.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "section": true, "article": true,
}

// IsHTML sniffs whether body looks like an HTML document.
func IsHTML(body string) bool {
	return strings.HasPrefix(http.DetectContentType([]byte(body)), "text/html")
}

// ExtractText returns the visible text of an HTML document. Block elements
// are separated by blank lines; script and style contents are dropped.
func ExtractText(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		// Fallback to string if parsing fails
		return s
	}

	var buf strings.Builder
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "head") {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			buf.WriteString("\n\n")
		}
	}
	extractText(doc)

	return strings.TrimSpace(buf.String())
}
