// Package extract turns raw HTML documents into normalized plain text
// suitable for LLM analysis. Clean is a pure function: same input, same
// output, and malformed markup degrades to an empty string rather than an
// error.
package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// nonContentSelector matches elements whose text would pollute the
// analysis input with code or styling tokens.
const nonContentSelector = "script, style, noscript, meta, link"

// Clean strips markup and noise from a raw HTML document. Each text node
// lands on its own line; lines are trimmed and empty lines dropped, so
// runs of blank lines collapse to single breaks.
func Clean(raw []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		// Only reader failures reach here; the HTML parser itself is
		// maximally permissive.
		return ""
	}

	doc.Find(nonContentSelector).Remove()

	var b strings.Builder
	for _, node := range doc.Selection.Nodes {
		collectText(node, &b)
	}

	return normalize(b.String())
}

// collectText walks the node tree appending each text node on its own line.
func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte('\n')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

// normalize trims each line and drops the now-empty ones.
func normalize(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
