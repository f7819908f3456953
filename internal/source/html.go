package source

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// htmlWriter flattens a DOM into headings and text blocks separated by
// blank lines
type htmlWriter struct {
	blocks []string
	inline strings.Builder
	prefix string // list marker for the pending block
}

// htmlToText extracts readable text from an HTML document. Headings become
// ATX headings so the markdown chunker can split at them.
func htmlToText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	root := findElement(doc, "body")
	if root == nil {
		root = doc
	}

	w := &htmlWriter{}
	w.walk(root)
	w.flush()

	return strings.Join(w.blocks, "\n\n"), nil
}

func (w *htmlWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.inline.WriteString(flattenSpace(n.Data))
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c)
		}
		return
	}

	if shouldSkipElement(n.Data) {
		return
	}

	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		w.flush()
		level := int(n.Data[1] - '0')
		if text := collapse(textContent(n, false)); text != "" {
			w.blocks = append(w.blocks, strings.Repeat("#", level)+" "+text)
		}
		return

	case "pre":
		w.flush()
		if text := strings.Trim(textContent(n, true), "\n"); strings.TrimSpace(text) != "" {
			w.blocks = append(w.blocks, text)
		}
		return

	case "br":
		w.inline.WriteString("\n")
		return

	case "li":
		w.flush()
		w.prefix = "- "
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c)
		}
		w.flush()
		w.prefix = ""
		return

	case "p", "div", "blockquote", "section", "article", "main", "header", "footer",
		"aside", "ul", "ol", "table", "tr", "dl", "dt", "dd", "figure", "figcaption":
		w.flush()
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c)
		}
		w.flush()
		return

	case "td", "th":
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.walk(c)
		}
		w.inline.WriteString(" ")
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *htmlWriter) flush() {
	text := collapse(w.inline.String())
	w.inline.Reset()
	if text != "" {
		w.blocks = append(w.blocks, w.prefix+text)
		w.prefix = ""
	}
}

// shouldSkipElement returns true for elements that carry no readable text
func shouldSkipElement(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "template", "svg", "math", "iframe",
		"object", "embed", "nav", "head":
		return true
	}
	return false
}

// findElement finds the first element with the given tag name
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

// textContent concatenates the text below n, skipping non-content elements.
// Source line breaks survive only when preformatted is set.
func textContent(n *html.Node, preformatted bool) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode && preformatted:
			b.WriteString(n.Data)
		case n.Type == html.TextNode:
			b.WriteString(flattenSpace(n.Data))
		case n.Type == html.ElementNode && shouldSkipElement(n.Data):
			return
		case n.Type == html.ElementNode && n.Data == "br":
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// collapse folds runs of whitespace within each line and drops blank lines,
// so a block never contains the blank line that separates blocks
func collapse(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// flattenSpace turns source line breaks and tabs into spaces; only <br>
// produces a line break in flowing text
func flattenSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return ' '
		}
		return r
	}, s)
}
