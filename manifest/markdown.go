package manifest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Flattened is a markdown chapter reduced to plain lines.
type Flattened struct {
	// Heading is the text of the first level-one heading, if any.
	Heading string
	Lines   []string
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

// FlattenMarkdown converts markdown to the line list a chapter body is made
// of. Paragraphs and headings become single lines separated by blank lines,
// list items are prefixed with a bullet or their number, code blocks are kept
// verbatim and raw HTML contributes its text. When dropHeading is set the
// first level-one heading is removed from the lines and returned in Heading.
func FlattenMarkdown(src []byte, dropHeading bool) (Flattened, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return Flattened{}, fmt.Errorf("converting markdown: %w", err)
	}

	doc, err := html.Parse(&buf)
	if err != nil {
		return Flattened{}, fmt.Errorf("error parsing HTML: %w", err)
	}

	f := &flattener{dropHeading: dropHeading}
	if body := findElement(doc, atom.Body); body != nil {
		f.blocks(body, 0)
	}
	return Flattened{Heading: f.heading, Lines: trimBlank(f.lines)}, nil
}

type flattener struct {
	lines       []string
	heading     string
	dropHeading bool
}

func (f *flattener) blocks(n *html.Node, depth int) {
	var inline []*html.Node
	flush := func() {
		if len(inline) == 0 {
			return
		}
		var b strings.Builder
		for _, c := range inline {
			inlineText(&b, c)
		}
		inline = inline[:0]
		f.paragraph(b.String(), indent(depth))
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && isBlock(c.DataAtom) {
			flush()
			f.block(c, depth)
			continue
		}
		if c.Type == html.TextNode || c.Type == html.ElementNode {
			inline = append(inline, c)
		}
	}
	flush()
}

func (f *flattener) block(n *html.Node, depth int) {
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		text := collapse(getTextContent(n))
		if n.DataAtom == atom.H1 && f.heading == "" && text != "" {
			f.heading = text
			if f.dropHeading {
				return
			}
		}
		f.paragraph(text, indent(depth))
	case atom.P:
		var b strings.Builder
		inlineText(&b, n)
		f.paragraph(b.String(), indent(depth))
	case atom.Ul, atom.Ol:
		f.separate()
		f.list(n, depth)
	case atom.Pre:
		f.separate()
		code := strings.TrimRight(getTextContent(n), "\n")
		for _, line := range strings.Split(code, "\n") {
			f.lines = append(f.lines, indent(depth)+line)
		}
	case atom.Blockquote:
		f.separate()
		f.blocks(n, depth+2)
	case atom.Hr:
		f.paragraph("* * *", indent(depth))
	case atom.Table:
		f.separate()
		f.table(n, depth)
	case atom.Script, atom.Style, atom.Head, atom.Img:
	default:
		f.blocks(n, depth)
	}
}

// list emits one line per item. Nested lists are indented under their item.
func (f *flattener) list(n *html.Node, depth int) {
	number := 1
	if n.DataAtom == atom.Ol {
		if start, err := strconv.Atoi(getAttr(n, "start")); err == nil {
			number = start
		}
	}

	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		marker := "• "
		if n.DataAtom == atom.Ol {
			marker = fmt.Sprintf("%d. ", number+countPreviousSiblings(li))
		}

		var b strings.Builder
		var nested []*html.Node
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol) {
				nested = append(nested, c)
				continue
			}
			if b.Len() > 0 && c.Type == html.ElementNode && c.DataAtom == atom.P {
				b.WriteString(" ")
			}
			inlineText(&b, c)
		}
		f.lines = append(f.lines, indent(depth)+marker+collapse(b.String()))
		for _, sub := range nested {
			f.list(sub, depth+2)
		}
	}
}

// table renders each row as its cells joined by " | ".
func (f *flattener) table(n *html.Node, depth int) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if c.DataAtom != atom.Tr {
				walk(c)
				continue
			}
			var cells []string
			for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
				if cell.Type == html.ElementNode && (cell.DataAtom == atom.Td || cell.DataAtom == atom.Th) {
					cells = append(cells, collapse(getTextContent(cell)))
				}
			}
			f.lines = append(f.lines, indent(depth)+strings.Join(cells, " | "))
		}
	}
	walk(n)
}

// paragraph appends text, split at explicit line breaks, after a blank line.
func (f *flattener) paragraph(text, prefix string) {
	var parts []string
	for _, part := range strings.Split(text, "\n") {
		if part = collapse(part); part != "" {
			parts = append(parts, prefix+part)
		}
	}
	if len(parts) == 0 {
		return
	}
	f.separate()
	f.lines = append(f.lines, parts...)
}

func (f *flattener) separate() {
	if len(f.lines) > 0 && f.lines[len(f.lines)-1] != "" {
		f.lines = append(f.lines, "")
	}
}

// inlineText writes the text of n, turning <br> into a newline.
func inlineText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Br:
			b.WriteString("\n")
			return
		case atom.Script, atom.Style:
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		inlineText(b, c)
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.P, atom.Ul, atom.Ol, atom.Pre, atom.Blockquote, atom.Hr,
		atom.Table, atom.Div, atom.Section, atom.Article, atom.Details,
		atom.Script, atom.Style, atom.Figure:
		return true
	}
	return false
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func countPreviousSiblings(n *html.Node) int {
	count := 0
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			count++
		}
	}
	return count
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func getTextContent(n *html.Node) string {
	var text strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return text.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func indent(depth int) string {
	return strings.Repeat(" ", depth)
}

func trimBlank(lines []string) []string {
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
