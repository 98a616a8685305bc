package source

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/dgallion1/edugest/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownDecoder handles Markdown files using goldmark.
type MarkdownDecoder struct{}

func (p *MarkdownDecoder) Decode(r io.Reader, filename string) (*doctree.DocTree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	b := doctree.NewBuilder(baseTitle(filename))
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			b.Heading(h.Level, strings.TrimSpace(string(h.Text(src))))
			continue
		}
		b.Text(blockText(n, src))
	}
	return b.Tree(), nil
}

// blockText gets the text content of a goldmark block. Code blocks keep
// their raw lines; list items stay on their own lines.
func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	switch n.Kind() {
	case ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindHTMLBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}
	item := 0
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			buf.Write(c.Segment.Value(src))
			if c.HardLineBreak() || c.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.ListItem:
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(listMarker(n, item) + blockText(c, src))
			item++
		default:
			if c.Type() == ast.TypeBlock && buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(blockText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}

// listMarker numbers ordered list items from the list's start value.
func listMarker(list ast.Node, i int) string {
	if l, ok := list.(*ast.List); ok && l.IsOrdered() {
		return strconv.Itoa(l.Start+i) + ". "
	}
	return "- "
}
