package source

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/edugest/internal/doctree"
)

// TextDecoder handles plain text files. Form feeds, as left by PDF
// converters, start a new page.
type TextDecoder struct{}

func (p *TextDecoder) Decode(r io.Reader, filename string) (*doctree.DocTree, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	tree := &doctree.DocTree{Title: baseTitle(filename)}
	page := 0
	paged := false
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		tree.Children = append(tree.Children, &doctree.DocNode{Text: current.String(), Page: page + 1})
		current.Reset()
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.Contains(line, "\f") {
			parts := strings.Split(line, "\f")
			for i, part := range parts {
				if i > 0 {
					flush()
					page++
					paged = true
				}
				if strings.TrimSpace(part) != "" {
					if current.Len() > 0 {
						current.WriteString("\n")
					}
					current.WriteString(part)
				}
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !paged {
		for _, n := range tree.Children {
			n.Page = 0
		}
	}
	return tree, nil
}
