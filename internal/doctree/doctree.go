// Package doctree holds the heading tree decoded from an uploaded file and
// renders it back to the flat text the pipeline works on.
package doctree

import (
	"strings"
)

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for leaf text)
	Text     string     // Text content of this node (may be empty for container nodes)
	Page     int        // Source page (0 if N/A)
	Children []*DocNode // Subsections
}

// Walk visits nodes depth-first with their heading depth (1 for top level).
func (t *DocTree) Walk(fn func(n *DocNode, depth int)) {
	var walk func(nodes []*DocNode, depth int)
	walk = func(nodes []*DocNode, depth int) {
		for _, n := range nodes {
			fn(n, depth)
			walk(n.Children, depth+1)
		}
	}
	walk(t.Children, 1)
}

// Render flattens the tree to text. Headings become Markdown heading lines
// so section fingerprints can match them; blocks are blank-line separated.
func (t *DocTree) Render() string {
	var blocks []string
	t.Walk(func(n *DocNode, depth int) {
		if title := strings.TrimSpace(n.Title); title != "" {
			level := depth
			if level > 6 {
				level = 6
			}
			blocks = append(blocks, strings.Repeat("#", level)+" "+title)
		}
		if text := strings.TrimSpace(n.Text); text != "" {
			blocks = append(blocks, text)
		}
	})
	return strings.Join(blocks, "\n\n")
}

// PageCount is the highest page number seen, or 0 for unpaged formats.
func (t *DocTree) PageCount() int {
	max := 0
	t.Walk(func(n *DocNode, _ int) {
		if n.Page > max {
			max = n.Page
		}
	})
	return max
}

// Builder assembles a tree from a flat stream of headings and text blocks.
type Builder struct {
	title   string
	root    *DocNode
	stack   []stackEntry
	pending strings.Builder
}

type stackEntry struct {
	node  *DocNode
	level int
}

func NewBuilder(title string) *Builder {
	root := &DocNode{Title: title}
	return &Builder{
		title: title,
		root:  root,
		stack: []stackEntry{{node: root, level: 0}},
	}
}

// Heading opens a section at level (1 = top), closing any open section at
// the same or a deeper level.
func (b *Builder) Heading(level int, title string) {
	b.flush()
	n := &DocNode{Title: title}
	for len(b.stack) > 1 && b.stack[len(b.stack)-1].level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	parent := b.stack[len(b.stack)-1].node
	parent.Children = append(parent.Children, n)
	b.stack = append(b.stack, stackEntry{node: n, level: level})
}

// Text appends a paragraph to the current section.
func (b *Builder) Text(t string) {
	if t == "" {
		return
	}
	if b.pending.Len() > 0 {
		b.pending.WriteString("\n\n")
	}
	b.pending.WriteString(t)
}

func (b *Builder) flush() {
	t := strings.TrimSpace(b.pending.String())
	b.pending.Reset()
	if t == "" {
		return
	}
	top := b.stack[len(b.stack)-1].node
	if top.Text != "" {
		top.Text += "\n\n" + t
	} else {
		top.Text = t
	}
}

// Tree finishes the build. Text seen before the first heading becomes a
// leading untitled node.
func (b *Builder) Tree() *DocTree {
	b.flush()
	tree := &DocTree{Title: b.title, Children: b.root.Children}
	if b.root.Text != "" {
		tree.Children = append([]*DocNode{{Text: b.root.Text}}, tree.Children...)
	}
	return tree
}
