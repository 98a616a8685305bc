package doctree

import "testing"

func TestBuilderNestsHeadings(t *testing.T) {
	b := NewBuilder("Biology")
	b.Text("Intro before any heading.")
	b.Heading(1, "Cells")
	b.Text("Cells are the unit of life.")
	b.Heading(2, "Organelles")
	b.Text("Mitochondria release energy.")
	b.Heading(1, "Answers")
	b.Text("1. B")

	tree := b.Tree()
	if len(tree.Children) != 3 {
		t.Fatalf("expected 3 top-level nodes, got %d", len(tree.Children))
	}
	if tree.Children[0].Title != "" || tree.Children[0].Text != "Intro before any heading." {
		t.Errorf("unexpected preamble node: %+v", tree.Children[0])
	}
	cells := tree.Children[1]
	if len(cells.Children) != 1 || cells.Children[0].Title != "Organelles" {
		t.Fatalf("expected Organelles nested under Cells, got %+v", cells.Children)
	}

	want := "Intro before any heading.\n\n# Cells\n\nCells are the unit of life.\n\n## Organelles\n\nMitochondria release energy.\n\n# Answers\n\n1. B"
	if got := tree.Render(); got != want {
		t.Errorf("Render mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestPageCount(t *testing.T) {
	tree := &DocTree{Children: []*DocNode{{Text: "a", Page: 1}, {Text: "b", Page: 3}}}
	if got := tree.PageCount(); got != 3 {
		t.Errorf("expected 3 pages, got %d", got)
	}
	if got := (&DocTree{Children: []*DocNode{{Text: "x"}}}).PageCount(); got != 0 {
		t.Errorf("expected 0 pages for unpaged tree, got %d", got)
	}
}
