// Package pyramid organizes a source's assertions into a fixed-depth topic
// hierarchy with a single completion call, then verifies that every input
// hash lands in exactly one leaf.
package pyramid

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/edugest/internal/config"
	"github.com/dgallion1/edugest/internal/jsonrepair"
	"github.com/dgallion1/edugest/internal/llm"
	"github.com/dgallion1/edugest/internal/textnorm"
)

// Fact is one assertion offered to the engine.
type Fact struct {
	Hash string
	Text string
}

// Node is a hierarchy node. Leaves carry DetailHashes, internal nodes carry
// Children.
type Node struct {
	Text         string   `json:"text"`
	Slug         string   `json:"slug,omitempty"`
	Children     []*Node  `json:"children,omitempty"`
	DetailHashes []string `json:"detailHashes,omitempty"`
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Report is a verified hierarchy. Orphans are input hashes the model left
// out; Duplicates and Unknown count hashes removed during verification.
type Report struct {
	Root       *Node    `json:"root"`
	Orphans    []string `json:"orphans,omitempty"`
	Duplicates int      `json:"duplicates"`
	Unknown    int      `json:"unknown"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Engine calls the completion gateway to build hierarchies.
type Engine struct {
	llm    llm.Invoker
	log    *slog.Logger
	params llm.Params
}

func New(inv llm.Invoker, params llm.Params, log *slog.Logger) *Engine {
	return &Engine{llm: inv, params: params, log: log}
}

// Structure builds and verifies a hierarchy for facts. Unlike per-chunk
// extraction there is nothing to degrade to: gateway exhaustion and
// unrecoverable output are returned as errors.
func (e *Engine) Structure(ctx context.Context, facts []Fact, levels []config.Level) (*Report, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: missing pyramid.levels", config.ErrConfiguration)
	}
	if len(facts) == 0 {
		return &Report{Root: &Node{Text: levels[0].Label, Slug: textnorm.Slugify(levels[0].Label)}}, nil
	}

	raw, err := e.llm.Invoke(ctx, systemPrompt(levels), userPrompt(facts), llm.CallStructure, e.params)
	if err != nil {
		return nil, fmt.Errorf("structure %d facts: %w", len(facts), err)
	}
	root, fixes, err := parseTree(raw)
	if err != nil {
		return nil, fmt.Errorf("structure %d facts: %w", len(facts), err)
	}
	if len(fixes) > 0 {
		e.log.Debug("recovered malformed structure response", "fixes", fixes)
	}

	rep := Verify(root, facts, levels)
	if rep.Duplicates > 0 {
		e.log.Warn("pyramid duplicate hashes removed", "count", rep.Duplicates)
	}
	e.log.Info("pyramid structured",
		"facts", len(facts),
		"orphans", len(rep.Orphans),
		"duplicates", rep.Duplicates,
		"unknown", rep.Unknown,
	)
	return rep, nil
}

func parseTree(raw string) (*Node, []string, error) {
	res, err := jsonrepair.Recover(raw)
	if err != nil {
		return nil, nil, err
	}
	v := res.Value
	if m, ok := v.(map[string]any); ok {
		if inner, ok := m["root"].(map[string]any); ok {
			v = inner
		}
	}
	if _, ok := v.(map[string]any); !ok {
		return nil, res.FixesApplied, fmt.Errorf("structure response is %T, want object", v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, res.FixesApplied, err
	}
	var root Node
	if err := json.Unmarshal(b, &root); err != nil {
		return nil, res.FixesApplied, fmt.Errorf("decode structure response: %w", err)
	}
	return &root, res.FixesApplied, nil
}

// Verify enforces that each input hash appears in exactly one leaf. Later
// copies of a hash and hashes not in facts are removed and counted; input
// hashes never placed are reported as orphans. Hashes listed on internal
// nodes are discarded, and leaves left empty are pruned.
func Verify(root *Node, facts []Fact, levels []config.Level) *Report {
	input := make(map[string]bool, len(facts))
	for _, f := range facts {
		input[f.Hash] = true
	}
	rep := &Report{Root: root}
	placed := make(map[string]bool, len(facts))

	var visit func(n *Node, depth int) bool
	visit = func(n *Node, depth int) bool {
		n.Text = strings.TrimSpace(n.Text)
		if n.Slug == "" {
			n.Slug = textnorm.Slugify(n.Text)
		}
		if !n.IsLeaf() {
			n.DetailHashes = nil
			kept := n.Children[:0]
			for _, c := range n.Children {
				if c != nil && visit(c, depth+1) {
					kept = append(kept, c)
				}
			}
			n.Children = kept
			if depth < len(levels) && levels[depth].MaxChildren > 0 && len(kept) > levels[depth].MaxChildren {
				rep.Warnings = append(rep.Warnings, fmt.Sprintf(
					"node %q has %d children, level %q allows %d", n.Text, len(kept), levels[depth].Label, levels[depth].MaxChildren))
			}
			return len(kept) > 0 || depth == 0
		}
		var hashes []string
		for _, h := range n.DetailHashes {
			h = strings.TrimSpace(h)
			switch {
			case !input[h]:
				rep.Unknown++
			case placed[h]:
				rep.Duplicates++
			default:
				placed[h] = true
				hashes = append(hashes, h)
			}
		}
		n.DetailHashes = hashes
		return len(hashes) > 0 || depth == 0
	}
	visit(root, 0)

	for _, f := range facts {
		if !placed[f.Hash] {
			rep.Orphans = append(rep.Orphans, f.Hash)
			placed[f.Hash] = true
		}
	}
	if n := Depth(root); n > len(levels) {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("hierarchy depth %d exceeds %d configured levels", n, len(levels)))
	}
	return rep
}

// Depth is the number of node levels in the tree rooted at n.
func Depth(n *Node) int {
	if n == nil {
		return 0
	}
	d := 0
	for _, c := range n.Children {
		d = max(d, Depth(c))
	}
	return d + 1
}

func systemPrompt(levels []config.Level) string {
	var sb strings.Builder
	sb.WriteString("Organize the numbered teaching assertions into a topic hierarchy. ")
	sb.WriteString("Every assertion hash must appear exactly once, in the detailHashes of one leaf node.\n\nLevels, root first:\n")
	for _, l := range levels {
		sb.WriteString(fmt.Sprintf("- depth %d %q: at most %d children", l.Depth, l.Label, l.MaxChildren))
		if l.TargetChildren > 0 {
			sb.WriteString(fmt.Sprintf(", aim for %d", l.TargetChildren))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nReturn exactly this nested shape:\n")
	sb.WriteString(shapeExample(levels))
	sb.WriteString(`

Rules:
- "text" is a one-sentence summary of everything beneath the node.
- "slug" is a short lowercase hyphenated label.
- Only leaves (the deepest level) carry "detailHashes"; other nodes carry "children".
- Copy hashes exactly as given. Do not invent hashes.

Respond with ONLY the JSON object, no other text.`)
	return sb.String()
}

// shapeExample renders one branch of the expected JSON for the given levels.
func shapeExample(levels []config.Level) string {
	var build func(i int) string
	build = func(i int) string {
		label := levels[i].Label
		if i == len(levels)-1 {
			return fmt.Sprintf(`{"text": "<%s summary>", "slug": "<%s-slug>", "detailHashes": ["<hash>", "..."]}`, label, label)
		}
		return fmt.Sprintf(`{"text": "<%s summary>", "slug": "<%s-slug>", "children": [%s, ...]}`, label, label, build(i+1))
	}
	return build(0)
}

func userPrompt(facts []Fact) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d assertions (hash: text):\n", len(facts)))
	for _, f := range facts {
		sb.WriteString(f.Hash)
		sb.WriteString(": ")
		sb.WriteString(f.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}
