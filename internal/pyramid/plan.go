package pyramid

import (
	"sort"
	"strconv"
)

// NodeOp creates one engine-owned hierarchy node. Key identifies the node
// within the plan; ParentKey is empty for the root.
type NodeOp struct {
	Key       string
	ParentKey string
	Depth     int
	Order     int
	Text      string
	Slug      string
}

// LinkOp re-parents an existing assertion record under a planned node.
type LinkOp struct {
	AssertionID string
	Hash        string
	ParentKey   string
	Depth       int
	Order       int
}

// Plan lists the operations that materialize a hierarchy for one source.
// It computes operations only; store.ApplyPyramid executes them.
type Plan struct {
	SourceID string
	Nodes    []NodeOp
	Links    []LinkOp
	// Orphans are placed hashes with no existing assertion record, then
	// existing hashes the tree left unplaced, sorted.
	Orphans []string
}

// PlanStats summarizes a plan.
type PlanStats struct {
	NodesCreated     int `json:"nodesCreated"`
	AssertionsLinked int `json:"assertionsLinked"`
	OrphanCount      int `json:"orphanCount"`
}

func (p Plan) Stats() PlanStats {
	return PlanStats{
		NodesCreated:     len(p.Nodes),
		AssertionsLinked: len(p.Links),
		OrphanCount:      len(p.Orphans),
	}
}

// NewPlan walks tree depth-first. Internal nodes and leaves with hashes
// become NodeOps; each hash found in existing (hash to assertion id) becomes
// a LinkOp one level below its leaf. Existing hashes that get no LinkOp are
// orphans.
func NewPlan(sourceID string, tree *Node, existing map[string]string) Plan {
	p := Plan{SourceID: sourceID}
	if tree != nil {
		p.walk(tree, existing)
	}

	linked := make(map[string]bool, len(p.Links))
	for _, l := range p.Links {
		linked[l.Hash] = true
	}
	var unplaced []string
	for h := range existing {
		if !linked[h] {
			unplaced = append(unplaced, h)
		}
	}
	sort.Strings(unplaced)
	p.Orphans = append(p.Orphans, unplaced...)
	return p
}

func (p *Plan) walk(tree *Node, existing map[string]string) {
	var walk func(n *Node, key, parent string, depth, order int)
	walk = func(n *Node, key, parent string, depth, order int) {
		if depth > 0 && n.IsLeaf() && len(n.DetailHashes) == 0 {
			return
		}
		p.Nodes = append(p.Nodes, NodeOp{
			Key:       key,
			ParentKey: parent,
			Depth:     depth,
			Order:     order,
			Text:      n.Text,
			Slug:      n.Slug,
		})
		for i, h := range n.DetailHashes {
			id, ok := existing[h]
			if !ok {
				p.Orphans = append(p.Orphans, h)
				continue
			}
			p.Links = append(p.Links, LinkOp{
				AssertionID: id,
				Hash:        h,
				ParentKey:   key,
				Depth:       depth + 1,
				Order:       i,
			})
		}
		for i, c := range n.Children {
			walk(c, key+"."+strconv.Itoa(i), key, depth+1, i)
		}
	}
	walk(tree, "0", "", 0, 0)
}
