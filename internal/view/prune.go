package view

import (
	"log/slog"
	"sort"

	"github.com/Benny93/argflow-go/internal/document"
	"github.com/Benny93/argflow-go/internal/logging"
)

// PruningView shows a bounded subset of an argumentation graph: every input
// and conclusion plus the strongest arguments found walking backwards from
// the conclusions.
//
// A fresh view shows the whole graph. A PruningView belongs to one session
// and is not safe for concurrent use.
type PruningView struct {
	graph *ArgumentationGraph
	nodes map[string]*document.Node

	limit      int
	layerLimit int
	applied    bool

	logger *slog.Logger
}

// NewPruningView creates an unpruned view of g.
func NewPruningView(g *ArgumentationGraph) *PruningView {
	g.mu.RLock()
	nodes := make(map[string]*document.Node, len(g.doc.Nodes))
	for id, n := range g.doc.Nodes {
		nodes[id] = n.Clone()
	}
	g.mu.RUnlock()

	return &PruningView{
		graph:  g,
		nodes:  nodes,
		logger: logging.New("prune"),
	}
}

// Graph returns the graph the view is built on.
func (v *PruningView) Graph() *ArgumentationGraph { return v.graph }

// Limits returns the limits of the last computed prune. applied is false
// while the view is unpruned.
func (v *PruningView) Limits() (limit, layerLimit int, applied bool) {
	return v.limit, v.layerLimit, v.applied
}

// ViewNodes returns the ids of the visible nodes in sorted order.
func (v *PruningView) ViewNodes() []string {
	ids := make([]string, 0, len(v.nodes))
	for id := range v.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Contains reports whether id is visible.
func (v *PruningView) Contains(id string) bool {
	_, ok := v.nodes[id]
	return ok
}

// Prune keeps at most limit arguments, at most layerLimit of them per
// backward layer, and reports whether the view was recomputed. Calling it
// again with the limits of the last computation is a no-op.
//
// Layers are built breadth-first from the conclusions. Each layer holds the
// not yet encountered predecessors of the previous layer's kept nodes,
// ranked by descending strength with ties broken by id. Inputs and
// conclusions are always visible. An input reached as a predecessor is
// ranked like any other node and uses up the limit when kept. The walk
// stops once the kept layer holds only inputs.
func (v *PruningView) Prune(limit, layerLimit int) bool {
	if v.applied && v.limit == limit && v.layerLimit == layerLimit {
		return false
	}
	v.limit, v.layerLimit, v.applied = limit, layerLimit, true

	g := v.graph
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make(map[string]*document.Node)
	inputs := make(map[string]bool, len(g.doc.Input))
	for _, id := range g.doc.Input {
		nodes[id] = g.doc.Nodes[id].Clone()
		inputs[id] = true
	}
	encountered := make(map[string]bool)
	for _, id := range g.doc.Conclusion {
		nodes[id] = g.doc.Nodes[id].Clone()
		encountered[id] = true
	}

	frontier := dedupe(g.doc.Conclusion)
	remaining := limit
	layers := 0
	for remaining > 0 && !onlyInputs(frontier, inputs) {
		var candidates []string
		for _, id := range frontier {
			for _, pred := range g.predecessors[id] {
				if encountered[pred] {
					continue
				}
				encountered[pred] = true
				candidates = append(candidates, pred)
			}
		}

		sort.Slice(candidates, func(i, j int) bool {
			si := g.doc.Nodes[candidates[i]].StrengthOrZero()
			sj := g.doc.Nodes[candidates[j]].StrengthOrZero()
			if si != sj {
				return si > sj
			}
			return candidates[i] < candidates[j]
		})

		keep := min(remaining, layerLimit, len(candidates))
		if keep < 0 {
			keep = 0
		}
		frontier = candidates[:keep]
		for _, id := range frontier {
			nodes[id] = g.doc.Nodes[id].Clone()
		}
		remaining -= keep
		layers++
	}

	v.nodes = nodes
	v.relink()

	v.logger.Debug("pruned graph",
		slog.String("name", g.doc.Name),
		slog.Int("limit", limit),
		slog.Int("layer_limit", layerLimit),
		slog.Int("layers", layers),
		slog.Int("visible", len(nodes)),
		slog.Int("total", len(g.doc.Nodes)))
	return true
}

// relink restricts every visible node's children to visible nodes and adds
// indirect links to visible nodes reachable only through pruned ones.
// Callers hold the graph read lock.
func (v *PruningView) relink() {
	all := v.graph.doc.Nodes

	for id, n := range v.nodes {
		children := make(map[string]document.Child)
		for child, c := range all[id].Children {
			if _, ok := v.nodes[child]; ok {
				children[child] = c
			}
		}
		n.Children = children
	}

	for root := range v.nodes {
		direct := all[root].Children

		var stack []string
		for child := range direct {
			if _, ok := v.nodes[child]; !ok {
				stack = append(stack, child)
			}
		}

		visited := map[string]bool{root: true}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[cur] {
				continue
			}
			visited[cur] = true

			for child := range all[cur].Children {
				if _, ok := v.nodes[child]; !ok {
					if !visited[child] {
						stack = append(stack, child)
					}
					continue
				}
				if child == root {
					continue
				}
				if _, ok := direct[child]; ok {
					continue
				}
				v.nodes[root].Children[child] = document.Child{ContributionType: document.ContributionIndirect}
			}
		}
	}
}

// Serialize returns the document of the visible nodes. TotalNodes counts
// the arguments of the whole graph.
func (v *PruningView) Serialize() *document.Document {
	g := v.graph
	g.mu.RLock()
	defer g.mu.RUnlock()

	doc := document.New(g.doc.Name)
	doc.Input = append(doc.Input, g.doc.Input...)
	doc.Conclusion = append(doc.Conclusion, g.doc.Conclusion...)
	for id, n := range v.nodes {
		doc.Nodes[id] = n.Clone()
	}
	total := len(g.doc.Nodes) - len(g.doc.Input) - len(g.doc.Conclusion)
	doc.TotalNodes = &total
	return doc
}

// onlyInputs reports whether every id is an input. It holds for no ids.
func onlyInputs(ids []string, inputs map[string]bool) bool {
	for _, id := range ids {
		if !inputs[id] {
			return false
		}
	}
	return true
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
