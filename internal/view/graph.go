// Package view provides read models over serialized argumentation graphs.
//
// An ArgumentationGraph is rebuilt from a document and indexes every node's
// predecessors so that backward queries stay O(result). Views layered on top
// of it (PruningView, ConversationView) hold per-session state and never
// mutate the underlying graph.
package view

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Benny93/argflow-go/internal/document"
)

// Contribution is one edge returned by a query: the node at the other end
// and the edge record.
type Contribution struct {
	Endpoint     string         `json:"endpoint"`
	Contribution document.Child `json:"contribution"`
}

// ArgumentationGraph is the read model of a document.
type ArgumentationGraph struct {
	mu           sync.RWMutex
	doc          *document.Document
	predecessors map[string][]string
}

// NewArgumentationGraph builds the read model of doc. The document is copied
// and must reference only ids present in its node table.
func NewArgumentationGraph(doc *document.Document) (*ArgumentationGraph, error) {
	if doc == nil {
		return nil, fmt.Errorf("building argumentation graph: nil document")
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("building argumentation graph: %w", err)
	}
	g := &ArgumentationGraph{doc: doc.Clone()}
	g.reindex()
	return g, nil
}

// reindex rebuilds the predecessor index from the node table.
func (g *ArgumentationGraph) reindex() {
	preds := make(map[string][]string, len(g.doc.Nodes))
	for id := range g.doc.Nodes {
		preds[id] = nil
	}
	for id, n := range g.doc.Nodes {
		for child := range n.Children {
			preds[child] = append(preds[child], id)
		}
	}
	for _, list := range preds {
		sort.Strings(list)
	}
	g.predecessors = preds
}

// Update applies fn to the underlying document, validates the result and
// rebuilds the predecessor index. On error the graph is left unchanged.
func (g *ArgumentationGraph) Update(fn func(doc *document.Document) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := g.doc.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("updating argumentation graph: %w", err)
	}
	g.doc = next
	g.reindex()
	return nil
}

// Name returns the document name.
func (g *ArgumentationGraph) Name() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.doc.Name
}

// Inputs returns the input node ids in document order.
func (g *ArgumentationGraph) Inputs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string{}, g.doc.Input...)
}

// Conclusions returns the conclusion node ids in document order.
func (g *ArgumentationGraph) Conclusions() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string{}, g.doc.Conclusion...)
}

// HasNode reports whether id is in the node table.
func (g *ArgumentationGraph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.doc.Nodes[id]
	return ok
}

// Node returns a copy of the record of id.
func (g *ArgumentationGraph) Node(id string) (*document.Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.doc.Nodes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// NodeIDs returns every node id in sorted order.
func (g *ArgumentationGraph) NodeIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.doc.NodeIDs()
}

// NodeCount returns the number of nodes.
func (g *ArgumentationGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.doc.Nodes)
}

// TotalNodes returns the number of nodes that are neither inputs nor
// conclusions.
func (g *ArgumentationGraph) TotalNodes() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.doc.Nodes) - len(g.doc.Input) - len(g.doc.Conclusion)
}

// Predecessors returns the sorted ids of the nodes that have id as a child.
func (g *ArgumentationGraph) Predecessors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string{}, g.predecessors[id]...)
}

// strength returns the strength of id, treating a missing strength as 0.
func (g *ArgumentationGraph) strength(id string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n, ok := g.doc.Nodes[id]; ok {
		return n.StrengthOrZero()
	}
	return 0
}

// QueryFactors returns the contributions of every predecessor of target,
// ordered by endpoint id. An empty filter matches every contribution type.
func (g *ArgumentationGraph) QueryFactors(target string, filter document.ContributionType) ([]Contribution, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.doc.Nodes[target]; !ok {
		return nil, fmt.Errorf("query factors of %q: %w", target, ErrUnknownNode)
	}

	var out []Contribution
	for _, pred := range g.predecessors[target] {
		child := g.doc.Nodes[pred].Children[target]
		if filter != "" && child.ContributionType != filter {
			continue
		}
		out = append(out, Contribution{Endpoint: pred, Contribution: child})
	}
	return out, nil
}

// QueryTargets returns the contributions of source to each of its children,
// ordered by endpoint id. An empty filter matches every contribution type.
func (g *ArgumentationGraph) QueryTargets(source string, filter document.ContributionType) ([]Contribution, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.doc.Nodes[source]
	if !ok {
		return nil, fmt.Errorf("query targets of %q: %w", source, ErrUnknownNode)
	}

	var out []Contribution
	for _, child := range n.ChildIDs() {
		c := n.Children[child]
		if filter != "" && c.ContributionType != filter {
			continue
		}
		out = append(out, Contribution{Endpoint: child, Contribution: c})
	}
	return out, nil
}

// Serialize returns a copy of the underlying document.
func (g *ArgumentationGraph) Serialize() *document.Document {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.doc.Clone()
}
