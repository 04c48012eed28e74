// Package influence provides the raw influence graph extracted from a model.
//
// An influence graph is the untyped stage that precedes argumentation:
// nodes carry open attribute maps (gradients, layer names, filter indexes)
// that only the extractor's mapper functions interpret, and directed edges
// record which node influences which. Cycles are allowed.
package influence

import (
	"sync"
)

// Attributes is a caller-defined key/value bag attached to a node or edge.
type Attributes map[string]any

// Node is a node of the influence graph together with its attributes.
type Node struct {
	ID    string
	Attrs Attributes
}

// Influence is a directed edge between two nodes.
type Influence struct {
	Source string
	Target string
	Attrs  Attributes
}

// Graph is a directed graph without parallel edges.
//
// Listings preserve insertion order. Adding an influence between unknown
// nodes adds those nodes with empty attributes; adding an influence for an
// existing ordered pair replaces its attributes in place.
type Graph struct {
	mu sync.RWMutex

	nodes map[string]Attributes
	order []string

	// outgoing keeps, per source, the targets in insertion order.
	outgoing map[string][]string
	edges    map[edgeKey]Attributes
}

type edgeKey struct {
	source, target string
}

// NewGraph creates an empty influence graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]Attributes),
		outgoing: make(map[string][]string),
		edges:    make(map[edgeKey]Attributes),
	}
}

// AddNode adds a node, replacing the attributes of an existing node with the same ID.
func (g *Graph) AddNode(id string, attrs Attributes) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNode(id, attrs)
}

func (g *Graph) addNode(id string, attrs Attributes) {
	if attrs == nil {
		attrs = Attributes{}
	}
	if _, ok := g.nodes[id]; !ok {
		g.order = append(g.order, id)
	}
	g.nodes[id] = attrs
}

// RemoveNode removes a node and every influence touching it.
// Returns false if the node does not exist.
func (g *Graph) RemoveNode(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; !ok {
		return false
	}
	delete(g.nodes, id)
	g.order = removeString(g.order, id)

	for _, target := range g.outgoing[id] {
		delete(g.edges, edgeKey{id, target})
	}
	delete(g.outgoing, id)

	for source, targets := range g.outgoing {
		if _, ok := g.edges[edgeKey{source, id}]; ok {
			delete(g.edges, edgeKey{source, id})
			g.outgoing[source] = removeString(targets, id)
		}
	}
	return true
}

// AddInfluence adds the directed influence u -> v.
func (g *Graph) AddInfluence(u, v string, attrs Attributes) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[u]; !ok {
		g.addNode(u, nil)
	}
	if _, ok := g.nodes[v]; !ok {
		g.addNode(v, nil)
	}
	if attrs == nil {
		attrs = Attributes{}
	}
	key := edgeKey{u, v}
	if _, ok := g.edges[key]; !ok {
		g.outgoing[u] = append(g.outgoing[u], v)
	}
	g.edges[key] = attrs
}

// RemoveInfluence removes the influence u -> v.
// Returns false if no such influence exists.
func (g *Graph) RemoveInfluence(u, v string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := edgeKey{u, v}
	if _, ok := g.edges[key]; !ok {
		return false
	}
	delete(g.edges, key)
	g.outgoing[u] = removeString(g.outgoing[u], v)
	return true
}

// HasNode reports whether the node exists.
func (g *Graph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		result = append(result, Node{ID: id, Attrs: g.nodes[id]})
	}
	return result
}

// Influences returns all influences, grouped by source in node insertion order.
func (g *Graph) Influences() []Influence {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]Influence, 0, len(g.edges))
	for _, id := range g.order {
		result = append(result, g.influencesFrom(id)...)
	}
	return result
}

// InfluencesFrom returns the influences leaving the given node.
func (g *Graph) InfluencesFrom(id string) []Influence {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.influencesFrom(id)
}

func (g *Graph) influencesFrom(id string) []Influence {
	targets := g.outgoing[id]
	result := make([]Influence, 0, len(targets))
	for _, target := range targets {
		result = append(result, Influence{
			Source: id,
			Target: target,
			Attrs:  g.edges[edgeKey{id, target}],
		})
	}
	return result
}

func removeString(list []string, s string) []string {
	for i, item := range list {
		if item == s {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
