package gaf

import (
	"fmt"
	"sync"
)

// GAF is a typed argumentation graph.
//
// Nodes are keyed by caller-supplied ids; adding an existing id replaces the
// node's type and attributes. Relations are keyed by their ordered pair;
// adding a relation for an existing pair replaces its value. All relations
// belong to the framework of the first relation added, until the last
// relation is removed.
//
// Relations may reference ids that have not been added yet, so that
// extraction can link nodes in any order; serialization rejects relations
// whose endpoints are still missing.
type GAF struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	order []string

	// Secondary indexes, kept in sync by add/remove helpers.
	byType   map[NodeType]map[string]struct{}
	outgoing map[string][]string
	incoming map[string]map[string]struct{}
	edges    map[edgeKey]Relation

	framework Framework
}

type edgeKey struct {
	source, target string
}

// New creates an empty GAF.
func New() *GAF {
	return &GAF{
		nodes:    make(map[string]*Node),
		byType:   make(map[NodeType]map[string]struct{}),
		outgoing: make(map[string][]string),
		incoming: make(map[string]map[string]struct{}),
		edges:    make(map[edgeKey]Relation),
	}
}

// AddInput adds an input node.
func (g *GAF) AddInput(id string, payload *Payload) error {
	return g.addNode(&Node{ID: id, Type: NodeInput, Payload: payload})
}

// AddArgument adds an argument node. strength may be nil.
func (g *GAF) AddArgument(id string, strength *float64, payload *Payload) error {
	return g.addNode(&Node{ID: id, Type: NodeArgument, Strength: strength, Payload: payload})
}

// AddConclusion adds a conclusion node.
func (g *GAF) AddConclusion(id string, confidence float64, predictedClass string, payload *Payload) error {
	return g.addNode(&Node{
		ID:             id,
		Type:           NodeConclusion,
		Confidence:     confidence,
		PredictedClass: predictedClass,
		Payload:        payload,
	})
}

func (g *GAF) addNode(node *Node) error {
	if err := node.Payload.validate(); err != nil {
		return fmt.Errorf("adding %s %q: %w", node.Type, node.ID, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.nodes[node.ID]; ok {
		delete(g.byType[old.Type], node.ID)
	} else {
		g.order = append(g.order, node.ID)
	}
	g.nodes[node.ID] = node

	if g.byType[node.Type] == nil {
		g.byType[node.Type] = make(map[string]struct{})
	}
	g.byType[node.Type][node.ID] = struct{}{}
	return nil
}

// RemoveNode removes a node and every relation touching it.
// Returns false if the node does not exist.
func (g *GAF) RemoveNode(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[id]
	if !ok {
		return false
	}
	delete(g.nodes, id)
	delete(g.byType[node.Type], id)
	g.order = removeID(g.order, id)

	g.cascadeRelationsForNode(id)
	return true
}

// AddRelation adds the relation u -> v.
//
// It fails with ErrInvalidRelation for the zero Relation and with
// ErrFrameworkMismatch if the graph already holds relations of another
// framework. A failed call leaves the graph unchanged.
func (g *GAF) AddRelation(u, v string, relation Relation) error {
	if !relation.Valid() {
		return fmt.Errorf("adding relation %q -> %q: %w", u, v, ErrInvalidRelation)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.framework == frameworkUnset {
		g.framework = relation.Framework()
	} else if relation.Framework() != g.framework {
		return fmt.Errorf("adding %s relation %q -> %q to a %s graph: %w",
			relation.Framework(), u, v, g.framework, ErrFrameworkMismatch)
	}

	key := edgeKey{u, v}
	if _, ok := g.edges[key]; !ok {
		g.outgoing[u] = append(g.outgoing[u], v)
		if g.incoming[v] == nil {
			g.incoming[v] = make(map[string]struct{})
		}
		g.incoming[v][u] = struct{}{}
	}
	g.edges[key] = relation
	return nil
}

// RemoveRelation removes the relation u -> v. Removing the last relation
// clears the graph's framework.
func (g *GAF) RemoveRelation(u, v string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := edgeKey{u, v}
	if _, ok := g.edges[key]; !ok {
		return fmt.Errorf("removing relation %q -> %q: %w", u, v, ErrUnknownRelation)
	}
	g.deleteEdge(key)
	g.resetFrameworkIfEmpty()
	return nil
}

// Framework returns the framework established by the graph's relations and
// false if the graph has none.
func (g *GAF) Framework() (Framework, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.framework, g.framework != frameworkUnset
}

// GetNode returns the node with the given id, or nil if it does not exist.
func (g *GAF) GetNode(id string) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// NodeCount returns the number of nodes.
func (g *GAF) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// RelationCount returns the number of relations.
func (g *GAF) RelationCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Inputs returns all input nodes in insertion order.
func (g *GAF) Inputs() []*Node { return g.nodesOfType(NodeInput) }

// Arguments returns all argument nodes in insertion order.
func (g *GAF) Arguments() []*Node { return g.nodesOfType(NodeArgument) }

// Conclusions returns all conclusion nodes in insertion order.
func (g *GAF) Conclusions() []*Node { return g.nodesOfType(NodeConclusion) }

func (g *GAF) nodesOfType(t NodeType) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := g.byType[t]
	result := make([]*Node, 0, len(ids))
	for _, id := range g.order {
		if _, ok := ids[id]; ok {
			result = append(result, g.nodes[id])
		}
	}
	return result
}

// RelationsFrom returns the relations leaving a node in insertion order.
func (g *GAF) RelationsFrom(id string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	targets := g.outgoing[id]
	result := make([]Edge, 0, len(targets))
	for _, target := range targets {
		result = append(result, Edge{Source: id, Target: target, Relation: g.edges[edgeKey{id, target}]})
	}
	return result
}

// cascadeRelationsForNode removes every relation where id is source or target.
// Must be called with the write lock held.
func (g *GAF) cascadeRelationsForNode(id string) {
	for _, target := range append([]string(nil), g.outgoing[id]...) {
		g.deleteEdge(edgeKey{id, target})
	}
	for source := range g.incoming[id] {
		g.deleteEdge(edgeKey{source, id})
	}
	delete(g.outgoing, id)
	delete(g.incoming, id)
	g.resetFrameworkIfEmpty()
}

// deleteEdge must be called with the write lock held.
func (g *GAF) deleteEdge(key edgeKey) {
	delete(g.edges, key)
	g.outgoing[key.source] = removeID(g.outgoing[key.source], key.target)
	if len(g.outgoing[key.source]) == 0 {
		delete(g.outgoing, key.source)
	}
	delete(g.incoming[key.target], key.source)
	if len(g.incoming[key.target]) == 0 {
		delete(g.incoming, key.target)
	}
}

func (g *GAF) resetFrameworkIfEmpty() {
	if len(g.edges) == 0 {
		g.framework = frameworkUnset
	}
}

func removeID(list []string, id string) []string {
	for i, item := range list {
		if item == id {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
