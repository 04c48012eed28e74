package view

import (
	"fmt"
	"sort"

	"github.com/Benny93/argflow-go/internal/document"
)

// Direction is the direction of a conversational interaction.
type Direction string

const (
	// DirectionFrom asks what a node influences.
	DirectionFrom Direction = "from"
	// DirectionTo asks what influences a node.
	DirectionTo Direction = "to"
)

// ParseDirection validates a direction name.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionFrom, DirectionTo:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// Interaction is an interaction a client may perform next.
type Interaction struct {
	Node      string    `json:"node"`
	Direction Direction `json:"direction"`
}

// ConversationState is the serialized form of a ConversationView.
// InteractionResult is null until the first interaction.
type ConversationState struct {
	Explanation       *document.Document `json:"explanation"`
	Interactions      []Interaction      `json:"interactions"`
	InteractionResult []Contribution     `json:"interaction_result"`
}

// ConversationView navigates an argumentation graph one question at a time.
// The focus is a primary node and the secondary nodes returned by the last
// interaction.
//
// A ConversationView belongs to one session and is not safe for concurrent
// use.
type ConversationView struct {
	graph     *ArgumentationGraph
	primary   string
	secondary []string
	result    []Contribution
}

// NewConversationView creates a conversation focused on primary, or on the
// first conclusion of g when primary is empty.
func NewConversationView(g *ArgumentationGraph, primary string, secondary []string) (*ConversationView, error) {
	v := &ConversationView{graph: g}
	if err := v.SetState(primary, secondary); err != nil {
		return nil, err
	}
	return v, nil
}

// SetState replaces the focus. An empty primary selects the first
// conclusion. Every id must be a node of the graph.
func (v *ConversationView) SetState(primary string, secondary []string) error {
	if primary == "" {
		conclusions := v.graph.Conclusions()
		if len(conclusions) == 0 {
			return ErrNoPrimaryAvailable
		}
		primary = conclusions[0]
	}
	if !v.graph.HasNode(primary) {
		return fmt.Errorf("primary %q: %w", primary, ErrInvalidNode)
	}
	for _, id := range secondary {
		if !v.graph.HasNode(id) {
			return fmt.Errorf("secondary %q: %w", id, ErrInvalidNode)
		}
	}

	v.primary = primary
	v.secondary = append([]string{}, secondary...)
	return nil
}

// Primary returns the primary node id.
func (v *ConversationView) Primary() string { return v.primary }

// Secondary returns the secondary node ids.
func (v *ConversationView) Secondary() []string { return append([]string{}, v.secondary...) }

// LastResult returns the result of the last interaction, or nil.
func (v *ConversationView) LastResult() []Contribution { return v.result }

// PerformInteraction asks what target influences (DirectionFrom) or what
// influences it (DirectionTo), optionally filtered by contribution type.
//
// Results are ordered by descending endpoint strength, ties by id, and
// truncated to limit when limit is positive. The focus moves to target with
// the result endpoints as secondaries.
func (v *ConversationView) PerformInteraction(target string, dir Direction, filter document.ContributionType, limit int) ([]Contribution, error) {
	if !v.graph.HasNode(target) {
		return nil, fmt.Errorf("interaction on %q: %w", target, ErrUnknownNode)
	}

	var (
		contributions []Contribution
		err           error
	)
	switch dir {
	case DirectionFrom:
		contributions, err = v.graph.QueryTargets(target, filter)
	case DirectionTo:
		contributions, err = v.graph.QueryFactors(target, filter)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(contributions, func(i, j int) bool {
		si := v.graph.strength(contributions[i].Endpoint)
		sj := v.graph.strength(contributions[j].Endpoint)
		if si != sj {
			return si > sj
		}
		return contributions[i].Endpoint < contributions[j].Endpoint
	})
	if limit > 0 && len(contributions) > limit {
		contributions = contributions[:limit]
	}

	result := make([]Contribution, len(contributions))
	copy(result, contributions)

	v.primary = target
	v.secondary = make([]string, len(result))
	for i, c := range result {
		v.secondary[i] = c.Endpoint
	}
	v.result = result
	return result, nil
}

// PossibleInteractions lists the interactions available on the focus:
// "from" for every node that is not a conclusion and "to" for every node
// that is not an input.
func (v *ConversationView) PossibleInteractions() []Interaction {
	interactions := []Interaction{}
	for _, id := range append([]string{v.primary}, v.secondary...) {
		n, ok := v.graph.Node(id)
		if !ok {
			continue
		}
		if n.NodeType != document.NodeConclusion {
			interactions = append(interactions, Interaction{Node: id, Direction: DirectionFrom})
		}
		if n.NodeType != document.NodeInput {
			interactions = append(interactions, Interaction{Node: id, Direction: DirectionTo})
		}
	}
	return interactions
}

// Serialize returns the whole explanation with the available interactions
// and the last interaction result.
func (v *ConversationView) Serialize() *ConversationState {
	return &ConversationState{
		Explanation:       v.graph.Serialize(),
		Interactions:      v.PossibleInteractions(),
		InteractionResult: v.result,
	}
}
