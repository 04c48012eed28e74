// Package document defines the persisted and transported form of an
// argumentation graph.
//
// A Document is what the serializer produces from a GAF and what views are
// rebuilt from. Its JSON shape is fixed: clients and previously written
// explanations depend on every field name.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// NodeType is the node_type field of a node record.
type NodeType string

const (
	NodeInput      NodeType = "input"
	NodeRegular    NodeType = "regular"
	NodeConclusion NodeType = "conclusion"
)

// ContentType is the content_type field of a node record.
type ContentType string

const (
	ContentString    ContentType = "string"
	ContentImage     ContentType = "image"
	ContentImagePair ContentType = "image_pair"
)

// ContributionType characterises an edge in a document. Framework-specific
// relation values are carried as their string form.
type ContributionType string

const (
	ContributionSupport  ContributionType = "support"
	ContributionAttack   ContributionType = "attack"
	ContributionNeutral  ContributionType = "neutral"
	ContributionIndirect ContributionType = "indirect"
)

// Child is the record of one outgoing edge.
type Child struct {
	ContributionType ContributionType `json:"contribution_type"`
}

// PayloadRef points to a materialized payload file, relative to the resource root.
type PayloadRef struct {
	Payload string `json:"payload"`
}

// PairRef references the two images of an image-pair payload.
type PairRef struct {
	Filter  PayloadRef `json:"filter"`
	Feature PayloadRef `json:"feature"`
}

// Payload is either an inline string (text, or a path for a single image) or
// an image pair reference.
type Payload struct {
	Text string
	Pair *PairRef
}

// TextPayload returns an inline string payload.
func TextPayload(s string) *Payload {
	return &Payload{Text: s}
}

// PairPayload returns an image pair payload.
func PairPayload(filter, feature string) *Payload {
	return &Payload{Pair: &PairRef{
		Filter:  PayloadRef{Payload: filter},
		Feature: PayloadRef{Payload: feature},
	}}
}

// MarshalJSON implements json.Marshaler.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.Pair != nil {
		return json.Marshal(p.Pair)
	}
	return json.Marshal(p.Text)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Payload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var pair PairRef
		if err := json.Unmarshal(data, &pair); err != nil {
			return fmt.Errorf("decoding image pair payload: %w", err)
		}
		*p = Payload{Pair: &pair}
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	*p = Payload{Text: text}
	return nil
}

// Node is the record of one node.
type Node struct {
	NodeType    NodeType         `json:"node_type"`
	ContentType ContentType      `json:"content_type,omitempty"`
	Payload     *Payload         `json:"payload,omitempty"`
	Strength    *float64         `json:"strength,omitempty"`
	Certainty   *float64         `json:"certainty,omitempty"`
	Children    map[string]Child `json:"children"`
}

// StrengthOrZero returns the node strength, treating a missing strength as 0.
func (n *Node) StrengthOrZero() float64 {
	if n == nil || n.Strength == nil {
		return 0
	}
	return *n.Strength
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	if n.Payload != nil {
		p := *n.Payload
		if n.Payload.Pair != nil {
			pair := *n.Payload.Pair
			p.Pair = &pair
		}
		c.Payload = &p
	}
	if n.Strength != nil {
		s := *n.Strength
		c.Strength = &s
	}
	if n.Certainty != nil {
		v := *n.Certainty
		c.Certainty = &v
	}
	c.Children = make(map[string]Child, len(n.Children))
	for k, v := range n.Children {
		c.Children[k] = v
	}
	return &c
}

// ChildIDs returns the ids of the node's children in sorted order.
func (n *Node) ChildIDs() []string {
	ids := make([]string, 0, len(n.Children))
	for id := range n.Children {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Document is a serialized argumentation graph.
//
// TotalNodes is only set by pruned views: it counts the argument nodes of
// the unpruned graph.
type Document struct {
	Name       string           `json:"name"`
	Input      []string         `json:"input"`
	Conclusion []string         `json:"conclusion"`
	Nodes      map[string]*Node `json:"nodes"`
	TotalNodes *int             `json:"total_nodes,omitempty"`
}

// New creates an empty document.
func New(name string) *Document {
	return &Document{
		Name:       name,
		Input:      []string{},
		Conclusion: []string{},
		Nodes:      make(map[string]*Node),
	}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := &Document{
		Name:       d.Name,
		Input:      append([]string{}, d.Input...),
		Conclusion: append([]string{}, d.Conclusion...),
		Nodes:      make(map[string]*Node, len(d.Nodes)),
	}
	for id, n := range d.Nodes {
		c.Nodes[id] = n.Clone()
	}
	if d.TotalNodes != nil {
		total := *d.TotalNodes
		c.TotalNodes = &total
	}
	return c
}

// NodeIDs returns all node ids in sorted order.
func (d *Document) NodeIDs() []string {
	ids := make([]string, 0, len(d.Nodes))
	for id := range d.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks that every id referenced by input, conclusion and children
// lists exists in the node table.
func (d *Document) Validate() error {
	if d.Nodes == nil {
		return fmt.Errorf("document %q has no nodes table", d.Name)
	}
	for _, id := range d.Input {
		if _, ok := d.Nodes[id]; !ok {
			return fmt.Errorf("input node %q is not in the node table", id)
		}
	}
	for _, id := range d.Conclusion {
		if _, ok := d.Nodes[id]; !ok {
			return fmt.Errorf("conclusion node %q is not in the node table", id)
		}
	}
	for id, n := range d.Nodes {
		if n == nil {
			return fmt.Errorf("node %q has no record", id)
		}
		for child := range n.Children {
			if _, ok := d.Nodes[child]; !ok {
				return fmt.Errorf("node %q has unknown child %q", id, child)
			}
		}
	}
	return nil
}

// Parse decodes a document and fills in missing children maps.
func Parse(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	if d.Input == nil {
		d.Input = []string{}
	}
	if d.Conclusion == nil {
		d.Conclusion = []string{}
	}
	for _, n := range d.Nodes {
		if n != nil && n.Children == nil {
			n.Children = map[string]Child{}
		}
	}
	return &d, nil
}

// ReadFile reads and parses a document file.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return Parse(data)
}

// Marshal encodes the document with the indentation used for files on disk.
func Marshal(d *Document) ([]byte, error) {
	return json.MarshalIndent(d, "", "    ")
}

// WriteFile encodes the document and writes it to path.
func WriteFile(path string, d *Document) error {
	data, err := Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing document: %w", err)
	}
	return nil
}
