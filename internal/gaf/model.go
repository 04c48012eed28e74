// Package gaf provides the typed argumentation graph (GAF).
//
// A GAF holds Input, Argument and Conclusion nodes connected by relations
// drawn from a single argumentation framework. It is built incrementally
// while an explanation is extracted, serialized into a document and then
// discarded.
package gaf

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/Benny93/argflow-go/internal/document"
)

// NodeType is the type of a GAF node.
type NodeType int

const (
	NodeInput NodeType = iota
	NodeArgument
	NodeConclusion
)

// String implements fmt.Stringer.
func (t NodeType) String() string {
	switch t {
	case NodeInput:
		return "input"
	case NodeArgument:
		return "argument"
	case NodeConclusion:
		return "conclusion"
	default:
		return "unknown"
	}
}

// Framework identifies an argumentation framework, the closed set of relation
// values a GAF's edges may take.
type Framework int

const (
	frameworkUnset Framework = iota
	FrameworkBipolar
	FrameworkTripolar
	FrameworkSupport
	FrameworkAttack
)

// String implements fmt.Stringer.
func (f Framework) String() string {
	switch f {
	case FrameworkBipolar:
		return "bipolar"
	case FrameworkTripolar:
		return "tripolar"
	case FrameworkSupport:
		return "support"
	case FrameworkAttack:
		return "attack"
	default:
		return "unset"
	}
}

// Relation is a relation value tagged with the framework it belongs to.
// The zero Relation is invalid; use the predeclared values.
type Relation struct {
	framework Framework
	value     document.ContributionType
}

// Relation values, grouped by framework.
var (
	BipolarSupport = Relation{FrameworkBipolar, document.ContributionSupport}
	BipolarAttack  = Relation{FrameworkBipolar, document.ContributionAttack}

	TripolarSupport = Relation{FrameworkTripolar, document.ContributionSupport}
	TripolarAttack  = Relation{FrameworkTripolar, document.ContributionAttack}
	TripolarNeutral = Relation{FrameworkTripolar, document.ContributionNeutral}

	SupportOnly = Relation{FrameworkSupport, document.ContributionSupport}

	AttackOnly = Relation{FrameworkAttack, document.ContributionAttack}
)

// Framework returns the framework the relation belongs to.
func (r Relation) Framework() Framework { return r.framework }

// Contribution returns the document contribution type of the relation.
func (r Relation) Contribution() document.ContributionType { return r.value }

// String implements fmt.Stringer.
func (r Relation) String() string { return string(r.value) }

// Valid reports whether r is one of the predeclared relation values.
func (r Relation) Valid() bool {
	return r.framework != frameworkUnset && r.value != ""
}

// ParseRelation returns the relation named value within framework f.
func ParseRelation(f Framework, value string) (Relation, error) {
	candidates := map[Framework][]Relation{
		FrameworkBipolar:  {BipolarSupport, BipolarAttack},
		FrameworkTripolar: {TripolarSupport, TripolarAttack, TripolarNeutral},
		FrameworkSupport:  {SupportOnly},
		FrameworkAttack:   {AttackOnly},
	}
	for _, r := range candidates[f] {
		if string(r.value) == value {
			return r, nil
		}
	}
	return Relation{}, fmt.Errorf("%w: %q is not a %s relation", ErrInvalidRelation, value, f)
}

// PayloadKind is the content variant of a payload.
type PayloadKind string

const (
	PayloadText      PayloadKind = PayloadKind(document.ContentString)
	PayloadImage     PayloadKind = PayloadKind(document.ContentImage)
	PayloadImagePair PayloadKind = PayloadKind(document.ContentImagePair)
)

// Payload is the content attached to a node: a text, an encoded image, or a
// pair of encoded images. The variant is fixed at construction.
type Payload struct {
	kind  PayloadKind
	text  string
	first []byte
	other []byte
}

// NewPayload builds a payload of the given kind, checking that content
// matches it: a string for text, a []byte for an image and a [2][]byte for
// an image pair.
func NewPayload(kind PayloadKind, content any) (*Payload, error) {
	switch kind {
	case PayloadText:
		s, ok := content.(string)
		if !ok {
			return nil, fmt.Errorf("%w: text payload needs a string, got %T", ErrInvalidPayload, content)
		}
		return &Payload{kind: kind, text: s}, nil
	case PayloadImage:
		b, ok := content.([]byte)
		if !ok || len(b) == 0 {
			return nil, fmt.Errorf("%w: image payload needs encoded image bytes, got %T", ErrInvalidPayload, content)
		}
		return &Payload{kind: kind, first: b}, nil
	case PayloadImagePair:
		pair, ok := content.([2][]byte)
		if !ok || len(pair[0]) == 0 || len(pair[1]) == 0 {
			return nil, fmt.Errorf("%w: image pair payload needs two encoded images, got %T", ErrInvalidPayload, content)
		}
		return &Payload{kind: kind, first: pair[0], other: pair[1]}, nil
	default:
		return nil, fmt.Errorf("%w: unknown payload kind %q", ErrInvalidPayload, kind)
	}
}

// TextPayload returns a text payload.
func TextPayload(s string) *Payload {
	return &Payload{kind: PayloadText, text: s}
}

// ImagePayload returns an image payload from JPEG-encoded bytes.
func ImagePayload(jpg []byte) (*Payload, error) {
	return NewPayload(PayloadImage, jpg)
}

// ImagePairPayload returns an image pair payload from two JPEG-encoded images.
func ImagePairPayload(filter, feature []byte) (*Payload, error) {
	return NewPayload(PayloadImagePair, [2][]byte{filter, feature})
}

// Kind returns the payload variant.
func (p *Payload) Kind() PayloadKind { return p.kind }

// Text returns the content of a text payload.
func (p *Payload) Text() string { return p.text }

// Image returns the content of an image payload, or the first image of a pair.
func (p *Payload) Image() []byte { return p.first }

// Pair returns both images of an image pair payload.
func (p *Payload) Pair() ([]byte, []byte) { return p.first, p.other }

// Equal reports whether two payloads have the same variant and content.
func (p *Payload) Equal(other *Payload) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.kind == other.kind &&
		p.text == other.text &&
		bytes.Equal(p.first, other.first) &&
		bytes.Equal(p.other, other.other)
}

// validate checks a payload that may have been built as a zero value.
func (p *Payload) validate() error {
	if p == nil {
		return nil
	}
	switch p.kind {
	case PayloadText:
		return nil
	case PayloadImage:
		if len(p.first) == 0 {
			return fmt.Errorf("%w: empty image payload", ErrInvalidPayload)
		}
		return nil
	case PayloadImagePair:
		if len(p.first) == 0 || len(p.other) == 0 {
			return fmt.Errorf("%w: incomplete image pair payload", ErrInvalidPayload)
		}
		return nil
	default:
		return fmt.Errorf("%w: payload has no content type", ErrInvalidPayload)
	}
}

// Node is a node of the GAF.
//
// Strength is only meaningful for arguments; Confidence and PredictedClass
// only for conclusions.
type Node struct {
	ID             string
	Type           NodeType
	Strength       *float64
	Confidence     float64
	PredictedClass string
	Payload        *Payload
}

// Edge is a relation between two nodes.
type Edge struct {
	Source   string
	Target   string
	Relation Relation
}

// IntID renders an integer node id.
func IntID(i int) string {
	return strconv.Itoa(i)
}

// Strength returns a pointer to s, for use with AddArgument.
func Strength(s float64) *float64 {
	return &s
}
