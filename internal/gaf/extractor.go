package gaf

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/Benny93/argflow-go/internal/influence"
	"github.com/Benny93/argflow-go/internal/logging"
)

// InfluenceMapper produces the influence graph of a model's decision on an
// input, together with the predicted class and its confidence.
type InfluenceMapper interface {
	MapInfluence(ctx context.Context, model, input any) (*influence.Graph, string, float64, error)
}

// StrengthMapper derives an argument strength from node attributes.
// A nil result means the argument has no strength.
type StrengthMapper interface {
	MapStrength(attrs influence.Attributes) *float64
}

// CharacterisationMapper derives the relation carried by the influences
// leaving a node from that node's attributes.
type CharacterisationMapper interface {
	MapCharacterisation(attrs influence.Attributes) Relation
}

// PayloadGenerator renders the payload of an argument node.
type PayloadGenerator interface {
	GeneratePayload(ctx context.Context, input any, attrs influence.Attributes, model any) (*Payload, error)
}

// StrengthFunc adapts a function to StrengthMapper.
type StrengthFunc func(attrs influence.Attributes) *float64

// MapStrength implements StrengthMapper.
func (f StrengthFunc) MapStrength(attrs influence.Attributes) *float64 { return f(attrs) }

// CharacterisationFunc adapts a function to CharacterisationMapper.
type CharacterisationFunc func(attrs influence.Attributes) Relation

// MapCharacterisation implements CharacterisationMapper.
func (f CharacterisationFunc) MapCharacterisation(attrs influence.Attributes) Relation {
	return f(attrs)
}

// PayloadFunc adapts a function to PayloadGenerator.
type PayloadFunc func(ctx context.Context, input any, attrs influence.Attributes, model any) (*Payload, error)

// GeneratePayload implements PayloadGenerator.
func (f PayloadFunc) GeneratePayload(ctx context.Context, input any, attrs influence.Attributes, model any) (*Payload, error) {
	return f(ctx, input, attrs, model)
}

// Extractor turns a model decision into a GAF using injected mappers.
type Extractor struct {
	Influence        InfluenceMapper
	Strength         StrengthMapper
	Characterisation CharacterisationMapper
	Payloads         PayloadGenerator

	logger *slog.Logger
}

// NewExtractor creates an extractor. payloads may be nil, in which case
// arguments carry no payload.
func NewExtractor(im InfluenceMapper, sm StrengthMapper, cm CharacterisationMapper, pg PayloadGenerator) *Extractor {
	return &Extractor{
		Influence:        im,
		Strength:         sm,
		Characterisation: cm,
		Payloads:         pg,
		logger:           logging.New("extractor"),
	}
}

// Extract builds the GAF explaining the model's decision on input.
//
// Starting nodes become inputs, intermediate nodes arguments and terminal
// nodes conclusions. A node without any influence is both starting and
// terminal; it is added as an input and then replaced by a conclusion.
func (e *Extractor) Extract(ctx context.Context, model, input any) (*GAF, error) {
	if e.Influence == nil || e.Strength == nil || e.Characterisation == nil {
		return nil, fmt.Errorf("extractor needs influence, strength and characterisation mappers")
	}

	influences, predictedClass, confidence, err := e.Influence.MapInfluence(ctx, model, input)
	if err != nil {
		return nil, fmt.Errorf("mapping influences: %w", err)
	}
	roles := influence.InferRoles(influences)

	g := New()
	for _, node := range influences.Nodes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if roles.IsStarting(node.ID) {
			if err := g.AddInput(node.ID, TextPayload("Input")); err != nil {
				return nil, err
			}
		}
		if roles.IsIntermediate(node.ID) {
			var payload *Payload
			if e.Payloads != nil {
				payload, err = e.Payloads.GeneratePayload(ctx, input, node.Attrs, model)
				if err != nil {
					return nil, fmt.Errorf("generating payload for %q: %w", node.ID, err)
				}
			}
			if err := g.AddArgument(node.ID, e.Strength.MapStrength(node.Attrs), payload); err != nil {
				return nil, err
			}
		}
		if roles.IsTerminal(node.ID) {
			if err := g.AddConclusion(node.ID, confidence, predictedClass, nil); err != nil {
				return nil, err
			}
		}

		for _, inf := range influences.InfluencesFrom(node.ID) {
			if err := g.AddRelation(node.ID, inf.Target, e.Characterisation.MapCharacterisation(node.Attrs)); err != nil {
				return nil, err
			}
		}
	}

	e.log().Debug("extracted gaf",
		slog.Int("inputs", len(roles.Starting)),
		slog.Int("arguments", len(roles.Intermediate)),
		slog.Int("conclusions", len(roles.Terminal)),
		slog.Int("relations", g.RelationCount()))
	return g, nil
}

func (e *Extractor) log() *slog.Logger {
	if e.logger == nil {
		return logging.New("extractor")
	}
	return e.logger
}

// GradientStrength uses the magnitude of the node's "grad" attribute as its
// strength, or no strength when the attribute is missing.
var GradientStrength = StrengthFunc(func(attrs influence.Attributes) *float64 {
	grad, ok := numericAttr(attrs, "grad")
	if !ok {
		return nil
	}
	return Strength(math.Abs(grad))
})

// GradientCharacterisation attacks for a negative "grad" attribute and
// supports otherwise, including when the attribute is missing.
var GradientCharacterisation = CharacterisationFunc(func(attrs influence.Attributes) Relation {
	if grad, ok := numericAttr(attrs, "grad"); ok && grad < 0 {
		return BipolarAttack
	}
	return BipolarSupport
})

// AttributeText returns a payload generator rendering attrs[key] as text.
// Nodes without the attribute get no payload.
func AttributeText(key string) PayloadGenerator {
	return PayloadFunc(func(_ context.Context, _ any, attrs influence.Attributes, _ any) (*Payload, error) {
		v, ok := attrs[key]
		if !ok || v == nil {
			return nil, nil
		}
		return TextPayload(fmt.Sprint(v)), nil
	})
}

// StaticInfluenceMapper replays a precomputed influence snapshot, ignoring
// the model and input it is given.
type StaticInfluenceMapper struct {
	Snapshot *influence.Snapshot
}

// MapInfluence implements InfluenceMapper.
func (m StaticInfluenceMapper) MapInfluence(_ context.Context, _, _ any) (*influence.Graph, string, float64, error) {
	if m.Snapshot == nil {
		return nil, "", 0, fmt.Errorf("static influence mapper has no snapshot")
	}
	return m.Snapshot.Graph(), m.Snapshot.PredictedClass, m.Snapshot.Confidence, nil
}

func numericAttr(attrs influence.Attributes, key string) (float64, bool) {
	switch v := attrs[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
