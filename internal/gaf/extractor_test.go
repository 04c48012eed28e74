package gaf

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/argflow-go/internal/influence"
)

func carrotSnapshot() *influence.Snapshot {
	return &influence.Snapshot{
		PredictedClass: "carrot",
		Confidence:     0.8,
		Nodes: []influence.SnapshotNode{
			{ID: "input"},
			{ID: "orange", Attrs: influence.Attributes{"grad": 0.7, "label": "orange colour"}},
			{ID: "round", Attrs: influence.Attributes{"grad": -0.2, "label": "round shape"}},
			{ID: "out"},
		},
		Influences: []influence.SnapshotInflux{
			{Source: "input", Target: "orange"},
			{Source: "input", Target: "round"},
			{Source: "orange", Target: "out"},
			{Source: "round", Target: "out"},
		},
	}
}

func TestExtractor_Extract(t *testing.T) {
	t.Parallel()

	e := NewExtractor(StaticInfluenceMapper{Snapshot: carrotSnapshot()},
		GradientStrength, GradientCharacterisation, AttributeText("label"))

	g, err := e.Extract(context.Background(), nil, nil)
	require.NoError(t, err)

	inputs := g.Inputs()
	require.Len(t, inputs, 1)
	assert.Equal(t, "input", inputs[0].ID)
	assert.Equal(t, "Input", inputs[0].Payload.Text())

	args := g.Arguments()
	require.Len(t, args, 2)
	assert.Equal(t, "orange", args[0].ID)
	assert.InDelta(t, 0.7, *args[0].Strength, 1e-9)
	assert.Equal(t, "orange colour", args[0].Payload.Text())
	assert.InDelta(t, 0.2, *args[1].Strength, 1e-9)

	conclusions := g.Conclusions()
	require.Len(t, conclusions, 1)
	assert.Equal(t, "carrot", conclusions[0].PredictedClass)
	assert.InDelta(t, 0.8, conclusions[0].Confidence, 1e-9)

	assert.Equal(t, []Edge{{Source: "round", Target: "out", Relation: BipolarAttack}}, g.RelationsFrom("round"))
	assert.Equal(t, []Edge{{Source: "orange", Target: "out", Relation: BipolarSupport}}, g.RelationsFrom("orange"))

	doc, err := g.Serialize("carrot", t.TempDir(), "payloads")
	require.NoError(t, err)
	assert.NoError(t, doc.Validate())
	assert.InDelta(t, 80.0, *doc.Nodes["out"].Certainty, 1e-9)
}

func TestExtractor_IsolatedNodeBecomesConclusion(t *testing.T) {
	t.Parallel()

	snap := &influence.Snapshot{PredictedClass: "x", Confidence: 1, Nodes: []influence.SnapshotNode{{ID: "alone"}}}
	e := NewExtractor(StaticInfluenceMapper{Snapshot: snap}, GradientStrength, GradientCharacterisation, nil)

	g, err := e.Extract(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Empty(t, g.Inputs())
	assert.Len(t, g.Conclusions(), 1)
}

func TestExtractor_Errors(t *testing.T) {
	t.Parallel()

	t.Run("MissingMappers", func(t *testing.T) {
		t.Parallel()
		_, err := (&Extractor{}).Extract(context.Background(), nil, nil)
		assert.Error(t, err)
	})

	t.Run("PayloadFailure", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		pg := PayloadFunc(func(context.Context, any, influence.Attributes, any) (*Payload, error) {
			return nil, boom
		})
		e := NewExtractor(StaticInfluenceMapper{Snapshot: carrotSnapshot()}, GradientStrength, GradientCharacterisation, pg)

		_, err := e.Extract(context.Background(), nil, nil)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("Cancelled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		e := NewExtractor(StaticInfluenceMapper{Snapshot: carrotSnapshot()}, GradientStrength, GradientCharacterisation, nil)

		_, err := e.Extract(ctx, nil, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("NoSnapshot", func(t *testing.T) {
		t.Parallel()
		e := NewExtractor(StaticInfluenceMapper{}, GradientStrength, GradientCharacterisation, nil)
		_, err := e.Extract(context.Background(), nil, nil)
		assert.Error(t, err)
	})
}

func TestGradientMappers(t *testing.T) {
	t.Parallel()

	assert.Nil(t, GradientStrength.MapStrength(influence.Attributes{}))
	assert.InDelta(t, 3.0, *GradientStrength.MapStrength(influence.Attributes{"grad": -3}), 1e-9)
	assert.Equal(t, BipolarSupport, GradientCharacterisation.MapCharacterisation(influence.Attributes{}))
	assert.Equal(t, BipolarAttack, GradientCharacterisation.MapCharacterisation(influence.Attributes{"grad": float32(-0.1)}))
	assert.Equal(t, BipolarSupport, GradientCharacterisation.MapCharacterisation(influence.Attributes{"grad": "nope"}))
}
