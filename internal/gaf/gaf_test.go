package gaf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGAF_AddArgument(t *testing.T) {
	t.Parallel()

	g := New()
	require.NoError(t, g.AddArgument("1", Strength(2), TextPayload("test")))
	require.NoError(t, g.AddArgument("2", nil, nil))

	args := g.Arguments()
	require.Len(t, args, 2)
	assert.Equal(t, "1", args[0].ID)
	assert.InDelta(t, 2.0, *args[0].Strength, 1e-9)
	assert.True(t, args[0].Payload.Equal(TextPayload("test")))
	assert.Nil(t, args[1].Strength)
	assert.Nil(t, args[1].Payload)
}

func TestGAF_Partitions(t *testing.T) {
	t.Parallel()

	g := New()
	require.NoError(t, g.AddInput("in", nil))
	require.NoError(t, g.AddArgument("a", nil, nil))
	require.NoError(t, g.AddConclusion("out", 0.9, "cat", nil))

	assert.Len(t, g.Inputs(), 1)
	assert.Len(t, g.Arguments(), 1)
	assert.Len(t, g.Conclusions(), 1)

	t.Run("ReAddChangesType", func(t *testing.T) {
		require.NoError(t, g.AddConclusion("in", 0.1, "dog", nil))
		assert.Empty(t, g.Inputs())
		assert.Len(t, g.Conclusions(), 2)
		assert.Equal(t, 3, g.NodeCount())
	})
}

func TestGAF_IllegalPayloads(t *testing.T) {
	t.Parallel()

	g := New()
	assert.ErrorIs(t, g.AddInput("1", &Payload{}), ErrInvalidPayload)
	assert.ErrorIs(t, g.AddArgument("1", Strength(1), &Payload{kind: PayloadImage}), ErrInvalidPayload)
	assert.ErrorIs(t, g.AddConclusion("1", 1, "1", &Payload{kind: PayloadImagePair, first: []byte{1}}), ErrInvalidPayload)
	assert.Equal(t, 0, g.NodeCount())
}

func TestGAF_AddRelation(t *testing.T) {
	t.Parallel()

	t.Run("Single", func(t *testing.T) {
		t.Parallel()
		g := New()
		require.NoError(t, g.AddArgument("1", Strength(2), nil))
		require.NoError(t, g.AddArgument("2", nil, nil))
		require.NoError(t, g.AddRelation("1", "2", SupportOnly))

		assert.Equal(t, []Edge{{Source: "1", Target: "2", Relation: SupportOnly}}, g.RelationsFrom("1"))
		f, ok := g.Framework()
		assert.True(t, ok)
		assert.Equal(t, FrameworkSupport, f)
	})

	t.Run("IllegalRelation", func(t *testing.T) {
		t.Parallel()
		g := New()
		assert.ErrorIs(t, g.AddRelation("1", "2", Relation{}), ErrInvalidRelation)
		assert.Equal(t, 0, g.RelationCount())
	})

	t.Run("SameFrameworkNeverFails", func(t *testing.T) {
		t.Parallel()
		g := New()
		for i, r := range []Relation{TripolarSupport, TripolarAttack, TripolarNeutral, TripolarSupport} {
			require.NoError(t, g.AddRelation("src", IntID(i), r))
		}
		assert.Equal(t, 4, g.RelationCount())
	})

	t.Run("InconsistentFramework", func(t *testing.T) {
		t.Parallel()
		g := New()
		require.NoError(t, g.AddRelation("1", "2", TripolarSupport))

		err := g.AddRelation("1", "3", BipolarAttack)

		assert.ErrorIs(t, err, ErrFrameworkMismatch)
		assert.Len(t, g.RelationsFrom("1"), 1)
	})

	t.Run("Overwrite", func(t *testing.T) {
		t.Parallel()
		g := New()
		require.NoError(t, g.AddRelation("1", "2", BipolarSupport))
		require.NoError(t, g.AddRelation("1", "3", BipolarSupport))
		require.NoError(t, g.AddRelation("1", "2", BipolarAttack))

		assert.Equal(t, []Edge{
			{Source: "1", Target: "2", Relation: BipolarAttack},
			{Source: "1", Target: "3", Relation: BipolarSupport},
		}, g.RelationsFrom("1"))
	})
}

func TestGAF_RemoveRelation(t *testing.T) {
	t.Parallel()

	t.Run("LastRelationResetsFramework", func(t *testing.T) {
		t.Parallel()
		g := New()
		require.NoError(t, g.AddRelation("1", "2", TripolarSupport))
		require.NoError(t, g.RemoveRelation("1", "2"))

		_, ok := g.Framework()
		assert.False(t, ok)

		require.NoError(t, g.AddRelation("1", "3", BipolarAttack))
		assert.Equal(t, []Edge{{Source: "1", Target: "3", Relation: BipolarAttack}}, g.RelationsFrom("1"))
	})

	t.Run("RemainingRelationKeepsFramework", func(t *testing.T) {
		t.Parallel()
		g := New()
		require.NoError(t, g.AddRelation("1", "2", TripolarSupport))
		require.NoError(t, g.AddRelation("2", "3", TripolarAttack))
		require.NoError(t, g.RemoveRelation("1", "2"))

		assert.ErrorIs(t, g.AddRelation("1", "3", BipolarAttack), ErrFrameworkMismatch)
	})

	t.Run("Unknown", func(t *testing.T) {
		t.Parallel()
		g := New()
		assert.ErrorIs(t, g.RemoveRelation("1", "2"), ErrUnknownRelation)
	})
}

func TestGAF_RemoveNode(t *testing.T) {
	t.Parallel()

	t.Run("Basic", func(t *testing.T) {
		t.Parallel()
		g := New()
		require.NoError(t, g.AddArgument("1", Strength(2), nil))
		require.NoError(t, g.AddArgument("2", nil, nil))

		assert.True(t, g.RemoveNode("2"))
		assert.False(t, g.RemoveNode("2"))

		args := g.Arguments()
		require.Len(t, args, 1)
		assert.Equal(t, "1", args[0].ID)
	})

	t.Run("CascadesRelations", func(t *testing.T) {
		t.Parallel()
		g := New()
		require.NoError(t, g.AddArgument("a", nil, nil))
		require.NoError(t, g.AddArgument("b", nil, nil))
		require.NoError(t, g.AddArgument("c", nil, nil))
		require.NoError(t, g.AddRelation("a", "b", BipolarSupport))
		require.NoError(t, g.AddRelation("b", "c", BipolarSupport))
		require.NoError(t, g.AddRelation("a", "c", BipolarAttack))

		g.RemoveNode("b")

		assert.Equal(t, 1, g.RelationCount())
		assert.Equal(t, []Edge{{Source: "a", Target: "c", Relation: BipolarAttack}}, g.RelationsFrom("a"))
		assert.Empty(t, g.RelationsFrom("b"))
	})

	t.Run("RemovingLastEdgeResetsFramework", func(t *testing.T) {
		t.Parallel()
		g := New()
		require.NoError(t, g.AddArgument("a", nil, nil))
		require.NoError(t, g.AddArgument("b", nil, nil))
		require.NoError(t, g.AddRelation("a", "b", SupportOnly))

		g.RemoveNode("b")

		_, ok := g.Framework()
		assert.False(t, ok)
	})
}

func TestNewPayload(t *testing.T) {
	t.Parallel()

	_, err := NewPayload(PayloadText, 69)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = NewPayload(PayloadImage, "not an image")
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = NewPayload(PayloadImagePair, []byte{1})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = NewPayload("video", []byte{1})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	p, err := NewPayload(PayloadImagePair, [2][]byte{{1}, {2}})
	require.NoError(t, err)
	fst, snd := p.Pair()
	assert.Equal(t, []byte{1}, fst)
	assert.Equal(t, []byte{2}, snd)
	assert.Equal(t, PayloadImagePair, p.Kind())
}

func TestParseRelation(t *testing.T) {
	t.Parallel()

	r, err := ParseRelation(FrameworkTripolar, "neutral")
	require.NoError(t, err)
	assert.Equal(t, TripolarNeutral, r)

	_, err = ParseRelation(FrameworkBipolar, "neutral")
	assert.ErrorIs(t, err, ErrInvalidRelation)
}
