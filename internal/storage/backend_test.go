package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/argflow-go/internal/document"
	"github.com/Benny93/argflow-go/internal/gaf"
)

func sampleGAF(t *testing.T) *gaf.GAF {
	t.Helper()
	g := gaf.New()
	require.NoError(t, g.AddInput("0", gaf.TextPayload("Input")))
	require.NoError(t, g.AddArgument("1", gaf.Strength(0.7), gaf.TextPayload("orange colour")))
	require.NoError(t, g.AddArgument("2", gaf.Strength(0.2), gaf.TextPayload("round shape")))
	require.NoError(t, g.AddConclusion("3", 0.8, "carrot", nil))
	require.NoError(t, g.AddRelation("0", "1", gaf.BipolarSupport))
	require.NoError(t, g.AddRelation("0", "2", gaf.BipolarSupport))
	require.NoError(t, g.AddRelation("1", "3", gaf.BipolarSupport))
	require.NoError(t, g.AddRelation("2", "3", gaf.BipolarAttack))
	return g
}

func TestParseRef(t *testing.T) {
	t.Parallel()

	ref, err := ParseRef("vegetables/carrot")
	require.NoError(t, err)
	assert.Equal(t, Ref{Model: "vegetables", Name: "carrot"}, ref)
	assert.Equal(t, "vegetables/carrot", ref.String())

	for _, bad := range []string{"nomodel", "/name", "model/", "../x", "a/b/c", "a/..", "vegetables/model"} {
		_, err := ParseRef(bad)
		assert.ErrorIs(t, err, ErrInvalidName, bad)
	}
}

func TestValidateName(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateName("explanation_2024-01-01_10:00:00"))
	assert.ErrorIs(t, ValidateName(""), ErrInvalidName)
	assert.ErrorIs(t, ValidateName(".."), ErrInvalidName)
	assert.ErrorIs(t, ValidateName(`a\b`), ErrInvalidName)
}

func TestMemoryBackend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemoryBackend()
	m.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }

	ref, doc, err := m.Write(ctx, "vegetables", "", sampleGAF(t))
	require.NoError(t, err)
	assert.Equal(t, Ref{Model: "vegetables", Name: "explanation_2024-03-01_09:30:00"}, ref)
	assert.Equal(t, ref.Name, doc.Name)

	_, _, err = m.Write(ctx, "vegetables", ref.Name, sampleGAF(t))
	assert.ErrorIs(t, err, ErrExplanationExists)

	models, err := m.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ModelInfo{{Name: "vegetables"}}, models)

	infos, err := m.Explanations(ctx, "vegetables")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, ref, infos[0].Ref())

	got, err := m.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	require.NoError(t, m.Delete(ctx, ref))
	_, err = m.Get(ctx, ref)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, ref), ErrNotFound)
}

func TestMemoryBackend_RejectsImages(t *testing.T) {
	t.Parallel()

	img, err := gaf.ImagePayload([]byte{1})
	require.NoError(t, err)
	g := gaf.New()
	require.NoError(t, g.AddArgument("1", nil, img))

	_, _, err = NewMemoryBackend().Write(context.Background(), "m", "e", g)
	assert.ErrorIs(t, err, gaf.ErrPayloadWrite)
}

func TestLoadAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemoryBackend()
	m.Put(Ref{Model: "a", Name: "one"}, document.New("one"))
	m.Put(Ref{Model: "b", Name: "two"}, document.New("two"))

	docs, skipped, err := LoadAll(ctx, m)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Len(t, docs, 2)
	assert.Equal(t, "two", docs[Ref{Model: "b", Name: "two"}].Name)
}
