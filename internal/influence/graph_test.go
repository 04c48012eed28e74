package influence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_AddNode(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.AddNode("1", Attributes{"activation": 12})
	g.AddNode("2", Attributes{"activation": 13})
	g.AddNode("3", Attributes{"activation": 0})

	assert.Equal(t, []Node{
		{ID: "1", Attrs: Attributes{"activation": 12}},
		{ID: "2", Attrs: Attributes{"activation": 13}},
		{ID: "3", Attrs: Attributes{"activation": 0}},
	}, g.Nodes())

	t.Run("ReplaceKeepsPosition", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		g.AddNode("a", Attributes{"v": 1})
		g.AddNode("b", nil)
		g.AddNode("a", Attributes{"v": 2})

		nodes := g.Nodes()
		require.Len(t, nodes, 2)
		assert.Equal(t, "a", nodes[0].ID)
		assert.Equal(t, 2, nodes[0].Attrs["v"])
		assert.NotNil(t, nodes[1].Attrs)
	})
}

func TestGraph_Influences(t *testing.T) {
	t.Parallel()

	t.Run("AddInfluence", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		g.AddNode("1", nil)
		g.AddNode("2", nil)
		g.AddNode("3", nil)
		g.AddInfluence("1", "2", Attributes{"thing": 1})
		g.AddInfluence("2", "3", Attributes{"thing": 2})

		assert.Equal(t, []Influence{
			{Source: "1", Target: "2", Attrs: Attributes{"thing": 1}},
			{Source: "2", Target: "3", Attrs: Attributes{"thing": 2}},
		}, g.Influences())
	})

	t.Run("AddsMissingEndpoints", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		g.AddInfluence("x", "y", nil)

		assert.True(t, g.HasNode("x"))
		assert.True(t, g.HasNode("y"))
		assert.Equal(t, 2, g.NodeCount())
	})

	t.Run("NoParallelEdges", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		g.AddInfluence("x", "y", Attributes{"w": 1})
		g.AddInfluence("x", "y", Attributes{"w": 2})

		infs := g.InfluencesFrom("x")
		require.Len(t, infs, 1)
		assert.Equal(t, 2, infs[0].Attrs["w"])
	})

	t.Run("RemoveInfluence", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		g.AddInfluence("1", "2", Attributes{"thing": 1})
		g.AddInfluence("2", "3", Attributes{"thing": 2})

		assert.True(t, g.RemoveInfluence("2", "3"))
		assert.False(t, g.RemoveInfluence("2", "3"))
		assert.Equal(t, []Influence{
			{Source: "1", Target: "2", Attrs: Attributes{"thing": 1}},
		}, g.Influences())
	})

	t.Run("InfluencesFrom", func(t *testing.T) {
		t.Parallel()
		g := NewGraph()
		g.AddInfluence("1", "2", nil)
		g.AddInfluence("1", "3", nil)
		g.AddInfluence("2", "3", nil)

		infs := g.InfluencesFrom("1")
		require.Len(t, infs, 2)
		assert.Equal(t, "2", infs[0].Target)
		assert.Equal(t, "3", infs[1].Target)
		assert.Empty(t, g.InfluencesFrom("3"))
	})
}

func TestGraph_RemoveNode(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.AddInfluence("a", "b", nil)
	g.AddInfluence("b", "c", nil)
	g.AddInfluence("c", "a", nil)

	assert.True(t, g.RemoveNode("b"))
	assert.False(t, g.RemoveNode("b"))

	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, []Influence{{Source: "c", Target: "a", Attrs: Attributes{}}}, g.Influences())
	assert.Empty(t, g.InfluencesFrom("a"))
}

func TestParseSnapshot(t *testing.T) {
	t.Parallel()

	t.Run("YAML", func(t *testing.T) {
		t.Parallel()
		data := []byte(`
predicted_class: cat
confidence: 0.75
nodes:
  - id: Input
    attrs: {grad: 0}
  - id: Filter 1
    attrs: {grad: -0.5, layer: conv5}
  - id: Prediction
influences:
  - {source: Input, target: Filter 1}
  - {source: Filter 1, target: Prediction}
`)
		s, err := ParseSnapshot(data, ".yaml")
		require.NoError(t, err)
		assert.Equal(t, "cat", s.PredictedClass)
		assert.InDelta(t, 0.75, s.Confidence, 1e-9)

		g := s.Graph()
		assert.Equal(t, 3, g.NodeCount())
		assert.Len(t, g.Influences(), 2)
	})

	t.Run("JSONDetected", func(t *testing.T) {
		t.Parallel()
		data := []byte(`{"predicted_class":"1","confidence":0.5,"nodes":[{"id":"a"}],"influences":[{"source":"a","target":"b"}]}`)
		s, err := ParseSnapshot(data, "")
		require.NoError(t, err)
		assert.Equal(t, 2, s.Graph().NodeCount())
	})

	t.Run("MissingEndpoint", func(t *testing.T) {
		t.Parallel()
		_, err := ParseSnapshot([]byte(`{"influences":[{"source":"a"}]}`), ".json")
		assert.Error(t, err)
	})
}
