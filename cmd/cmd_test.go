package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/argflow-go/internal/config"
	"github.com/Benny93/argflow-go/internal/document"
	"github.com/Benny93/argflow-go/internal/storage"
	"github.com/Benny93/argflow-go/internal/view"
)

const carrotSnapshot = `
predicted_class: carrot
confidence: 0.8
nodes:
  - id: input
  - id: orange
    attrs: {grad: 0.7, label: orange colour}
  - id: round
    attrs: {grad: -0.2, label: round shape}
  - id: out
influences:
  - {source: input, target: orange}
  - {source: input, target: round}
  - {source: orange, target: out}
  - {source: round, target: out}
`

func newTestEnv(t *testing.T) (*Env, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ResourceDir = filepath.Join(dir, "resources")
	cfg.IndexDir = filepath.Join(dir, "index")
	out := &bytes.Buffer{}
	return &Env{Config: cfg, In: strings.NewReader(""), Out: out}, out
}

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "carrot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(carrotSnapshot), 0o644))
	return path
}

// withCarrot stores the carrot explanation as vegetables/carrot.
func withCarrot(t *testing.T, env *Env, out *bytes.Buffer) {
	t.Helper()
	cmd := &ExtractCmd{Snapshot: writeSnapshot(t), Model: "vegetables", Name: "carrot", LabelAttr: "label"}
	require.NoError(t, cmd.Run(env))
	out.Reset()
}

func TestExtractCmd_Run(t *testing.T) {
	t.Parallel()

	env, out := newTestEnv(t)
	snapshot := writeSnapshot(t)

	cmd := &ExtractCmd{Snapshot: snapshot, Model: "vegetables", Name: "carrot", LabelAttr: "label"}
	require.NoError(t, cmd.Run(env))

	assert.Contains(t, out.String(), "Stored vegetables/carrot")
	assert.Contains(t, out.String(), "Arguments:    2")
	assert.Contains(t, out.String(), "Prediction:   carrot (80.0%)")
	assert.FileExists(t, filepath.Join(env.Config.ResourceDir, "vegetables", "carrot", storage.GraphFilename))

	t.Run("Duplicate", func(t *testing.T) {
		err := cmd.Run(env)
		assert.ErrorIs(t, err, storage.ErrExplanationExists)
	})

	t.Run("MissingSnapshot", func(t *testing.T) {
		err := (&ExtractCmd{Snapshot: filepath.Join(t.TempDir(), "none.yaml"), Model: "vegetables"}).Run(env)
		assert.Error(t, err)
	})
}

func TestStressCmd_Run(t *testing.T) {
	t.Parallel()

	env, out := newTestEnv(t)

	require.NoError(t, (&StressCmd{Model: "stress", Name: "single", Arguments: 50, Seed: 1}).Run(env))
	assert.Contains(t, out.String(), "Arguments:    50")

	out.Reset()
	require.NoError(t, (&StressCmd{Model: "stress", Name: "layered", Layers: 3, Width: 4, Seed: 1}).Run(env))
	assert.Contains(t, out.String(), "Arguments:    12")

	err := (&StressCmd{Model: "stress", Name: "bad", Layers: 2, Width: 0}).Run(env)
	assert.Error(t, err)
}

func TestListCmd_Run(t *testing.T) {
	t.Parallel()

	env, out := newTestEnv(t)

	require.NoError(t, (&ListCmd{}).Run(env))
	assert.Contains(t, out.String(), "No models found")

	withCarrot(t, env, out)

	require.NoError(t, (&ListCmd{}).Run(env))
	assert.Contains(t, out.String(), "vegetables")

	out.Reset()
	require.NoError(t, (&ListCmd{Model: "vegetables"}).Run(env))
	assert.Contains(t, out.String(), "carrot")

	out.Reset()
	require.NoError(t, (&ListCmd{Model: "fruit"}).Run(env))
	assert.Contains(t, out.String(), "No explanations for fruit")
}

func TestShowCmd_Run(t *testing.T) {
	t.Parallel()

	env, out := newTestEnv(t)
	withCarrot(t, env, out)

	require.NoError(t, (&ShowCmd{Ref: "vegetables/carrot", JSON: true}).Run(env))
	doc, err := document.Parse(out.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []string{"input"}, doc.Input)
	assert.Equal(t, []string{"out"}, doc.Conclusion)
	assert.Len(t, doc.Nodes, 4)

	t.Run("BadRef", func(t *testing.T) {
		err := (&ShowCmd{Ref: "carrot"}).Run(env)
		assert.Error(t, err)
	})

	t.Run("Unknown", func(t *testing.T) {
		err := (&ShowCmd{Ref: "vegetables/leek"}).Run(env)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestPruneCmd_Run(t *testing.T) {
	t.Parallel()

	env, out := newTestEnv(t)
	withCarrot(t, env, out)

	limit := 1
	require.NoError(t, (&PruneCmd{Ref: "vegetables/carrot", Limit: &limit, JSON: true}).Run(env))

	doc, err := document.Parse(out.Bytes())
	require.NoError(t, err)
	require.NotNil(t, doc.TotalNodes)
	assert.Equal(t, 2, *doc.TotalNodes)
	assert.Contains(t, doc.Nodes, "orange")
	assert.NotContains(t, doc.Nodes, "round")

	t.Run("ConfigDefaults", func(t *testing.T) {
		out.Reset()
		require.NoError(t, (&PruneCmd{Ref: "vegetables/carrot"}).Run(env))
		assert.Contains(t, out.String(), "limit 20, layer limit 5")
		assert.Contains(t, out.String(), "round -> out (attack)")
	})
}

func TestInteractCmd_Run(t *testing.T) {
	t.Parallel()

	env, out := newTestEnv(t)
	withCarrot(t, env, out)

	require.NoError(t, (&InteractCmd{Ref: "vegetables/carrot", Target: "out", Direction: "to"}).Run(env))
	text := out.String()
	assert.Contains(t, text, "What influences out:")
	assert.Contains(t, text, "1. orange (support) strength 0.700  orange colour")
	assert.Contains(t, text, "2. round (attack) strength 0.200  round shape")

	t.Run("Filtered", func(t *testing.T) {
		out.Reset()
		cmd := &InteractCmd{Ref: "vegetables/carrot", Target: "out", Direction: "to", Type: "attack"}
		require.NoError(t, cmd.Run(env))
		assert.Contains(t, out.String(), "1. round")
		assert.NotContains(t, out.String(), "orange")
	})

	t.Run("From", func(t *testing.T) {
		out.Reset()
		cmd := &InteractCmd{Ref: "vegetables/carrot", Target: "out", Direction: "from"}
		require.NoError(t, cmd.Run(env))
		assert.Contains(t, out.String(), "None")
	})

	t.Run("BadDirection", func(t *testing.T) {
		err := (&InteractCmd{Ref: "vegetables/carrot", Target: "out", Direction: "sideways"}).Run(env)
		assert.ErrorIs(t, err, view.ErrInvalidDirection)
	})

	t.Run("UnknownNode", func(t *testing.T) {
		err := (&InteractCmd{Ref: "vegetables/carrot", Target: "leaf", Direction: "to"}).Run(env)
		assert.ErrorIs(t, err, view.ErrUnknownNode)
	})
}

func TestRolesCmd_Run(t *testing.T) {
	t.Parallel()

	env, out := newTestEnv(t)

	require.NoError(t, (&RolesCmd{Snapshot: writeSnapshot(t)}).Run(env))
	assert.Contains(t, out.String(), "Starting:     input\n")
	assert.Contains(t, out.String(), "Intermediate: orange, round\n")
	assert.Contains(t, out.String(), "Terminal:     out\n")
}

func TestDeleteCmd_Run(t *testing.T) {
	t.Parallel()

	env, out := newTestEnv(t)
	withCarrot(t, env, out)
	graph := filepath.Join(env.Config.ResourceDir, "vegetables", "carrot", storage.GraphFilename)

	env.In = strings.NewReader("n\n")
	require.NoError(t, (&DeleteCmd{Ref: "vegetables/carrot"}).Run(env))
	assert.Contains(t, out.String(), "Aborted")
	assert.FileExists(t, graph)

	env.In = strings.NewReader("y\n")
	require.NoError(t, (&DeleteCmd{Ref: "vegetables/carrot"}).Run(env))
	assert.NoFileExists(t, graph)

	err := (&DeleteCmd{Ref: "vegetables/carrot", Force: true}).Run(env)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIndexAndSearchCmd_Run(t *testing.T) {
	t.Parallel()

	env, out := newTestEnv(t)
	withCarrot(t, env, out)

	err := (&SearchCmd{Query: "orange", Limit: 5}).Run(env)
	assert.ErrorContains(t, err, "no index found")

	require.NoError(t, (&IndexCmd{}).Run(env))
	assert.Contains(t, out.String(), "Indexed 1 explanations")

	out.Reset()
	require.NoError(t, (&SearchCmd{Query: "orange", Limit: 5}).Run(env))
	assert.Contains(t, out.String(), "1. vegetables/carrot node orange")

	out.Reset()
	require.NoError(t, (&SearchCmd{Query: "turnip", Limit: 5}).Run(env))
	assert.Contains(t, out.String(), "No results found")
}

func TestCLI_Execute(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "argflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("resource_dir: "+filepath.Join(dir, "resources")+"\n"), 0o644))

	t.Run("List", func(t *testing.T) {
		assert.NoError(t, NewCLI().Execute([]string{"--config", path, "list"}))
	})

	t.Run("MissingConfig", func(t *testing.T) {
		err := NewCLI().Execute([]string{"--config", filepath.Join(dir, "missing.yaml"), "list"})
		assert.ErrorContains(t, err, "reading config")
	})

	t.Run("UnknownCommand", func(t *testing.T) {
		assert.Error(t, NewCLI().Execute([]string{"explode"}))
	})
}
