package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readClientConfig(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var config map[string]any
	require.NoError(t, json.Unmarshal(data, &config))
	return config
}

func TestSetupCmd_Run(t *testing.T) {
	t.Run("PrintsConfig", func(t *testing.T) {
		env, out := newTestEnv(t)
		require.NoError(t, (&SetupCmd{Watch: true}).Run(env))

		var config map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &config))
		server := config["mcpServers"].(map[string]any)["argflow"].(map[string]any)
		assert.Equal(t, "argflow", server["command"])
		assert.Equal(t, []any{"serve", "--watch"}, server["args"])
	})

	t.Run("Local", func(t *testing.T) {
		env, _ := newTestEnv(t)
		dir := t.TempDir()

		require.NoError(t, (&SetupCmd{Client: []string{"qwen", "cursor"}, Dir: dir}).Run(env))

		assert.FileExists(t, filepath.Join(dir, ".qwen", "mcp.json"))
		config := readClientConfig(t, filepath.Join(dir, ".cursor", "mcp.json"))
		server := config["mcpServers"].(map[string]any)["argflow"].(map[string]any)
		assert.Equal(t, []any{"serve"}, server["args"])
	})

	t.Run("KeepsOtherServers", func(t *testing.T) {
		env, _ := newTestEnv(t)
		dir := t.TempDir()
		path := filepath.Join(dir, ".claude", "mcp.json")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(`{"mcpServers":{"other":{"command":"other"}},"theme":"dark"}`), 0o644))

		require.NoError(t, (&SetupCmd{Client: []string{"claude"}, Dir: dir, Watch: true}).Run(env))

		config := readClientConfig(t, path)
		assert.Equal(t, "dark", config["theme"])
		servers := config["mcpServers"].(map[string]any)
		assert.Contains(t, servers, "other")
		assert.Contains(t, servers, "argflow")
	})

	t.Run("Global", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		env, _ := newTestEnv(t)

		require.NoError(t, (&SetupCmd{Client: []string{"claude"}, Global: true}).Run(env))
		assert.FileExists(t, filepath.Join(home, ".claude", "global", "mcp.json"))
	})

	t.Run("UnknownClient", func(t *testing.T) {
		env, _ := newTestEnv(t)
		err := (&SetupCmd{Client: []string{"emacs"}, Dir: t.TempDir()}).Run(env)
		assert.ErrorContains(t, err, "unknown client")
	})
}
