package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// clientDirs maps each supported MCP client to its configuration directory.
var clientDirs = map[string]string{
	"qwen":   ".qwen",
	"claude": ".claude",
	"cursor": ".cursor",
}

// SetupCmd configures MCP for various AI clients.
type SetupCmd struct {
	Client []string `short:"C" help:"Clients to configure (qwen, claude, cursor); prints the config when omitted"`
	Global bool     `help:"Write to the client's global configuration in the home directory"`
	Dir    string   `type:"path" default:"." help:"Project directory for local configuration"`
	Watch  bool     `default:"true" negatable:"" help:"Serve with watch mode"`
}

// Run executes the setup command.
func (c *SetupCmd) Run(env *Env) error {
	config := c.serverConfig()

	if len(c.Client) == 0 {
		data, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			return err
		}
		env.printf("%s\n", data)
		return nil
	}

	for _, client := range c.Client {
		path, err := c.configPath(client)
		if err != nil {
			return err
		}
		if err := writeClientConfig(path, config); err != nil {
			return err
		}
		env.success("✓ Configured %s MCP at %s", client, path)
	}
	return nil
}

func (c *SetupCmd) serverConfig() map[string]any {
	args := []string{"serve"}
	if c.Watch {
		args = append(args, "--watch")
	}
	return map[string]any{
		"mcpServers": map[string]any{
			"argflow": map[string]any{
				"command": "argflow",
				"args":    args,
			},
		},
	}
}

func (c *SetupCmd) configPath(client string) (string, error) {
	dir, ok := clientDirs[client]
	if !ok {
		return "", fmt.Errorf("unknown client %q", client)
	}
	if !c.Global {
		return filepath.Join(c.Dir, dir, "mcp.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, dir, "global", "mcp.json"), nil
}

// writeClientConfig merges the argflow server into an existing client
// configuration, keeping the other servers.
func writeClientConfig(path string, config map[string]any) error {
	merged := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &merged); err != nil {
			return fmt.Errorf("parsing existing config %s: %w", path, err)
		}
	}

	servers, _ := merged["mcpServers"].(map[string]any)
	if servers == nil {
		servers = map[string]any{}
	}
	for name, server := range config["mcpServers"].(map[string]any) {
		servers[name] = server
	}
	merged["mcpServers"] = servers

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	content, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if err := os.WriteFile(path, append(content, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
