package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
)

// SetupCmd writes MCP client configuration that starts `fanout mcp`.
type SetupCmd struct {
	Claude bool   `help:"Configure for Claude"`
	Cursor bool   `help:"Configure for Cursor"`
	Global bool   `help:"Write to the global configuration in the home directory"`
	Dir    string `type:"path" default:"." help:"Project directory for local configuration"`
}

// Run executes the setup command.
func (c *SetupCmd) Run(app *App) error {
	dataDir, err := filepath.Abs(app.DataDir)
	if err != nil {
		return fmt.Errorf("resolving data directory: %w", err)
	}
	config := generateConfig(dataDir)

	if !c.Claude && !c.Cursor {
		data, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(app.Out, string(data))
		return nil
	}

	var clients []string
	if c.Claude {
		clients = append(clients, "claude")
	}
	if c.Cursor {
		clients = append(clients, "cursor")
	}

	for _, client := range clients {
		path, err := c.configPath(client)
		if err != nil {
			return err
		}
		if err := writeConfig(path, config); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(app.Out, "✓ Created %s MCP config at %s\n", client, path)
	}
	return nil
}

func (c *SetupCmd) configPath(client string) (string, error) {
	if !c.Global {
		return filepath.Join(c.Dir, "."+client, "mcp.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, "."+client, "global", "mcp.json"), nil
}

func generateConfig(dataDir string) map[string]any {
	return map[string]any{
		"mcpServers": map[string]any{
			"fanout": map[string]any{
				"command": "fanout",
				"args":    []string{"--data-dir", dataDir, "mcp"},
			},
		},
	}
}

func writeConfig(configPath string, config map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	content, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	content = append(content, '\n')

	if err := os.WriteFile(configPath, content, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
