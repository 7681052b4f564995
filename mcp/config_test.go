package mcp

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp.json")
	content := `{
		"mcpServers": {
			"filesystem": {
				"command": "npx",
				"args": ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"],
				"env": {"DEBUG": "1"},
				"disabledTools": ["write_file"]
			},
			"memory": {
				"command": "npx",
				"args": ["-y", "@modelcontextprotocol/server-memory"]
			}
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	servers := config.Servers()
	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}

	// Stable name order.
	if servers[0].Name != "filesystem" || servers[1].Name != "memory" {
		t.Errorf("expected sorted names, got %s, %s", servers[0].Name, servers[1].Name)
	}
	if servers[0].Command != "npx" {
		t.Errorf("expected command npx, got %s", servers[0].Command)
	}
	if len(servers[0].Args) != 3 {
		t.Errorf("expected 3 args, got %v", servers[0].Args)
	}
	if servers[0].Env["DEBUG"] != "1" {
		t.Errorf("expected env to carry through, got %v", servers[0].Env)
	}
	if len(servers[0].DisabledTools) != 1 || servers[0].DisabledTools[0] != "write_file" {
		t.Errorf("expected disabled tools, got %v", servers[0].DisabledTools)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/mcp.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
