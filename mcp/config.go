// MCP server configuration file support.
//
// Supports the common MCP configuration format, plus an optional per-server
// list of disabled tools:
//
//	{
//	  "mcpServers": {
//	    "filesystem": {
//	      "command": "npx",
//	      "args": ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"],
//	      "disabledTools": ["write_file"]
//	    }
//	  }
//	}
package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/richinex/relay/model"
)

// Config represents the MCP configuration file format.
type Config struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// ServerConfig represents a single MCP server configuration.
type ServerConfig struct {
	Command       string            `json:"command"`
	Args          []string          `json:"args"`
	Env           map[string]string `json:"env,omitempty"`
	DisabledTools []string          `json:"disabledTools,omitempty"`
}

// LoadConfig loads MCP configuration from a JSON file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &config, nil
}

// Servers returns the configured servers in stable name order.
func (c *Config) Servers() []model.MCPServer {
	names := make([]string, 0, len(c.MCPServers))
	for name := range c.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)

	servers := make([]model.MCPServer, 0, len(names))
	for _, name := range names {
		sc := c.MCPServers[name]
		servers = append(servers, model.MCPServer{
			Name:          name,
			Command:       sc.Command,
			Args:          sc.Args,
			Env:           sc.Env,
			DisabledTools: sc.DisabledTools,
		})
	}
	return servers
}
