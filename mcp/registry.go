// Registry - one lazily started client per configured MCP server.
//
// Information Hiding:
// - Client lifecycle (lazy start, reuse, shutdown)
// - Mapping between flat tool names and their owning server

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/richinex/relay/model"
)

// Registry manages clients for a set of configured MCP servers and exposes
// their tools under a flat namespace. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	servers map[string]model.MCPServer
	clients map[string]*Client
	log     zerolog.Logger
}

// NewRegistry creates a registry over the given server configurations.
// Server processes are started on first use, not here.
func NewRegistry(servers []model.MCPServer, log zerolog.Logger) *Registry {
	byName := make(map[string]model.MCPServer, len(servers))
	for _, s := range servers {
		byName[s.Name] = s
	}
	return &Registry{
		servers: byName,
		clients: make(map[string]*Client),
		log:     log,
	}
}

func (r *Registry) client(ctx context.Context, serverName string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[serverName]; ok {
		return c, nil
	}

	server, ok := r.servers[serverName]
	if !ok {
		return nil, fmt.Errorf("unknown MCP server: %s", serverName)
	}

	r.log.Debug().Str("server", serverName).Str("command", server.Command).
		Msg("starting MCP server")

	c, err := NewClient(ctx, server.Command, server.Args, server.Env)
	if err != nil {
		return nil, fmt.Errorf("server %s: %w", serverName, err)
	}
	r.clients[serverName] = c
	return c, nil
}

// ListTools returns the tools of the named servers, minus each server's
// disabled tools. A server that fails to start is logged and skipped so one
// broken server does not take down the whole request.
func (r *Registry) ListTools(ctx context.Context, serverNames []string) ([]model.MCPTool, error) {
	var tools []model.MCPTool
	for _, name := range serverNames {
		server, ok := r.serverConfig(name)
		if !ok {
			r.log.Warn().Str("server", name).Msg("skipping unknown MCP server")
			continue
		}

		c, err := r.client(ctx, name)
		if err != nil {
			r.log.Warn().Err(err).Str("server", name).Msg("skipping unavailable MCP server")
			continue
		}

		infos, err := c.ListTools(ctx)
		if err != nil {
			r.log.Warn().Err(err).Str("server", name).Msg("failed to list tools")
			continue
		}

		disabled := make(map[string]bool, len(server.DisabledTools))
		for _, d := range server.DisabledTools {
			disabled[d] = true
		}

		for _, info := range infos {
			if disabled[info.Name] {
				continue
			}
			tool := model.MCPTool{
				ServerName:  name,
				Name:        info.Name,
				InputSchema: info.InputSchema,
			}
			if info.Description != nil {
				tool.Description = *info.Description
			}
			tools = append(tools, tool)
		}
	}
	return tools, nil
}

func (r *Registry) serverConfig(name string) (model.MCPServer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.servers[name]
	return s, ok
}

// CallTool executes a tool on its owning server and returns the flattened
// text result. A result the server marks as an error becomes a Go error so
// the resolver records it as a failed invocation.
func (r *Registry) CallTool(ctx context.Context, tool model.MCPTool, args []byte) (string, error) {
	c, err := r.client(ctx, tool.ServerName)
	if err != nil {
		return "", err
	}

	r.log.Debug().Str("server", tool.ServerName).Str("tool", tool.Name).
		Msg("calling tool")

	text, isError, err := c.CallTool(ctx, tool.Name, json.RawMessage(args))
	if err != nil {
		return "", err
	}
	if isError {
		return "", fmt.Errorf("tool reported error: %s", text)
	}
	return text, nil
}

// GetPrompt fetches a prompt template from the named server.
func (r *Registry) GetPrompt(ctx context.Context, serverName, promptName string, arguments map[string]string) ([]PromptMessage, error) {
	c, err := r.client(ctx, serverName)
	if err != nil {
		return nil, err
	}
	return c.GetPrompt(ctx, promptName, arguments)
}

// GetResource reads a resource from the named server.
func (r *Registry) GetResource(ctx context.Context, serverName, uri string) ([]ResourceContent, error) {
	c, err := r.client(ctx, serverName)
	if err != nil {
		return nil, err
	}
	return c.GetResource(ctx, uri)
}

// Close shuts down every started server process.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, c := range r.clients {
		if err := c.Close(); err != nil {
			r.log.Warn().Err(err).Str("server", name).Msg("failed to close MCP client")
		}
		delete(r.clients, name)
	}
	return nil
}
