// Package mcpclient connects to the MCP servers in the registry and surfaces
// their lifecycle and tool calls as events on the bus.
package mcpclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/shaharia-lab/claudeflow/internal/config"
	"github.com/shaharia-lab/claudeflow/internal/eventbus"
)

// Client manages sessions to the configured MCP servers.
type Client struct {
	registry *config.MCPRegistry
	bus      *eventbus.Bus
	logger   *slog.Logger
	impl     *mcp.Implementation

	mu       sync.Mutex
	sessions map[string]*mcp.ClientSession
}

// NewClient creates a Client over the given registry. Sessions are established
// lazily via Connect or ConnectAll.
func NewClient(registry *config.MCPRegistry, bus *eventbus.Bus, version string, logger *slog.Logger) *Client {
	return &Client{
		registry: registry,
		bus:      bus,
		logger:   logger,
		impl:     &mcp.Implementation{Name: "claude-flow", Version: version},
		sessions: make(map[string]*mcp.ClientSession),
	}
}

// Connect establishes a session to the named server and publishes an
// mcp.connected event. Reconnecting an already connected server closes the old
// session first.
func (c *Client) Connect(ctx context.Context, name string) error {
	cfg, ok := c.registry.Get(name)
	if !ok {
		return fmt.Errorf("MCP server %q is not registered", name)
	}

	transport, err := buildTransport(cfg)
	if err != nil {
		return fmt.Errorf("MCP server %q: %w", name, err)
	}

	session, err := mcp.NewClient(c.impl, nil).Connect(ctx, transport, nil)
	if err != nil {
		c.publishError(name, "", fmt.Errorf("connecting: %w", err))
		return fmt.Errorf("connecting to MCP server %q: %w", name, err)
	}

	c.mu.Lock()
	if old, ok := c.sessions[name]; ok {
		_ = old.Close()
	}
	c.sessions[name] = session
	c.mu.Unlock()

	c.logger.Info("connected to MCP server", "server", name, "transport", cfg.Transport)
	c.publish(eventbus.TypeMCPConnected, map[string]any{
		"server":    name,
		"transport": cfg.Transport,
	})
	return nil
}

// ConnectAll connects every registered server. Failures are published as
// mcp.error events and logged; the first error is returned after all servers
// have been attempted.
func (c *Client) ConnectAll(ctx context.Context) error {
	var firstErr error
	for _, name := range c.registry.Names() {
		if err := c.Connect(ctx, name); err != nil {
			c.logger.Warn("MCP server connection failed", "server", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ListTools returns the tools advertised by the named server.
func (c *Client) ListTools(ctx context.Context, server string) ([]*mcp.Tool, error) {
	session, err := c.session(server)
	if err != nil {
		return nil, err
	}
	res, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("listing tools on %q: %w", server, err)
	}
	return res.Tools, nil
}

// CallTool invokes a tool on the named server. The call and its outcome are
// published as mcp.tool_called and mcp.tool_result (or mcp.error) events.
func (c *Client) CallTool(ctx context.Context, server, tool string, args map[string]any) (*mcp.CallToolResult, error) {
	session, err := c.session(server)
	if err != nil {
		return nil, err
	}

	c.publish(eventbus.TypeMCPToolCalled, map[string]any{
		"server": server,
		"tool":   tool,
	})

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		c.publishError(server, tool, err)
		return nil, fmt.Errorf("calling tool %q on %q: %w", tool, server, err)
	}

	c.publish(eventbus.TypeMCPToolResult, map[string]any{
		"server":   server,
		"tool":     tool,
		"is_error": res.IsError,
	})
	return res, nil
}

// Connected returns the names of servers with an active session.
func (c *Client) Connected() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.sessions))
	for name := range c.sessions {
		names = append(names, name)
	}
	return names
}

// Close closes every active session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for name, session := range c.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing session to %q: %w", name, err)
		}
		delete(c.sessions, name)
	}
	return firstErr
}

func (c *Client) session(server string) (*mcp.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[server]
	if !ok {
		return nil, fmt.Errorf("MCP server %q is not connected", server)
	}
	return session, nil
}

func (c *Client) publish(eventType string, payload map[string]any) {
	if err := c.bus.Publish(eventbus.NewMCPEvent(eventType, payload)); err != nil {
		c.logger.Warn("publishing MCP event", "event_type", eventType, "error", err)
	}
}

func (c *Client) publishError(server, tool string, err error) {
	payload := map[string]any{
		"server": server,
		"error":  err.Error(),
	}
	if tool != "" {
		payload["tool"] = tool
	}
	c.publish(eventbus.TypeMCPError, payload)
}

// buildTransport converts a registry entry into an SDK transport.
func buildTransport(cfg config.MCPServerConfig) (mcp.Transport, error) {
	switch cfg.Transport {
	case "stdio":
		//nolint:gosec // command comes from the admin-configured registry
		cmd := exec.Command(cfg.Command, cfg.Args...)
		cmd.Env = os.Environ()
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		return &mcp.CommandTransport{Command: cmd}, nil

	case "streamable_http":
		transport := &mcp.StreamableClientTransport{Endpoint: cfg.URL}
		if len(cfg.Headers) > 0 {
			transport.HTTPClient = &http.Client{
				Transport: &headerRoundTripper{headers: cfg.Headers, base: http.DefaultTransport},
			}
		}
		return transport, nil

	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

// headerRoundTripper injects static headers into every outgoing request.
type headerRoundTripper struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}
	return t.base.RoundTrip(clone)
}
