package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// MCPServerConfig describes one entry in the MCP registry YAML file.
type MCPServerConfig struct {
	Transport string            `yaml:"transport"` // "stdio" or "streamable_http"
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Env       map[string]string `yaml:"env"`
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
}

// MCPRegistry holds the parsed MCP server configurations keyed by name.
type MCPRegistry struct {
	servers map[string]MCPServerConfig
}

// Has reports whether the registry contains a server with the given name.
func (r *MCPRegistry) Has(name string) bool {
	_, ok := r.servers[name]
	return ok
}

// Get returns the configuration for the named server.
func (r *MCPRegistry) Get(name string) (MCPServerConfig, bool) {
	cfg, ok := r.servers[name]
	return cfg, ok
}

// Names returns the registered server names in sorted order.
func (r *MCPRegistry) Names() []string {
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadMCPRegistry reads the MCP registry YAML file at filePath and returns a
// populated MCPRegistry. If the file does not exist, an empty registry is
// returned (not an error).
func LoadMCPRegistry(filePath string) (*MCPRegistry, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // path is from admin-configured data dir
	if err != nil {
		if os.IsNotExist(err) {
			return &MCPRegistry{servers: make(map[string]MCPServerConfig)}, nil
		}
		return nil, fmt.Errorf("reading MCP registry %q: %w", filePath, err)
	}

	var raw map[string]MCPServerConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing MCP registry %q: %w", filePath, err)
	}

	registry := &MCPRegistry{servers: make(map[string]MCPServerConfig, len(raw))}
	for name, entry := range raw {
		switch entry.Transport {
		case "stdio":
			if entry.Command == "" {
				return nil, fmt.Errorf("MCP server %q: stdio transport requires a command", name)
			}
			env, err := interpolateEnvMap(name, entry.Env)
			if err != nil {
				return nil, err
			}
			entry.Env = env

		case "streamable_http":
			if entry.URL == "" {
				return nil, fmt.Errorf("MCP server %q: streamable_http transport requires a url", name)
			}
			headers, err := interpolateEnvMap(name, entry.Headers)
			if err != nil {
				return nil, err
			}
			entry.Headers = headers

		default:
			return nil, fmt.Errorf("MCP server %q: unknown transport %q (must be stdio or streamable_http)", name, entry.Transport)
		}
		registry.servers[name] = entry
	}

	return registry, nil
}

// interpolateEnvMap applies ${ENV:VAR_NAME} substitution to all values in m.
func interpolateEnvMap(serverName string, m map[string]string) (map[string]string, error) {
	if len(m) == 0 {
		return m, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		interpolated, err := interpolateEnv(v)
		if err != nil {
			return nil, fmt.Errorf("MCP server %q key %q: %w", serverName, k, err)
		}
		out[k] = interpolated
	}
	return out, nil
}

// interpolateEnv replaces all ${ENV:VAR_NAME} patterns in s with the
// corresponding environment variable values. Returns an error if a referenced
// variable is not set.
func interpolateEnv(s string) (string, error) {
	result := s
	for {
		start := strings.Index(result, "${ENV:")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}")
		if end == -1 {
			break
		}
		end += start
		varName := result[start+6 : end]
		value := os.Getenv(varName)
		if value == "" {
			return "", fmt.Errorf("required env var %q is not set", varName)
		}
		result = result[:start] + value + result[end+1:]
	}
	return result, nil
}
