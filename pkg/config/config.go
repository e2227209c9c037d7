// Package config loads gateway configuration files and resolves them into
// tool server configurations.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	mcpgateway "github.com/vikashloomba/mcp-openapi-proxy/pkg/mcp-gateway"
	"github.com/vikashloomba/mcp-openapi-proxy/pkg/mcpmgr"
	"gopkg.in/yaml.v3"
)

// File is a parsed configuration file. JSON files are valid YAML and load
// the same way.
type File struct {
	Name             string   `yaml:"name"`
	Description      string   `yaml:"description"`
	Version          string   `yaml:"version"`
	CORSAllowOrigins []string `yaml:"corsAllowOrigins"`
	APIKey           string   `yaml:"apiKey"`
	StrictAuth       bool     `yaml:"strictAuth"`
	PathPrefix       string   `yaml:"pathPrefix"`
	SSLCertfile      string   `yaml:"sslCertfile"`
	SSLKeyfile       string   `yaml:"sslKeyfile"`

	// Servers keeps the file's order; a repeated name appears twice.
	Servers []NamedEntry `yaml:"-"`
}

// NamedEntry is one entry of the server map.
type NamedEntry struct {
	Name  string
	Entry ServerEntry
}

// ServerEntry describes how to reach one tool server: a command to spawn or
// a URL to dial.
type ServerEntry struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`

	URL string `yaml:"url"`
	// Type selects the URL transport: "sse" or "streamable-http". Empty tries
	// Streamable HTTP first and falls back to SSE.
	Type    string            `yaml:"type"`
	Headers map[string]string `yaml:"headers"`

	Timeout time.Duration `yaml:"timeout"`
}

var serverKeys = []string{"mcpServers", "servers"}

// Load reads path, resolves ${VAR} references in every string value and
// decodes the result.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes configuration data. See Load.
func Parse(data []byte) (*File, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: config: %v", mcpgateway.ErrConfiguration, err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: config: empty document", mcpgateway.ErrConfiguration)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: config: top level must be a mapping", mcpgateway.ErrConfiguration)
	}
	expandNode(root)

	var f File
	if err := root.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: config: %v", mcpgateway.ErrConfiguration, err)
	}
	key, servers := lookup(root, serverKeys...)
	if servers == nil {
		return &f, nil
	}
	if servers.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: config: %s must be a mapping", mcpgateway.ErrConfiguration, key)
	}
	for i := 0; i+1 < len(servers.Content); i += 2 {
		name := servers.Content[i].Value
		var entry ServerEntry
		if err := servers.Content[i+1].Decode(&entry); err != nil {
			return nil, fmt.Errorf("%w: config: server %q: %v", mcpgateway.ErrConfiguration, name, err)
		}
		f.Servers = append(f.Servers, NamedEntry{Name: name, Entry: entry})
	}
	return &f, nil
}

// ServerSet resolves the file's servers for the gateway. An empty server map
// is a configuration error.
func (f *File) ServerSet() (mcpgateway.ServerSet, error) {
	if len(f.Servers) == 0 {
		return mcpgateway.ServerSet{}, fmt.Errorf("%w: no servers found in config (expected %q)", mcpgateway.ErrNoServers, serverKeys[0])
	}
	set := mcpgateway.ServerSet{Servers: make([]mcpgateway.NamedServer, 0, len(f.Servers))}
	for _, s := range f.Servers {
		cfg, err := s.Entry.ServerConfig()
		if err != nil {
			return mcpgateway.ServerSet{}, fmt.Errorf("server %q: %w", s.Name, err)
		}
		set.Servers = append(set.Servers, mcpgateway.NamedServer{Name: s.Name, Config: cfg})
	}
	return set, nil
}

// ServerConfig converts the entry into an mcpmgr configuration.
func (e ServerEntry) ServerConfig() (mcpmgr.ServerConfig, error) {
	base := mcpmgr.BaseServerConfig{Timeout: e.Timeout}
	switch {
	case e.Command != "" && e.URL != "":
		return nil, fmt.Errorf("%w: command and url are mutually exclusive", mcpgateway.ErrConfiguration)
	case e.Command != "":
		return &mcpmgr.StdioServerConfig{
			BaseServerConfig: base,
			Command:          e.Command,
			Args:             e.Args,
			Env:              e.Env,
		}, nil
	case e.URL != "":
		cfg := &mcpmgr.HTTPServerConfig{BaseServerConfig: base, Endpoint: e.URL}
		for k, v := range e.Headers {
			if cfg.Headers == nil {
				cfg.Headers = make(map[string][]string, len(e.Headers))
			}
			cfg.Headers.Set(k, v)
		}
		switch strings.ToLower(e.Type) {
		case "":
		case "sse":
			preferSSE := true
			cfg.PreferSSE = &preferSSE
		case "streamable-http", "streamable_http", "streamablehttp", "http":
			preferSSE := false
			cfg.PreferSSE = &preferSSE
		default:
			return nil, fmt.Errorf("%w: unknown server type %q", mcpgateway.ErrConfiguration, e.Type)
		}
		return cfg, nil
	default:
		return nil, fmt.Errorf("%w: a command or url is required", mcpgateway.ErrConfiguration)
	}
}

var envRef = regexp.MustCompile(`\$\{(\w+)\}`)

// ExpandString replaces ${VAR} with the value of the environment variable
// VAR. References to unset variables are left as they are.
func ExpandString(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := envRef.FindStringSubmatch(ref)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return ref
	})
}

// expandNode rewrites every string scalar below n. Plain scalars are
// re-resolved afterwards so "${PORT}" can still decode as a number.
func expandNode(n *yaml.Node) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.ShortTag() != "!!str" {
			return
		}
		expanded := ExpandString(n.Value)
		if expanded == n.Value {
			return
		}
		n.Value = expanded
		if n.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) == 0 {
			n.Tag = ""
		}
	case yaml.DocumentNode, yaml.SequenceNode, yaml.MappingNode:
		for _, c := range n.Content {
			expandNode(c)
		}
	}
}

// lookup returns the value of the first key present in mapping.
func lookup(mapping *yaml.Node, keys ...string) (string, *yaml.Node) {
	for _, key := range keys {
		for i := 0; i+1 < len(mapping.Content); i += 2 {
			if mapping.Content[i].Value == key {
				return key, mapping.Content[i+1]
			}
		}
	}
	return "", nil
}

// LoadEnvFiles loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}
