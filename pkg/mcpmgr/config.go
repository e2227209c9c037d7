package mcpmgr

import (
	"log/slog"
	"net/http"
	"time"
)

// RPCDirection represents the direction of an observed JSON-RPC message.
type RPCDirection string

const (
	RPCDirectionSend    RPCDirection = "send"
	RPCDirectionReceive RPCDirection = "receive"
)

// RPCLogEvent encapsulates JSON-RPC traffic for custom logging.
type RPCLogEvent struct {
	Direction RPCDirection
	Message   []byte
	ServerID  string
}

// RPCLogger is invoked for each JSON-RPC message when logging is enabled.
type RPCLogger func(RPCLogEvent)

// BaseServerConfig captures settings shared by all transport types.
type BaseServerConfig struct {
	// Timeout bounds the connect handshake and every individual tool call.
	Timeout    time.Duration
	Version    string
	LogJSONRPC bool
	RPCLogger  RPCLogger
}

// StdioServerConfig describes a tool server spawned as a child process that
// speaks MCP over its stdin/stdout.
type StdioServerConfig struct {
	BaseServerConfig
	Command string
	Args    []string
	// Env is layered over the gateway's own environment; entries here win.
	Env map[string]string
}

func (c *StdioServerConfig) base() *BaseServerConfig { return &c.BaseServerConfig }

// HTTPServerConfig describes a tool server reachable at a URL, either over
// Streamable HTTP or a server-sent event stream.
type HTTPServerConfig struct {
	BaseServerConfig
	Endpoint   string
	HTTPClient *http.Client
	MaxRetries int
	// Headers are added to every outbound request.
	Headers http.Header
	// PreferSSE forces (true) or forbids (false) trying SSE first. When nil,
	// endpoints ending in "/sse" prefer SSE.
	PreferSSE *bool
}

func (c *HTTPServerConfig) base() *BaseServerConfig { return &c.BaseServerConfig }

// ServerConfig is implemented by all transport-specific configurations.
type ServerConfig interface {
	base() *BaseServerConfig
}

// TimeoutOf returns the configured timeout of cfg, or fallback when unset.
func TimeoutOf(cfg ServerConfig, fallback time.Duration) time.Duration {
	if cfg == nil {
		return fallback
	}
	if t := cfg.base().Timeout; t > 0 {
		return t
	}
	return fallback
}

// DialerOptions configures a Dialer.
type DialerOptions struct {
	// ClientName overrides the client name advertised during initialization.
	// When empty, the server ID is used.
	ClientName string
	// ClientVersion controls the semantic version reported to servers.
	ClientVersion string
	// DefaultTimeout is applied whenever a server configuration omits an
	// explicit timeout.
	DefaultTimeout time.Duration
	// LogJSONRPC logs JSON-RPC traffic for every server at debug level.
	LogJSONRPC bool
	// RPCLogger provides a custom logger for JSON-RPC traffic; it takes
	// precedence over LogJSONRPC.
	RPCLogger RPCLogger
	Logger    *slog.Logger
}

func (o *DialerOptions) normalized() DialerOptions {
	var opts DialerOptions
	if o != nil {
		opts = *o
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "1.0.0"
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts
}
