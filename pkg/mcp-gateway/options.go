package mcpgateway

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vikashloomba/mcp-openapi-proxy/pkg/mcpmgr"
)

const (
	defaultTitle       = "MCP OpenAPI Proxy"
	defaultDescription = "Automatically generated API from MCP Tool Schemas"
	defaultVersion     = "1.0"
)

// Metadata is the display information a node publishes in its OpenAPI
// document.
type Metadata struct {
	Title       string
	Description string
	Version     string
}

// Options configure a Gateway instance.
type Options struct {
	// Metadata names the gateway. In single-server mode it is replaced by the
	// server's reported identity unless MetadataOverride is set.
	Metadata Metadata
	// MetadataOverride pins Metadata even when the tool server reports its
	// own name and version.
	MetadataOverride bool
	// Addr controls the listen address used by ListenAndServe. Defaults to
	// "127.0.0.1:8000".
	Addr string
	// PathPrefix is prepended to every mounted server name. Defaults to "/".
	PathPrefix string
	// APIKey enables the auth gate. Empty disables it.
	APIKey string
	// StrictAuth extends the auth gate from tool endpoints to every request.
	StrictAuth bool
	// CORSAllowOrigins lists allowed origins. Defaults to "*".
	CORSAllowOrigins []string
	// TLSCertFile and TLSKeyFile switch ListenAndServe to TLS when both are set.
	TLSCertFile string
	TLSKeyFile  string
	// StartupTimeout bounds connect, initialize and tool listing per server.
	StartupTimeout time.Duration
	// ShutdownTimeout bounds HTTP drain plus session release.
	ShutdownTimeout time.Duration
	// Naming decides operation ids and mount paths. Defaults to
	// ServerPrefixNaming.
	Naming NamingStrategy
	// Connector opens tool server sessions. Defaults to an mcpmgr.Dialer.
	Connector mcpmgr.Connector
	// CallTimeout bounds each tool call when the server config sets none.
	CallTimeout time.Duration
	// Metrics receives the gateway's collectors and backs GET /metrics.
	// Defaults to a fresh registry.
	Metrics *prometheus.Registry
	// Logger receives structured diagnostics.
	Logger *slog.Logger
}

func (o *Options) withDefaults() Options {
	if o == nil {
		o = &Options{}
	}
	opts := *o
	if opts.Metadata.Title == "" {
		opts.Metadata.Title = defaultTitle
	}
	if opts.Metadata.Description == "" {
		opts.Metadata.Description = defaultDescription
	}
	if opts.Metadata.Version == "" {
		opts.Metadata.Version = defaultVersion
	}
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:8000"
	}
	if opts.PathPrefix == "" {
		opts.PathPrefix = "/"
	}
	if len(opts.CORSAllowOrigins) == 0 {
		opts.CORSAllowOrigins = []string{"*"}
	} else {
		opts.CORSAllowOrigins = append([]string(nil), opts.CORSAllowOrigins...)
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = 60 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	if opts.Naming == nil {
		opts.Naming = ServerPrefixNaming{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Connector == nil {
		opts.Connector = mcpmgr.NewDialer(&mcpmgr.DialerOptions{
			ClientName: "mcp-openapi-proxy",
			Logger:     opts.Logger,
		})
	}
	if opts.Metrics == nil {
		opts.Metrics = prometheus.NewRegistry()
	}
	return opts
}
