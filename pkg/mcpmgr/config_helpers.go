package mcpmgr

import "strings"

// ConfigTransport identifies the transport family used by a ServerConfig.
type ConfigTransport string

const (
	// TransportStdio is a spawned process speaking over its standard streams.
	TransportStdio ConfigTransport = "stdio"
	// TransportHTTP is a URL speaking Streamable HTTP or an SSE event stream.
	TransportHTTP ConfigTransport = "http"
)

// TransportOf names cfg's transport family, or "" for nil.
func TransportOf(cfg ServerConfig) ConfigTransport {
	switch cfg.(type) {
	case *StdioServerConfig:
		return TransportStdio
	case *HTTPServerConfig:
		return TransportHTTP
	default:
		return ""
	}
}

// AsStdio narrows cfg to a stdio config.
func AsStdio(cfg ServerConfig) (*StdioServerConfig, bool) {
	c, ok := cfg.(*StdioServerConfig)
	return c, ok
}

// AsHTTP narrows cfg to an HTTP config.
func AsHTTP(cfg ServerConfig) (*HTTPServerConfig, bool) {
	c, ok := cfg.(*HTTPServerConfig)
	return c, ok
}

// Describe returns a short human-readable target for logs: the command line
// of a stdio server or the endpoint of an HTTP server.
func Describe(cfg ServerConfig) string {
	switch c := cfg.(type) {
	case *StdioServerConfig:
		return strings.Join(append([]string{c.Command}, c.Args...), " ")
	case *HTTPServerConfig:
		return c.Endpoint
	default:
		return ""
	}
}
