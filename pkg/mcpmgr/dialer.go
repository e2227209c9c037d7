package mcpmgr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Dialer connects to tool servers with the go-sdk MCP client. It is safe for
// concurrent use; every Connect builds a fresh client and transport.
type Dialer struct {
	options DialerOptions
}

var _ Connector = (*Dialer)(nil)

// NewDialer constructs a Dialer. Callers can provide nil options to fall back
// to sensible defaults.
func NewDialer(opts *DialerOptions) *Dialer {
	return &Dialer{options: opts.normalized()}
}

// Connect builds the transport for cfg, connects, and performs the MCP
// initialize handshake. The returned session is owned by the caller.
func (d *Dialer) Connect(ctx context.Context, serverID string, cfg ServerConfig) (Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mcpmgr: missing configuration for %q", serverID)
	}
	base := cfg.base()
	impl := &mcp.Implementation{
		Name:    d.effectiveClientName(serverID),
		Version: d.effectiveClientVersion(base),
	}
	logger := d.resolveLogger(base)

	attempt := func(ctx context.Context, transport mcp.Transport) (*mcp.ClientSession, error) {
		client := mcp.NewClient(impl, nil)
		wrapped := transport
		if logger != nil {
			wrapped = &loggingTransport{serverID: serverID, delegate: transport, logger: logger}
		}
		return client.Connect(ctx, &detachedTransport{delegate: wrapped}, nil)
	}

	connectCtx, cancel := context.WithTimeout(ctx, TimeoutOf(cfg, d.options.DefaultTimeout))
	defer cancel()

	var (
		session *mcp.ClientSession
		err     error
	)
	if c, ok := AsStdio(cfg); ok {
		var transport mcp.Transport
		transport, err = d.buildStdioTransport(serverID, c)
		if err != nil {
			return nil, err
		}
		session, err = attempt(connectCtx, transport)
	} else if c, ok := AsHTTP(cfg); ok {
		session, err = d.connectHTTP(connectCtx, serverID, c, attempt)
	} else {
		return nil, fmt.Errorf("mcpmgr: unsupported config for %q", serverID)
	}
	if err != nil {
		return nil, &TransportError{Server: serverID, Op: "connect", Err: err}
	}
	d.options.Logger.Debug("connected to tool server", "server", serverID, "transport", TransportOf(cfg), "target", Describe(cfg))
	return session, nil
}

func (d *Dialer) connectHTTP(
	ctx context.Context,
	serverID string,
	cfg *HTTPServerConfig,
	attempt func(context.Context, mcp.Transport) (*mcp.ClientSession, error),
) (*mcp.ClientSession, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("mcpmgr: endpoint missing for %q", serverID)
	}
	client := d.decorateHTTPClient(cfg.HTTPClient, cfg.Headers)
	streamable := &mcp.StreamableClientTransport{
		Endpoint:   cfg.Endpoint,
		HTTPClient: client,
		MaxRetries: cfg.MaxRetries,
	}
	sse := &mcp.SSEClientTransport{Endpoint: cfg.Endpoint, HTTPClient: client}

	first, second := mcp.Transport(streamable), mcp.Transport(sse)
	if d.shouldPreferSSE(cfg) {
		first, second = sse, streamable
	}
	session, firstErr := attempt(ctx, first)
	if firstErr == nil {
		return session, nil
	}
	session, err := attempt(ctx, second)
	if err != nil {
		return nil, fmt.Errorf("%s error: %v; %s error: %w", transportName(first), firstErr, transportName(second), err)
	}
	return session, nil
}

func (d *Dialer) buildStdioTransport(serverID string, cfg *StdioServerConfig) (mcp.Transport, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("mcpmgr: command missing for %q", serverID)
	}
	cmd := exec.Command(cfg.Command, cfg.Args...)
	if len(cfg.Env) > 0 {
		env := os.Environ()
		for k, v := range cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}
	return &mcp.CommandTransport{Command: cmd}, nil
}

func (d *Dialer) effectiveClientName(serverID string) string {
	if d.options.ClientName != "" {
		return d.options.ClientName
	}
	return serverID
}

func (d *Dialer) effectiveClientVersion(base *BaseServerConfig) string {
	if base.Version != "" {
		return base.Version
	}
	return d.options.ClientVersion
}

func (d *Dialer) resolveLogger(base *BaseServerConfig) RPCLogger {
	if base.RPCLogger != nil {
		return base.RPCLogger
	}
	if d.options.RPCLogger != nil {
		return d.options.RPCLogger
	}
	if base.LogJSONRPC || d.options.LogJSONRPC {
		logger := d.options.Logger
		return func(event RPCLogEvent) {
			logger.Debug("json-rpc", "server", event.ServerID, "direction", strings.ToUpper(string(event.Direction)), "message", string(event.Message))
		}
	}
	return nil
}

func (d *Dialer) shouldPreferSSE(cfg *HTTPServerConfig) bool {
	if cfg.PreferSSE != nil {
		return *cfg.PreferSSE
	}
	return strings.HasSuffix(strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"), "/sse")
}

func (d *Dialer) decorateHTTPClient(base *http.Client, headers http.Header) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	if len(headers) == 0 {
		return base
	}
	clone := *base
	clone.Transport = &headerDecorator{
		next:    defaultRoundTripper(base.Transport),
		headers: cloneHeader(headers),
	}
	return &clone
}

func transportName(t mcp.Transport) string {
	if _, ok := t.(*mcp.SSEClientTransport); ok {
		return "sse"
	}
	return "streamable"
}

// detachedTransport keeps the connection alive past the context used to
// open it. The transports tie their long-lived streams to the Connect
// context, which here only bounds the handshake. ctx still aborts a Connect
// that has not finished. The delegate's connection is returned as is so the
// SDK still sees its optional session hooks.
type detachedTransport struct {
	delegate mcp.Transport
}

func (t *detachedTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)
	conn, err := t.delegate.Connect(connCtx)
	if !stop() {
		if err == nil {
			_ = conn.Close()
		}
		return nil, errors.Join(ctx.Err(), err)
	}
	if err != nil {
		cancel()
		return nil, err
	}
	return conn, nil
}

type loggingTransport struct {
	serverID string
	delegate mcp.Transport
	logger   RPCLogger
}

func (t *loggingTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	conn, err := t.delegate.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &loggingConnection{serverID: t.serverID, delegate: conn, logger: t.logger}, nil
}

type loggingConnection struct {
	serverID string
	delegate mcp.Connection
	logger   RPCLogger
	mu       sync.Mutex
}

func (c *loggingConnection) SessionID() string { return c.delegate.SessionID() }

func (c *loggingConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	msg, err := c.delegate.Read(ctx)
	if err == nil {
		c.emit(RPCDirectionReceive, msg)
	}
	return msg, err
}

func (c *loggingConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	if err := c.delegate.Write(ctx, msg); err != nil {
		return err
	}
	c.emit(RPCDirectionSend, msg)
	return nil
}

func (c *loggingConnection) Close() error { return c.delegate.Close() }

func (c *loggingConnection) emit(direction RPCDirection, msg jsonrpc.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	encoded, err := json.Marshal(msg)
	if err != nil {
		encoded = []byte(err.Error())
	}
	c.logger(RPCLogEvent{Direction: direction, Message: encoded, ServerID: c.serverID})
}

func cloneHeader(h http.Header) http.Header {
	if len(h) == 0 {
		return nil
	}
	clone := make(http.Header, len(h))
	for k, values := range h {
		clone[k] = append([]string(nil), values...)
	}
	return clone
}

type headerDecorator struct {
	next    http.RoundTripper
	headers http.Header
}

func (d *headerDecorator) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, values := range d.headers {
		req.Header.Del(k)
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	return d.next.RoundTrip(req)
}

func defaultRoundTripper(next http.RoundTripper) http.RoundTripper {
	if next != nil {
		return next
	}
	return http.DefaultTransport
}
