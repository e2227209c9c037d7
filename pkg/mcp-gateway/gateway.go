package mcpgateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/vikashloomba/mcp-openapi-proxy/pkg/mcpmgr"
	"golang.org/x/sync/errgroup"
)

// singleServerName labels the only node in single-server mode.
const singleServerName = "default"

// NamedServer is one entry of a multi-server configuration.
type NamedServer struct {
	Name   string
	Config mcpmgr.ServerConfig
}

// ServerSet selects the gateway mode: Single for one server served at the
// root, or Servers for one mounted node per entry. Exactly one must be set.
type ServerSet struct {
	Single  mcpmgr.ServerConfig
	Servers []NamedServer
}

// Gateway serves the tools of one or more tool servers as HTTP endpoints.
type Gateway struct {
	opts   Options
	single bool
	nodes  []*Node

	stack   *mcpmgr.ShutdownStack
	auth    *authGate
	metrics *metrics

	mux     *http.ServeMux
	handler http.Handler

	httpServerMu sync.Mutex
	httpServer   *http.Server
}

type mountInfo struct {
	Name string
	Path string
}

// Compose builds the node tree for servers. It fails with an error wrapping
// ErrConfiguration when the set is empty or a server name cannot be mounted.
// Nothing is connected until Start.
func Compose(servers ServerSet, opts *Options) (*Gateway, error) {
	options := opts.withDefaults()
	if servers.Single == nil && len(servers.Servers) == 0 {
		return nil, ErrNoServers
	}
	if servers.Single != nil && len(servers.Servers) > 0 {
		return nil, fmt.Errorf("%w: a single server and named servers are mutually exclusive", ErrConfiguration)
	}

	g := &Gateway{
		opts:    options,
		single:  servers.Single != nil,
		stack:   &mcpmgr.ShutdownStack{},
		auth:    newAuthGate(options.APIKey, options.StrictAuth),
		metrics: newMetrics(options.Metrics),
	}
	if g.auth.enabled() {
		options.Logger.Info("api key required", "strict", options.StrictAuth)
	} else {
		options.Logger.Warn("no api key configured, tool endpoints are open")
	}

	if g.single {
		node := newNode(nodeParams{
			name:    singleServerName,
			cfg:     servers.Single,
			meta:    options.Metadata,
			pinned:  options.MetadataOverride,
			stack:   g.stack,
			auth:    g.auth,
			metrics: g.metrics,
			opts:    &g.opts,
		})
		g.nodes = []*Node{node}
		g.mux = node.mux
	} else {
		if err := g.composeMounted(servers.Servers); err != nil {
			return nil, err
		}
	}
	g.mux.Handle("GET /metrics", g.metrics.handler())
	g.handler = accessLog(options.Logger, g.auth.All(corsHandler(options.CORSAllowOrigins, g.mux)))
	return g, nil
}

func (g *Gateway) composeMounted(servers []NamedServer) error {
	byMount := make(map[string]int, len(servers))
	for _, s := range servers {
		if err := validServerName(s.Name); err != nil {
			return err
		}
		if s.Config == nil {
			return fmt.Errorf("%w: server %q has no transport configuration", ErrConfiguration, s.Name)
		}
		mount := g.opts.Naming.MountPath(g.opts.PathPrefix, s.Name)
		node := newNode(nodeParams{
			name:      s.Name,
			mount:     mount,
			namespace: s.Name,
			cfg:       s.Config,
			meta:      Metadata{Title: s.Name, Description: s.Name + " MCP Server", Version: defaultVersion},
			stack:     g.stack,
			auth:      g.auth,
			metrics:   g.metrics,
			opts:      &g.opts,
		})
		if i, dup := byMount[mount]; dup {
			g.opts.Logger.Warn("mount path already registered, last registration wins", "path", mount, "replaced", g.nodes[i].name, "server", s.Name)
			g.nodes[i] = node
			continue
		}
		byMount[mount] = len(g.nodes)
		g.nodes = append(g.nodes, node)
	}

	g.mux = http.NewServeMux()
	g.mux.HandleFunc("GET /{$}", g.handleListing)
	g.mux.HandleFunc("GET /openapi.json", g.handleOpenAPI)
	g.mux.HandleFunc("GET /docs", g.handleDocs)
	g.mux.HandleFunc("GET /health", g.handleHealth)
	for _, node := range g.nodes {
		g.mux.Handle(node.mount+"/", http.StripPrefix(node.mount, node.Handler()))
	}
	return nil
}

// Handler exposes the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// ServeMux exposes the outermost mux so callers can add routes of their own.
// Routes added here sit behind the same auth, CORS and logging layers.
func (g *Gateway) ServeMux() *http.ServeMux {
	return g.mux
}

// Nodes returns the gateway's tool server nodes in mount order.
func (g *Gateway) Nodes() []*Node {
	return append([]*Node(nil), g.nodes...)
}

// Start connects every node. In single-server mode a failure is returned and
// the gateway must not serve. With mounted servers the nodes start
// concurrently and a failing node only takes itself down.
func (g *Gateway) Start(ctx context.Context) error {
	if g.single {
		if err := g.nodes[0].Start(ctx); err != nil {
			return fmt.Errorf("mcpgateway: start tool server: %w", err)
		}
		return nil
	}

	var eg errgroup.Group
	for _, node := range g.nodes {
		eg.Go(func() error {
			if err := node.Start(ctx); err != nil {
				g.opts.Logger.Error("tool server unavailable", "server", node.name, "error", err)
			}
			return nil
		})
	}
	_ = eg.Wait()

	ready := 0
	for _, node := range g.nodes {
		if node.State() == mcpmgr.StateReady {
			ready++
		}
	}
	g.opts.Logger.Info("gateway started", "servers", len(g.nodes), "ready", ready)
	return ctx.Err()
}

// Close releases every open session, last opened first, and marks the
// remaining nodes closed. It is safe to call more than once.
func (g *Gateway) Close(ctx context.Context) error {
	err := g.stack.Unwind(ctx)
	for _, node := range g.nodes {
		_ = node.Close(ctx)
	}
	return err
}

// ListenAndServe starts every node, then serves HTTP until ctx is cancelled
// or the listener fails. Sessions are released after the HTTP server has
// drained. A cancelled ctx is a graceful shutdown and returns nil; release
// failures are logged.
func (g *Gateway) ListenAndServe(ctx context.Context) error {
	if err := g.Start(ctx); err != nil {
		g.closeWithTimeout()
		return err
	}

	g.httpServerMu.Lock()
	if g.httpServer != nil {
		serv := g.httpServer
		g.httpServerMu.Unlock()
		return fmt.Errorf("mcpgateway: server already running on %s", serv.Addr)
	}
	srv := &http.Server{Addr: g.opts.Addr, Handler: g.Handler(), ReadHeaderTimeout: 10 * time.Second}
	g.httpServer = srv
	g.httpServerMu.Unlock()
	defer func() {
		g.httpServerMu.Lock()
		if g.httpServer == srv {
			g.httpServer = nil
		}
		g.httpServerMu.Unlock()
	}()

	errCh := make(chan error, 1)
	go func() {
		if g.opts.TLSCertFile != "" && g.opts.TLSKeyFile != "" {
			g.opts.Logger.Info("serving https", "addr", srv.Addr)
			errCh <- srv.ListenAndServeTLS(g.opts.TLSCertFile, g.opts.TLSKeyFile)
			return
		}
		g.opts.Logger.Info("serving http", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), g.opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			g.opts.Logger.Warn("http server shutdown", "error", err)
		}
		// Children often exit on the same signal, so release errors are
		// expected here and do not fail the shutdown.
		if err := g.Close(shutdownCtx); err != nil {
			g.opts.Logger.Warn("releasing tool server sessions", "error", err)
		}
		return nil
	case err := <-errCh:
		g.closeWithTimeout()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops the embedded HTTP server if it is running and then releases
// every session.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.httpServerMu.Lock()
	srv := g.httpServer
	g.httpServer = nil
	g.httpServerMu.Unlock()
	var errs []error
	if srv != nil {
		errs = append(errs, srv.Shutdown(ctx))
	}
	errs = append(errs, g.Close(ctx))
	return errors.Join(errs...)
}

func (g *Gateway) closeWithTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), g.opts.ShutdownTimeout)
	defer cancel()
	if err := g.Close(ctx); err != nil {
		g.opts.Logger.Warn("releasing tool server sessions", "error", err)
	}
}

func (g *Gateway) mounts() []mountInfo {
	out := make([]mountInfo, 0, len(g.nodes))
	for _, node := range g.nodes {
		out = append(out, mountInfo{Name: node.name, Path: node.mount})
	}
	return out
}

func (g *Gateway) handleListing(w http.ResponseWriter, _ *http.Request) {
	servers := make([]map[string]any, 0, len(g.nodes))
	for _, node := range g.nodes {
		entry := map[string]any{
			"name":    node.name,
			"title":   node.Metadata().Title,
			"path":    node.mount,
			"docs":    node.mount + "/docs",
			"openapi": node.mount + "/openapi.json",
			"state":   string(node.State()),
			"tools":   node.registry.Len(),
		}
		if err := node.Err(); err != nil {
			entry["error"] = err.Error()
		}
		servers = append(servers, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title":       g.opts.Metadata.Title,
		"description": g.opts.Metadata.Description,
		"version":     g.opts.Metadata.Version,
		"docs":        "/docs",
		"servers":     servers,
	})
}

func (g *Gateway) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	meta := g.opts.Metadata
	meta.Description = rootDescription(meta.Description, g.mounts())
	writeJSON(w, http.StatusOK, openAPIDocument(meta, "", nil, g.auth.enabled()))
}

func (g *Gateway) handleDocs(w http.ResponseWriter, _ *http.Request) {
	serveSwaggerUI(w, g.opts.Metadata.Title, "openapi.json")
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := http.StatusOK
	servers := make(map[string]string, len(g.nodes))
	for _, node := range g.nodes {
		state := node.State()
		servers[node.name] = string(state)
		if state != mcpmgr.StateReady {
			status = http.StatusServiceUnavailable
		}
	}
	overall := "ready"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": overall, "servers": servers})
}
