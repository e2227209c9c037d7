package mcpgateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/vikashloomba/mcp-openapi-proxy/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-openapi-proxy/pkg/toolschema"
)

const maxRequestBody = 8 << 20

// Node is the HTTP namespace of one tool server. Its tool routes are bound
// when the server's session becomes ready and dropped when it goes away.
type Node struct {
	name  string
	mount string

	cfg            mcpmgr.ServerConfig
	pinned         bool
	startupTimeout time.Duration

	lifecycle *mcpmgr.Lifecycle
	registry  *routeRegistry
	synth     *Synthesizer
	auth      *authGate
	metrics   *metrics
	logger    *slog.Logger

	metaMu sync.RWMutex
	meta   Metadata

	mux *http.ServeMux
}

type nodeParams struct {
	name      string
	mount     string
	namespace string
	cfg       mcpmgr.ServerConfig
	meta      Metadata
	pinned    bool
	stack     *mcpmgr.ShutdownStack
	auth      *authGate
	metrics   *metrics
	opts      *Options
}

func newNode(p nodeParams) *Node {
	logger := p.opts.Logger.With("server", p.name)
	n := &Node{
		name:           p.name,
		mount:          p.mount,
		cfg:            p.cfg,
		pinned:         p.pinned,
		startupTimeout: p.opts.StartupTimeout,
		registry:       newRouteRegistry(),
		auth:           p.auth,
		metrics:        p.metrics,
		logger:         logger,
		meta:           p.meta,
		synth: &Synthesizer{
			ServerID:    p.namespace,
			Naming:      p.opts.Naming,
			CallTimeout: mcpmgr.TimeoutOf(p.cfg, p.opts.CallTimeout),
			Logger:      logger,
		},
	}
	n.lifecycle = mcpmgr.NewLifecycle(p.name, p.cfg, &mcpmgr.LifecycleOptions{
		Connector:     p.opts.Connector,
		Stack:         p.stack,
		Logger:        logger,
		OnStateChange: n.onStateChange,
	})
	n.metrics.setState(n.name, mcpmgr.StateUnstarted)

	n.mux = http.NewServeMux()
	n.mux.HandleFunc("GET /health", n.handleHealth)
	n.mux.HandleFunc("GET /openapi.json", n.handleOpenAPI)
	n.mux.HandleFunc("GET /docs", n.handleDocs)
	n.mux.Handle("POST /{tool...}", n.auth.Tools(http.HandlerFunc(n.handleTool)))
	return n
}

func (n *Node) Name() string          { return n.name }
func (n *Node) Mount() string         { return n.mount }
func (n *Node) State() mcpmgr.State   { return n.lifecycle.State() }
func (n *Node) Err() error            { return n.lifecycle.Err() }
func (n *Node) Handler() http.Handler { return n.mux }

// Metadata returns the node's current display metadata.
func (n *Node) Metadata() Metadata {
	n.metaMu.RLock()
	defer n.metaMu.RUnlock()
	return n.meta
}

// Bindings returns the currently bound tool operations, ordered by name.
func (n *Node) Bindings() []*Binding { return n.registry.Bindings() }

// Start connects to the tool server and binds its tools. On failure the node
// is FAILED and serves no tool routes.
func (n *Node) Start(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, n.startupTimeout)
	defer cancel()
	n.logger.Info("starting tool server", "transport", mcpmgr.TransportOf(n.cfg), "target", mcpmgr.Describe(n.cfg))
	if err := n.lifecycle.Start(ctx, n.bind); err != nil {
		n.registry.Clear()
		n.metrics.setEndpoints(n.name, 0)
		return err
	}
	return nil
}

// Close releases the node's session.
func (n *Node) Close(ctx context.Context) error {
	return n.lifecycle.Close(ctx)
}

func (n *Node) bind(ctx context.Context, session mcpmgr.Session) error {
	syn, err := n.synth.Synthesize(ctx, session)
	if err != nil {
		return err
	}
	n.adopt(syn.ServerInfo)
	removed, added := n.registry.Update(syn.Bindings)
	if len(removed) > 0 {
		n.logger.Info("tool routes removed", "tools", removed)
	}
	n.metrics.setEndpoints(n.name, len(added))
	n.logger.Info("tool routes bound", "count", len(added))
	return nil
}

func (n *Node) adopt(info *mcp.Implementation) {
	if info == nil || n.pinned {
		return
	}
	n.metaMu.Lock()
	defer n.metaMu.Unlock()
	if info.Name != "" {
		n.meta.Title = info.Name
		n.meta.Description = info.Name + " MCP Server"
	}
	if info.Version != "" {
		n.meta.Version = info.Version
	}
}

func (n *Node) onStateChange(_ string, _, to mcpmgr.State, _ error) {
	n.metrics.setState(n.name, to)
	if to == mcpmgr.StateFailed || to == mcpmgr.StateClosing {
		if dropped := n.registry.Clear(); len(dropped) > 0 {
			n.logger.Info("tool routes unbound", "count", len(dropped), "state", to)
		}
		n.metrics.setEndpoints(n.name, 0)
	}
}

func (n *Node) handleTool(w http.ResponseWriter, r *http.Request) {
	tool := r.PathValue("tool")
	if state := n.lifecycle.State(); state != mcpmgr.StateReady {
		writeDetail(w, http.StatusServiceUnavailable, fmt.Sprintf("tool server %q is %s", n.name, state))
		return
	}
	b, ok := n.registry.Lookup(tool)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not Found")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeDetail(w, http.StatusBadRequest, "could not read request body")
		return
	}

	start := time.Now()
	parts, err := b.invoker.Invoke(r.Context(), body)
	if err != nil {
		if verr, ok := toolschema.AsValidationError(err); ok {
			n.metrics.observeCall(n.name, tool, "invalid", time.Since(start))
			writeDetail(w, http.StatusUnprocessableEntity, verr.Fields)
			return
		}
		n.metrics.observeCall(n.name, tool, "error", time.Since(start))
		n.logger.Error("tool call failed", "tool", tool, "error", err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	n.metrics.observeCall(n.name, tool, "ok", time.Since(start))
	writeJSON(w, http.StatusOK, parts)
}

func (n *Node) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := n.lifecycle.State()
	if state == mcpmgr.StateReady {
		writeJSON(w, http.StatusOK, map[string]any{"status": string(state), "tools": n.registry.Len()})
		return
	}
	body := map[string]any{"status": string(state)}
	if err := n.lifecycle.Err(); err != nil {
		body["error"] = err.Error()
	}
	writeJSON(w, http.StatusServiceUnavailable, body)
}

func (n *Node) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, openAPIDocument(n.Metadata(), n.mount, n.registry.Bindings(), n.auth.enabled()))
}

func (n *Node) handleDocs(w http.ResponseWriter, _ *http.Request) {
	serveSwaggerUI(w, n.Metadata().Title, "openapi.json")
}
