package mcpgateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/vikashloomba/mcp-openapi-proxy/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-openapi-proxy/pkg/toolschema"
)

// Synthesis is what one pass over a session's tool list produced.
type Synthesis struct {
	// ServerInfo is the identity the server reported during initialize.
	ServerInfo *mcp.Implementation
	Bindings   []*Binding
}

// Synthesizer turns a session's tools into HTTP bindings.
type Synthesizer struct {
	ServerID    string
	Naming      NamingStrategy
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// Synthesize reads the server identity from the completed initialize
// handshake, lists every tool and builds one binding per tool. It fails with
// ErrNoSession when session is nil and with a *mcpmgr.TransportError when
// listing fails.
func (s *Synthesizer) Synthesize(ctx context.Context, session mcpmgr.Session) (*Synthesis, error) {
	if session == nil {
		return nil, ErrNoSession
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	naming := s.Naming
	if naming == nil {
		naming = ServerPrefixNaming{}
	}

	out := &Synthesis{}
	if init := session.InitializeResult(); init != nil {
		out.ServerInfo = init.ServerInfo
	}
	tools, err := mcpmgr.ListAllTools(ctx, s.ServerID, session)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(tools))
	schemas := make(schemaNames, len(tools))
	for _, tool := range tools {
		if tool == nil || tool.Name == "" {
			continue
		}
		b := s.bind(tool, schemas.base(tool.Name), naming, session, logger)
		if i, dup := index[tool.Name]; dup {
			logger.Warn("duplicate tool name, keeping the last definition", "server", s.ServerID, "tool", tool.Name)
			out.Bindings[i] = b
			continue
		}
		index[tool.Name] = len(out.Bindings)
		out.Bindings = append(out.Bindings, b)
	}
	return out, nil
}

func (s *Synthesizer) bind(tool *mcp.Tool, schemaBase string, naming NamingStrategy, caller ToolCaller, logger *slog.Logger) *Binding {
	input := toolschema.Translate(schemaBase+"_form_model", tool.InputSchema)
	if input.Malformed {
		logger.Debug("tool input schema has no properties", "server", s.ServerID, "tool", tool.Name)
	}
	return &Binding{
		Tool:        tool.Name,
		OperationID: naming.OperationID(s.ServerID, tool.Name),
		Summary:     toolSummary(tool.Name),
		Description: tool.Description,
		Input:       input,
		Output:      toolschema.TranslateOutput(schemaBase+"_response_model", tool.OutputSchema),
		invoker:     NewInvoker(s.ServerID, tool.Name, input, caller, s.CallTimeout, logger),
	}
}

// schemaNames hands out OpenAPI-safe schema name prefixes, one per tool.
// Tools whose names sanitize to the same prefix get a numeric suffix.
type schemaNames map[string]string

func (n schemaNames) base(tool string) string {
	if b, ok := n[tool]; ok {
		return b
	}
	safe := toolschema.ComponentName(tool)
	candidate := safe
	for i := 2; n.taken(candidate); i++ {
		candidate = fmt.Sprintf("%s_%d", safe, i)
	}
	n[tool] = candidate
	return candidate
}

func (n schemaNames) taken(base string) bool {
	for _, b := range n {
		if b == base {
			return true
		}
	}
	return false
}
