package mcpmgr

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Session is the live connection to one tool server. *mcp.ClientSession
// satisfies it; the initialize handshake has already completed when a
// Connector returns one.
type Session interface {
	InitializeResult() *mcp.InitializeResult
	ListTools(ctx context.Context, params *mcp.ListToolsParams) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
	// Wait blocks until the underlying connection ends.
	Wait() error
	Close() error
}

var _ Session = (*mcp.ClientSession)(nil)

// Connector opens sessions for server configurations.
type Connector interface {
	Connect(ctx context.Context, serverID string, cfg ServerConfig) (Session, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, serverID string, cfg ServerConfig) (Session, error)

func (f ConnectorFunc) Connect(ctx context.Context, serverID string, cfg ServerConfig) (Session, error) {
	return f(ctx, serverID, cfg)
}

// TransportError reports a failure at the transport boundary of one server:
// connecting, listing tools, calling a tool or an unexpected disconnect.
type TransportError struct {
	Server string
	Op     string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mcpmgr: %s %q: %v", e.Op, e.Server, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ListAllTools lists every tool the session offers, following pagination
// cursors until the server reports no further pages.
func ListAllTools(ctx context.Context, serverID string, session Session) ([]*mcp.Tool, error) {
	var (
		tools  []*mcp.Tool
		cursor string
	)
	for {
		var params *mcp.ListToolsParams
		if cursor != "" {
			params = &mcp.ListToolsParams{Cursor: cursor}
		}
		res, err := session.ListTools(ctx, params)
		if err != nil {
			return nil, &TransportError{Server: serverID, Op: "list tools", Err: err}
		}
		if res == nil {
			return tools, nil
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" || res.NextCursor == cursor {
			return tools, nil
		}
		cursor = res.NextCursor
	}
}
