package mcpgateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/vikashloomba/mcp-openapi-proxy/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-openapi-proxy/pkg/toolschema"
)

// UnsupportedContentPlaceholder replaces result content the gateway cannot
// render.
const UnsupportedContentPlaceholder = "Embedded resource not supported yet."

// ToolCaller issues tool calls. mcpmgr.Session satisfies it.
type ToolCaller interface {
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
}

// Invoker binds one session and tool name into a callable HTTP operation.
type Invoker struct {
	serverID string
	tool     string
	input    *toolschema.Descriptor
	caller   ToolCaller
	timeout  time.Duration
	logger   *slog.Logger
}

// NewInvoker builds an Invoker for tool. A zero timeout leaves calls bounded
// only by the transport.
func NewInvoker(serverID, tool string, input *toolschema.Descriptor, caller ToolCaller, timeout time.Duration, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		serverID: serverID,
		tool:     tool,
		input:    input,
		caller:   caller,
		timeout:  timeout,
		logger:   logger,
	}
}

// Invoke validates raw against the tool's input descriptor, calls the tool
// and returns its normalized content parts. Validation failures are returned
// as *toolschema.ValidationError and never reach the server.
//
// The call is detached from ctx cancellation: a client that disconnects does
// not abort a call already sent to the server.
func (inv *Invoker) Invoke(ctx context.Context, raw []byte) ([]any, error) {
	args, err := inv.input.Decode(raw)
	if err != nil {
		return nil, err
	}

	callCtx := context.WithoutCancel(ctx)
	if inv.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, inv.timeout)
		defer cancel()
	}
	inv.logger.Debug("calling tool", "server", inv.serverID, "tool", inv.tool, "arguments", args)
	res, err := inv.caller.CallTool(callCtx, &mcp.CallToolParams{Name: inv.tool, Arguments: args})
	if err != nil {
		return nil, &mcpmgr.TransportError{Server: inv.serverID, Op: fmt.Sprintf("call tool %q", inv.tool), Err: err}
	}
	if res == nil {
		return []any{}, nil
	}
	if res.IsError {
		inv.logger.Warn("tool reported an error", "server", inv.serverID, "tool", inv.tool)
	}
	return NormalizeContent(res.Content), nil
}

// NormalizeContent converts ordered result parts into JSON-ready values.
// Text is parsed as JSON when possible and kept literal otherwise, images
// become data URIs, and anything else becomes UnsupportedContentPlaceholder.
func NormalizeContent(content []mcp.Content) []any {
	out := make([]any, 0, len(content))
	for _, part := range content {
		switch c := part.(type) {
		case *mcp.TextContent:
			out = append(out, parseText(c.Text))
		case *mcp.ImageContent:
			out = append(out, fmt.Sprintf("data:%s;base64,%s", c.MIMEType, base64.StdEncoding.EncodeToString(c.Data)))
		default:
			out = append(out, UnsupportedContentPlaceholder)
		}
	}
	return out
}

func parseText(text string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return text
	}
	if _, err := dec.Token(); err != io.EOF {
		return text
	}
	return v
}
