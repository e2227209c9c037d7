package mcpgateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/vikashloomba/mcp-openapi-proxy/pkg/mcpmgr"
)

// fakeSession is an in-process stand-in for a connected tool server.
type fakeSession struct {
	info  *mcp.Implementation
	pages [][]*mcp.Tool
	call  func(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)

	mu     sync.Mutex
	calls  []*mcp.CallToolParams
	lists  int
	closed int

	done chan struct{}
	once sync.Once
}

func newFakeSession(name string, tools ...*mcp.Tool) *fakeSession {
	return &fakeSession{
		info:  &mcp.Implementation{Name: name, Version: "0.1.0"},
		pages: [][]*mcp.Tool{tools},
		done:  make(chan struct{}),
	}
}

func (f *fakeSession) InitializeResult() *mcp.InitializeResult {
	return &mcp.InitializeResult{ServerInfo: f.info}
}

func (f *fakeSession) ListTools(_ context.Context, params *mcp.ListToolsParams) (*mcp.ListToolsResult, error) {
	f.mu.Lock()
	f.lists++
	f.mu.Unlock()
	page := 0
	if params != nil && params.Cursor != "" {
		if err := json.Unmarshal([]byte(params.Cursor), &page); err != nil {
			return nil, err
		}
	}
	if page >= len(f.pages) {
		return &mcp.ListToolsResult{}, nil
	}
	res := &mcp.ListToolsResult{Tools: f.pages[page]}
	if page+1 < len(f.pages) {
		next, _ := json.Marshal(page + 1)
		res.NextCursor = string(next)
	}
	return res, nil
}

func (f *fakeSession) CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, params)
	f.mu.Unlock()
	if f.call != nil {
		return f.call(ctx, params)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "ok"}}}, nil
}

func (f *fakeSession) Wait() error {
	<-f.done
	return errors.New("connection lost")
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	f.drop()
	return nil
}

func (f *fakeSession) drop() { f.once.Do(func() { close(f.done) }) }

func (f *fakeSession) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSession) lastCall() *mcp.CallToolParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeSession) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeConnector hands out sessions by server id; ids mapped to an error fail
// to connect.
type fakeConnector struct {
	sessions map[string]*fakeSession
	failures map[string]error
}

func (c *fakeConnector) Connect(_ context.Context, serverID string, _ mcpmgr.ServerConfig) (mcpmgr.Session, error) {
	if err, ok := c.failures[serverID]; ok {
		return nil, err
	}
	s, ok := c.sessions[serverID]
	if !ok {
		return nil, errors.New("unknown server " + serverID)
	}
	return s, nil
}

func integerTool(name string) *mcp.Tool {
	return &mcp.Tool{
		Name:        name,
		Description: "takes an integer",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"x": map[string]any{"type": "integer", "description": "the value"},
			},
			"required": []any{"x"},
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stdioConfig(command string) *mcpmgr.StdioServerConfig {
	return &mcpmgr.StdioServerConfig{Command: command}
}

func mustCompose(t *testing.T, set ServerSet, opts *Options) *Gateway {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	g, err := Compose(set, opts)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	t.Cleanup(func() { _ = g.Close(context.Background()) })
	return g
}
