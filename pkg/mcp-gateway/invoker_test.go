package mcpgateway

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/vikashloomba/mcp-openapi-proxy/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-openapi-proxy/pkg/toolschema"
)

func TestNormalizeContent(t *testing.T) {
	t.Parallel()

	got := NormalizeContent([]mcp.Content{
		&mcp.TextContent{Text: "42"},
		&mcp.TextContent{Text: "hello"},
		&mcp.TextContent{Text: `{"a":[1,true]}`},
		&mcp.TextContent{Text: "1 2"},
		&mcp.ImageContent{MIMEType: "image/png", Data: []byte{0, 0, 0}},
		&mcp.AudioContent{MIMEType: "audio/wav", Data: []byte{1}},
		&mcp.EmbeddedResource{Resource: &mcp.ResourceContents{URI: "file:///x", Text: "x"}},
	})
	want := []any{
		json.Number("42"),
		"hello",
		map[string]any{"a": []any{json.Number("1"), true}},
		"1 2",
		"data:image/png;base64,AAAA",
		UnsupportedContentPlaceholder,
		UnsupportedContentPlaceholder,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeContent = %#v, want %#v", got, want)
	}

	encoded, err := json.Marshal(got[:1])
	if err != nil || string(encoded) != "[42]" {
		t.Fatalf("numeric text should encode as a number, got %s (%v)", encoded, err)
	}
}

func TestInvokerValidationNeverReachesTool(t *testing.T) {
	t.Parallel()

	session := newFakeSession("s")
	input := toolschema.Translate("t", integerTool("t").InputSchema)
	inv := NewInvoker("s", "t", input, session, time.Second, discardLogger())

	for _, body := range []string{`{}`, `{"x":"a"}`, `[1]`, `{"x":`} {
		_, err := inv.Invoke(context.Background(), []byte(body))
		if _, ok := toolschema.AsValidationError(err); !ok {
			t.Fatalf("body %s: expected validation error, got %v", body, err)
		}
	}
	if session.callCount() != 0 {
		t.Fatalf("invalid bodies reached the tool %d times", session.callCount())
	}
}

func TestInvokerForwardsOnlySuppliedFields(t *testing.T) {
	t.Parallel()

	session := newFakeSession("s")
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x":    map[string]any{"type": "integer"},
			"note": map[string]any{"type": "string"},
			"tags": map[string]any{"type": "array"},
		},
		"required": []any{"x"},
	}
	inv := NewInvoker("s", "t", toolschema.Translate("t", schema), session, time.Second, discardLogger())

	parts, err := inv.Invoke(context.Background(), []byte(`{"x":5,"note":null,"extra":1}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !reflect.DeepEqual(parts, []any{"ok"}) {
		t.Fatalf("parts = %#v", parts)
	}
	call := session.lastCall()
	if call.Name != "t" {
		t.Fatalf("called %q", call.Name)
	}
	args, ok := call.Arguments.(map[string]any)
	if !ok {
		t.Fatalf("arguments type %T", call.Arguments)
	}
	want := map[string]any{"x": int64(5), "note": nil}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("arguments = %#v, want %#v", args, want)
	}
}

func TestInvokerCallFailureIsTransportError(t *testing.T) {
	t.Parallel()

	session := newFakeSession("s")
	session.call = func(context.Context, *mcp.CallToolParams) (*mcp.CallToolResult, error) {
		return nil, errors.New("broken pipe")
	}
	inv := NewInvoker("s", "t", toolschema.Translate("t", map[string]any{"properties": map[string]any{}}), session, time.Second, discardLogger())
	_, err := inv.Invoke(context.Background(), nil)
	if !mcpmgr.IsTransportError(err) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestInvokerReturnsToolErrorsAsContent(t *testing.T) {
	t.Parallel()

	session := newFakeSession("s")
	session.call = func(context.Context, *mcp.CallToolParams) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: "bad input"}}}, nil
	}
	inv := NewInvoker("s", "t", toolschema.Translate("t", map[string]any{"properties": map[string]any{}}), session, time.Second, discardLogger())
	parts, err := inv.Invoke(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !reflect.DeepEqual(parts, []any{"bad input"}) {
		t.Fatalf("parts = %#v", parts)
	}
}

func TestInvokerDetachesFromRequestCancellation(t *testing.T) {
	t.Parallel()

	session := newFakeSession("s")
	var callErr error
	var hasDeadline bool
	session.call = func(ctx context.Context, _ *mcp.CallToolParams) (*mcp.CallToolResult, error) {
		callErr = ctx.Err()
		_, hasDeadline = ctx.Deadline()
		return &mcp.CallToolResult{}, nil
	}
	inv := NewInvoker("s", "t", toolschema.Translate("t", map[string]any{"properties": map[string]any{}}), session, time.Minute, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	parts, err := inv.Invoke(ctx, []byte(`{}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(parts) != 0 {
		t.Fatalf("parts = %#v", parts)
	}
	if callErr != nil {
		t.Fatalf("tool call saw a cancelled context: %v", callErr)
	}
	if !hasDeadline {
		t.Fatalf("tool call was not bounded by the call timeout")
	}
}
