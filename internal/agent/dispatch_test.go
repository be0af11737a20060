package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/mnemos/pkg/models"
)

// nopCaps satisfies Capabilities for tools that don't touch memory.
type nopCaps struct{}

func (nopCaps) CoreGet(string) (string, error)           { return "", nil }
func (nopCaps) CoreEdit(string, string) error            { return nil }
func (nopCaps) CoreAppend(string, string, string) error  { return nil }
func (nopCaps) CoreReplace(string, string, string) error { return nil }
func (nopCaps) RecallSearch(context.Context, string, int, int) ([]*models.Message, int, error) {
	return nil, 0, nil
}
func (nopCaps) RecallSearchDate(context.Context, time.Time, time.Time, int, int) ([]*models.Message, int, error) {
	return nil, 0, nil
}
func (nopCaps) ArchivalInsert(context.Context, string) error { return nil }
func (nopCaps) ArchivalSearch(context.Context, string, int, int) ([]ArchivalResult, int, error) {
	return nil, 0, nil
}
func (nopCaps) SendAssistantMessage(string)            {}
func (nopCaps) PauseHeartbeats(minutes int) time.Duration {
	return time.Duration(minutes) * time.Minute
}

// echoTool returns its "text" argument; panics when told to.
type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Echoes text back." }
func (echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"text": {"type": "string"},
			"request_heartbeat": {"type": "boolean"}
		},
		"required": ["text"]
	}`)
}
func (echoTool) Execute(ctx context.Context, caps Capabilities, args map[string]any) (string, error) {
	text := args["text"].(string)
	if text == "panic" {
		panic("tool exploded")
	}
	if text == "fail" {
		return "", errors.New("deliberate failure")
	}
	return text, nil
}

func newDispatcher() *Dispatcher {
	registry := NewToolRegistry()
	registry.Register(echoTool{})
	return NewDispatcher(registry, nil)
}

func call(name, args string) models.ToolCall {
	return models.ToolCall{ID: "call-1", Name: name, Input: json.RawMessage(args)}
}

func decodePackaged(t *testing.T, packaged string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(packaged), &out); err != nil {
		t.Fatalf("packaged response is not JSON: %v\n%s", err, packaged)
	}
	return out
}

func TestDispatchSuccess(t *testing.T) {
	d := newDispatcher()
	var runningArgs map[string]any

	res := d.Dispatch(context.Background(), nopCaps{}, call("echo", `{"text": "hello"}`), func(args map[string]any) {
		runningArgs = args
	})
	if res.Failed {
		t.Fatalf("unexpected failure: %s", res.Response)
	}
	if res.Response != "hello" {
		t.Fatalf("response = %q", res.Response)
	}
	packaged := decodePackaged(t, res.Packaged)
	if packaged["status"] != "OK" || packaged["message"] != "hello" {
		t.Fatalf("packaged = %v", packaged)
	}
	if runningArgs["text"] != "hello" {
		t.Fatalf("onRunning args = %v", runningArgs)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	d := newDispatcher()
	res := d.Dispatch(context.Background(), nopCaps{}, call("nope", `{}`), nil)
	if !res.Failed {
		t.Fatal("expected failure")
	}
	if res.Response != "No function named nope" {
		t.Fatalf("response = %q", res.Response)
	}
	if decodePackaged(t, res.Packaged)["status"] != "Failed" {
		t.Fatal("status should be Failed")
	}
}

func TestDispatchBadArguments(t *testing.T) {
	d := newDispatcher()
	res := d.Dispatch(context.Background(), nopCaps{}, call("echo", `{"text": "hi`), nil)
	if !res.Failed {
		t.Fatal("expected failure")
	}
	if !strings.HasPrefix(res.Response, "Error parsing JSON for function 'echo' arguments") {
		t.Fatalf("response = %q", res.Response)
	}
}

func TestDispatchRepairsArguments(t *testing.T) {
	d := newDispatcher()
	// Truncated closing brace, recoverable by the repair chain.
	res := d.Dispatch(context.Background(), nopCaps{}, call("echo", `{"text": "hi"`), nil)
	if res.Failed {
		t.Fatalf("repairable args failed: %s", res.Response)
	}
	if res.Response != "hi" {
		t.Fatalf("response = %q", res.Response)
	}
}

func TestDispatchHeartbeatExtraction(t *testing.T) {
	d := newDispatcher()

	res := d.Dispatch(context.Background(), nopCaps{}, call("echo", `{"text": "x", "request_heartbeat": true}`), nil)
	if !res.HeartbeatRequest {
		t.Fatal("heartbeat not extracted")
	}
	if _, present := res.Args[RequestHeartbeatParam]; present {
		t.Fatal("request_heartbeat leaked into echoed args")
	}

	// Non-bool coerces to false.
	res = d.Dispatch(context.Background(), nopCaps{}, call("echo", `{"text": "x", "request_heartbeat": "yes"}`), nil)
	if res.HeartbeatRequest {
		t.Fatal("non-bool heartbeat should coerce to false")
	}
}

func TestDispatchSchemaValidation(t *testing.T) {
	d := newDispatcher()
	// "text" is required but missing.
	res := d.Dispatch(context.Background(), nopCaps{}, call("echo", `{}`), nil)
	if !res.Failed {
		t.Fatal("schema violation should fail the call")
	}
	if !strings.HasPrefix(res.Response, "Error calling function echo") {
		t.Fatalf("response = %q", res.Response)
	}
}

func TestDispatchExecutionError(t *testing.T) {
	d := newDispatcher()
	res := d.Dispatch(context.Background(), nopCaps{}, call("echo", `{"text": "fail"}`), nil)
	if !res.Failed {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Response, "deliberate failure") {
		t.Fatalf("response = %q", res.Response)
	}
	// A failed execution never requests a heartbeat of its own; the engine
	// forces one.
	if res.HeartbeatRequest {
		t.Fatal("failed call must not carry a heartbeat request")
	}
}

func TestDispatchContainsPanics(t *testing.T) {
	d := newDispatcher()
	res := d.Dispatch(context.Background(), nopCaps{}, call("echo", `{"text": "panic"}`), nil)
	if !res.Failed {
		t.Fatal("panicking tool should fail, not crash")
	}
	if !strings.Contains(res.Response, "tool exploded") {
		t.Fatalf("response = %q", res.Response)
	}
}

func TestDispatchMintsToolCallID(t *testing.T) {
	d := newDispatcher()
	c := call("echo", `{"text": "hi"}`)
	c.ID = ""
	res := d.Dispatch(context.Background(), nopCaps{}, c, nil)
	if res.ToolCallID == "" {
		t.Fatal("missing tool call id should be minted")
	}
	if len(res.ToolCallID) > ToolCallIDMaxLen {
		t.Fatalf("minted id too long: %d", len(res.ToolCallID))
	}
}

func TestShapeFunctionResponse(t *testing.T) {
	if got := ShapeFunctionResponse("", true); got != "None" {
		t.Fatalf("empty response = %q", got)
	}
	long := strings.Repeat("x", FunctionReturnCharLimit+500)
	shaped := ShapeFunctionResponse(long, true)
	if len(shaped) <= FunctionReturnCharLimit {
		t.Fatal("truncation note missing")
	}
	if !strings.Contains(shaped, "function output was truncated") {
		t.Fatalf("shaped = %q...", shaped[:80])
	}
	// Paging tools skip truncation.
	if got := ShapeFunctionResponse(long, false); got != long {
		t.Fatal("untruncated path modified the response")
	}
}

func TestDispatchIdempotentLookupFailure(t *testing.T) {
	d := newDispatcher()
	first := d.Dispatch(context.Background(), nopCaps{}, call("missing", `{}`), nil)
	second := d.Dispatch(context.Background(), nopCaps{}, call("missing", `{}`), nil)
	if first.Response != second.Response {
		t.Fatalf("error payload not stable: %q vs %q", first.Response, second.Response)
	}
	p1 := decodePackaged(t, first.Packaged)
	p2 := decodePackaged(t, second.Packaged)
	if p1["status"] != p2["status"] || p1["message"] != p2["message"] {
		t.Fatal("structured error differs beyond timestamp")
	}
}
