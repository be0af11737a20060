package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/haasonsaas/mnemos/internal/agent"
	"github.com/haasonsaas/mnemos/internal/auth"
	"github.com/haasonsaas/mnemos/internal/engine"
	"github.com/haasonsaas/mnemos/internal/metadata"
	"github.com/haasonsaas/mnemos/internal/presets"
	"github.com/haasonsaas/mnemos/internal/recall"
	"github.com/haasonsaas/mnemos/internal/tools"
	"github.com/haasonsaas/mnemos/pkg/models"
)

// scriptedLLM plays canned responses in order.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []*agent.ChatResponse
}

func (l *scriptedLLM) ChatCompletion(ctx context.Context, req *agent.ChatRequest) (*agent.ChatResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.responses) == 0 {
		return reply("fallback"), nil
	}
	next := l.responses[0]
	l.responses = l.responses[1:]
	return next, nil
}

func reply(content string) *agent.ChatResponse {
	return &agent.ChatResponse{
		Choices: []agent.ChatChoice{{
			Message:      agent.ChatMessage{Role: "assistant", Content: content},
			FinishReason: agent.FinishStop,
		}},
		Usage: agent.ChatUsage{PromptTokens: 50, CompletionTokens: 10, TotalTokens: 60},
	}
}

func sendMessageReply(text string) *agent.ChatResponse {
	return &agent.ChatResponse{
		Choices: []agent.ChatChoice{{
			Message: agent.ChatMessage{
				Role:    "assistant",
				Content: "inner thought",
				ToolCalls: []models.ToolCall{{
					ID:    "call-1",
					Name:  "send_message",
					Input: json.RawMessage(`{"message": "` + text + `"}`),
				}},
			},
			FinishReason: "tool_calls",
		}},
		Usage: agent.ChatUsage{TotalTokens: 80, CompletionTokens: 15},
	}
}

func newTestServer(t *testing.T, llm agent.ChatService, authService *auth.Service) (*Server, *engine.Engine) {
	t.Helper()
	registry := agent.NewToolRegistry()
	tools.RegisterBuiltins(registry)

	eng := engine.New(llm, registry, recall.NewMemoryStore(), metadata.NewMemoryStore(), nil, nil, nil, engine.Config{})
	server := NewServer(eng, authService, presets.NewLibrary(), nil, nil, Defaults{
		LLM: engine.LLMConfig{Provider: "openai", Model: "gpt-4", ContextWindow: 8192},
	})
	return server, eng
}

func createAgent(t *testing.T, handler http.Handler) string {
	t.Helper()
	body := strings.NewReader(`{"name": "tester"}`)
	req := httptest.NewRequest("POST", "/agents", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("create agent status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		AgentID string `json:"agent_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return resp.AgentID
}

// parseFrames decodes each "data: ..." SSE frame into a map.
func parseFrames(t *testing.T, body string) []map[string]any {
	t.Helper()
	var frames []map[string]any
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame map[string]any
		if err := json.Unmarshal([]byte(line[len("data: "):]), &frame); err != nil {
			t.Fatalf("bad frame %q: %v", line, err)
		}
		frames = append(frames, frame)
	}
	return frames
}

func TestMessageEndpointStreamsFrames(t *testing.T) {
	llm := &scriptedLLM{responses: []*agent.ChatResponse{sendMessageReply("hello user")}}
	server, _ := newTestServer(t, llm, nil)
	handler := server.Handler()

	agentID := createAgent(t, handler)

	req := httptest.NewRequest("POST", "/agents/"+agentID+"/message",
		strings.NewReader(`{"message": "hi", "role": "user"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	frames := parseFrames(t, rec.Body.String())
	if len(frames) == 0 {
		t.Fatal("no frames emitted")
	}

	var sawMonologue, sawFunctionCall, sawReturn, sawAssistant bool
	for _, frame := range frames {
		if _, ok := frame["internal_monologue"]; ok {
			sawMonologue = true
		}
		if _, ok := frame["function_call"]; ok {
			sawFunctionCall = true
			if frame["id"] == nil || frame["date"] == nil {
				t.Fatalf("function_call frame missing id/date: %v", frame)
			}
		}
		if _, ok := frame["function_return"]; ok {
			sawReturn = true
			if frame["status"] != "success" {
				t.Fatalf("function_return status = %v", frame["status"])
			}
		}
		if text, ok := frame["assistant_message"]; ok {
			sawAssistant = true
			if text != "hello user" {
				t.Fatalf("assistant_message = %v", text)
			}
		}
		if _, ok := frame["internal_error"]; ok {
			t.Fatalf("unexpected internal_error frame: %v", frame)
		}
	}
	if !sawMonologue || !sawFunctionCall || !sawReturn || !sawAssistant {
		t.Fatalf("missing frames: monologue=%v call=%v return=%v assistant=%v",
			sawMonologue, sawFunctionCall, sawReturn, sawAssistant)
	}
}

func TestMessageEndpointValidation(t *testing.T) {
	server, _ := newTestServer(t, &scriptedLLM{}, nil)
	handler := server.Handler()
	agentID := createAgent(t, handler)

	cases := []string{
		`{"message": "", "role": "user"}`,
		`{"message": "/command", "role": "user"}`,
		`{"message": "hi", "role": "tool"}`,
	}
	for _, body := range cases {
		req := httptest.NewRequest("POST", "/agents/"+agentID+"/message", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestMessageEndpointUnknownAgent(t *testing.T) {
	server, _ := newTestServer(t, &scriptedLLM{}, nil)
	handler := server.Handler()

	req := httptest.NewRequest("POST", "/agents/ghost/message",
		strings.NewReader(`{"message": "hi"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	frames := parseFrames(t, rec.Body.String())
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1 terminal error", len(frames))
	}
	if _, ok := frames[0]["internal_error"]; !ok {
		t.Fatalf("expected internal_error frame, got %v", frames[0])
	}
}

func TestMessageEndpointBusyAgent(t *testing.T) {
	server, eng := newTestServer(t, &scriptedLLM{}, nil)
	handler := server.Handler()
	agentID := createAgent(t, handler)

	hold := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = eng.WithAgentLock(context.Background(), "00000000-0000-0000-0000-000000000000", agentID, func(*engine.Agent) error {
			close(held)
			<-hold
			return nil
		})
	}()
	<-held
	defer close(hold)

	req := httptest.NewRequest("POST", "/agents/"+agentID+"/message",
		strings.NewReader(`{"message": "hi"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	frames := parseFrames(t, rec.Body.String())
	if len(frames) != 1 {
		t.Fatalf("frames = %d", len(frames))
	}
	errText, ok := frames[0]["internal_error"].(string)
	if !ok || !strings.Contains(errText, "busy") {
		t.Fatalf("expected busy error, got %v", frames[0])
	}
}

func TestAuthRejectsWithoutCredentials(t *testing.T) {
	authService := auth.NewService(auth.Config{
		APIKeys: []auth.APIKeyConfig{{Key: "secret-key", UserID: "user-1"}},
	}, nil)
	server, _ := newTestServer(t, &scriptedLLM{}, authService)
	handler := server.Handler()

	req := httptest.NewRequest("POST", "/agents", strings.NewReader(`{"name": "x"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	// With the right bearer token the request passes.
	req = httptest.NewRequest("POST", "/agents", strings.NewReader(`{"name": "x"}`))
	req.Header.Set("Authorization", "Bearer secret-key")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with token = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t, &scriptedLLM{}, nil)
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
