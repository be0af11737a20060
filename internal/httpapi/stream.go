package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/haasonsaas/mnemos/pkg/models"
)

// streamInterface implements engine.Interface over a server-sent event
// stream: each step event becomes one "data: <json>\n\n" frame, flushed as
// it is produced.
type streamInterface struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher

	// lastID/lastDate let an assistant_message frame with no message of
	// its own (send_message fires mid-dispatch) reuse the surrounding tool
	// call's identity.
	lastID   string
	lastDate string
}

func newStreamInterface(w http.ResponseWriter) *streamInterface {
	flusher, _ := w.(http.Flusher)
	return &streamInterface{w: w, flusher: flusher}
}

func (s *streamInterface) emit(frame map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	_, _ = s.w.Write([]byte("data: "))
	_, _ = s.w.Write(payload)
	_, _ = s.w.Write([]byte("\n\n"))
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

func (s *streamInterface) stamp(frame map[string]any, msg *models.Message) map[string]any {
	if msg != nil {
		s.lastID = msg.ID
		s.lastDate = msg.CreatedAt.UTC().Format(time.RFC3339)
	}
	if s.lastID != "" {
		frame["id"] = s.lastID
		frame["date"] = s.lastDate
	}
	return frame
}

// UserMessage frames are not relayed; the caller already has its own input.
func (s *streamInterface) UserMessage(text string, msg *models.Message) {}

func (s *streamInterface) InternalMonologue(text string, msg *models.Message) {
	s.emit(s.stamp(map[string]any{"internal_monologue": text}, msg))
}

func (s *streamInterface) FunctionCall(text string, msg *models.Message) {
	s.emit(s.stamp(map[string]any{"function_call": text}, msg))
}

func (s *streamInterface) FunctionReturn(success bool, text string, msg *models.Message) {
	status := "success"
	if !success {
		status = "error"
	}
	s.emit(s.stamp(map[string]any{"function_return": text, "status": status}, msg))
}

func (s *streamInterface) AssistantMessage(text string, msg *models.Message) {
	s.emit(s.stamp(map[string]any{"assistant_message": text}, msg))
}

// InternalError emits the terminal error frame.
func (s *streamInterface) InternalError(text string) {
	s.emit(map[string]any{"internal_error": text})
}
