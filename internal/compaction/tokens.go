// Package compaction shrinks an agent's in-context log under token
// pressure: it summarizes a contiguous prefix of the history through the
// LLM and trims the log to system message + summary + recent tail. Trimmed
// messages stay in recall memory; only their presence in the live window is
// revoked.
package compaction

import (
	"encoding/json"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/haasonsaas/mnemos/pkg/models"
)

// CharsPerToken is the fallback estimation ratio when no tokenizer is
// available for the model.
const CharsPerToken = 4

// defaultEncoding is the GPT-4 family encoding used when the model has no
// registered tokenizer of its own.
const defaultEncoding = "cl100k_base"

// TokenCounter counts tokens in a text for one specific model.
type TokenCounter func(text string) int

// EstimateTokens is the heuristic counter: about four characters per token,
// rounded up.
func EstimateTokens(text string) int {
	return (len(text) + CharsPerToken - 1) / CharsPerToken
}

var (
	encodingMu    sync.Mutex
	encodingCache = make(map[string]*tiktoken.Tiktoken)
)

// CounterForModel returns a TokenCounter for the model, preferring the
// model's own BPE encoding and falling back first to the GPT-4 encoding,
// then to the character heuristic when no encoding data is available.
func CounterForModel(model string) TokenCounter {
	encodingMu.Lock()
	defer encodingMu.Unlock()

	if enc, ok := encodingCache[model]; ok {
		return tokenizerCounter(enc)
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(defaultEncoding)
	}
	if err != nil {
		return EstimateTokens
	}
	encodingCache[model] = enc
	return tokenizerCounter(enc)
}

func tokenizerCounter(enc *tiktoken.Tiktoken) TokenCounter {
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}
}

// MessageTokens counts the tokens one message contributes to the prompt,
// including serialized tool calls.
func MessageTokens(counter TokenCounter, msg *models.Message) int {
	if msg == nil {
		return 0
	}
	total := counter(string(msg.Role)) + counter(msg.Content)
	for _, call := range msg.ToolCalls {
		total += counter(call.Name) + counter(string(call.Input))
	}
	return total
}

// MessagesTokens sums MessageTokens across a slice.
func MessagesTokens(counter TokenCounter, msgs []*models.Message) int {
	total := 0
	for _, msg := range msgs {
		total += MessageTokens(counter, msg)
	}
	return total
}

// FormatMessagesForSummary flattens messages into the "role: text" form the
// summarizer prompt expects.
func FormatMessagesForSummary(msgs []*models.Message) string {
	var out []byte
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		out = append(out, string(msg.Role)...)
		out = append(out, ": "...)
		out = append(out, msg.Content...)
		for _, call := range msg.ToolCalls {
			out = append(out, "\n  [tool call: "...)
			out = append(out, call.Name...)
			out = append(out, '(')
			out = append(out, compactJSON(call.Input)...)
			out = append(out, ")]"...)
		}
		out = append(out, '\n')
	}
	return string(out)
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}
