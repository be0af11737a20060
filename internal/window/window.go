// Package window tracks an agent's context-window budget: the total size
// for its model and the usage reported by the last completion, from which
// the step engine derives its memory-pressure signal.
package window

import "strings"

const (
	// DefaultContextWindow is the fallback when neither config nor the
	// model table supplies a size.
	DefaultContextWindow = 8192

	// WarnAtFrac is the fraction of the window at which memory pressure is
	// reported to the step engine.
	WarnAtFrac = 0.75
)

// modelContextWindows maps model id prefixes to their context window sizes.
var modelContextWindows = map[string]int{
	"gpt-4":             8192,
	"gpt-4-32k":         32768,
	"gpt-4-turbo":       128000,
	"gpt-4o":            128000,
	"gpt-4o-mini":       128000,
	"gpt-3.5-turbo":     16385,
	"gpt-3.5-turbo-16k": 16385,
	"o1":                200000,
	"o1-mini":           128000,
	"llama3-8b-8192":    8192,
}

// Window tracks one agent's context budget.
type Window struct {
	totalTokens int
	usedTokens  int
	source      string
}

// NewWindow creates a tracker of the given size; non-positive sizes fall
// back to the default.
func NewWindow(totalTokens int, source string) *Window {
	if totalTokens <= 0 {
		totalTokens = DefaultContextWindow
		source = "default"
	}
	return &Window{totalTokens: totalTokens, source: source}
}

// NewWindowForModel sizes the tracker from the model table, matching the
// longest prefix so versioned ids resolve to their family.
func NewWindowForModel(modelID string) *Window {
	if tokens, ok := modelContextWindows[modelID]; ok {
		return NewWindow(tokens, "model")
	}
	bestLen, bestTokens := 0, 0
	for prefix, tokens := range modelContextWindows {
		if strings.HasPrefix(modelID, prefix) && len(prefix) > bestLen {
			bestLen, bestTokens = len(prefix), tokens
		}
	}
	if bestLen > 0 {
		return NewWindow(bestTokens, "model")
	}
	return NewWindow(0, "")
}

// SetUsed records the token usage of the last completion.
func (w *Window) SetUsed(tokens int) {
	w.usedTokens = tokens
}

// Used returns the last recorded usage.
func (w *Window) Used() int {
	return w.usedTokens
}

// Total returns the window size in tokens.
func (w *Window) Total() int {
	return w.totalTokens
}

// Remaining returns the unspent budget, never negative.
func (w *Window) Remaining() int {
	remaining := w.totalTokens - w.usedTokens
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExceedsWarningFrac reports whether used crosses the pressure-warning
// fraction of this window.
func (w *Window) ExceedsWarningFrac(used int) bool {
	return float64(used) > WarnAtFrac*float64(w.totalTokens)
}

// Source reports where the window size came from: "config", "model", or
// "default".
func (w *Window) Source() string {
	return w.source
}
