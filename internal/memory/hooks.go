package memory

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// AutoCaptureConfig configures automatic archival capture.
type AutoCaptureConfig struct {
	// Enabled turns capture on.
	Enabled bool `yaml:"enabled"`

	// MaxCapturesPerStep limits captures per committed step (default: 3).
	MaxCapturesPerStep int `yaml:"max_captures_per_step"`

	// MinContentLength is the minimum text length to consider (default: 10).
	MinContentLength int `yaml:"min_content_length"`

	// MaxContentLength is the maximum text length to consider (default: 500).
	MaxContentLength int `yaml:"max_content_length"`

	// DuplicateThreshold is the similarity above which content is treated
	// as already archived (default: 0.95).
	DuplicateThreshold float32 `yaml:"duplicate_threshold"`
}

// AutoRecallConfig configures automatic recall injection.
type AutoRecallConfig struct {
	// Enabled turns recall injection on.
	Enabled bool `yaml:"enabled"`

	// MaxResults is the maximum number of passages to inject (default: 3).
	MaxResults int `yaml:"max_results"`

	// MinQueryLength is the minimum input length to trigger recall
	// (default: 5).
	MinQueryLength int `yaml:"min_query_length"`
}

// Hooks runs automatic archival capture and recall around the step engine:
// capture after a step commits its messages, recall injection before prompt
// assembly. Both act through the stepping agent's own Archival.
type Hooks struct {
	captureConfig AutoCaptureConfig
	recallConfig  AutoRecallConfig
	logger        *slog.Logger
}

// NewHooks applies defaults and returns a Hooks.
func NewHooks(captureConfig AutoCaptureConfig, recallConfig AutoRecallConfig, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	if captureConfig.MaxCapturesPerStep == 0 {
		captureConfig.MaxCapturesPerStep = 3
	}
	if captureConfig.MinContentLength == 0 {
		captureConfig.MinContentLength = 10
	}
	if captureConfig.MaxContentLength == 0 {
		captureConfig.MaxContentLength = 500
	}
	if captureConfig.DuplicateThreshold == 0 {
		captureConfig.DuplicateThreshold = 0.95
	}
	if recallConfig.MaxResults == 0 {
		recallConfig.MaxResults = 3
	}
	if recallConfig.MinQueryLength == 0 {
		recallConfig.MinQueryLength = 5
	}
	return &Hooks{
		captureConfig: captureConfig,
		recallConfig:  recallConfig,
		logger:        logger.With("component", "memory-hooks"),
	}
}

// CaptureCompleted scans the texts produced by one step for capturable
// content and archives it, skipping near-duplicates. success=false (a
// failed step) skips capture entirely.
func (h *Hooks) CaptureCompleted(ctx context.Context, archival *Archival, texts []string, success bool) {
	if h == nil || archival == nil || !h.captureConfig.Enabled || !success {
		return
	}

	captured := 0
	for _, text := range texts {
		if captured >= h.captureConfig.MaxCapturesPerStep {
			break
		}
		if !shouldCapture(text, h.captureConfig) {
			continue
		}

		duplicate, err := archival.HasSimilar(ctx, text, h.captureConfig.DuplicateThreshold)
		if err != nil {
			h.logger.Warn("duplicate check failed", "error", err)
			continue
		}
		if duplicate {
			h.logger.Debug("skipping duplicate memory", "content", truncate(text, 50))
			continue
		}
		if err := archival.Insert(ctx, text); err != nil {
			h.logger.Warn("failed to archive capture", "error", err)
			continue
		}
		captured++
	}
	if captured > 0 {
		h.logger.Info("auto-captured memories", "count", captured)
	}
}

// RecallContext searches the agent's archive for content relevant to query
// and renders it as a `<relevant-memories>` block suitable for injection
// into the prompt preamble. Returns an empty string when recall is
// disabled, the query is too short, or nothing relevant is found.
func (h *Hooks) RecallContext(ctx context.Context, archival *Archival, query string) string {
	if h == nil || archival == nil || !h.recallConfig.Enabled || len(query) < h.recallConfig.MinQueryLength {
		return ""
	}

	passages, n, err := archival.Search(ctx, query, 0, h.recallConfig.MaxResults)
	if err != nil {
		h.logger.Warn("memory recall failed", "error", err)
		return ""
	}
	if n == 0 {
		return ""
	}

	lines := make([]string, 0, len(passages))
	for _, p := range passages {
		lines = append(lines, "- "+p.Content)
	}
	return "<relevant-memories>\nThe following memories may be relevant to this conversation:\n" +
		strings.Join(lines, "\n") + "\n</relevant-memories>"
}

// Capture trigger patterns: explicit requests, preferences, decisions,
// contact details, personal facts, and importance markers.
var memoryTriggers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)remember`),
	regexp.MustCompile(`(?i)i (like|prefer|hate|love|want|need|always|never)`),
	regexp.MustCompile(`(?i)(we|i) (decided|will use|are going to)`),
	regexp.MustCompile(`\+\d{10,}`),
	regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w{2,}`),
	regexp.MustCompile(`(?i)my\s+\w+\s+is|is\s+my`),
	regexp.MustCompile(`(?i)important|crucial|key point`),
}

// shouldCapture decides whether text is worth archiving.
func shouldCapture(text string, cfg AutoCaptureConfig) bool {
	if len(text) < cfg.MinContentLength || len(text) > cfg.MaxContentLength {
		return false
	}
	// Never re-capture injected recall context.
	if strings.Contains(text, "<relevant-memories>") {
		return false
	}
	// Skip system-generated content (XML-like tags) and formatted agent
	// summaries.
	if strings.HasPrefix(text, "<") && strings.Contains(text, "</") {
		return false
	}
	if strings.Contains(text, "**") && strings.Contains(text, "\n-") {
		return false
	}
	if countEmojis(text) > 3 {
		return false
	}
	for _, pattern := range memoryTriggers {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// countEmojis counts emoji characters in text.
func countEmojis(text string) int {
	count := 0
	for _, r := range text {
		if (r >= 0x1F300 && r <= 0x1F9FF) ||
			(r >= 0x2600 && r <= 0x26FF) ||
			(r >= 0x2700 && r <= 0x27BF) {
			count++
		}
	}
	return count
}

// truncate shortens a string to maxLen characters for log lines.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
