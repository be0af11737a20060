package compaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/mnemos/internal/heartbeat"
	"github.com/haasonsaas/mnemos/pkg/models"
)

const (
	// MessageSummaryWarningFrac is the fraction of the context window at
	// which a step emits the one-shot memory warning, and the budget the
	// summarizer's own input must stay under.
	MessageSummaryWarningFrac = 0.75

	// MessageSummaryTruncTokenFrac is the fraction of the buffered
	// (non-system) tokens targeted for summarization.
	MessageSummaryTruncTokenFrac = 0.75

	// KeepNLast messages are never summarized; they anchor tool-call
	// exemplars for the next turn.
	KeepNLast = 3
)

// ErrInsufficientHistory reports a compaction that would summarize fewer
// than two messages; retrying would loop over the same material, so the
// caller surfaces it instead.
var ErrInsufficientHistory = errors.New("compaction: not enough messages to compress")

// Result describes one completed compaction.
type Result struct {
	// Log is the new in-context log:
	// [system, summary, tail...].
	Log []*models.Message

	// SummaryMessageCount is how many messages were condensed into the
	// summary.
	SummaryMessageCount int

	// HiddenCount is how many all-time messages are no longer in context.
	HiddenCount int

	// AllTimeCount is the agent's total message count at compaction time.
	AllTimeCount int
}

// Compactor implements summarize-and-trim over an in-context log.
type Compactor struct {
	summarizer *Summarizer
	counter    TokenCounter
}

// NewCompactor builds a Compactor sharing the summarizer's token counter.
func NewCompactor(summarizer *Summarizer, counter TokenCounter) *Compactor {
	if counter == nil {
		counter = EstimateTokens
	}
	return &Compactor{summarizer: summarizer, counter: counter}
}

// Compact summarizes a prefix of log and returns the trimmed replacement.
// log[0] must be the system message; allTimeCount is the agent's lifetime
// message total used for the summary metadata. The input slice is not
// modified.
func (c *Compactor) Compact(ctx context.Context, agentID, ownerID, model string, contextWindow int, log []*models.Message, allTimeCount int) (*Result, error) {
	if len(log) == 0 || log[0].Role != models.RoleSystem {
		return nil, fmt.Errorf("compaction: log[0] must be a system message")
	}

	tokenCounts := make([]int, len(log))
	for i, msg := range log {
		tokenCounts[i] = MessageTokens(c.counter, msg)
	}

	// Candidates exclude the system message and the protected tail.
	bufferTokens := 0
	for _, n := range tokenCounts[1:] {
		bufferTokens += n
	}
	desired := int(float64(bufferTokens) * MessageSummaryTruncTokenFrac)

	lastCandidate := len(log) - KeepNLast
	if lastCandidate <= 1 {
		return nil, fmt.Errorf("%w: len=%d, preserve_n=%d", ErrInsufficientHistory, len(log), KeepNLast)
	}

	// Walk front-to-back until the cumulative tokens pass the target.
	cutoff := 1
	tokensSoFar := 0
	for i := 1; i < lastCandidate; i++ {
		cutoff = i + 1
		tokensSoFar += tokenCounts[i]
		if tokensSoFar > desired {
			break
		}
	}

	// Keep a user message on the summarized side of the cut so the retained
	// tail doesn't open mid-exchange. Shift at most once; if the next
	// message is also user-role, leave the cutoff where it is.
	if cutoff < len(log) && log[cutoff].Role == models.RoleUser {
		if cutoff+1 < len(log) && log[cutoff+1].Role != models.RoleUser {
			cutoff++
		}
	}

	// Never let a tool message open the retained tail: it would be severed
	// from the assistant request that produced it.
	for cutoff < len(log) && log[cutoff].Role == models.RoleTool {
		cutoff++
	}

	toSummarize := log[1:cutoff]
	if len(toSummarize) < 2 {
		return nil, fmt.Errorf("%w: len=%d", ErrInsufficientHistory, len(toSummarize))
	}

	summary, err := c.summarizer.Summarize(ctx, model, contextWindow, toSummarize)
	if err != nil {
		return nil, err
	}

	tail := log[cutoff:]
	remaining := len(tail)
	hidden := allTimeCount - remaining
	packed := heartbeat.PackageSummarizeMessage(summary, len(toSummarize), hidden, allTimeCount, time.Now())

	summaryMsg := &models.Message{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		OwnerID:   ownerID,
		Role:      models.RoleUser,
		Content:   packed,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}

	newLog := make([]*models.Message, 0, len(tail)+2)
	newLog = append(newLog, log[0], summaryMsg)
	newLog = append(newLog, tail...)

	return &Result{
		Log:                 newLog,
		SummaryMessageCount: len(toSummarize),
		HiddenCount:         hidden,
		AllTimeCount:        allTimeCount,
	}, nil
}
