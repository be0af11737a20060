// Package recall implements the durable, searchable archive of every
// message an agent has ever exchanged. Recall memory is append-only and
// independent of the in-context window: compaction revokes a message's
// presence in the live log, never its recall entry.
package recall

import (
	"context"
	"time"

	"github.com/haasonsaas/mnemos/pkg/models"
)

// DefaultPageSize is used when a search is issued without an explicit
// limit.
const DefaultPageSize = 5

// Store is the recall memory contract. All searches are scoped to one
// agent and paged with (offset, limit), returning the page plus the total
// number of matches.
type Store interface {
	// Append records messages in order. Messages are never mutated or
	// deleted once appended.
	Append(ctx context.Context, msgs ...*models.Message) error

	// Get returns one message by id, or nil when absent.
	Get(ctx context.Context, agentID, messageID string) (*models.Message, error)

	// GetAll returns the agent's messages in append order, paged.
	GetAll(ctx context.Context, agentID string, offset, limit int) ([]*models.Message, int, error)

	// SearchText returns messages whose text contains query
	// (case-insensitive), paged.
	SearchText(ctx context.Context, agentID, query string, offset, limit int) ([]*models.Message, int, error)

	// SearchDate returns messages created within [start, end], paged.
	SearchDate(ctx context.Context, agentID string, start, end time.Time, offset, limit int) ([]*models.Message, int, error)

	// Size reports the number of stored messages for the agent.
	Size(ctx context.Context, agentID string) (int, error)
}

// page slices results by offset/limit and reports the total match count.
func page(matches []*models.Message, offset, limit int) ([]*models.Message, int) {
	total := len(matches)
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return nil, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total
}
