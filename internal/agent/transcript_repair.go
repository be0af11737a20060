package agent

import "github.com/haasonsaas/mnemos/pkg/models"

// RepairTranscript sanitizes a message log loaded from storage so that every
// tool-role message answers a tool call announced by the assistant message
// before it. Orphaned tool messages are dropped; a tool message missing its
// id is paired with the oldest unanswered call. The in-context invariant
// (tool messages never precede their request) must hold before the log is
// handed to a completion endpoint, which rejects unpaired tool messages.
func RepairTranscript(history []*models.Message) []*models.Message {
	if len(history) == 0 {
		return history
	}

	pending := make(map[string]struct{})
	pendingOrder := make([]string, 0)
	repaired := make([]*models.Message, 0, len(history))

	clearPending := func() {
		for k := range pending {
			delete(pending, k)
		}
		pendingOrder = pendingOrder[:0]
	}

	for _, msg := range history {
		if msg == nil {
			continue
		}

		switch msg.Role {
		case models.RoleAssistant:
			clearPending()
			for _, call := range msg.ToolCalls {
				if call.ID == "" {
					continue
				}
				pending[call.ID] = struct{}{}
				pendingOrder = append(pendingOrder, call.ID)
			}
			repaired = append(repaired, msg)
		case models.RoleTool:
			id := msg.ToolCallID
			if id == "" && len(pendingOrder) > 0 {
				id = pendingOrder[0]
			}
			if id == "" {
				continue
			}
			if _, ok := pending[id]; !ok {
				continue
			}
			delete(pending, id)
			pendingOrder = removeID(pendingOrder, id)
			if id != msg.ToolCallID {
				copied := *msg
				copied.ToolCallID = id
				msg = &copied
			}
			repaired = append(repaired, msg)
		default:
			repaired = append(repaired, msg)
		}
	}

	return repaired
}

func removeID(ids []string, target string) []string {
	for i, id := range ids {
		if id == target {
			copy(ids[i:], ids[i+1:])
			return ids[:len(ids)-1]
		}
	}
	return ids
}
