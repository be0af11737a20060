// Package prompt assembles the system preamble that heads every LLM call:
// the static policy text followed by a live view of core memory and the
// recall/archival counters. The in-context log's position-0 system message
// is regenerated from this template whenever memory or the counts change;
// it is never persisted as mutable state.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/mnemos/internal/memory"
)

// MemoryCounts are the storage statistics rendered into the preamble.
type MemoryCounts struct {
	// Recall is the number of messages stored in recall memory.
	Recall int

	// Archival is the number of passages stored in archival memory.
	Archival int
}

// ConstructSystem renders the full system message: static system text plus
// the memory section.
func ConstructSystem(system string, core *memory.Core, counts MemoryCounts, editedAt time.Time) string {
	var b strings.Builder
	b.WriteString(system)
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("### Memory [last modified: %s]\n", editedAt.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("%d previous messages between you and the user are stored in recall memory (use functions to access them)\n", counts.Recall))
	b.WriteString(fmt.Sprintf("%d total memories you created are stored in archival memory (use functions to access them)\n", counts.Archival))
	b.WriteString("\nCore memory shown below (limited in size, additional information stored in archival / recall memory):\n")
	b.WriteString(fmt.Sprintf("<persona characters=\"%d/%d\">\n", len(core.Persona), core.PersonaCharLimit))
	b.WriteString(core.Persona)
	b.WriteString("\n</persona>\n")
	b.WriteString(fmt.Sprintf("<human characters=\"%d/%d\">\n", len(core.Human), core.HumanCharLimit))
	b.WriteString(core.Human)
	b.WriteString("\n</human>")
	return b.String()
}
