package prompts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hearthd/hearth/internal/aliases"
	"github.com/hearthd/hearth/internal/entities"
)

// systemPreamble is the fixed part of the system prompt. The dynamic
// parts (entity summary, aliases, current time) are appended per run.
const systemPreamble = `You are Hearth, a home automation assistant. You control a Home Assistant installation through tools.

Guidelines:
- Refer to devices by their friendly names when talking to the user, never by raw entity IDs.
- When a tool reports an ambiguous reference, list the candidates and ask the user which one they mean. Do not guess.
- When a tool reports a stale alias, tell the user the device it pointed to is gone and offer to forget or re-learn the alias.
- Only unlock doors when the user explicitly asks.
- When the user gives a device their own name ("I call that the big lamp"), save it with remember_alias.
- Keep replies short and conversational. Confirm actions in one sentence.`

// SystemPrompt builds the full system prompt for one agent run. The
// snapshot and alias list may be nil/empty; the prompt degrades to the
// preamble plus a note that device data is unavailable.
func SystemPrompt(snap *entities.Snapshot, known []aliases.Alias, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(systemPreamble)

	sb.WriteString("\n\nCurrent time: ")
	sb.WriteString(now.Format("Monday, January 2, 2006 15:04 MST"))

	if snap == nil || snap.Len() == 0 {
		sb.WriteString("\n\nDevice data is currently unavailable; tell the user if they ask about devices.")
	} else {
		sb.WriteString("\n\n")
		sb.WriteString(entitySummary(snap))
	}

	if len(known) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(aliasSummary(known))
	}

	return sb.String()
}

// entitySummary renders a per-domain count so the model knows what
// exists without the full entity list blowing up the context.
func entitySummary(snap *entities.Snapshot) string {
	counts := snap.DomainCounts()

	domains := make([]string, 0, len(counts))
	for d := range counts {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	var sb strings.Builder
	fmt.Fprintf(&sb, "The home has %d entities:\n", snap.Len())
	for _, d := range domains {
		fmt.Fprintf(&sb, "- %s: %d\n", d, counts[d])
	}
	sb.WriteString("Use list_entities to see what's in a domain, and get_state to read a device.")
	return sb.String()
}

// aliasSummary lists the user's learned device names so the model can
// use them directly.
func aliasSummary(known []aliases.Alias) string {
	var sb strings.Builder
	sb.WriteString("Names the user has taught you:\n")
	for _, a := range known {
		fmt.Fprintf(&sb, "- %q is %s\n", a.Name, a.EntityID)
	}
	return strings.TrimRight(sb.String(), "\n")
}
