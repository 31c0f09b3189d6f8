package agent

import (
	"strings"

	"fleetwise/web/types"
)

// FormatHistory renders the last window messages as "User: ..." and
// "Assistant: ..." lines. Anything that is not a user message is labelled
// Assistant. A non-positive window keeps every message.
func FormatHistory(history []types.AgentMessage, window int) string {
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		speaker := "Assistant"
		if m.Role == types.RoleUser {
			speaker = "User"
		}
		lines = append(lines, speaker+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
