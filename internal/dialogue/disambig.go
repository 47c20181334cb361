package dialogue

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agendia/sofia/pkg/types"
)

// maxCandidates bounds how many matches a disambiguation list shows.
const maxCandidates = 5

func capCandidates(found []types.Event) []types.Event {
	if len(found) > maxCandidates {
		return found[:maxCandidates]
	}
	return found
}

func formatCandidates(found []types.Event, verb string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Se encontraron varios eventos. Por favor, indica el número del evento que deseas %s:\n", verb)
	for i, e := range found {
		fmt.Fprintf(&b, "%d. %s (%s %s-%s)\n", i+1, e.Name, e.Date, e.StartTime, e.EndTime)
	}
	return strings.TrimRight(b.String(), "\n")
}

// pickCandidate resolves a disambiguation answer as a 1-based list index
// or a literal event id.
func pickCandidate(text string, candidates []types.Event) (*types.Event, bool) {
	t := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "."))
	if n, err := strconv.Atoi(t); err == nil {
		if n >= 1 && n <= len(candidates) {
			return &candidates[n-1], true
		}
		return nil, false
	}
	for i := range candidates {
		if candidates[i].ID == t {
			return &candidates[i], true
		}
	}
	return nil, false
}
