// Package session tracks per-user conversational state across turns.
// State lives in a pluggable Store; the default driver is an in-process
// map, with an optional Redis driver for deployments that want sessions
// to survive restarts.
package session

import (
	"github.com/agendia/sofia/pkg/types"
)

// HistoryLimit caps how many turns of history a session keeps. Older
// entries are dropped first; history feeds the language model as context
// and is never the source of truth for slots.
const HistoryLimit = 10

// MaxFailedAttempts is how many invalid answers a single slot tolerates
// before the session is reset to idle.
const MaxFailedAttempts = 3

// Session is the mutable conversational state for one user. It is
// created lazily on the first message and cleared back to the zero state
// when a flow completes, is cancelled, or errors out.
type Session struct {
	Greeted         bool              `json:"greeted"`
	History         []types.Turn      `json:"history,omitempty"`
	Pending         types.Intent      `json:"pending"`
	Step            int               `json:"step"`
	Slots           map[string]string `json:"slots,omitempty"`
	Candidates      []types.Event     `json:"candidates,omitempty"`
	SelectedEventID string            `json:"selected_event_id,omitempty"`
	FailedAttempts  int               `json:"failed_attempts"`
}

// New returns an idle session.
func New() *Session {
	return &Session{
		Pending: types.IntentNone,
		Slots:   make(map[string]string),
	}
}

// Remember appends a turn to the history, dropping the oldest entries
// beyond HistoryLimit.
func (s *Session) Remember(role types.Role, content string) {
	s.History = append(s.History, types.Turn{Role: role, Content: content})
	if len(s.History) > HistoryLimit {
		s.History = s.History[len(s.History)-HistoryLimit:]
	}
}

// ResetFlow abandons the active flow but keeps the greeting flag and
// history so the conversation itself continues naturally.
func (s *Session) ResetFlow() {
	s.Pending = types.IntentNone
	s.Step = 0
	s.Slots = make(map[string]string)
	s.Candidates = nil
	s.SelectedEventID = ""
	s.FailedAttempts = 0
}

// Idle reports whether no state machine currently owns the next message.
func (s *Session) Idle() bool {
	return s.Pending == types.IntentNone || s.Pending == ""
}
