package session

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/agendia/sofia/pkg/types"
)

func TestRemember_CapsHistory(t *testing.T) {
	s := New()
	for i := 0; i < HistoryLimit+5; i++ {
		s.Remember(types.RoleUser, fmt.Sprintf("mensaje %d", i))
	}

	if len(s.History) != HistoryLimit {
		t.Fatalf("history length = %d, want %d", len(s.History), HistoryLimit)
	}
	// Oldest entries are dropped first.
	if s.History[0].Content != "mensaje 5" {
		t.Fatalf("oldest kept entry = %q, want %q", s.History[0].Content, "mensaje 5")
	}
	if s.History[HistoryLimit-1].Content != fmt.Sprintf("mensaje %d", HistoryLimit+4) {
		t.Fatalf("newest entry = %q", s.History[HistoryLimit-1].Content)
	}
}

func TestResetFlow_KeepsConversation(t *testing.T) {
	s := New()
	s.Greeted = true
	s.Remember(types.RoleUser, "hola")
	s.Pending = types.IntentCreate
	s.Step = 3
	s.Slots["name"] = "Reunión"
	s.Candidates = []types.Event{{ID: "1"}}
	s.SelectedEventID = "1"
	s.FailedAttempts = 2

	s.ResetFlow()

	if !s.Idle() {
		t.Fatal("session should be idle after reset")
	}
	if s.Step != 0 || len(s.Slots) != 0 || s.Candidates != nil || s.SelectedEventID != "" || s.FailedAttempts != 0 {
		t.Fatalf("flow state not cleared: %+v", s)
	}
	if !s.Greeted || len(s.History) != 1 {
		t.Fatal("greeting flag and history must survive a flow reset")
	}
}

func TestMemoryStore_LazyCreateAndClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	s, err := store.Get(ctx, "ana")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !s.Idle() {
		t.Fatal("fresh session should be idle")
	}

	s.Pending = types.IntentDelete
	s.Slots["name"] = "Dentista"
	if err := store.Put(ctx, "ana", s); err != nil {
		t.Fatalf("Put: %v", err)
	}

	again, err := store.Get(ctx, "ana")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again.Pending != types.IntentDelete || again.Slots["name"] != "Dentista" {
		t.Fatalf("session not persisted: %+v", again)
	}

	if err := store.Clear(ctx, "ana"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	cleared, _ := store.Get(ctx, "ana")
	if !cleared.Idle() || len(cleared.Slots) != 0 {
		t.Fatalf("Clear left state behind: %+v", cleared)
	}
}

func TestMemoryStore_IsolatesUsers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	a, _ := store.Get(ctx, "a")
	a.Pending = types.IntentCreate
	store.Put(ctx, "a", a)

	b, _ := store.Get(ctx, "b")
	if !b.Idle() {
		t.Fatal("user b must not see user a's state")
	}
}

func TestSession_JSONRoundTrip(t *testing.T) {
	s := New()
	s.Greeted = true
	s.Pending = types.IntentEdit
	s.Step = 2
	s.Slots["field"] = "date"
	s.Candidates = []types.Event{{ID: "e1", Name: "Kickoff", Date: "2026-03-10", StartTime: "09:00", EndTime: "10:00"}}
	s.SelectedEventID = "e1"

	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Session
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Pending != types.IntentEdit || back.Step != 2 || back.Slots["field"] != "date" {
		t.Fatalf("round trip lost state: %+v", back)
	}
	if len(back.Candidates) != 1 || back.Candidates[0].ID != "e1" {
		t.Fatalf("round trip lost candidates: %+v", back.Candidates)
	}
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Options{Driver: "scrolls"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	store, err := Open(Options{})
	if err != nil {
		t.Fatalf("default driver: %v", err)
	}
	store.Close()
}
