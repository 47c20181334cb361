package dialogue

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/agendia/sofia/internal/calendar"
	"github.com/agendia/sofia/internal/events"
	"github.com/agendia/sofia/internal/llm"
	"github.com/agendia/sofia/internal/session"
	"github.com/agendia/sofia/pkg/types"
)

// fakeClassifier answers from a queue; when the queue empties it reports
// no intent.
type fakeClassifier struct {
	queue []llm.Analysis
	calls int
}

func (f *fakeClassifier) Analyze(_ context.Context, _ string, _ []types.Turn) llm.Analysis {
	f.calls++
	if len(f.queue) == 0 {
		return llm.Analysis{Intent: types.IntentNone}
	}
	a := f.queue[0]
	f.queue = f.queue[1:]
	return a
}

// fakeComposer renders deterministic strings so replies are assertable.
type fakeComposer struct {
	smallTalkCalls int
}

func (f *fakeComposer) Compose(_ context.Context, intent types.Intent, ok bool, detail string, evs []types.Event) string {
	return fmt.Sprintf("compose:%s ok=%t n=%d %s", intent, ok, len(evs), detail)
}

func (f *fakeComposer) SmallTalk(_ context.Context, _ string, _ []types.Turn) string {
	f.smallTalkCalls++
	return "charla general"
}

// fakeCalendar is an in-memory calendar.Store with call spies.
type fakeCalendar struct {
	events      map[string]types.Event
	nextID      int
	deleteCalls int
	updateCalls int
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: make(map[string]types.Event)}
}

func (f *fakeCalendar) add(name, date, start, end string) types.Event {
	f.nextID++
	ev := types.Event{ID: "ev-" + strconv.Itoa(f.nextID), Name: name, Date: date, StartTime: start, EndTime: end}
	f.events[ev.ID] = ev
	return ev
}

func (f *fakeCalendar) sorted() []types.Event {
	out := make([]types.Event, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (f *fakeCalendar) Create(_ context.Context, name, date, start, end string) (*types.Event, error) {
	for _, e := range f.events {
		if e.Overlaps(date, start, end) {
			return nil, calendar.ErrConflict
		}
	}
	ev := f.add(name, date, start, end)
	return &ev, nil
}

func (f *fakeCalendar) QueryRange(_ context.Context, startDate, endDate string) ([]types.Event, error) {
	var out []types.Event
	for _, e := range f.sorted() {
		if e.Date >= startDate && e.Date <= endDate {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeCalendar) QueryByName(_ context.Context, substring string) ([]types.Event, error) {
	var out []types.Event
	for _, e := range f.sorted() {
		if strings.Contains(strings.ToLower(e.Name), strings.ToLower(substring)) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeCalendar) QueryByDate(_ context.Context, date string) ([]types.Event, error) {
	var out []types.Event
	for _, e := range f.sorted() {
		if e.Date == date {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeCalendar) GetByID(_ context.Context, id string) (*types.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, calendar.ErrNotFound
	}
	return &e, nil
}

func (f *fakeCalendar) UpdateByID(_ context.Context, id string, fields types.EventFields) (*types.Event, error) {
	f.updateCalls++
	e, ok := f.events[id]
	if !ok {
		return nil, calendar.ErrNotFound
	}
	if fields.Name != nil {
		e.Name = *fields.Name
	}
	if fields.Date != nil {
		e.Date = *fields.Date
	}
	if fields.StartTime != nil {
		e.StartTime = *fields.StartTime
	}
	if fields.EndTime != nil {
		e.EndTime = *fields.EndTime
	}
	for _, other := range f.events {
		if other.ID != id && other.Overlaps(e.Date, e.StartTime, e.EndTime) {
			return nil, calendar.ErrConflict
		}
	}
	f.events[id] = e
	return &e, nil
}

func (f *fakeCalendar) DeleteByID(_ context.Context, id string) error {
	f.deleteCalls++
	if _, ok := f.events[id]; !ok {
		return calendar.ErrNotFound
	}
	delete(f.events, id)
	return nil
}

func (f *fakeCalendar) DeleteByName(_ context.Context, name string) error {
	for id, e := range f.events {
		if e.Name == name {
			delete(f.events, id)
			return nil
		}
	}
	return calendar.ErrNotFound
}

func (f *fakeCalendar) HasConflict(_ context.Context, date, start, end, excludeID string) (bool, error) {
	for _, e := range f.events {
		if e.ID != excludeID && e.Overlaps(date, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCalendar) Close() error { return nil }

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func setupRouter(t *testing.T, cls *fakeClassifier, cal *fakeCalendar) (*Router, *fakeComposer) {
	t.Helper()
	comp := &fakeComposer{}
	r := NewRouter(session.NewMemoryStore(), cal, cls, comp, nil, nil, Options{
		Now: func() time.Time { return testNow },
	})
	return r, comp
}

func TestScriptedCreateFlow(t *testing.T) {
	cal := newFakeCalendar()
	cls := &fakeClassifier{queue: []llm.Analysis{{Intent: types.IntentCreate}}}
	r, _ := setupRouter(t, cls, cal)
	ctx := context.Background()

	first := r.Handle(ctx, "u1", "quiero agendar un evento")
	if !strings.HasPrefix(first.Message, Greeting) {
		t.Errorf("first reply should carry the greeting: %q", first.Message)
	}
	if first.Status != types.StatusPending {
		t.Fatalf("status = %s, want pending", first.Status)
	}

	script := []string{"Reunión equipo", "mañana", "10:00", "2 horas"}
	for _, msg := range script {
		rep := r.Handle(ctx, "u1", msg)
		if rep.Status != types.StatusPending {
			t.Fatalf("after %q: status = %s (%s), want pending", msg, rep.Status, rep.Message)
		}
		if strings.HasPrefix(rep.Message, Greeting) {
			t.Errorf("greeting repeated on %q", msg)
		}
	}

	final := r.Handle(ctx, "u1", "sí")
	if final.Status != types.StatusSuccess {
		t.Fatalf("confirmation: status = %s (%s)", final.Status, final.Message)
	}
	evs := cal.sorted()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	got := evs[0]
	if got.Name != "Reunión equipo" || got.Date != "2026-03-11" || got.StartTime != "10:00" || got.EndTime != "12:00" {
		t.Errorf("unexpected event: %+v", got)
	}

	sess, _ := r.sessions.Get(ctx, "u1")
	if !sess.Idle() {
		t.Errorf("session should be idle after completion, pending=%s step=%d", sess.Pending, sess.Step)
	}
}

func TestCreateConflictKeepsConfirmStep(t *testing.T) {
	cal := newFakeCalendar()
	cal.add("Dentista", "2026-03-11", "11:00", "13:00")
	cls := &fakeClassifier{queue: []llm.Analysis{{
		Intent: types.IntentCreate,
		Params: llm.Params{Title: "Reunión equipo", Date: "mañana", StartTime: "10:00"},
	}}}
	r, _ := setupRouter(t, cls, cal)
	ctx := context.Background()

	rep := r.Handle(ctx, "u1", "agenda una reunión mañana a las 10")
	if rep.Status != types.StatusPending || !strings.Contains(rep.Message, "durará") {
		t.Fatalf("expected duration prompt, got %s: %s", rep.Status, rep.Message)
	}
	r.Handle(ctx, "u1", "2 horas")

	conflict := r.Handle(ctx, "u1", "sí")
	if conflict.Status != types.StatusError || !strings.Contains(conflict.Message, "conflicto") {
		t.Fatalf("expected conflict reply, got %s: %s", conflict.Status, conflict.Message)
	}

	sess, _ := r.sessions.Get(ctx, "u1")
	if sess.Pending != types.IntentCreate || sess.Step != stepCreateConfirm {
		t.Errorf("conflict must keep the confirm step, pending=%s step=%d", sess.Pending, sess.Step)
	}

	// The confirm question is still answerable: declining restarts at the
	// name while keeping the captured slots.
	again := r.Handle(ctx, "u1", "no")
	if again.Status != types.StatusPending {
		t.Fatalf("decline: status = %s", again.Status)
	}
	sess, _ = r.sessions.Get(ctx, "u1")
	if sess.Step != stepCreateName || sess.Slots["date"] != "2026-03-11" {
		t.Errorf("decline should return to the name step with slots kept: step=%d slots=%v", sess.Step, sess.Slots)
	}
}

func TestEditDisambiguation(t *testing.T) {
	cal := newFakeCalendar()
	cal.add("Reunión ventas", "2026-03-12", "09:00", "10:00")
	cal.add("Reunión soporte", "2026-03-13", "11:00", "12:00")
	cal.add("Reunión directorio", "2026-03-14", "15:00", "16:00")
	cls := &fakeClassifier{queue: []llm.Analysis{{
		Intent: types.IntentEdit,
		Params: llm.Params{Title: "Reunión"},
	}}}
	r, _ := setupRouter(t, cls, cal)
	ctx := context.Background()

	list := r.Handle(ctx, "u1", "quiero editar la reunión")
	for _, want := range []string{"1. Reunión ventas", "2. Reunión soporte", "3. Reunión directorio"} {
		if !strings.Contains(list.Message, want) {
			t.Fatalf("disambiguation list missing %q:\n%s", want, list.Message)
		}
	}
	if len(list.Events) != 3 {
		t.Errorf("disambiguation reply should carry the candidates, got %d", len(list.Events))
	}

	bad := r.Handle(ctx, "u1", "9")
	if bad.Status != types.StatusError {
		t.Fatalf("out-of-range pick: status = %s", bad.Status)
	}
	sess, _ := r.sessions.Get(ctx, "u1")
	if sess.Step != stepEditDisambiguating || len(sess.Candidates) != 3 {
		t.Errorf("bad pick must not change state: step=%d candidates=%d", sess.Step, len(sess.Candidates))
	}

	pick := r.Handle(ctx, "u1", "2")
	if !strings.Contains(pick.Message, "Reunión soporte") || !strings.Contains(pick.Message, "campo") {
		t.Fatalf("expected field choice for second candidate: %s", pick.Message)
	}

	r.Handle(ctx, "u1", "fecha")
	r.Handle(ctx, "u1", "20 de marzo")
	done := r.Handle(ctx, "u1", "sí")
	if done.Status != types.StatusSuccess {
		t.Fatalf("edit confirm: status = %s (%s)", done.Status, done.Message)
	}
	updated, err := cal.QueryByName(ctx, "Reunión soporte")
	if err != nil || len(updated) != 1 {
		t.Fatalf("updated event lookup failed: %v", err)
	}
	if updated[0].Date != "2026-03-20" {
		t.Errorf("date = %s, want 2026-03-20", updated[0].Date)
	}
}

func TestDeleteDeclinedMakesNoStoreCall(t *testing.T) {
	cal := newFakeCalendar()
	cal.add("Dentista", "2026-03-12", "09:00", "10:00")
	cls := &fakeClassifier{queue: []llm.Analysis{{
		Intent: types.IntentDelete,
		Params: llm.Params{Title: "Dentista"},
	}}}
	r, _ := setupRouter(t, cls, cal)
	ctx := context.Background()

	confirm := r.Handle(ctx, "u1", "borra la cita del dentista")
	if !strings.Contains(confirm.Message, "seguro") {
		t.Fatalf("expected delete confirmation, got: %s", confirm.Message)
	}

	rep := r.Handle(ctx, "u1", "no")
	if rep.Status != types.StatusSuccess || !strings.Contains(rep.Message, "cancelado") {
		t.Fatalf("decline: status = %s message = %s", rep.Status, rep.Message)
	}
	if cal.deleteCalls != 0 {
		t.Errorf("decline must not touch the store, deleteCalls = %d", cal.deleteCalls)
	}
	if len(cal.events) != 1 {
		t.Errorf("event should survive, have %d", len(cal.events))
	}
}

func TestThreeFailedAnswersResetTheFlow(t *testing.T) {
	cal := newFakeCalendar()
	cls := &fakeClassifier{queue: []llm.Analysis{{
		Intent: types.IntentCreate,
		Params: llm.Params{Title: "Almuerzo"},
	}}}
	r, _ := setupRouter(t, cls, cal)
	ctx := context.Background()

	rep := r.Handle(ctx, "u1", "agenda un almuerzo")
	if !strings.Contains(rep.Message, "fecha") {
		t.Fatalf("expected date prompt, got: %s", rep.Message)
	}

	r.Handle(ctx, "u1", "ni idea")
	r.Handle(ctx, "u1", "tampoco sé")
	last := r.Handle(ctx, "u1", "mmm")
	if last.Status != types.StatusError || !strings.Contains(last.Message, "Demasiados intentos") {
		t.Fatalf("third failure should reset: %s (%s)", last.Status, last.Message)
	}

	sess, _ := r.sessions.Get(ctx, "u1")
	if !sess.Idle() || sess.FailedAttempts != 0 {
		t.Errorf("session should be reset: pending=%s attempts=%d", sess.Pending, sess.FailedAttempts)
	}
	if len(cal.events) != 0 {
		t.Errorf("no event should have been created")
	}
}

func TestQueryByDateAnswersDirectly(t *testing.T) {
	cal := newFakeCalendar()
	cal.add("Dentista", "2026-03-11", "09:00", "10:00")
	cal.add("Almuerzo", "2026-03-11", "13:00", "14:00")
	cal.add("Cine", "2026-03-15", "19:00", "21:00")
	cls := &fakeClassifier{queue: []llm.Analysis{{
		Intent: types.IntentQuery,
		Params: llm.Params{Date: "mañana"},
	}}}
	r, _ := setupRouter(t, cls, cal)

	rep := r.Handle(context.Background(), "u1", "qué eventos tengo mañana")
	if rep.Status != types.StatusSuccess {
		t.Fatalf("status = %s (%s)", rep.Status, rep.Message)
	}
	if len(rep.Events) != 2 {
		t.Errorf("expected the 2 events of 2026-03-11, got %d", len(rep.Events))
	}
	if !strings.Contains(rep.Message, "n=2") {
		t.Errorf("composer should have seen both events: %s", rep.Message)
	}
}

func TestQueryAsksWhenUnderspecified(t *testing.T) {
	cal := newFakeCalendar()
	cal.add("Dentista", "2026-03-11", "09:00", "10:00")
	cls := &fakeClassifier{queue: []llm.Analysis{{Intent: types.IntentQuery}}}
	r, _ := setupRouter(t, cls, cal)
	ctx := context.Background()

	ask := r.Handle(ctx, "u1", "consulta mi agenda")
	if ask.Status != types.StatusInfo {
		t.Fatalf("status = %s, want info", ask.Status)
	}

	rep := r.Handle(ctx, "u1", "dentista")
	if rep.Status != types.StatusSuccess || len(rep.Events) != 1 {
		t.Fatalf("name follow-up should resolve: %s (%d events)", rep.Status, len(rep.Events))
	}
}

func TestSmallTalkWhenNoIntent(t *testing.T) {
	cls := &fakeClassifier{}
	r, comp := setupRouter(t, cls, newFakeCalendar())

	rep := r.Handle(context.Background(), "u1", "cuéntame algo sobre mi agenda")
	if rep.Status != types.StatusSuccess {
		t.Fatalf("status = %s", rep.Status)
	}
	if cls.calls != 1 {
		t.Errorf("on-topic message should reach the classifier, calls = %d", cls.calls)
	}
	if comp.smallTalkCalls != 1 {
		t.Errorf("small talk path not used, calls = %d", comp.smallTalkCalls)
	}
	if !strings.Contains(rep.Message, "charla general") {
		t.Errorf("reply = %q", rep.Message)
	}
}

func TestOffTopicMessageSkipsClassifier(t *testing.T) {
	cls := &fakeClassifier{}
	r, comp := setupRouter(t, cls, newFakeCalendar())

	rep := r.Handle(context.Background(), "u1", "hola, ¿cómo estás?")
	if rep.Status != types.StatusSuccess {
		t.Fatalf("status = %s", rep.Status)
	}
	if cls.calls != 0 {
		t.Errorf("off-topic message must not spend a classifier call, calls = %d", cls.calls)
	}
	if comp.smallTalkCalls != 1 {
		t.Errorf("small talk path not used, calls = %d", comp.smallTalkCalls)
	}
}

func TestFlowLifecycleEventsPublished(t *testing.T) {
	cal := newFakeCalendar()
	cal.add("Dentista", "2026-03-12", "09:00", "10:00")
	cls := &fakeClassifier{queue: []llm.Analysis{{
		Intent: types.IntentDelete,
		Params: llm.Params{Title: "Dentista"},
	}}}
	bus := events.NewBus()
	defer bus.Close()
	ch := bus.Subscribe("test")
	r := NewRouter(session.NewMemoryStore(), cal, cls, &fakeComposer{}, bus, nil, Options{
		Now: func() time.Time { return testNow },
	})
	ctx := context.Background()

	r.Handle(ctx, "u1", "borra la cita del dentista")
	r.Handle(ctx, "u1", "no")

	seen := map[events.EventType]bool{}
	for drained := false; !drained; {
		select {
		case ev := <-ch:
			seen[ev.Type] = true
		default:
			drained = true
		}
	}
	if !seen[events.EventFlowStarted] {
		t.Errorf("opening the delete flow should publish %s", events.EventFlowStarted)
	}
	if !seen[events.EventFlowCancelled] {
		t.Errorf("declining the confirmation should publish %s", events.EventFlowCancelled)
	}
	if cal.deleteCalls != 0 {
		t.Errorf("cancelled flow must not delete, calls = %d", cal.deleteCalls)
	}
}

func TestHistoryIsKeptAndCapped(t *testing.T) {
	cls := &fakeClassifier{}
	r, _ := setupRouter(t, cls, newFakeCalendar())
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		r.Handle(ctx, "u1", fmt.Sprintf("mensaje %d", i))
	}
	sess, _ := r.sessions.Get(ctx, "u1")
	if len(sess.History) != session.HistoryLimit {
		t.Errorf("history length = %d, want %d", len(sess.History), session.HistoryLimit)
	}
	last := sess.History[len(sess.History)-1]
	if last.Role != types.RoleAssistant {
		t.Errorf("last turn should be the assistant reply, got %s", last.Role)
	}
}
