package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/agendia/sofia/pkg/types"
)

func TestComposeUsesProviderReply(t *testing.T) {
	p := &stubProvider{reply: "  ¡Tu reunión quedó agendada para mañana!  "}
	c := NewComposer(p, nil, nil)

	got := c.Compose(context.Background(), types.IntentCreate, true, "", nil)
	if got != "¡Tu reunión quedó agendada para mañana!" {
		t.Errorf("got %q", got)
	}
	if p.last == nil || !strings.Contains(p.last.Prompt, `"accion":"agregar"`) {
		t.Errorf("provider prompt missing outcome payload: %+v", p.last)
	}
}

func TestComposeTemplateOnProviderFailure(t *testing.T) {
	p := &stubProvider{err: errors.New("timeout")}
	c := NewComposer(p, nil, nil)

	got := c.Compose(context.Background(), types.IntentDelete, true, "", nil)
	if got != "El evento fue eliminado de tu agenda. 🗑️" {
		t.Errorf("got %q", got)
	}
}

func TestComposeFailureTemplateCarriesDetail(t *testing.T) {
	c := NewComposer(nil, nil, nil)

	got := c.Compose(context.Background(), types.IntentCreate, false, "Ya hay un evento en ese horario.", nil)
	if !strings.Contains(got, "No pude agendar el evento.") {
		t.Errorf("missing base template: %q", got)
	}
	if !strings.Contains(got, "Ya hay un evento en ese horario.") {
		t.Errorf("missing detail: %q", got)
	}
}

func TestComposeQueryTemplateListsEvents(t *testing.T) {
	c := NewComposer(nil, nil, nil)
	events := []types.Event{
		{Name: "Reunión equipo", Date: "2026-03-11", StartTime: "10:00", EndTime: "12:00"},
		{Name: "Dentista", Date: "2026-03-12", StartTime: "09:00", EndTime: "10:00"},
	}

	got := c.Compose(context.Background(), types.IntentQuery, true, "", events)
	for _, want := range []string{"Reunión equipo", "Dentista", "10:00", "12:00"} {
		if !strings.Contains(got, want) {
			t.Errorf("list missing %q:\n%s", want, got)
		}
	}

	empty := c.Compose(context.Background(), types.IntentQuery, true, "", nil)
	if !strings.Contains(empty, "No tienes eventos") {
		t.Errorf("empty query should say so, got %q", empty)
	}
}

func TestSmallTalkFallsBackWithoutProvider(t *testing.T) {
	c := NewComposer(nil, nil, nil)

	got := c.SmallTalk(context.Background(), "cuéntame un chiste", nil)
	if got != SmallTalkFallback {
		t.Errorf("got %q", got)
	}
}

func TestSmallTalkUsesChatProvider(t *testing.T) {
	chat := &stubProvider{reply: "¡Claro que sí! 😊"}
	c := NewComposer(nil, chat, nil)

	got := c.SmallTalk(context.Background(), "hola Sofía", []types.Turn{
		{Role: types.RoleAssistant, Content: "¡Hola!"},
	})
	if got != "¡Claro que sí! 😊" {
		t.Errorf("got %q", got)
	}
	if chat.last == nil || !strings.Contains(chat.last.Prompt, "hola Sofía") {
		t.Errorf("chat prompt missing user message: %+v", chat.last)
	}
}
