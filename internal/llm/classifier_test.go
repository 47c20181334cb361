package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/agendia/sofia/pkg/types"
)

// stubProvider answers with a fixed string or error.
type stubProvider struct {
	reply string
	err   error
	last  *CompletionRequest
}

func (s *stubProvider) Name() ProviderType { return "stub" }
func (s *stubProvider) Validate() error    { return nil }
func (s *stubProvider) Complete(_ context.Context, req *CompletionRequest) (string, error) {
	s.last = req
	return s.reply, s.err
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"accion":"consultar"}`, `{"accion":"consultar"}`},
		{"json fence", "```json\n{\"accion\":\"agregar\"}\n```", `{"accion":"agregar"}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around object", "Claro, aquí tienes: {\"accion\":\"borrar\"} ¡Espero que sirva!", `{"accion":"borrar"}`},
		{"no object", "no puedo ayudarte con eso", "no puedo ayudarte con eso"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanJSON(tt.in); got != tt.want {
				t.Errorf("CleanJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAnalyzeParsesProviderJSON(t *testing.T) {
	p := &stubProvider{reply: "```json\n" + `{
		"accion": "agregar",
		"parametros": {
			"titulo": "Reunión equipo",
			"fecha": "2026-03-11",
			"horaInicio": "10:00",
			"horaFin": "null",
			"id": null
		}
	}` + "\n```"}
	c := NewClassifier(p, nil)

	a := c.Analyze(context.Background(), "agrega una reunión", nil)
	if a.Fallback {
		t.Fatal("expected model path, got fallback")
	}
	if a.Intent != types.IntentCreate {
		t.Errorf("intent = %v, want create", a.Intent)
	}
	if a.Params.Title != "Reunión equipo" || a.Params.Date != "2026-03-11" || a.Params.StartTime != "10:00" {
		t.Errorf("unexpected params: %+v", a.Params)
	}
	if a.Params.EndTime != "" {
		t.Errorf("literal null should be treated as absent, got %q", a.Params.EndTime)
	}
}

func TestAnalyzeFallsBackOnProviderError(t *testing.T) {
	p := &stubProvider{err: errors.New("connection refused")}
	c := NewClassifier(p, nil)

	a := c.Analyze(context.Background(), "borra la cita del 12/03/2026", nil)
	if !a.Fallback {
		t.Fatal("expected keyword fallback")
	}
	if a.Intent != types.IntentDelete {
		t.Errorf("intent = %v, want delete", a.Intent)
	}
	if a.Params.Date != "12/03/2026" {
		t.Errorf("date = %q, want 12/03/2026", a.Params.Date)
	}
}

func TestAnalyzeFallsBackOnMalformedJSON(t *testing.T) {
	p := &stubProvider{reply: "lo siento, no entendí"}
	c := NewClassifier(p, nil)

	a := c.Analyze(context.Background(), "muestra mis eventos", nil)
	if !a.Fallback {
		t.Fatal("expected keyword fallback")
	}
	if a.Intent != types.IntentQuery {
		t.Errorf("intent = %v, want query", a.Intent)
	}
}

func TestAnalyzeIncludesHistoryWindow(t *testing.T) {
	p := &stubProvider{reply: `{"accion":"ninguna","parametros":{}}`}
	c := NewClassifier(p, nil)

	history := []types.Turn{
		{Role: types.RoleUser, Content: "uno"},
		{Role: types.RoleAssistant, Content: "dos"},
		{Role: types.RoleUser, Content: "tres"},
		{Role: types.RoleAssistant, Content: "cuatro"},
	}
	c.Analyze(context.Background(), "hola", history)

	if p.last == nil {
		t.Fatal("provider was not called")
	}
	if strings.Contains(p.last.Prompt, "uno") {
		t.Error("prompt should only carry the most recent turns")
	}
	for _, want := range []string{"dos", "tres", "cuatro"} {
		if !strings.Contains(p.last.Prompt, want) {
			t.Errorf("prompt missing history entry %q", want)
		}
	}
}

func TestDetectBasicIntent(t *testing.T) {
	tests := []struct {
		in   string
		want types.Intent
	}{
		{"muestra mis eventos de marzo", types.IntentQuery},
		{"agrega una cita con el dentista", types.IntentCreate},
		{"quiero cambiar la hora de la reunión", types.IntentEdit},
		{"elimina el evento del viernes", types.IntentDelete},
		{"hola, ¿cómo estás?", types.IntentNone},
	}
	for _, tt := range tests {
		if got := DetectBasicIntent(tt.in); got != tt.want {
			t.Errorf("DetectBasicIntent(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestExtractBasicParams(t *testing.T) {
	p := ExtractBasicParams(`agrega "Cena familiar" el 15/03/2026 a las 8pm`)
	if p.Title != "Cena familiar" {
		t.Errorf("title = %q, want Cena familiar", p.Title)
	}
	if p.Date != "15/03/2026" {
		t.Errorf("date = %q, want 15/03/2026", p.Date)
	}
	if p.StartTime == "" {
		t.Error("expected a start time match")
	}
}

func TestAgendaRelated(t *testing.T) {
	if !AgendaRelated("necesito organizar mi calendario") {
		t.Error("calendar talk should be agenda related")
	}
	if AgendaRelated("¿qué opinas del clima?") {
		t.Error("weather talk should not be agenda related")
	}
}
