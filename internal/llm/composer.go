package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agendia/sofia/pkg/types"
)

// Composer turns structured operation outcomes into conversational
// Spanish. Like the classifier it degrades instead of failing: when no
// provider is reachable a fixed template per action is used.
type Composer struct {
	provider Provider
	chat     Provider
	log      *zap.Logger
}

// NewComposer builds a composer. provider renders operation outcomes;
// chat handles general conversation. Either may be nil.
func NewComposer(provider, chat Provider, log *zap.Logger) *Composer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Composer{provider: provider, chat: chat, log: log}
}

const composerSystem = `Eres Sofía, una asistente de agenda amable y concisa.
Redacta una respuesta breve y natural en español para el usuario a partir del
resultado de la operación. No inventes datos, no uses formato markdown y no
menciones que recibiste un JSON.`

const smallTalkSystem = `Eres Agente Sofía, una asistente virtual amable que ayuda
a gestionar una agenda de eventos. Responde en español de forma breve y cordial.
Si la conversación se aleja de la agenda, conversa con naturalidad pero recuerda
amablemente que puedes ayudar con citas y eventos.`

// composeOutcome is what the model sees when rendering a result.
type composeOutcome struct {
	Accion  string        `json:"accion"`
	Exito   bool          `json:"exito"`
	Detalle string        `json:"detalle,omitempty"`
	Eventos []types.Event `json:"eventos,omitempty"`
}

// Compose renders the outcome of an intent into a user-facing message.
// detail carries a short factual note (conflict found, nothing matched);
// events carries the rows a query returned.
func (c *Composer) Compose(ctx context.Context, intent types.Intent, ok bool, detail string, events []types.Event) string {
	if c.provider == nil {
		return templateFor(intent, ok, detail, events)
	}

	payload, err := json.Marshal(composeOutcome{
		Accion:  accionFromIntent(intent),
		Exito:   ok,
		Detalle: detail,
		Eventos: events,
	})
	if err != nil {
		return templateFor(intent, ok, detail, events)
	}

	reply, err := c.provider.Complete(ctx, &CompletionRequest{
		System:    composerSystem,
		Prompt:    string(payload),
		MaxTokens: 300,
	})
	if err != nil || strings.TrimSpace(reply) == "" {
		c.log.Warn("composer provider failed, using template", zap.Error(err))
		return templateFor(intent, ok, detail, events)
	}
	return strings.TrimSpace(reply)
}

// SmallTalk answers a message that is not about the agenda.
func (c *Composer) SmallTalk(ctx context.Context, message string, history []types.Turn) string {
	if c.chat == nil {
		return SmallTalkFallback
	}
	reply, err := c.chat.Complete(ctx, &CompletionRequest{
		System:    smallTalkSystem,
		Prompt:    renderHistory(history, historyWindow) + "\nuser: " + message,
		MaxTokens: 300,
	})
	if err != nil || strings.TrimSpace(reply) == "" {
		c.log.Warn("small talk provider failed, using fixed reply", zap.Error(err))
		return SmallTalkFallback
	}
	return strings.TrimSpace(reply)
}

// SmallTalkFallback is the fixed reply when no chat provider answers.
const SmallTalkFallback = "Estoy aquí para ayudarte con tu agenda 😊. " +
	"Puedo consultar, agregar, editar o borrar eventos. ¿Qué necesitas?"

func accionFromIntent(intent types.Intent) string {
	switch intent {
	case types.IntentQuery:
		return "consultar"
	case types.IntentCreate:
		return "agregar"
	case types.IntentEdit:
		return "editar"
	case types.IntentDelete:
		return "borrar"
	default:
		return "ninguna"
	}
}

func templateFor(intent types.Intent, ok bool, detail string, events []types.Event) string {
	if !ok {
		msg := failureTemplates[intent]
		if msg == "" {
			msg = "Lo siento, no pude completar esa operación."
		}
		if detail != "" {
			msg += " " + detail
		}
		return msg
	}
	switch intent {
	case types.IntentQuery:
		return formatEventList(events)
	case types.IntentCreate:
		return "¡Listo! Tu evento quedó agendado. ✅"
	case types.IntentEdit:
		return "¡Perfecto! El evento fue actualizado. ✅"
	case types.IntentDelete:
		return "El evento fue eliminado de tu agenda. 🗑️"
	default:
		if detail != "" {
			return detail
		}
		return "¡Hecho!"
	}
}

var failureTemplates = map[types.Intent]string{
	types.IntentQuery:  "No encontré eventos con esos datos.",
	types.IntentCreate: "No pude agendar el evento.",
	types.IntentEdit:   "No pude actualizar el evento.",
	types.IntentDelete: "No pude eliminar el evento.",
}

func formatEventList(events []types.Event) string {
	if len(events) == 0 {
		return "No tienes eventos agendados para esa búsqueda."
	}
	var b strings.Builder
	b.WriteString("Esto es lo que encontré:\n")
	for _, e := range events {
		fmt.Fprintf(&b, "• %s — %s de %s a %s\n", e.Name, e.Date, e.StartTime, e.EndTime)
	}
	return strings.TrimRight(b.String(), "\n")
}
