package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agendia/sofia/internal/calendar"
	"github.com/agendia/sofia/internal/events"
	"github.com/agendia/sofia/internal/llm"
	"github.com/agendia/sofia/internal/nlp"
	"github.com/agendia/sofia/internal/session"
	"github.com/agendia/sofia/pkg/types"
)

// startCreate opens the creation flow. Parameters the classifier already
// extracted pre-fill their slots; the flow then asks for the first
// missing one in order.
func (r *Router) startCreate(ctx context.Context, sess *session.Session, userID string, p llm.Params) types.Reply {
	sess.Pending = types.IntentCreate
	sess.Slots = map[string]string{}
	sess.FailedAttempts = 0
	r.publish(ctx, events.NewEvent(events.EventFlowStarted, userID, "", map[string]any{
		"intent": string(types.IntentCreate),
	}))

	if t := strings.TrimSpace(p.Title); t != "" {
		sess.Slots["name"] = t
	}
	if p.Date != "" {
		if d, rng, ok := nlp.NormalizeDate(p.Date, r.now()); ok && rng == nil {
			sess.Slots["date"] = d
		}
	}
	if p.StartTime != "" {
		if t, ok := nlp.NormalizeTime(p.StartTime); ok {
			sess.Slots["start"] = t
		}
	}
	if p.EndTime != "" {
		if t, ok := nlp.NormalizeTime(p.EndTime); ok {
			sess.Slots["end"] = t
		}
	}
	return r.nextCreatePrompt(sess)
}

// nextCreatePrompt asks for the first unfilled slot, in the fixed order
// name, date, start time, duration, confirmation.
func (r *Router) nextCreatePrompt(sess *session.Session) types.Reply {
	slots := sess.Slots
	switch {
	case slots["name"] == "":
		sess.Step = stepCreateName
		return pending("📝 ¿Cómo se llama el evento que deseas agendar?")
	case slots["date"] == "":
		sess.Step = stepCreateDate
		return pending(fmt.Sprintf("📅 ¿Para qué fecha será el evento \"%s\"? Puedes decir \"mañana\" o \"15 de marzo\".", slots["name"]))
	case slots["start"] == "":
		sess.Step = stepCreateStart
		return pending(fmt.Sprintf("⏰ ¿A qué hora comienza el evento \"%s\" el %s?", slots["name"], slots["date"]))
	case slots["end"] == "":
		sess.Step = stepCreateDuration
		return pending(fmt.Sprintf("⏳ ¿Cuánto durará el evento \"%s\"? Ejemplo: \"1 hora\", \"2 horas\".", slots["name"]))
	default:
		sess.Step = stepCreateConfirm
		return pending(fmt.Sprintf("✅ Vas a agendar \"%s\" el %s de %s a %s. ¿Confirmas? Responde \"sí\" para confirmar o \"no\" para cambiar algo.",
			slots["name"], slots["date"], slots["start"], slots["end"]))
	}
}

func (r *Router) createName(ctx context.Context, sess *session.Session, userID, text string) types.Reply {
	name := strings.TrimSpace(text)
	if name == "" {
		return r.fail(ctx, sess, userID, "El nombre del evento es requerido. Ejemplo: \"Reunión con equipo de ventas\".")
	}
	sess.Slots["name"] = name
	sess.FailedAttempts = 0
	return r.nextCreatePrompt(sess)
}

func (r *Router) createDate(ctx context.Context, sess *session.Session, userID, text string) types.Reply {
	date, rng, ok := nlp.NormalizeDate(text, r.now())
	if !ok {
		return r.fail(ctx, sess, userID, "No entendí la fecha. Puedes decir \"mañana\" o \"15 de marzo\".")
	}
	if rng != nil {
		date = rng.Start
	}
	sess.Slots["date"] = date
	sess.FailedAttempts = 0
	return r.nextCreatePrompt(sess)
}

func (r *Router) createStart(ctx context.Context, sess *session.Session, userID, text string) types.Reply {
	start, ok := nlp.NormalizeTime(text)
	if !ok {
		return r.fail(ctx, sess, userID, "No entendí la hora. Ejemplo: \"2:00 pm\" o \"14:00\".")
	}
	sess.Slots["start"] = start
	sess.FailedAttempts = 0
	return r.nextCreatePrompt(sess)
}

func (r *Router) createDuration(ctx context.Context, sess *session.Session, userID, text string) types.Reply {
	hours := nlp.NormalizeDuration(text)
	end, ok := nlp.AddHours(sess.Slots["start"], hours)
	if !ok {
		return r.fail(ctx, sess, userID, "No pude calcular la hora de fin. Ejemplo de duración: \"1 hora\".")
	}
	sess.Slots["end"] = end
	sess.FailedAttempts = 0
	return r.nextCreatePrompt(sess)
}

func (r *Router) createConfirm(ctx context.Context, sess *session.Session, userID, text string) types.Reply {
	switch {
	case isAffirmation(text):
		slots := sess.Slots
		ev, err := r.calendar.Create(ctx, slots["name"], slots["date"], slots["start"], slots["end"])
		if errors.Is(err, calendar.ErrConflict) {
			return types.Reply{
				Status:  types.StatusError,
				Message: "⚠️ La fecha y hora tienen conflicto con otro evento. ¿Quieres probar otro horario?",
			}
		}
		if err != nil {
			r.log.Error("creating event", zap.String("user", userID), zap.Error(err))
			return types.Reply{Status: types.StatusError, Message: internalErrorMsg}
		}
		r.publish(ctx, events.NewEvent(events.EventCalendarCreated, userID, ev.ID, map[string]any{
			"name": ev.Name, "date": ev.Date,
		}))
		msg := fmt.Sprintf("🎉 ¡Evento \"%s\" agendado exitosamente para el %s de %s a %s!",
			ev.Name, ev.Date, ev.StartTime, ev.EndTime)
		sess.ResetFlow()
		return types.Reply{Status: types.StatusSuccess, Message: msg, Events: []types.Event{*ev}}

	case isNegation(text):
		// Back to the first slot; already-captured values survive so the
		// user only re-answers what they want to change.
		sess.Step = stepCreateName
		return pending("🔄 Entendido. Empecemos por el nombre. ¿Cómo se llamará el evento?")

	default:
		return r.fail(ctx, sess, userID, "No entendí tu respuesta. Responde \"sí\" para confirmar o \"no\" para cambiar algo.")
	}
}
