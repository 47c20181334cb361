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

// Editable fields and the Spanish ways users name them.
var fieldAliases = map[string]string{
	"nombre":         "name",
	"título":         "name",
	"titulo":         "name",
	"fecha":          "date",
	"día":            "date",
	"dia":            "date",
	"hora":           "start_time",
	"inicio":         "start_time",
	"hora de inicio": "start_time",
	"hora inicio":    "start_time",
	"fin":            "end_time",
	"hora de fin":    "end_time",
	"hora fin":       "end_time",
}

func fieldLabel(field string) string {
	switch field {
	case "name":
		return "nombre"
	case "date":
		return "fecha"
	case "start_time":
		return "hora de inicio"
	case "end_time":
		return "hora de fin"
	}
	return field
}

// startEdit opens the edit flow, resolving the target event from an id,
// a name or a date when the classifier extracted one.
func (r *Router) startEdit(ctx context.Context, sess *session.Session, userID string, p llm.Params) types.Reply {
	sess.Pending = types.IntentEdit
	sess.Slots = map[string]string{}
	sess.FailedAttempts = 0
	r.publish(ctx, events.NewEvent(events.EventFlowStarted, userID, "", map[string]any{
		"intent": string(types.IntentEdit),
	}))

	if p.ID != "" {
		ev, err := r.calendar.GetByID(ctx, p.ID)
		if errors.Is(err, calendar.ErrNotFound) {
			sess.ResetFlow()
			return types.Reply{Status: types.StatusError, Message: "No se encontró ningún evento con ese identificador."}
		}
		if err != nil {
			r.log.Error("loading event by id", zap.Error(err))
			return types.Reply{Status: types.StatusError, Message: internalErrorMsg}
		}
		return r.editSelect(sess, ev)
	}
	if p.Title != "" {
		return r.editLookup(ctx, sess, p.Title)
	}
	if p.Date != "" {
		if date, rng, ok := nlp.NormalizeDate(p.Date, r.now()); ok && rng == nil {
			found, err := r.calendar.QueryByDate(ctx, date)
			if err != nil {
				r.log.Error("querying events by date", zap.Error(err))
				return types.Reply{Status: types.StatusError, Message: internalErrorMsg}
			}
			return r.resolveEditMatches(sess, found)
		}
	}

	sess.Step = stepEditIdentifier
	return info("Por favor, dime el nombre del evento que deseas editar.")
}

func (r *Router) editLookup(ctx context.Context, sess *session.Session, name string) types.Reply {
	found, err := r.calendar.QueryByName(ctx, strings.TrimSpace(name))
	if err != nil {
		r.log.Error("querying events by name", zap.Error(err))
		return types.Reply{Status: types.StatusError, Message: internalErrorMsg}
	}
	return r.resolveEditMatches(sess, found)
}

func (r *Router) resolveEditMatches(sess *session.Session, found []types.Event) types.Reply {
	switch len(found) {
	case 0:
		sess.ResetFlow()
		return types.Reply{Status: types.StatusError, Message: "No se encontró ningún evento con esos datos."}
	case 1:
		return r.editSelect(sess, &found[0])
	default:
		sess.Candidates = capCandidates(found)
		sess.Step = stepEditDisambiguating
		return types.Reply{
			Status:  types.StatusInfo,
			Message: formatCandidates(sess.Candidates, "editar"),
			Events:  sess.Candidates,
		}
	}
}

func (r *Router) editSelect(sess *session.Session, ev *types.Event) types.Reply {
	sess.SelectedEventID = ev.ID
	sess.Candidates = nil
	sess.Step = stepEditField
	return info(fmt.Sprintf("He identificado el evento \"%s\". ¿Qué campo deseas editar? (nombre, fecha, hora de inicio, hora de fin)", ev.Name))
}

func (r *Router) editIdentifier(ctx context.Context, sess *session.Session, userID, text string) types.Reply {
	if date, rng, ok := nlp.NormalizeDate(text, r.now()); ok && rng == nil {
		found, err := r.calendar.QueryByDate(ctx, date)
		if err != nil {
			r.log.Error("querying events by date", zap.Error(err))
			return types.Reply{Status: types.StatusError, Message: internalErrorMsg}
		}
		return r.resolveEditMatches(sess, found)
	}
	if strings.TrimSpace(text) == "" {
		return r.fail(ctx, sess, userID, "Necesito el nombre del evento que deseas editar.")
	}
	return r.editLookup(ctx, sess, text)
}

func (r *Router) editDisambiguating(ctx context.Context, sess *session.Session, userID, text string) types.Reply {
	ev, ok := pickCandidate(text, sess.Candidates)
	if !ok {
		return r.fail(ctx, sess, userID, fmt.Sprintf("Opción inválida. Indica un número del 1 al %d.", len(sess.Candidates)))
	}
	return r.editSelect(sess, ev)
}

func (r *Router) editField(ctx context.Context, sess *session.Session, userID, text string) types.Reply {
	field, ok := fieldAliases[strings.ToLower(strings.TrimSpace(text))]
	if !ok {
		return r.fail(ctx, sess, userID, "Campo inválido. Por favor elige entre: nombre, fecha, hora de inicio o hora de fin.")
	}
	sess.Slots["field"] = field
	sess.FailedAttempts = 0
	sess.Step = stepEditValue
	return pending(fmt.Sprintf("Por favor ingresa el nuevo valor para %s:", fieldLabel(field)))
}

func (r *Router) editValue(ctx context.Context, sess *session.Session, userID, text string) types.Reply {
	field := sess.Slots["field"]
	var value string
	switch field {
	case "name":
		value = strings.TrimSpace(text)
		if value == "" {
			return r.fail(ctx, sess, userID, "El nombre no puede estar vacío.")
		}
	case "date":
		date, rng, ok := nlp.NormalizeDate(text, r.now())
		if !ok {
			return r.fail(ctx, sess, userID, "No entendí la fecha. Puedes decir \"mañana\" o \"15 de marzo\".")
		}
		if rng != nil {
			date = rng.Start
		}
		value = date
	case "start_time", "end_time":
		t, ok := nlp.NormalizeTime(text)
		if !ok {
			return r.fail(ctx, sess, userID, "No entendí la hora. Ejemplo: \"2:00 pm\" o \"14:00\".")
		}
		value = t
	default:
		sess.ResetFlow()
		return types.Reply{Status: types.StatusError, Message: internalErrorMsg}
	}

	sess.Slots["value"] = value
	sess.FailedAttempts = 0
	sess.Step = stepEditConfirm
	return pending(fmt.Sprintf("¿Confirmas cambiar %s a \"%s\"? (Sí/No)", fieldLabel(field), value))
}

func (r *Router) editConfirm(ctx context.Context, sess *session.Session, userID, text string) types.Reply {
	switch {
	case isAffirmation(text):
		var fields types.EventFields
		value := sess.Slots["value"]
		switch sess.Slots["field"] {
		case "name":
			fields.Name = &value
		case "date":
			fields.Date = &value
		case "start_time":
			fields.StartTime = &value
		case "end_time":
			fields.EndTime = &value
		}

		updated, err := r.calendar.UpdateByID(ctx, sess.SelectedEventID, fields)
		if errors.Is(err, calendar.ErrConflict) {
			sess.Step = stepEditValue
			return types.Reply{
				Status:  types.StatusError,
				Message: fmt.Sprintf("⚠️ El nuevo valor tiene conflicto con otro evento. Ingresa otro valor para %s:", fieldLabel(sess.Slots["field"])),
			}
		}
		if errors.Is(err, calendar.ErrNotFound) {
			sess.ResetFlow()
			return types.Reply{Status: types.StatusError, Message: "El evento ya no existe en la agenda."}
		}
		if err != nil {
			r.log.Error("updating event", zap.String("user", userID), zap.Error(err))
			return types.Reply{Status: types.StatusError, Message: internalErrorMsg}
		}

		r.publish(ctx, events.NewEvent(events.EventCalendarUpdated, userID, updated.ID, map[string]any{
			"field": sess.Slots["field"],
		}))
		detail := fmt.Sprintf("%s (%s %s-%s)", updated.Name, updated.Date, updated.StartTime, updated.EndTime)
		sess.ResetFlow()
		return types.Reply{
			Status:  types.StatusSuccess,
			Message: r.composer.Compose(ctx, types.IntentEdit, true, detail, []types.Event{*updated}),
			Events:  []types.Event{*updated},
		}

	case isNegation(text):
		sess.ResetFlow()
		r.publish(ctx, events.NewEvent(events.EventFlowCancelled, userID, "", map[string]any{
			"intent": string(types.IntentEdit),
		}))
		return info("Edición cancelada.")

	default:
		return r.fail(ctx, sess, userID, "No entendí tu respuesta. Responde \"sí\" para confirmar o \"no\" para cancelar.")
	}
}
