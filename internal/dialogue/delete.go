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
	"github.com/agendia/sofia/internal/session"
	"github.com/agendia/sofia/pkg/types"
)

// startDelete opens the deletion flow. Every path ends in an explicit
// confirmation before anything is removed.
func (r *Router) startDelete(ctx context.Context, sess *session.Session, userID string, p llm.Params) types.Reply {
	sess.Pending = types.IntentDelete
	sess.Slots = map[string]string{}
	sess.FailedAttempts = 0
	r.publish(ctx, events.NewEvent(events.EventFlowStarted, userID, "", map[string]any{
		"intent": string(types.IntentDelete),
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
		return r.deleteSelect(sess, ev)
	}
	if p.Title != "" {
		return r.deleteLookup(ctx, sess, p.Title)
	}

	sess.Step = stepDeleteIdentifier
	return info("Para borrar un evento, por favor proporciona el nombre del evento a borrar.")
}

func (r *Router) deleteLookup(ctx context.Context, sess *session.Session, name string) types.Reply {
	found, err := r.calendar.QueryByName(ctx, strings.TrimSpace(name))
	if err != nil {
		r.log.Error("querying events by name", zap.Error(err))
		return types.Reply{Status: types.StatusError, Message: internalErrorMsg}
	}
	switch len(found) {
	case 0:
		sess.ResetFlow()
		return types.Reply{Status: types.StatusError, Message: "No se encontró ningún evento con ese nombre."}
	case 1:
		return r.deleteSelect(sess, &found[0])
	default:
		sess.Candidates = capCandidates(found)
		sess.Step = stepDeleteDisambiguating
		return types.Reply{
			Status:  types.StatusInfo,
			Message: formatCandidates(sess.Candidates, "borrar"),
			Events:  sess.Candidates,
		}
	}
}

func (r *Router) deleteSelect(sess *session.Session, ev *types.Event) types.Reply {
	sess.SelectedEventID = ev.ID
	sess.Candidates = nil
	sess.Step = stepDeleteConfirm
	return info(fmt.Sprintf("Se ha identificado el evento \"%s\" con fecha %s y horario %s - %s. ¿Estás seguro de que deseas borrarlo? Responde \"sí\" para confirmar o \"no\" para cancelar.",
		ev.Name, ev.Date, ev.StartTime, ev.EndTime))
}

func (r *Router) deleteIdentifier(ctx context.Context, sess *session.Session, userID, text string) types.Reply {
	if strings.TrimSpace(text) == "" {
		return r.fail(ctx, sess, userID, "Necesito el nombre del evento que deseas borrar.")
	}
	return r.deleteLookup(ctx, sess, text)
}

func (r *Router) deleteDisambiguating(ctx context.Context, sess *session.Session, userID, text string) types.Reply {
	ev, ok := pickCandidate(text, sess.Candidates)
	if !ok {
		return r.fail(ctx, sess, userID, fmt.Sprintf("Opción inválida. Indica un número del 1 al %d.", len(sess.Candidates)))
	}
	return r.deleteSelect(sess, ev)
}

func (r *Router) deleteConfirm(ctx context.Context, sess *session.Session, userID, text string) types.Reply {
	switch {
	case isAffirmation(text):
		id := sess.SelectedEventID
		err := r.calendar.DeleteByID(ctx, id)
		if errors.Is(err, calendar.ErrNotFound) {
			sess.ResetFlow()
			return types.Reply{Status: types.StatusError, Message: "El evento ya no existe en la agenda."}
		}
		if err != nil {
			r.log.Error("deleting event", zap.String("user", userID), zap.Error(err))
			return types.Reply{Status: types.StatusError, Message: internalErrorMsg}
		}
		r.publish(ctx, events.NewEvent(events.EventCalendarDeleted, userID, id, nil))
		sess.ResetFlow()
		return types.Reply{
			Status:  types.StatusSuccess,
			Message: r.composer.Compose(ctx, types.IntentDelete, true, "", nil),
		}

	case isNegation(text):
		sess.ResetFlow()
		r.publish(ctx, events.NewEvent(events.EventFlowCancelled, userID, "", map[string]any{
			"intent": string(types.IntentDelete),
		}))
		return types.Reply{Status: types.StatusSuccess, Message: "Borrado cancelado."}

	default:
		return r.fail(ctx, sess, userID, "No entendí tu respuesta. Responde \"sí\" para confirmar o \"no\" para cancelar.")
	}
}
