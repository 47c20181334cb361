package dialogue

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agendia/sofia/internal/events"
	"github.com/agendia/sofia/internal/llm"
	"github.com/agendia/sofia/internal/nlp"
	"github.com/agendia/sofia/internal/session"
	"github.com/agendia/sofia/pkg/types"
)

// handleQuery answers a consultation directly when the classifier
// extracted enough to search on; otherwise it asks what to look for.
func (r *Router) handleQuery(ctx context.Context, sess *session.Session, userID string, p llm.Params) types.Reply {
	switch {
	case p.Title != "":
		return r.queryByName(ctx, sess, p.Title)

	case p.Date != "" && p.DateEnd != "":
		start, _, okStart := nlp.NormalizeDate(p.Date, r.now())
		end, _, okEnd := nlp.NormalizeDate(p.DateEnd, r.now())
		if !okStart || !okEnd {
			return r.askQueryIdentifier(ctx, sess, userID)
		}
		return r.queryRange(ctx, sess, start, end)

	case p.Date != "":
		date, rng, ok := nlp.NormalizeDate(p.Date, r.now())
		if !ok {
			return r.askQueryIdentifier(ctx, sess, userID)
		}
		if rng != nil {
			return r.queryRange(ctx, sess, rng.Start, rng.End)
		}
		return r.queryByDate(ctx, sess, date, p.StartTime, p.EndTime)

	default:
		return r.askQueryIdentifier(ctx, sess, userID)
	}
}

func (r *Router) askQueryIdentifier(ctx context.Context, sess *session.Session, userID string) types.Reply {
	sess.Pending = types.IntentQuery
	sess.Step = stepQueryIdentifier
	r.publish(ctx, events.NewEvent(events.EventFlowStarted, userID, "", map[string]any{
		"intent": string(types.IntentQuery),
	}))
	return info("Para consultar eventos, por favor proporciona una fecha, un rango de fechas o el nombre del evento.")
}

// queryIdentifier resolves the follow-up answer: a date, a range, or
// anything else taken as a name fragment.
func (r *Router) queryIdentifier(ctx context.Context, sess *session.Session, userID, text string) types.Reply {
	if date, rng, ok := nlp.NormalizeDate(text, r.now()); ok {
		if rng != nil {
			return r.queryRange(ctx, sess, rng.Start, rng.End)
		}
		return r.queryByDate(ctx, sess, date, "", "")
	}
	if strings.TrimSpace(text) == "" {
		return r.fail(ctx, sess, userID, "Necesito una fecha o el nombre del evento para buscar.")
	}
	return r.queryByName(ctx, sess, text)
}

func (r *Router) queryByName(ctx context.Context, sess *session.Session, name string) types.Reply {
	name = strings.TrimSpace(name)
	found, err := r.calendar.QueryByName(ctx, name)
	if err != nil {
		r.log.Error("querying events by name", zap.Error(err))
		return types.Reply{Status: types.StatusError, Message: internalErrorMsg}
	}
	sess.ResetFlow()
	if len(found) == 0 {
		return types.Reply{
			Status:  types.StatusSuccess,
			Message: fmt.Sprintf("No se encontraron eventos con el nombre \"%s\".", name),
			Events:  []types.Event{},
		}
	}
	return types.Reply{
		Status:  types.StatusSuccess,
		Message: r.composer.Compose(ctx, types.IntentQuery, true, "", found),
		Events:  found,
	}
}

// queryByDate lists one day's events, narrowed to an exact start or end
// time when the message named one.
func (r *Router) queryByDate(ctx context.Context, sess *session.Session, date, startTime, endTime string) types.Reply {
	found, err := r.calendar.QueryByDate(ctx, date)
	if err != nil {
		r.log.Error("querying events by date", zap.Error(err))
		return types.Reply{Status: types.StatusError, Message: internalErrorMsg}
	}
	if startTime != "" {
		if t, ok := nlp.NormalizeTime(startTime); ok {
			found = filterEvents(found, func(e types.Event) bool { return e.StartTime == t })
		}
	}
	if endTime != "" {
		if t, ok := nlp.NormalizeTime(endTime); ok {
			found = filterEvents(found, func(e types.Event) bool { return e.EndTime == t })
		}
	}
	sess.ResetFlow()
	return types.Reply{
		Status:  types.StatusSuccess,
		Message: r.composer.Compose(ctx, types.IntentQuery, true, "", found),
		Events:  found,
	}
}

func (r *Router) queryRange(ctx context.Context, sess *session.Session, start, end string) types.Reply {
	found, err := r.calendar.QueryRange(ctx, start, end)
	if err != nil {
		r.log.Error("querying event range", zap.Error(err))
		return types.Reply{Status: types.StatusError, Message: internalErrorMsg}
	}
	sess.ResetFlow()
	return types.Reply{
		Status:  types.StatusSuccess,
		Message: r.composer.Compose(ctx, types.IntentQuery, true, "", found),
		Events:  found,
	}
}

func filterEvents(events []types.Event, keep func(types.Event) bool) []types.Event {
	out := events[:0:0]
	for _, e := range events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
