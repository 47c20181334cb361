// Package dialogue drives the conversation: it owns the per-user state
// machines for querying, creating, editing and deleting agenda events.
package dialogue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agendia/sofia/internal/calendar"
	"github.com/agendia/sofia/internal/events"
	"github.com/agendia/sofia/internal/llm"
	"github.com/agendia/sofia/internal/session"
	"github.com/agendia/sofia/pkg/types"
)

// Greeting is prefixed to the first reply of every conversation.
const Greeting = "¡Hola! Soy Agente Sofía 😊. "

const tooManyAttemptsMsg = "⚠️ Demasiados intentos fallidos. Por favor, comienza de nuevo."

const internalErrorMsg = "⚠️ Error temporal en el sistema. Por favor intenta nuevamente."

// Classifier extracts an intent and parameters from one message.
type Classifier interface {
	Analyze(ctx context.Context, message string, history []types.Turn) llm.Analysis
}

// Composer renders operation outcomes and general conversation.
type Composer interface {
	Compose(ctx context.Context, intent types.Intent, ok bool, detail string, events []types.Event) string
	SmallTalk(ctx context.Context, message string, history []types.Turn) string
}

// Router is the single entry point for user messages.
type Router struct {
	sessions    session.Store
	calendar    calendar.Store
	classifier  Classifier
	composer    Composer
	bus         *events.Bus
	log         *zap.Logger
	now         func() time.Time
	maxAttempts int
}

// Options tune the router beyond its collaborators.
type Options struct {
	MaxAttempts int              // failed slot answers before a reset; default 3
	Now         func() time.Time // injectable clock for date resolution
}

// NewRouter wires the conversation core. bus may be nil when no one
// listens for lifecycle events.
func NewRouter(sessions session.Store, cal calendar.Store, classifier Classifier, composer Composer, bus *events.Bus, log *zap.Logger, opts Options) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = session.MaxFailedAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Router{
		sessions:    sessions,
		calendar:    cal,
		classifier:  classifier,
		composer:    composer,
		bus:         bus,
		log:         log,
		now:         opts.Now,
		maxAttempts: opts.MaxAttempts,
	}
}

// Handle processes one user message to completion and returns the reply.
// Errors never escape; storage or model failures degrade to an apologetic
// reply and leave the session unchanged.
func (r *Router) Handle(ctx context.Context, userID, text string) types.Reply {
	sess, err := r.sessions.Get(ctx, userID)
	if err != nil {
		r.log.Error("loading session", zap.String("user", userID), zap.Error(err))
		return types.Reply{Status: types.StatusError, Message: internalErrorMsg}
	}

	greeting := ""
	if !sess.Greeted {
		sess.Greeted = true
		greeting = Greeting
	}
	sess.Remember(types.RoleUser, text)

	reply := r.dispatch(ctx, sess, userID, text)

	reply.Message = greeting + reply.Message
	sess.Remember(types.RoleAssistant, reply.Message)

	if err := r.sessions.Put(ctx, userID, sess); err != nil {
		r.log.Error("saving session", zap.String("user", userID), zap.Error(err))
		return types.Reply{Status: types.StatusError, Message: internalErrorMsg}
	}

	r.publish(ctx, events.NewEvent(events.EventTurnCompleted, userID, "", map[string]any{
		"status": string(reply.Status),
	}))
	return reply
}

func (r *Router) dispatch(ctx context.Context, sess *session.Session, userID, text string) types.Reply {
	if !sess.Idle() {
		if h, ok := stepHandlers[stepKey{sess.Pending, sess.Step}]; ok {
			return h(r, ctx, sess, userID, text)
		}
		// Unknown state; recoverable only by starting over.
		r.log.Warn("unknown flow state",
			zap.String("user", userID),
			zap.String("pending", string(sess.Pending)),
			zap.Int("step", sess.Step))
		sess.ResetFlow()
		return types.Reply{Status: types.StatusError, Message: internalErrorMsg}
	}

	// Off-topic messages skip the classifier entirely; a model call is
	// only spent when the message mentions the calendar domain.
	if !llm.AgendaRelated(text) {
		return types.Reply{
			Status:  types.StatusSuccess,
			Message: r.composer.SmallTalk(ctx, text, sess.History),
		}
	}

	analysis := r.classifier.Analyze(ctx, text, sess.History)
	if analysis.Fallback {
		r.log.Debug("classifier used keyword fallback", zap.String("user", userID))
	}

	switch analysis.Intent {
	case types.IntentQuery:
		return r.handleQuery(ctx, sess, userID, analysis.Params)
	case types.IntentCreate:
		return r.startCreate(ctx, sess, userID, analysis.Params)
	case types.IntentEdit:
		return r.startEdit(ctx, sess, userID, analysis.Params)
	case types.IntentDelete:
		return r.startDelete(ctx, sess, userID, analysis.Params)
	default:
		return types.Reply{
			Status:  types.StatusSuccess,
			Message: r.composer.SmallTalk(ctx, text, sess.History),
		}
	}
}

// fail counts a failed slot answer. Below the limit the caller's message
// is returned and the step stays; at the limit the whole flow resets.
func (r *Router) fail(ctx context.Context, sess *session.Session, userID, msg string) types.Reply {
	sess.FailedAttempts++
	if sess.FailedAttempts >= r.maxAttempts {
		sess.ResetFlow()
		r.publish(ctx, events.NewEvent(events.EventSessionReset, userID, "", map[string]any{
			"reason": "too_many_attempts",
		}))
		return types.Reply{Status: types.StatusError, Message: tooManyAttemptsMsg}
	}
	return types.Reply{Status: types.StatusError, Message: "⚠️ " + msg}
}

func (r *Router) publish(ctx context.Context, ev *events.Event) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(ctx, ev); err != nil {
		r.log.Debug("publishing event", zap.Error(err))
	}
}

func pending(msg string) types.Reply {
	return types.Reply{Status: types.StatusPending, Message: msg}
}

func info(msg string) types.Reply {
	return types.Reply{Status: types.StatusInfo, Message: msg}
}
