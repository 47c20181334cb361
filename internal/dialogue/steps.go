package dialogue

import (
	"context"

	"github.com/agendia/sofia/internal/session"
	"github.com/agendia/sofia/pkg/types"
)

// Step numbers per flow. Creation keeps the 1..5 ordering of its slots.
const (
	stepCreateName = iota + 1
	stepCreateDate
	stepCreateStart
	stepCreateDuration
	stepCreateConfirm
)

const (
	stepQueryIdentifier = iota + 1
)

const (
	stepEditIdentifier = iota + 1
	stepEditDisambiguating
	stepEditField
	stepEditValue
	stepEditConfirm
)

const (
	stepDeleteIdentifier = iota + 1
	stepDeleteDisambiguating
	stepDeleteConfirm
)

// stepKey identifies one state of one flow.
type stepKey struct {
	intent types.Intent
	step   int
}

type stepHandler func(r *Router, ctx context.Context, sess *session.Session, userID, text string) types.Reply

// stepHandlers routes a pending session to the handler that owns its
// current step. A session whose key is absent is in a broken state and
// gets reset by the dispatcher.
var stepHandlers = map[stepKey]stepHandler{
	{types.IntentQuery, stepQueryIdentifier}: (*Router).queryIdentifier,

	{types.IntentCreate, stepCreateName}:     (*Router).createName,
	{types.IntentCreate, stepCreateDate}:     (*Router).createDate,
	{types.IntentCreate, stepCreateStart}:    (*Router).createStart,
	{types.IntentCreate, stepCreateDuration}: (*Router).createDuration,
	{types.IntentCreate, stepCreateConfirm}:  (*Router).createConfirm,

	{types.IntentEdit, stepEditIdentifier}:     (*Router).editIdentifier,
	{types.IntentEdit, stepEditDisambiguating}: (*Router).editDisambiguating,
	{types.IntentEdit, stepEditField}:          (*Router).editField,
	{types.IntentEdit, stepEditValue}:          (*Router).editValue,
	{types.IntentEdit, stepEditConfirm}:        (*Router).editConfirm,

	{types.IntentDelete, stepDeleteIdentifier}:     (*Router).deleteIdentifier,
	{types.IntentDelete, stepDeleteDisambiguating}: (*Router).deleteDisambiguating,
	{types.IntentDelete, stepDeleteConfirm}:        (*Router).deleteConfirm,
}
