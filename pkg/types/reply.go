package types

// ReplyStatus classifies the outcome of one processed turn.
type ReplyStatus string

const (
	StatusSuccess ReplyStatus = "success"
	StatusError   ReplyStatus = "error"
	StatusInfo    ReplyStatus = "info"
	StatusPending ReplyStatus = "pending"
)

// Reply is the structured result of one inbound message. Events carries
// the calendar entries the turn touched or found: query results,
// disambiguation candidate lists, and created or updated events.
type Reply struct {
	Status  ReplyStatus `json:"status"`
	Message string      `json:"message"`
	Events  []Event     `json:"events,omitempty"`
}

// Intent is one of the four supported calendar operations, or none.
type Intent string

const (
	IntentNone   Intent = "none"
	IntentQuery  Intent = "query"
	IntentCreate Intent = "create"
	IntentEdit   Intent = "edit"
	IntentDelete Intent = "delete"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is a single message in a conversation history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
