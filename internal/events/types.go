// Package events provides real-time streaming for conversation and
// calendar lifecycle events.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	// EventTurnCompleted is emitted after each user turn is answered
	EventTurnCompleted EventType = "turn.completed"
	// EventFlowStarted is emitted when a multi-step flow begins
	EventFlowStarted EventType = "flow.started"
	// EventFlowCancelled is emitted when a flow is abandoned before finishing
	EventFlowCancelled EventType = "flow.cancelled"
	// EventCalendarCreated is emitted when a calendar event is created
	EventCalendarCreated EventType = "calendar.created"
	// EventCalendarUpdated is emitted when a calendar event is updated
	EventCalendarUpdated EventType = "calendar.updated"
	// EventCalendarDeleted is emitted when a calendar event is deleted
	EventCalendarDeleted EventType = "calendar.deleted"
	// EventSessionReset is emitted when a session's flow state is cleared
	EventSessionReset EventType = "session.reset"
)

// Event represents a single lifecycle event
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  int64          `json:"timestamp"`
	UserID     string         `json:"user_id"`
	CalendarID string         `json:"calendar_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, userID, calendarID string, data map[string]any) *Event {
	return &Event{
		Type:       eventType,
		Timestamp:  time.Now().Unix(),
		UserID:     userID,
		CalendarID: calendarID,
		Data:       data,
	}
}

// EventFilter defines filters for streaming events
type EventFilter struct {
	Types      []EventType `json:"types,omitempty"`
	UserID     string      `json:"user_id,omitempty"`
	CalendarID string      `json:"calendar_id,omitempty"`
	Since      int64       `json:"since,omitempty"` // Unix timestamp
	Until      int64       `json:"until,omitempty"` // Unix timestamp
}

// FormatEvent formats an event for JSONL output
func FormatEvent(event *Event) ([]byte, error) {
	return json.Marshal(event)
}
