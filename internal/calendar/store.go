// Package calendar persists events and enforces the scheduling conflict
// rule: on a given date no two events may overlap on [start, end).
package calendar

import (
	"context"
	"errors"

	"github.com/agendia/sofia/pkg/types"
)

// ErrNotFound is returned when no event matches the given identifier.
var ErrNotFound = errors.New("event not found")

// ErrConflict is returned when a create or edit would overlap an
// existing event on the same date.
var ErrConflict = errors.New("schedule conflict")

// Store is the event persistence contract the dialogue layer depends on.
type Store interface {
	// Create persists a new event after a conflict check and returns it
	// with its assigned identifier. Returns ErrConflict on overlap.
	Create(ctx context.Context, name, date, start, end string) (*types.Event, error)

	// QueryRange returns events with startDate <= date <= endDate,
	// ordered by date and start time.
	QueryRange(ctx context.Context, startDate, endDate string) ([]types.Event, error)

	// QueryByName returns events whose name contains the substring,
	// case-insensitively.
	QueryByName(ctx context.Context, substring string) ([]types.Event, error)

	// QueryByDate returns the events on one date.
	QueryByDate(ctx context.Context, date string) ([]types.Event, error)

	// GetByID returns a single event. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*types.Event, error)

	// UpdateByID applies the non-nil fields to the event. When the update
	// changes timing it is conflict-checked first (excluding the event
	// itself). Returns ErrNotFound or ErrConflict.
	UpdateByID(ctx context.Context, id string, fields types.EventFields) (*types.Event, error)

	// DeleteByID removes an event. Returns ErrNotFound when absent.
	DeleteByID(ctx context.Context, id string) error

	// DeleteByName removes the first event whose name matches exactly.
	// Returns ErrNotFound when absent.
	DeleteByName(ctx context.Context, name string) error

	// HasConflict reports whether [start, end) on date overlaps any
	// stored event, optionally excluding one event id. Back-to-back
	// events sharing a boundary are not conflicts.
	HasConflict(ctx context.Context, date, start, end, excludeID string) (bool, error)

	// Close releases the underlying storage handle.
	Close() error
}
