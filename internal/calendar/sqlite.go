package calendar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/agendia/sofia/pkg/types"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and initializes the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_date ON events(date);
	CREATE INDEX IF NOT EXISTS idx_events_name ON events(name);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

// Seed inserts demo events when the table is empty, so a fresh install
// has something to converse about.
func (s *SQLiteStore) Seed(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		return fmt.Errorf("counting events: %w", err)
	}
	if count > 0 {
		return nil
	}
	seed := []types.Event{
		{ID: uuid.New().String(), Name: "Llamada con cliente", Date: "2025-03-10", StartTime: "13:30", EndTime: "14:30"},
		{ID: uuid.New().String(), Name: "Revisión de código", Date: "2025-03-10", StartTime: "15:00", EndTime: "16:00"},
	}
	for _, e := range seed {
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO events (id, name, date, start_time, end_time) VALUES (?, ?, ?, ?, ?)",
			e.ID, e.Name, e.Date, e.StartTime, e.EndTime); err != nil {
			return fmt.Errorf("seeding events: %w", err)
		}
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// HasConflict implements Store using half-open interval semantics:
// start < otherEnd && end > otherStart. Events that merely touch at a
// boundary do not conflict.
func (s *SQLiteStore) HasConflict(ctx context.Context, date, start, end, excludeID string) (bool, error) {
	query := `SELECT COUNT(*) FROM events WHERE date = ? AND start_time < ? AND end_time > ?`
	args := []any{date, end, start}
	if excludeID != "" {
		query += " AND id != ?"
		args = append(args, excludeID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("checking conflicts: %w", err)
	}
	return count > 0, nil
}

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context, name, date, start, end string) (*types.Event, error) {
	conflict, err := s.HasConflict(ctx, date, start, end, "")
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ErrConflict
	}

	e := &types.Event{
		ID:        uuid.New().String(),
		Name:      name,
		Date:      date,
		StartTime: start,
		EndTime:   end,
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO events (id, name, date, start_time, end_time) VALUES (?, ?, ?, ?, ?)",
		e.ID, e.Name, e.Date, e.StartTime, e.EndTime); err != nil {
		return nil, fmt.Errorf("inserting event: %w", err)
	}
	return e, nil
}

func scanEvents(rows *sql.Rows) ([]types.Event, error) {
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		var e types.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Date, &e.StartTime, &e.EndTime); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// QueryRange implements Store.
func (s *SQLiteStore) QueryRange(ctx context.Context, startDate, endDate string) ([]types.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, date, start_time, end_time FROM events
		 WHERE date >= ? AND date <= ? ORDER BY date, start_time`,
		startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("querying range: %w", err)
	}
	return scanEvents(rows)
}

// QueryByDate implements Store.
func (s *SQLiteStore) QueryByDate(ctx context.Context, date string) ([]types.Event, error) {
	return s.QueryRange(ctx, date, date)
}

// QueryByName implements Store.
func (s *SQLiteStore) QueryByName(ctx context.Context, substring string) ([]types.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, date, start_time, end_time FROM events
		 WHERE name LIKE '%' || ? || '%' COLLATE NOCASE ORDER BY date, start_time`,
		substring)
	if err != nil {
		return nil, fmt.Errorf("querying by name: %w", err)
	}
	return scanEvents(rows)
}

// GetByID implements Store.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*types.Event, error) {
	var e types.Event
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, date, start_time, end_time FROM events WHERE id = ?", id).
		Scan(&e.ID, &e.Name, &e.Date, &e.StartTime, &e.EndTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading event: %w", err)
	}
	return &e, nil
}

// UpdateByID implements Store.
func (s *SQLiteStore) UpdateByID(ctx context.Context, id string, fields types.EventFields) (*types.Event, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *current
	timingChanged := false
	if fields.Name != nil {
		next.Name = *fields.Name
	}
	if fields.Date != nil {
		next.Date = *fields.Date
		timingChanged = true
	}
	if fields.StartTime != nil {
		next.StartTime = *fields.StartTime
		timingChanged = true
	}
	if fields.EndTime != nil {
		next.EndTime = *fields.EndTime
		timingChanged = true
	}

	if timingChanged {
		conflict, err := s.HasConflict(ctx, next.Date, next.StartTime, next.EndTime, id)
		if err != nil {
			return nil, err
		}
		if conflict {
			return nil, ErrConflict
		}
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE events SET name = ?, date = ?, start_time = ?, end_time = ? WHERE id = ?",
		next.Name, next.Date, next.StartTime, next.EndTime, id); err != nil {
		return nil, fmt.Errorf("updating event: %w", err)
	}
	return &next, nil
}

// DeleteByID implements Store.
func (s *SQLiteStore) DeleteByID(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByName implements Store.
func (s *SQLiteStore) DeleteByName(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM events WHERE id IN (SELECT id FROM events WHERE name = ? LIMIT 1)", name)
	if err != nil {
		return fmt.Errorf("deleting event by name: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting event by name: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
