// Package trac provides read-only access to a legacy Trac SQLite
// database: milestones, tickets, and per-ticket change histories.
package trac

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/trac2github/trac2github/internal/model"
)

// Store is the read-only view of the legacy tracker consumed by the
// migration driver.
type Store interface {
	// Milestones returns all legacy milestones.
	Milestones(ctx context.Context) ([]model.Milestone, error)

	// Tickets returns tickets with id >= startAt in ascending id order.
	Tickets(ctx context.Context, startAt int64) ([]model.Ticket, error)

	// Changes returns the ticket's historical change events in
	// ascending time order.
	Changes(ctx context.Context, ticketID int64) ([]model.ChangeEvent, error)
}

// SQLiteStore implements Store over the standard Trac SQLite schema
// (tables ticket, ticket_change, milestone; timestamps are integer
// microsecond epochs).
type SQLiteStore struct {
	db *sqlx.DB
}

// Open opens the Trac database at dbPath in read-only mode and
// verifies it is reachable. The migration never writes to the legacy
// store.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening trac db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging trac db %s: %w", dbPath, err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ticketRow mirrors the columns read from the ticket table. Nullable
// text columns are scanned through pointers so NULL becomes "".
type ticketRow struct {
	ID          int64   `db:"id"`
	Summary     *string `db:"summary"`
	Reporter    *string `db:"reporter"`
	Time        int64   `db:"time"`
	Owner       *string `db:"owner"`
	Milestone   *string `db:"milestone"`
	Type        *string `db:"type"`
	Component   *string `db:"component"`
	Priority    *string `db:"priority"`
	Version     *string `db:"version"`
	Resolution  *string `db:"resolution"`
	Description *string `db:"description"`
}

type changeRow struct {
	Ticket   int64   `db:"ticket"`
	Time     int64   `db:"time"`
	Author   *string `db:"author"`
	Field    *string `db:"field"`
	NewValue *string `db:"newvalue"`
}

type milestoneRow struct {
	Name        string  `db:"name"`
	Due         *string `db:"due"`
	Completed   int64   `db:"completed"`
	Description *string `db:"description"`
}

// microsToTime converts a Trac microsecond epoch into a time.Time.
func microsToTime(micros int64) time.Time {
	return time.UnixMicro(micros).UTC()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Milestones returns all legacy milestones. The due column is kept as
// its raw scalar value; parsing it into a date is the driver's concern.
func (s *SQLiteStore) Milestones(ctx context.Context) ([]model.Milestone, error) {
	var rows []milestoneRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT name, due, completed, description FROM milestone ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying milestones: %w", err)
	}

	milestones := make([]model.Milestone, 0, len(rows))
	for _, r := range rows {
		milestones = append(milestones, model.Milestone{
			Name:        r.Name,
			Description: deref(r.Description),
			Completed:   r.Completed > 0,
			Due:         deref(r.Due),
		})
	}
	return milestones, nil
}

// Tickets returns tickets with id >= startAt in ascending id order.
func (s *SQLiteStore) Tickets(ctx context.Context, startAt int64) ([]model.Ticket, error) {
	var rows []ticketRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, summary, reporter, time, owner, milestone, type,
		       component, priority, version, resolution, description
		FROM ticket
		WHERE id >= ?
		ORDER BY id ASC`, startAt)
	if err != nil {
		return nil, fmt.Errorf("querying tickets from id %d: %w", startAt, err)
	}

	tickets := make([]model.Ticket, 0, len(rows))
	for _, r := range rows {
		tickets = append(tickets, model.Ticket{
			ID:          r.ID,
			Summary:     deref(r.Summary),
			Reporter:    deref(r.Reporter),
			CreatedAt:   microsToTime(r.Time),
			Owner:       deref(r.Owner),
			Milestone:   deref(r.Milestone),
			Type:        deref(r.Type),
			Component:   deref(r.Component),
			Priority:    deref(r.Priority),
			Version:     deref(r.Version),
			Resolution:  deref(r.Resolution),
			Description: deref(r.Description),
		})
	}
	return tickets, nil
}

// Changes returns the ticket's historical change events in ascending
// time order. Rows with an empty field name are dropped.
func (s *SQLiteStore) Changes(ctx context.Context, ticketID int64) ([]model.ChangeEvent, error) {
	var rows []changeRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT ticket, time, author, field, newvalue
		FROM ticket_change
		WHERE ticket = ?
		ORDER BY time ASC`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("querying changes for ticket %d: %w", ticketID, err)
	}

	events := make([]model.ChangeEvent, 0, len(rows))
	for _, r := range rows {
		field := deref(r.Field)
		if field == "" {
			continue
		}
		events = append(events, model.ChangeEvent{
			TicketID: r.Ticket,
			Field:    field,
			NewValue: deref(r.NewValue),
			Author:   deref(r.Author),
			Time:     microsToTime(r.Time),
		})
	}
	return events, nil
}
