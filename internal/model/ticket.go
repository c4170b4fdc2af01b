package model

import "time"

// Field names tracked in a ticket's change history. These are the Trac
// schema's field identifiers, used both for synthesized initial events
// and for rows of the ticket_change table.
const (
	FieldSummary     = "summary"
	FieldDescription = "description"
	FieldOwner       = "owner"
	FieldMilestone   = "milestone"
	FieldType        = "type"
	FieldComponent   = "component"
	FieldPriority    = "priority"
	FieldVersion     = "version"
	FieldResolution  = "resolution"
	FieldStatus      = "status"
	FieldComment     = "comment"
	FieldKeywords    = "keywords"
	FieldCC          = "cc"
	FieldReporter    = "reporter"
)

// Ticket is an immutable record from the legacy Trac store: the
// ticket's identity plus the current values of its tracked fields.
type Ticket struct {
	// ID is the Trac ticket number.
	ID int64

	// Summary is the ticket's one-line title.
	Summary string

	// Reporter is the Trac username that opened the ticket.
	Reporter string

	// CreatedAt is when the ticket was opened.
	CreatedAt time.Time

	// Current values of the tracked fields. Any of these may be empty.
	Owner       string
	Milestone   string
	Type        string
	Component   string
	Priority    string
	Version     string
	Resolution  string
	Description string
}

// ChangeEvent is one timestamped field mutation in a ticket's history.
// A ticket's events, ordered by Time ascending, reconstruct its full
// edit history; the ticket's current field values are replayed as
// synthesized initial events timestamped at the ticket's creation.
type ChangeEvent struct {
	// TicketID is the Trac ticket the event belongs to.
	TicketID int64

	// Field is the tracked field that changed (see Field* constants).
	Field string

	// NewValue is the field's value after the change.
	NewValue string

	// Author is the Trac username that made the change.
	Author string

	// Time is when the change was made.
	Time time.Time
}

// InitialEventFields is the fixed order in which a ticket's current
// field values are synthesized into initial change events. Events for
// these fields come before any historical event during replay.
var InitialEventFields = []string{
	FieldDescription,
	FieldOwner,
	FieldMilestone,
	FieldType,
	FieldComponent,
	FieldPriority,
	FieldVersion,
	FieldResolution,
}

// InitialEvents synthesizes change events for the ticket's current
// field values, in the fixed InitialEventFields order, each timestamped
// at the ticket's creation and authored by its reporter. Fields with an
// empty current value produce no event.
func (t Ticket) InitialEvents() []ChangeEvent {
	values := map[string]string{
		FieldDescription: t.Description,
		FieldOwner:       t.Owner,
		FieldMilestone:   t.Milestone,
		FieldType:        t.Type,
		FieldComponent:   t.Component,
		FieldPriority:    t.Priority,
		FieldVersion:     t.Version,
		FieldResolution:  t.Resolution,
	}

	events := make([]ChangeEvent, 0, len(InitialEventFields))
	for _, field := range InitialEventFields {
		if values[field] == "" {
			continue
		}
		events = append(events, ChangeEvent{
			TicketID: t.ID,
			Field:    field,
			NewValue: values[field],
			Author:   t.Reporter,
			Time:     t.CreatedAt,
		})
	}
	return events
}

// Milestone is a legacy Trac milestone. Due holds the raw value from
// the store: either a microsecond epoch as digits or free text.
type Milestone struct {
	Name        string
	Description string
	Completed   bool
	Due         string
}
