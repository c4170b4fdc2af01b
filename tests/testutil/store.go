// Package testutil provides shared fixtures: a seeded Trac database
// and a fake GitHub API server.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/trac2github/trac2github/internal/trac"
)

// tracSchema is the subset of the Trac SQLite schema the migration
// reads.
const tracSchema = `
CREATE TABLE ticket (
	id          INTEGER PRIMARY KEY,
	type        TEXT,
	time        INTEGER,
	component   TEXT,
	priority    TEXT,
	owner       TEXT,
	reporter    TEXT,
	version     TEXT,
	milestone   TEXT,
	status      TEXT,
	resolution  TEXT,
	summary     TEXT,
	description TEXT
);
CREATE TABLE ticket_change (
	ticket   INTEGER,
	time     INTEGER,
	author   TEXT,
	field    TEXT,
	oldvalue TEXT,
	newvalue TEXT
);
CREATE TABLE milestone (
	name        TEXT,
	due         INTEGER,
	completed   INTEGER,
	description TEXT
);
`

// NewTracStore creates a scratch Trac database, lets seed populate it,
// then reopens it through the read-only store the migration uses. The
// store is closed when the test completes.
func NewTracStore(t *testing.T, seed func(db *sqlx.DB)) *trac.SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "trac.db")

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		t.Fatalf("creating scratch trac db: %v", err)
	}
	if _, err := db.Exec(tracSchema); err != nil {
		t.Fatalf("creating trac schema: %v", err)
	}
	if seed != nil {
		seed(db)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("closing scratch trac db: %v", err)
	}

	s, err := trac.Open(path)
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedTicket inserts a ticket row with the given current field values.
func SeedTicket(t *testing.T, db *sqlx.DB, id int64, timeMicros int64, fields map[string]string) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO ticket (id, time, type, component, priority, owner,
			reporter, version, milestone, status, resolution, summary, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, timeMicros,
		fields["type"], fields["component"], fields["priority"],
		fields["owner"], fields["reporter"], fields["version"],
		fields["milestone"], fields["status"], fields["resolution"],
		fields["summary"], fields["description"])
	if err != nil {
		t.Fatalf("seeding ticket %d: %v", id, err)
	}
}

// SeedChange inserts one ticket_change row.
func SeedChange(t *testing.T, db *sqlx.DB, ticketID, timeMicros int64, author, field, newValue string) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO ticket_change (ticket, time, author, field, oldvalue, newvalue)
		VALUES (?, ?, ?, ?, '', ?)`,
		ticketID, timeMicros, author, field, newValue)
	if err != nil {
		t.Fatalf("seeding change for ticket %d: %v", ticketID, err)
	}
}

// SeedMilestone inserts one milestone row. due is the raw scalar
// value, digits for a microsecond epoch or free text.
func SeedMilestone(t *testing.T, db *sqlx.DB, name, due string, completed bool, description string) {
	t.Helper()

	c := 0
	if completed {
		c = 1
	}
	_, err := db.Exec(`
		INSERT INTO milestone (name, due, completed, description)
		VALUES (?, ?, ?, ?)`, name, due, c, description)
	if err != nil {
		t.Fatalf("seeding milestone %q: %v", name, err)
	}
}
