package trac_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trac2github/trac2github/internal/trac"
	"github.com/trac2github/trac2github/tests/testutil"
)

// The read-only open must fail on a missing database rather than
// creating an empty one.
func TestOpenMissingDatabase(t *testing.T) {
	_, err := trac.Open(t.TempDir() + "/does-not-exist.db")
	require.Error(t, err)
}

func TestMilestones(t *testing.T) {
	store := testutil.NewTracStore(t, func(db *sqlx.DB) {
		testutil.SeedMilestone(t, db, "1.0", "1246615445000000", true, "first release")
		testutil.SeedMilestone(t, db, "2.0", "sometime soon", false, "")
		testutil.SeedMilestone(t, db, "backlog", "", false, "")
	})

	milestones, err := store.Milestones(context.Background())
	require.NoError(t, err)
	require.Len(t, milestones, 3)

	assert.Equal(t, "1.0", milestones[0].Name)
	assert.True(t, milestones[0].Completed)
	assert.Equal(t, "1246615445000000", milestones[0].Due)
	assert.Equal(t, "first release", milestones[0].Description)

	assert.Equal(t, "2.0", milestones[1].Name)
	assert.False(t, milestones[1].Completed)
	assert.Equal(t, "sometime soon", milestones[1].Due)
}

func TestTicketsOrderAndOffset(t *testing.T) {
	createdMicros := int64(1246615445000000)

	store := testutil.NewTracStore(t, func(db *sqlx.DB) {
		testutil.SeedTicket(t, db, 3, createdMicros, map[string]string{"summary": "third", "reporter": "carol"})
		testutil.SeedTicket(t, db, 1, createdMicros, map[string]string{"summary": "first", "reporter": "alice", "priority": "high"})
		testutil.SeedTicket(t, db, 2, createdMicros, map[string]string{"summary": "second", "reporter": "bob"})
	})

	tickets, err := store.Tickets(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, tickets, 3)
	assert.Equal(t, int64(1), tickets[0].ID)
	assert.Equal(t, int64(2), tickets[1].ID)
	assert.Equal(t, int64(3), tickets[2].ID)

	assert.Equal(t, "first", tickets[0].Summary)
	assert.Equal(t, "alice", tickets[0].Reporter)
	assert.Equal(t, "high", tickets[0].Priority)
	assert.Equal(t, time.UnixMicro(createdMicros).UTC(), tickets[0].CreatedAt)

	// Resume from an offset.
	tickets, err = store.Tickets(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, int64(2), tickets[0].ID)
}

func TestChangesOrderedByTime(t *testing.T) {
	store := testutil.NewTracStore(t, func(db *sqlx.DB) {
		testutil.SeedTicket(t, db, 1, 1000, map[string]string{"summary": "t"})
		testutil.SeedChange(t, db, 1, 3000, "bob", "status", "closed")
		testutil.SeedChange(t, db, 1, 2000, "alice", "comment", "first!")
		testutil.SeedChange(t, db, 1, 4000, "bob", "", "ignored")
		testutil.SeedChange(t, db, 2, 2500, "mallory", "comment", "other ticket")
	})

	events, err := store.Changes(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "comment", events[0].Field)
	assert.Equal(t, "alice", events[0].Author)
	assert.Equal(t, "status", events[1].Field)
	assert.Equal(t, "closed", events[1].NewValue)
	assert.True(t, events[0].Time.Before(events[1].Time))
}
