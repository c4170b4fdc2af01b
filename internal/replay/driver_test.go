package replay_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trac2github/trac2github/internal/github"
	"github.com/trac2github/trac2github/internal/labels"
	"github.com/trac2github/trac2github/internal/model"
	"github.com/trac2github/trac2github/internal/replay"
	"github.com/trac2github/trac2github/internal/trac"
	"github.com/trac2github/trac2github/tests/testutil"
)

func newDriver(t *testing.T, store trac.Store, fake *testutil.FakeGitHub, opts replay.Options) *replay.Driver {
	t.Helper()

	clients := github.NewClients([]*github.Client{fake.Client("migrator")})
	rules, err := labels.Compile(nil)
	require.NoError(t, err)

	cfg := &model.Config{
		GitHub: model.GitHubConfig{
			Repository:  "org/proj",
			Credentials: []model.Credential{{Login: "migrator", Token: "tok-migrator"}},
		},
	}
	return replay.NewDriver(store, clients, rules, cfg, discardLogger(), opts)
}

func TestRunMigratesMilestonesBeforeTickets(t *testing.T) {
	fake := testutil.NewFakeGitHub(t)
	fake.AddMilestone("gamma", "open")

	store := testutil.NewTracStore(t, func(db *sqlx.DB) {
		testutil.SeedMilestone(t, db, "alpha", "1246615445000000", true, "first release")
		testutil.SeedMilestone(t, db, "beta", "sometime soon", false, "")
		testutil.SeedMilestone(t, db, "gamma", "", false, "")
	})

	d := newDriver(t, store, fake, replay.Options{})
	require.NoError(t, d.Run(context.Background()))

	milestones := fake.Milestones()
	require.Len(t, milestones, 3)

	byTitle := make(map[string]github.Milestone, len(milestones))
	for _, m := range milestones {
		byTitle[m.Title] = m
	}

	alpha := byTitle["alpha"]
	assert.Equal(t, "closed", alpha.State)
	require.NotNil(t, alpha.DueOn)
	assert.Equal(t, time.Date(2009, 7, 3, 10, 4, 5, 0, time.UTC), alpha.DueOn.UTC())

	// Unparseable due date: milestone still created, without one.
	beta := byTitle["beta"]
	assert.Equal(t, "open", beta.State)
	assert.Nil(t, beta.DueOn)

	// Pre-existing milestone is not recreated.
	assert.Equal(t, 1, byTitle["gamma"].Number)
}

func TestRunMigratesTicketsInOrder(t *testing.T) {
	fake := testutil.NewFakeGitHub(t)

	base := t0.UnixMicro()
	store := testutil.NewTracStore(t, func(db *sqlx.DB) {
		testutil.SeedTicket(t, db, 2, base+1, map[string]string{"summary": "second", "reporter": "ghost"})
		testutil.SeedTicket(t, db, 1, base, map[string]string{"summary": "first", "reporter": "ghost"})
		testutil.SeedChange(t, db, 1, base+10, "ghost", "status", "closed")
	})

	d := newDriver(t, store, fake, replay.Options{})
	require.NoError(t, d.Run(context.Background()))

	require.Equal(t, 2, fake.IssueCount())
	assert.Equal(t, "first", fake.Issue(1).Title)
	assert.Equal(t, "closed", fake.Issue(1).State)
	assert.Equal(t, "second", fake.Issue(2).Title)
}

func TestRunStartAtSkipsEarlierTickets(t *testing.T) {
	fake := testutil.NewFakeGitHub(t)

	base := t0.UnixMicro()
	store := testutil.NewTracStore(t, func(db *sqlx.DB) {
		for id := int64(1); id <= 3; id++ {
			testutil.SeedTicket(t, db, id, base, map[string]string{
				"summary": "ticket " + string(rune('0'+id)), "reporter": "ghost",
			})
		}
	})

	d := newDriver(t, store, fake, replay.Options{StartAt: 2})
	require.NoError(t, d.Run(context.Background()))

	require.Equal(t, 2, fake.IssueCount())
	assert.Equal(t, "ticket 2", fake.Issue(1).Title)
	assert.Equal(t, "ticket 3", fake.Issue(2).Title)
}

func TestRunDeduplicatesByTitle(t *testing.T) {
	fake := testutil.NewFakeGitHub(t)
	fake.AddIssue("Bug X")

	base := t0.UnixMicro()
	store := testutil.NewTracStore(t, func(db *sqlx.DB) {
		testutil.SeedTicket(t, db, 1, base, map[string]string{"summary": "Bug X", "reporter": "ghost"})
		testutil.SeedTicket(t, db, 2, base, map[string]string{"summary": "Bug Y", "reporter": "ghost"})
	})

	d := newDriver(t, store, fake, replay.Options{Deduplicate: true})
	require.NoError(t, d.Run(context.Background()))

	require.Equal(t, 2, fake.IssueCount())
	assert.Equal(t, "Bug Y", fake.Issue(2).Title)
}

func TestRunWithoutDeduplicationMigratesDuplicates(t *testing.T) {
	fake := testutil.NewFakeGitHub(t)
	fake.AddIssue("Bug X")

	store := testutil.NewTracStore(t, func(db *sqlx.DB) {
		testutil.SeedTicket(t, db, 1, t0.UnixMicro(), map[string]string{"summary": "Bug X", "reporter": "ghost"})
	})

	d := newDriver(t, store, fake, replay.Options{})
	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, 2, fake.IssueCount())
}

func TestRunHonorsCancellation(t *testing.T) {
	fake := testutil.NewFakeGitHub(t)
	store := testutil.NewTracStore(t, func(db *sqlx.DB) {
		testutil.SeedTicket(t, db, 1, t0.UnixMicro(), map[string]string{"summary": "never", "reporter": "ghost"})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := newDriver(t, store, fake, replay.Options{})
	require.Error(t, d.Run(ctx))
	assert.Equal(t, 0, fake.IssueCount())
}
