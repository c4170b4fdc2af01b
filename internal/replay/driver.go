package replay

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/trac2github/trac2github/internal/github"
	"github.com/trac2github/trac2github/internal/labels"
	"github.com/trac2github/trac2github/internal/model"
	"github.com/trac2github/trac2github/internal/resolver"
	"github.com/trac2github/trac2github/internal/trac"
)

// Options control a migration run.
type Options struct {
	// Deduplicate skips any ticket whose summary exactly matches an
	// existing issue title on the target.
	Deduplicate bool

	// StartAt is the lowest ticket id to migrate. Resuming an
	// aborted run means restarting with the failing ticket's id.
	StartAt int64
}

// Driver iterates milestones and tickets in order and replays each
// ticket through the state machine. Execution is strictly sequential:
// one ticket at a time, one mutation at a time.
type Driver struct {
	store   trac.Store
	clients *github.Clients
	rules   *labels.RuleSet
	users   map[string]string
	actor   string
	logger  *slog.Logger
	opts    Options
}

// NewDriver builds a migration driver.
func NewDriver(store trac.Store, clients *github.Clients, rules *labels.RuleSet, cfg *model.Config, logger *slog.Logger, opts Options) *Driver {
	return &Driver{
		store:   store,
		clients: clients,
		rules:   rules,
		users:   cfg.Users,
		actor:   cfg.DefaultActor(),
		logger:  logger,
		opts:    opts,
	}
}

// Run performs the whole migration: milestones first, then tickets in
// ascending id order from opts.StartAt. Cancellation is honored at
// ticket boundaries and inside each ticket's replay; issues already
// created stay on the target (no rollback).
func (d *Driver) Run(ctx context.Context) error {
	// A run id on every log line lets audits tell resumed runs apart.
	log := d.logger.With("run_id", uuid.NewString())

	res, err := resolver.New(ctx, d.clients.Default(), d.users, d.actor)
	if err != nil {
		return fmt.Errorf("building resolver: %w", err)
	}

	if err := d.migrateMilestones(ctx, log, res); err != nil {
		return err
	}

	var existing map[string]int
	if d.opts.Deduplicate {
		existing, err = d.clients.Default().ListIssueTitles(ctx)
		if err != nil {
			return fmt.Errorf("loading existing issue titles: %w", err)
		}
		log.Debug("duplicate detection enabled", "existing_issues", len(existing))
	}

	tickets, err := d.store.Tickets(ctx, d.opts.StartAt)
	if err != nil {
		return fmt.Errorf("loading tickets: %w", err)
	}
	log.Info("migration starting", "tickets", len(tickets), "start_at", d.opts.StartAt)

	rep := NewReplayer(d.clients, res, d.rules, log)

	migrated, skipped := 0, 0
	for _, t := range tickets {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run canceled before ticket %d: %w", t.ID, err)
		}

		if d.opts.Deduplicate {
			if number, ok := existing[t.Summary]; ok {
				log.Info("duplicate title, ticket skipped", "ticket", t.ID, "issue", number, "title", t.Summary)
				skipped++
				continue
			}
		}

		history, err := d.store.Changes(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("loading history of ticket %d: %w", t.ID, err)
		}

		issue, err := rep.MigrateTicket(ctx, t, history)
		if err != nil {
			return fmt.Errorf("migrating ticket %d: %w", t.ID, err)
		}
		log.Info("ticket migrated", "ticket", t.ID, "issue", issue.Number, "events", len(history))
		migrated++
	}

	log.Info("migration finished", "migrated", migrated, "skipped", skipped)
	return nil
}

// migrateMilestones creates every legacy milestone absent from the
// target. Pre-existing milestones are never recreated; an unparseable
// due date downgrades to no due date with a warning rather than
// failing the creation.
func (d *Driver) migrateMilestones(ctx context.Context, log *slog.Logger, res *resolver.Resolver) error {
	milestones, err := d.store.Milestones(ctx)
	if err != nil {
		return fmt.Errorf("loading milestones: %w", err)
	}

	for _, m := range milestones {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run canceled during milestone migration: %w", err)
		}

		if res.HasMilestone(m.Name) {
			log.Debug("milestone already exists, skipping", "milestone", m.Name)
			continue
		}

		dueOn, ok := parseDueDate(m.Due)
		if !ok && m.Due != "" {
			log.Warn("unparseable milestone due date, creating without one", "milestone", m.Name, "due", m.Due)
		}

		state := "open"
		if m.Completed {
			state = "closed"
		}

		created, err := d.clients.Default().CreateMilestone(ctx, m.Name, state, m.Description, dueOn)
		if err != nil {
			return fmt.Errorf("creating milestone %q: %w", m.Name, err)
		}
		res.AddMilestone(created.Title, created.Number)
		log.Info("milestone created", "milestone", m.Name, "number", created.Number, "state", state)
	}

	return nil
}

// dueDateLayouts are the textual formats tried for a legacy due date
// that is not a microsecond epoch.
var dueDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"Jan 2, 2006",
	time.RFC3339,
}

// parseDueDate interprets a legacy milestone due value: a string of
// digits is a microsecond epoch, otherwise a handful of textual
// layouts are tried. Returns nil, false when nothing matches or the
// value is empty.
func parseDueDate(raw string) (*time.Time, bool) {
	if raw == "" || raw == "0" {
		return nil, false
	}

	if micros, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t := time.UnixMicro(micros).UTC()
		return &t, true
	}

	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, true
		}
	}

	return nil, false
}
