// Package replay turns a legacy ticket's ordered change log into a
// sequence of remote mutations on a newly created GitHub issue. One
// ticket produces exactly one issue; mutations are applied strictly
// in event order, each depending only on the issue state left by the
// one before it.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/trac2github/trac2github/internal/github"
	"github.com/trac2github/trac2github/internal/labels"
	"github.com/trac2github/trac2github/internal/markup"
	"github.com/trac2github/trac2github/internal/model"
	"github.com/trac2github/trac2github/internal/resolver"
)

// milestoneDeletedPattern matches Trac's housekeeping comment left
// behind when a milestone is deleted; those comments are not worth
// migrating.
var milestoneDeletedPattern = regexp.MustCompile(`^[Mm]ilestone .+ deleted$`)

// Replayer replays one ticket's change log against the target system.
type Replayer struct {
	clients  *github.Clients
	resolver *resolver.Resolver
	rules    *labels.RuleSet
	logger   *slog.Logger
}

// NewReplayer wires the replay state machine to its collaborators.
func NewReplayer(clients *github.Clients, res *resolver.Resolver, rules *labels.RuleSet, logger *slog.Logger) *Replayer {
	return &Replayer{
		clients:  clients,
		resolver: res,
		rules:    rules,
		logger:   logger,
	}
}

// actorFor returns the client to perform a mutation authored by the
// given legacy name.
func (r *Replayer) actorFor(author string) *github.Client {
	login, _ := r.resolver.ActorFor(author)
	return r.clients.For(login)
}

// needsHeader reports whether migrated text authored by the given
// legacy name must carry the authorship/date preamble: true unless
// the author maps to one of the configured API identities.
func (r *Replayer) needsHeader(author string) bool {
	login, mapped := r.resolver.ActorFor(author)
	return !mapped || !r.clients.HasIdentity(login)
}

// translate converts legacy wiki text and prepends the authorship
// header when the author has no API identity of its own.
func (r *Replayer) translate(text string, ev model.ChangeEvent) string {
	body := markup.Translate(text)
	if !r.needsHeader(ev.Author) {
		return body
	}

	h := markup.Header{Author: ev.Author, Date: ev.Time}
	if url, ok := r.resolver.ProfileURL(ev.Author); ok {
		h.ProfileURL = url
	}
	return markup.WithHeader(body, h)
}

// MigrateTicket creates the issue for a ticket and replays its full
// change log: synthesized initial events for the ticket's current
// field values first, then the historical events in ascending time
// order. It returns the issue in its final state.
//
// Skippable conditions (unmapped milestone or owner, unmapped label
// value, empty or housekeeping comment) are logged and the replay
// continues. A label-rule ambiguity or a canceled context aborts the
// replay with an error.
func (r *Replayer) MigrateTicket(ctx context.Context, t model.Ticket, history []model.ChangeEvent) (*github.Issue, error) {
	log := r.logger.With("ticket", t.ID)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("replay of ticket %d interrupted: %w", t.ID, err)
	}

	actor, _ := r.resolver.ActorFor(t.Reporter)
	issue, err := r.clients.For(actor).CreateIssue(ctx, t.Summary, "")
	if err != nil {
		return nil, fmt.Errorf("creating issue for ticket %d: %w", t.ID, err)
	}
	log.Info("issue created", "issue", issue.Number, "title", t.Summary, "actor", actor)

	events := append(t.InitialEvents(), history...)
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return issue, fmt.Errorf("replay of ticket %d interrupted: %w", t.ID, err)
		}
		if err := r.applyEvent(ctx, log, issue, ev); err != nil {
			return issue, err
		}
	}

	return issue, nil
}

// applyEvent dispatches one change event to at most one remote
// mutation and folds the mutation's result back into issue.
func (r *Replayer) applyEvent(ctx context.Context, log *slog.Logger, issue *github.Issue, ev model.ChangeEvent) error {
	log = log.With("field", ev.Field, "author", ev.Author)

	switch ev.Field {
	case model.FieldMilestone:
		return r.applyMilestone(ctx, log, issue, ev)

	case model.FieldOwner:
		return r.applyOwner(ctx, log, issue, ev)

	case model.FieldStatus:
		return r.applyStatus(ctx, log, issue, ev)

	case model.FieldSummary:
		updated, err := r.actorFor(ev.Author).UpdateIssue(ctx, issue.Number, github.IssueUpdate{
			Title: github.String(ev.NewValue),
		})
		if err != nil {
			return fmt.Errorf("retitling issue #%d: %w", issue.Number, err)
		}
		*issue = *updated
		log.Debug("title replaced", "title", ev.NewValue)
		return nil

	case model.FieldDescription:
		body := r.translate(ev.NewValue, ev)
		updated, err := r.actorFor(ev.Author).UpdateIssue(ctx, issue.Number, github.IssueUpdate{
			Body: github.String(body),
		})
		if err != nil {
			return fmt.Errorf("updating body of issue #%d: %w", issue.Number, err)
		}
		*issue = *updated
		log.Debug("body replaced")
		return nil

	case model.FieldPriority, model.FieldType, model.FieldComponent,
		model.FieldVersion, model.FieldResolution:
		return r.applyLabel(ctx, log, issue, ev)

	case model.FieldComment:
		return r.applyComment(ctx, log, issue, ev)

	case model.FieldKeywords, model.FieldCC, model.FieldReporter:
		log.Debug("field not migrated", "value", ev.NewValue)
		return nil

	default:
		log.Debug("unknown field skipped", "value", ev.NewValue)
		return nil
	}
}

func (r *Replayer) applyMilestone(ctx context.Context, log *slog.Logger, issue *github.Issue, ev model.ChangeEvent) error {
	number, ok := r.resolver.MilestoneNumber(ev.NewValue)
	if !ok {
		log.Warn("milestone not resolved, skipping", "milestone", ev.NewValue)
		return nil
	}

	updated, err := r.actorFor(ev.Author).UpdateIssue(ctx, issue.Number, github.IssueUpdate{
		Milestone: github.Int(number),
	})
	if err != nil {
		return fmt.Errorf("setting milestone on issue #%d: %w", issue.Number, err)
	}
	*issue = *updated
	log.Debug("milestone set", "milestone", ev.NewValue, "number", number)
	return nil
}

func (r *Replayer) applyOwner(ctx context.Context, log *slog.Logger, issue *github.Issue, ev model.ChangeEvent) error {
	login, mapped := r.resolver.ActorFor(ev.NewValue)
	if !mapped {
		log.Warn("owner has no mapped identity, skipping assignment", "owner", ev.NewValue)
		return nil
	}
	if !r.resolver.Collaborator(login) {
		log.Warn("mapped owner is not a collaborator, skipping assignment", "owner", ev.NewValue, "login", login)
		return nil
	}

	updated, err := r.actorFor(ev.Author).UpdateIssue(ctx, issue.Number, github.IssueUpdate{
		Assignee: github.String(login),
	})
	if err != nil {
		return fmt.Errorf("assigning issue #%d: %w", issue.Number, err)
	}
	*issue = *updated
	log.Debug("assignee set", "login", login)
	return nil
}

func (r *Replayer) applyStatus(ctx context.Context, log *slog.Logger, issue *github.Issue, ev model.ChangeEvent) error {
	var (
		updated *github.Issue
		err     error
	)

	switch ev.NewValue {
	case "closed":
		updated, err = r.actorFor(ev.Author).CloseIssue(ctx, issue.Number)
	case "reopened":
		updated, err = r.actorFor(ev.Author).ReopenIssue(ctx, issue.Number)
	default:
		// Trac's intermediate workflow states (new, assigned,
		// accepted) have no open/closed projection.
		log.Debug("status has no issue-state projection", "status", ev.NewValue)
		return nil
	}

	if err != nil {
		return fmt.Errorf("changing state of issue #%d: %w", issue.Number, err)
	}
	*issue = *updated
	log.Debug("state changed", "state", updated.State)
	return nil
}

func (r *Replayer) applyLabel(ctx context.Context, log *slog.Logger, issue *github.Issue, ev model.ChangeEvent) error {
	if !r.rules.HasCategory(ev.Field) {
		log.Debug("no rule category configured", "value", ev.NewValue)
		return nil
	}
	if ev.NewValue == "" {
		// Field explicitly unset: distinct from an unmapped value,
		// and not a label change.
		log.Debug("field unset, label kept", "value", ev.NewValue)
		return nil
	}

	result, err := r.rules.Apply(ev.Field, ev.NewValue, issue.LabelNames())
	if err != nil {
		return fmt.Errorf("mapping labels for issue #%d: %w", issue.Number, err)
	}
	if !result.Matched {
		log.Warn("value has no label mapping, skipping", "value", ev.NewValue)
		return nil
	}

	updated, err := r.actorFor(ev.Author).UpdateIssue(ctx, issue.Number, github.IssueUpdate{
		Labels: github.Labels(result.Labels),
	})
	if err != nil {
		return fmt.Errorf("setting labels on issue #%d: %w", issue.Number, err)
	}
	*issue = *updated
	log.Debug("labels updated", "value", ev.NewValue, "labels", result.Labels)
	return nil
}

func (r *Replayer) applyComment(ctx context.Context, log *slog.Logger, issue *github.Issue, ev model.ChangeEvent) error {
	if ev.NewValue == "" {
		log.Debug("empty comment skipped")
		return nil
	}
	if milestoneDeletedPattern.MatchString(ev.NewValue) {
		log.Debug("housekeeping comment skipped", "comment", ev.NewValue)
		return nil
	}

	body := r.translate(ev.NewValue, ev)
	if _, err := r.actorFor(ev.Author).AddComment(ctx, issue.Number, body); err != nil {
		return fmt.Errorf("commenting on issue #%d: %w", issue.Number, err)
	}
	log.Debug("comment added")
	return nil
}
