// Package resolver resolves legacy Trac identities and milestone
// names into their GitHub counterparts. All lookups are in-memory:
// the target system is queried exactly once, before replay begins.
package resolver

import (
	"context"
	"fmt"

	"github.com/trac2github/trac2github/internal/github"
)

// Resolver maps legacy names to target-side identities and milestone
// numbers.
type Resolver struct {
	milestones    map[string]int
	collaborators map[string]bool
	users         map[string]string
	defaultActor  string
}

// New builds a Resolver with one milestone listing per state and one
// collaborator listing, plus the static user map from configuration.
func New(ctx context.Context, client *github.Client, users map[string]string, defaultActor string) (*Resolver, error) {
	r := &Resolver{
		milestones:    make(map[string]int),
		collaborators: make(map[string]bool),
		users:         users,
		defaultActor:  defaultActor,
	}

	for _, state := range []string{"open", "closed"} {
		milestones, err := client.ListMilestones(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("resolving milestones: %w", err)
		}
		for _, m := range milestones {
			r.milestones[m.Title] = m.Number
		}
	}

	collaborators, err := client.ListCollaborators(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving collaborators: %w", err)
	}
	for _, u := range collaborators {
		r.collaborators[u.Login] = true
	}

	return r, nil
}

// MilestoneNumber returns the milestone number for an exact title
// match.
func (r *Resolver) MilestoneNumber(name string) (int, bool) {
	n, ok := r.milestones[name]
	return n, ok
}

// HasMilestone reports whether a milestone with the given title
// already exists on the target.
func (r *Resolver) HasMilestone(name string) bool {
	_, ok := r.milestones[name]
	return ok
}

// AddMilestone records a milestone created during the run so later
// lookups resolve it without another remote call.
func (r *Resolver) AddMilestone(name string, number int) {
	r.milestones[name] = number
}

// Collaborator reports whether the login is authorized to be assigned
// issues on the target repository.
func (r *Resolver) Collaborator(login string) bool {
	return r.collaborators[login]
}

// ActorFor maps a legacy author to the GitHub login to act as.
// Unmapped authors fall back to the default actor; mapped reports
// whether a user-map entry existed.
func (r *Resolver) ActorFor(tracName string) (login string, mapped bool) {
	if login, ok := r.users[tracName]; ok {
		return login, true
	}
	return r.defaultActor, false
}

// ProfileURL returns the GitHub profile link for a mapped legacy
// author, when a mapping exists.
func (r *Resolver) ProfileURL(tracName string) (string, bool) {
	login, ok := r.users[tracName]
	if !ok {
		return "", false
	}
	return "https://github.com/" + login, true
}
