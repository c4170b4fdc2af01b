// Package labels maps legacy categorical field values (priority,
// type, component, version, resolution) onto GitHub labels using
// per-category ordered pattern rules.
package labels

import (
	"fmt"
	"regexp"

	"github.com/trac2github/trac2github/internal/model"
)

// Rule is one compiled (pattern, label) pair.
type Rule struct {
	Pattern *regexp.Regexp
	Label   string
}

// RuleSet holds the per-category ordered rule lists.
type RuleSet struct {
	categories map[string][]Rule
}

// Compile builds a RuleSet from the configured rule lists. A pattern
// that does not compile is a configuration error.
func Compile(config map[string][]model.LabelRule) (*RuleSet, error) {
	set := &RuleSet{categories: make(map[string][]Rule, len(config))}
	for category, rules := range config {
		compiled := make([]Rule, 0, len(rules))
		for i, r := range rules {
			pattern, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("labels.%s[%d]: compiling pattern %q: %w", category, i, r.Pattern, err)
			}
			compiled = append(compiled, Rule{Pattern: pattern, Label: r.Label})
		}
		set.categories[category] = compiled
	}
	return set, nil
}

// HasCategory reports whether rules are configured for the category.
func (s *RuleSet) HasCategory(category string) bool {
	_, ok := s.categories[category]
	return ok
}

// AmbiguityError reports a value matched by more than one rule within
// a category. Ambiguity is a configuration defect, not a data gap: it
// aborts the entire run rather than silently picking a rule.
type AmbiguityError struct {
	Category string
	Value    string
	Labels   []string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("ambiguous label rules for category %q: value %q matches %d rules (%v)",
		e.Category, e.Value, len(e.Labels), e.Labels)
}

// Result is the outcome of applying a category's rules to a value.
type Result struct {
	// Matched is false when the value hit no rule (or the category
	// has no rules); the label set is then left untouched.
	Matched bool

	// Labels is the issue's new label set when Matched is true.
	Labels []string
}

// Apply translates one legacy field value into the issue's next label
// set. The rules for the category are partitioned into hits (pattern
// matches value) and misses. Exactly one hit replaces any label a
// miss rule could have produced and appends the hit's label, so at
// most one label per category survives. Zero hits is a recoverable
// skip; more than one hit is an AmbiguityError.
func (s *RuleSet) Apply(category, value string, current []string) (Result, error) {
	rules, ok := s.categories[category]
	if !ok {
		return Result{}, nil
	}

	var hits, misses []Rule
	for _, r := range rules {
		if r.Pattern.MatchString(value) {
			hits = append(hits, r)
		} else {
			misses = append(misses, r)
		}
	}

	switch {
	case len(hits) == 0:
		return Result{}, nil
	case len(hits) > 1:
		labels := make([]string, 0, len(hits))
		for _, h := range hits {
			labels = append(labels, h.Label)
		}
		return Result{}, &AmbiguityError{Category: category, Value: value, Labels: labels}
	}

	hit := hits[0]

	// Drop any label this category could have produced for a
	// different value; other categories' labels are untouched.
	next := make([]string, 0, len(current)+1)
	for _, label := range current {
		if label == hit.Label || missProduced(misses, label) {
			continue
		}
		next = append(next, label)
	}
	next = append(next, hit.Label)

	return Result{Matched: true, Labels: next}, nil
}

// missProduced reports whether an existing label is attributable to
// one of the category's non-matching rules, either as that rule's
// replacement label or as a value its pattern matches.
func missProduced(misses []Rule, label string) bool {
	for _, m := range misses {
		if label == m.Label || m.Pattern.MatchString(label) {
			return true
		}
	}
	return false
}
