// Package github is a thin client for the GitHub REST API, scoped to
// the operations the migration needs: milestones, collaborators,
// issue creation and mutation, and comments.
package github

import (
	"net/http"
	"time"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the GitHub REST API base URL.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for rate-limited requests.
	MaxRetries = 3

	// RetryDelay is the base delay between retries (exponential backoff).
	RetryDelay = time.Second

	// MaxPageSize is the number of records requested per page.
	MaxPageSize = 100

	// MaxPages caps pagination to guard against malformed Link headers.
	MaxPages = 1000

	// MaxBodySize is the largest body GitHub accepts for an issue or
	// comment. Anything longer is truncated before submission.
	MaxBodySize = 65536

	// TruncatedBodySize is the length a too-long body is cut to,
	// leaving room for the truncation notice.
	TruncatedBodySize = 65300

	// lowQuotaThreshold is the remaining-request count below which
	// the client sleeps until the quota window resets.
	lowQuotaThreshold = 8
)

// Client provides methods to interact with the GitHub REST API on
// behalf of a single authenticated identity.
type Client struct {
	Login      string       // Account login the token belongs to
	Token      string       // Personal access token
	Owner      string       // Repository owner (user or org)
	Repo       string       // Repository name
	BaseURL    string       // API base URL (default: https://api.github.com)
	HTTPClient *http.Client // Optional custom HTTP client

	quota RateQuota // Last observed rate-limit headers
}

// RateQuota is the request quota last reported by the API.
type RateQuota struct {
	Limit     int       // Requests allowed per window
	Remaining int       // Requests left in the current window
	Reset     time.Time // When the window resets
}

// User represents a GitHub user.
type User struct {
	ID    int    `json:"id"`
	Login string `json:"login"`
}

// Label represents a GitHub label. The issues API returns labels as
// objects; updates send them as plain name strings.
type Label struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Milestone represents a GitHub milestone.
type Milestone struct {
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	State       string     `json:"state"` // "open" or "closed"
	DueOn       *time.Time `json:"due_on,omitempty"`
}

// Issue represents an issue from the GitHub API.
type Issue struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     string     `json:"state"` // "open" or "closed"
	Labels    []Label    `json:"labels"`
	Milestone *Milestone `json:"milestone,omitempty"`
	Assignee  *User      `json:"assignee,omitempty"`
	HTMLURL   string     `json:"html_url"`

	// PullRequest is non-nil when the record is actually a pull
	// request; the issues endpoint returns both.
	PullRequest *PullRef `json:"pull_request,omitempty"`
}

// PullRef marks an issues-API record as a pull request.
type PullRef struct {
	URL string `json:"url,omitempty"`
}

// LabelNames returns the issue's label set as plain strings.
func (i Issue) LabelNames() []string {
	names := make([]string, 0, len(i.Labels))
	for _, l := range i.Labels {
		names = append(names, l.Name)
	}
	return names
}

// Comment represents an issue comment.
type Comment struct {
	ID   int    `json:"id"`
	Body string `json:"body"`
}

// IssueUpdate is a partial issue mutation. Nil fields are left
// untouched by the API; labels replace the full set when present.
type IssueUpdate struct {
	Title     *string   `json:"title,omitempty"`
	Body      *string   `json:"body,omitempty"`
	State     *string   `json:"state,omitempty"`
	Milestone *int      `json:"milestone,omitempty"`
	Assignee  *string   `json:"assignee,omitempty"`
	Labels    *[]string `json:"labels,omitempty"`
}

// String returns a pointer to s, for IssueUpdate literals.
func String(s string) *string { return &s }

// Int returns a pointer to n, for IssueUpdate literals.
func Int(n int) *int { return &n }

// Labels returns a pointer to the given label set.
func Labels(names []string) *[]string { return &names }
