package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

// NewClient creates a client acting as the given login.
func NewClient(login, token, owner, repo string) *Client {
	return &Client{
		Login:   login,
		Token:   token,
		Owner:   owner,
		Repo:    repo,
		BaseURL: DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithBaseURL returns a client pointed at a custom base URL (GitHub
// Enterprise, or an httptest server).
func (c *Client) WithBaseURL(baseURL string) *Client {
	return &Client{
		Login:      c.Login,
		Token:      c.Token,
		Owner:      c.Owner,
		Repo:       c.Repo,
		BaseURL:    baseURL,
		HTTPClient: c.HTTPClient,
	}
}

// Quota reports the request quota last observed on a response.
func (c *Client) Quota() RateQuota {
	return c.quota
}

// repoPath returns the "owner/repo" path segment.
func (c *Client) repoPath() string {
	return c.Owner + "/" + c.Repo
}

// buildURL constructs a full API URL.
func (c *Client) buildURL(path string, params map[string]string) string {
	u := c.BaseURL + path

	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}

	return u
}

// TruncateBody cuts a body exceeding GitHub's size cap down to
// TruncatedBodySize and appends a notice. Bodies within the cap are
// returned unchanged.
func TruncateBody(body string) string {
	if len(body) <= MaxBodySize {
		return body
	}
	return body[:TruncatedBodySize] + "\n\n*[body truncated during migration: original exceeded the size limit]*"
}

// updateQuota records the rate-limit headers of a response.
func (c *Client) updateQuota(headers http.Header) {
	if limit, err := strconv.Atoi(headers.Get("X-RateLimit-Limit")); err == nil {
		c.quota.Limit = limit
	}
	if remaining, err := strconv.Atoi(headers.Get("X-RateLimit-Remaining")); err == nil {
		c.quota.Remaining = remaining
	}
	if reset, err := strconv.ParseInt(headers.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		c.quota.Reset = time.Unix(reset, 0)
	}
}

// waitForQuota blocks the calling goroutine until the quota window
// resets when the remaining request budget is nearly exhausted. The
// migration is single-threaded, so sleeping here throttles the whole
// run.
func (c *Client) waitForQuota(ctx context.Context) error {
	if c.quota.Limit == 0 || c.quota.Remaining >= lowQuotaThreshold {
		return nil
	}

	wait := time.Until(c.quota.Reset)
	if wait <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// doRequest performs an HTTP request with authentication, quota
// accounting, and retry on rate limiting.
func (c *Client) doRequest(ctx context.Context, method, urlStr string, body interface{}) ([]byte, http.Header, error) {
	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("marshaling request body: %w", err)
		}
	}

	if err := c.waitForQuota(ctx); err != nil {
		return nil, nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		var reqBody io.Reader
		if jsonBody != nil {
			reqBody = bytes.NewReader(jsonBody)
		}

		req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
		if err != nil {
			return nil, nil, fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.Token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt+1, MaxRetries+1, err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response (attempt %d/%d): %w", attempt+1, MaxRetries+1, err)
			continue
		}

		c.updateQuota(resp.Header)

		// GitHub signals rate limiting as 429, or 403 with the
		// remaining budget at zero.
		if resp.StatusCode == http.StatusTooManyRequests ||
			(resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0") {
			delay := RetryDelay * time.Duration(1<<attempt)
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil {
					delay = time.Duration(seconds) * time.Second
				}
			}
			lastErr = fmt.Errorf("rate limited (attempt %d/%d)", attempt+1, MaxRetries+1)
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(delay):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, nil, fmt.Errorf("API error on %s %s: %s (status %d)",
				method, urlStr, string(respBody), resp.StatusCode)
		}

		return respBody, resp.Header, nil
	}

	return nil, nil, fmt.Errorf("max retries (%d) exceeded: %w", MaxRetries+1, lastErr)
}

// linkNextPattern matches the "next" relation in GitHub Link headers.
var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// nextPage returns the next-page URL from a Link header, if any.
func nextPage(headers http.Header) (string, bool) {
	link := headers.Get("Link")
	if link == "" {
		return "", false
	}
	matches := linkNextPattern.FindStringSubmatch(link)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

// getPaginated fetches every page of a list endpoint, appending each
// page's records through collect.
func (c *Client) getPaginated(ctx context.Context, firstURL string, collect func([]byte) error) error {
	urlStr := firstURL
	for page := 1; ; page++ {
		if page > MaxPages {
			return fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}

		respBody, headers, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return err
		}
		if err := collect(respBody); err != nil {
			return err
		}

		next, ok := nextPage(headers)
		if !ok {
			return nil
		}
		urlStr = next
	}
}

// ListCollaborators returns the repository's collaborators.
func (c *Client) ListCollaborators(ctx context.Context) ([]User, error) {
	params := map[string]string{"per_page": strconv.Itoa(MaxPageSize)}
	firstURL := c.buildURL("/repos/"+c.repoPath()+"/collaborators", params)

	var all []User
	err := c.getPaginated(ctx, firstURL, func(body []byte) error {
		var users []User
		if err := json.Unmarshal(body, &users); err != nil {
			return fmt.Errorf("parsing collaborators response: %w", err)
		}
		all = append(all, users...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing collaborators: %w", err)
	}
	return all, nil
}

// ListMilestones returns the repository's milestones in the given
// state ("open" or "closed").
func (c *Client) ListMilestones(ctx context.Context, state string) ([]Milestone, error) {
	params := map[string]string{
		"per_page": strconv.Itoa(MaxPageSize),
		"state":    state,
	}
	firstURL := c.buildURL("/repos/"+c.repoPath()+"/milestones", params)

	var all []Milestone
	err := c.getPaginated(ctx, firstURL, func(body []byte) error {
		var milestones []Milestone
		if err := json.Unmarshal(body, &milestones); err != nil {
			return fmt.Errorf("parsing milestones response: %w", err)
		}
		all = append(all, milestones...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s milestones: %w", state, err)
	}
	return all, nil
}

// CreateMilestone creates a milestone. dueOn may be nil when the
// legacy due date could not be parsed.
func (c *Client) CreateMilestone(ctx context.Context, title, state, description string, dueOn *time.Time) (*Milestone, error) {
	reqBody := map[string]interface{}{
		"title": title,
		"state": state,
	}
	if description != "" {
		reqBody["description"] = description
	}
	if dueOn != nil {
		reqBody["due_on"] = dueOn.UTC().Format(time.RFC3339)
	}

	urlStr := c.buildURL("/repos/"+c.repoPath()+"/milestones", nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPost, urlStr, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating milestone %q: %w", title, err)
	}

	var m Milestone
	if err := json.Unmarshal(respBody, &m); err != nil {
		return nil, fmt.Errorf("parsing milestone response: %w", err)
	}
	return &m, nil
}

// CreateIssue creates a new issue. The body is truncated if it
// exceeds GitHub's size cap.
func (c *Client) CreateIssue(ctx context.Context, title, body string) (*Issue, error) {
	reqBody := map[string]interface{}{
		"title": title,
		"body":  TruncateBody(body),
	}

	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues", nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPost, urlStr, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating issue %q: %w", title, err)
	}

	var issue Issue
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return nil, fmt.Errorf("parsing create response: %w", err)
	}
	return &issue, nil
}

// UpdateIssue applies a partial mutation to an issue. GitHub uses
// PATCH for issue updates.
func (c *Client) UpdateIssue(ctx context.Context, number int, update IssueUpdate) (*Issue, error) {
	if update.Body != nil {
		update.Body = String(TruncateBody(*update.Body))
	}

	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number), nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPatch, urlStr, update)
	if err != nil {
		return nil, fmt.Errorf("updating issue #%d: %w", number, err)
	}

	var issue Issue
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return nil, fmt.Errorf("parsing update response: %w", err)
	}
	return &issue, nil
}

// CloseIssue closes an issue.
func (c *Client) CloseIssue(ctx context.Context, number int) (*Issue, error) {
	return c.UpdateIssue(ctx, number, IssueUpdate{State: String("closed")})
}

// ReopenIssue reopens a closed issue.
func (c *Client) ReopenIssue(ctx context.Context, number int) (*Issue, error) {
	return c.UpdateIssue(ctx, number, IssueUpdate{State: String("open")})
}

// AddComment appends a comment to an issue. The body is truncated if
// it exceeds GitHub's size cap.
func (c *Client) AddComment(ctx context.Context, number int, body string) (*Comment, error) {
	reqBody := map[string]interface{}{"body": TruncateBody(body)}

	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number)+"/comments", nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPost, urlStr, reqBody)
	if err != nil {
		return nil, fmt.Errorf("commenting on issue #%d: %w", number, err)
	}

	var comment Comment
	if err := json.Unmarshal(respBody, &comment); err != nil {
		return nil, fmt.Errorf("parsing comment response: %w", err)
	}
	return &comment, nil
}

// ListIssueTitles returns the titles of every existing issue (all
// states) mapped to their numbers, for duplicate detection. Pull
// requests are excluded.
func (c *Client) ListIssueTitles(ctx context.Context) (map[string]int, error) {
	params := map[string]string{
		"per_page": strconv.Itoa(MaxPageSize),
		"state":    "all",
	}
	firstURL := c.buildURL("/repos/"+c.repoPath()+"/issues", params)

	titles := make(map[string]int)
	err := c.getPaginated(ctx, firstURL, func(body []byte) error {
		var issues []Issue
		if err := json.Unmarshal(body, &issues); err != nil {
			return fmt.Errorf("parsing issues response: %w", err)
		}
		for i := range issues {
			if issues[i].PullRequest != nil {
				continue
			}
			titles[issues[i].Title] = issues[i].Number
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing issue titles: %w", err)
	}
	return titles, nil
}
