package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/trac2github/trac2github/internal/github"
)

// Mutation is one state-changing API call observed by the fake server,
// in arrival order.
type Mutation struct {
	Op    string // "create-issue", "update-issue", "comment", "create-milestone"
	Issue int    // issue number, 0 for milestone operations
	Actor string // login derived from the bearer token
}

// FakeGitHub is an in-memory GitHub API good enough for the endpoints
// the migration calls. All mutations are recorded in order so tests
// can assert on replay sequencing.
type FakeGitHub struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	issues        map[int]*github.Issue
	comments      map[int][]string
	milestones    []github.Milestone
	collaborators []string
	mutations     []Mutation
	nextIssue     int
	nextMilestone int
}

// NewFakeGitHub starts a fake GitHub API server, shut down when the
// test completes.
func NewFakeGitHub(t *testing.T) *FakeGitHub {
	t.Helper()

	f := &FakeGitHub{
		t:             t,
		issues:        make(map[int]*github.Issue),
		comments:      make(map[int][]string),
		nextIssue:     1,
		nextMilestone: 1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/org/proj/collaborators", f.listCollaborators)
	mux.HandleFunc("GET /repos/org/proj/milestones", f.listMilestones)
	mux.HandleFunc("POST /repos/org/proj/milestones", f.createMilestone)
	mux.HandleFunc("GET /repos/org/proj/issues", f.listIssues)
	mux.HandleFunc("POST /repos/org/proj/issues", f.createIssue)
	mux.HandleFunc("PATCH /repos/org/proj/issues/{number}", f.updateIssue)
	mux.HandleFunc("POST /repos/org/proj/issues/{number}/comments", f.addComment)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// Client returns an API client for the given login pointed at the
// fake server. The bearer token encodes the login so the server can
// attribute mutations.
func (f *FakeGitHub) Client(login string) *github.Client {
	return github.NewClient(login, "tok-"+login, "org", "proj").WithBaseURL(f.srv.URL)
}

// AddCollaborator registers a login as assignable.
func (f *FakeGitHub) AddCollaborator(login string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collaborators = append(f.collaborators, login)
}

// AddMilestone registers a pre-existing milestone and returns it.
func (f *FakeGitHub) AddMilestone(title, state string) github.Milestone {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := github.Milestone{Number: f.nextMilestone, Title: title, State: state}
	f.nextMilestone++
	f.milestones = append(f.milestones, m)
	return m
}

// AddIssue registers a pre-existing issue and returns its number.
func (f *FakeGitHub) AddIssue(title string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	number := f.nextIssue
	f.nextIssue++
	f.issues[number] = &github.Issue{Number: number, Title: title, State: "open"}
	return number
}

// Issue returns a copy of the stored issue.
func (f *FakeGitHub) Issue(number int) github.Issue {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[number]
	if !ok {
		f.t.Fatalf("fake github: no issue #%d", number)
	}
	return *issue
}

// IssueCount returns the number of issues on the fake server.
func (f *FakeGitHub) IssueCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.issues)
}

// Comments returns the comment bodies of an issue in order.
func (f *FakeGitHub) Comments(number int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.comments[number]...)
}

// Milestones returns all milestones on the fake server.
func (f *FakeGitHub) Milestones() []github.Milestone {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]github.Milestone(nil), f.milestones...)
}

// Mutations returns every recorded state-changing call in order.
func (f *FakeGitHub) Mutations() []Mutation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Mutation(nil), f.mutations...)
}

// actor derives the acting login from the request's bearer token.
func actor(r *http.Request) string {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return strings.TrimPrefix(token, "tok-")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *FakeGitHub) listCollaborators(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]github.User, 0, len(f.collaborators))
	for i, login := range f.collaborators {
		users = append(users, github.User{ID: i + 1, Login: login})
	}
	writeJSON(w, http.StatusOK, users)
}

func (f *FakeGitHub) listMilestones(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := make([]github.Milestone, 0, len(f.milestones))
	for _, m := range f.milestones {
		if state == "" || state == "all" || m.State == state {
			matched = append(matched, m)
		}
	}
	writeJSON(w, http.StatusOK, matched)
}

func (f *FakeGitHub) createMilestone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		State       string `json:"state"`
		Description string `json:"description"`
		DueOn       string `json:"due_on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	m := github.Milestone{
		Number:      f.nextMilestone,
		Title:       req.Title,
		State:       req.State,
		Description: req.Description,
	}
	if req.DueOn != "" {
		if due, err := time.Parse(time.RFC3339, req.DueOn); err == nil {
			m.DueOn = &due
		}
	}
	f.nextMilestone++
	f.milestones = append(f.milestones, m)
	f.mutations = append(f.mutations, Mutation{Op: "create-milestone", Actor: actor(r)})
	writeJSON(w, http.StatusCreated, m)
}

func (f *FakeGitHub) listIssues(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	issues := make([]github.Issue, 0, len(f.issues))
	for n := 1; n < f.nextIssue; n++ {
		if issue, ok := f.issues[n]; ok {
			issues = append(issues, *issue)
		}
	}
	writeJSON(w, http.StatusOK, issues)
}

func (f *FakeGitHub) createIssue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	issue := &github.Issue{
		Number: f.nextIssue,
		Title:  req.Title,
		Body:   req.Body,
		State:  "open",
	}
	f.nextIssue++
	f.issues[issue.Number] = issue
	f.mutations = append(f.mutations, Mutation{Op: "create-issue", Issue: issue.Number, Actor: actor(r)})
	writeJSON(w, http.StatusCreated, *issue)
}

func (f *FakeGitHub) issueFromPath(w http.ResponseWriter, r *http.Request) (*github.Issue, bool) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		http.Error(w, "bad issue number", http.StatusBadRequest)
		return nil, false
	}
	issue, ok := f.issues[number]
	if !ok {
		http.Error(w, "no such issue", http.StatusNotFound)
		return nil, false
	}
	return issue, true
}

func (f *FakeGitHub) updateIssue(w http.ResponseWriter, r *http.Request) {
	var req github.IssueUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issueFromPath(w, r)
	if !ok {
		return
	}

	if req.Title != nil {
		issue.Title = *req.Title
	}
	if req.Body != nil {
		issue.Body = *req.Body
	}
	if req.State != nil {
		issue.State = *req.State
	}
	if req.Milestone != nil {
		issue.Milestone = &github.Milestone{Number: *req.Milestone}
	}
	if req.Assignee != nil {
		issue.Assignee = &github.User{Login: *req.Assignee}
	}
	if req.Labels != nil {
		names := *req.Labels
		labels := make([]github.Label, 0, len(names))
		for i, name := range names {
			labels = append(labels, github.Label{ID: i + 1, Name: name})
		}
		issue.Labels = labels
	}

	f.mutations = append(f.mutations, Mutation{Op: "update-issue", Issue: issue.Number, Actor: actor(r)})
	writeJSON(w, http.StatusOK, *issue)
}

func (f *FakeGitHub) addComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issueFromPath(w, r)
	if !ok {
		return
	}

	f.comments[issue.Number] = append(f.comments[issue.Number], req.Body)
	f.mutations = append(f.mutations, Mutation{Op: "comment", Issue: issue.Number, Actor: actor(r)})
	writeJSON(w, http.StatusCreated, github.Comment{ID: len(f.comments[issue.Number]), Body: req.Body})
}
