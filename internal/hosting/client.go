// Package hosting wraps the hosting-platform REST API behind the typed
// operations the core engine depends on, session-scoped per host with
// token auth.
package hosting

import (
	"context"
	"fmt"
	"sync"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/octobot-dev/octobot/internal/config"
	"github.com/octobot-dev/octobot/models"
)

// Error carries the HTTP status and decoded error messages from a failed
// hosting-platform call, so callers can render the same text to chat that
// the platform itself reported.
type Error struct {
	StatusCode int
	Messages   []string
	Wrapped    error
}

func (e *Error) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("hosting platform returned %d: %v", e.StatusCode, e.Messages)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("hosting platform returned %d: %v", e.StatusCode, e.Wrapped)
	}
	return fmt.Sprintf("hosting platform returned %d", e.StatusCode)
}

func (e *Error) Unwrap() error { return e.Wrapped }

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if ghErr, ok := err.(*gogithub.ErrorResponse); ok {
		msgs := make([]string, 0, len(ghErr.Errors)+1)
		if ghErr.Message != "" {
			msgs = append(msgs, ghErr.Message)
		}
		for _, e := range ghErr.Errors {
			msgs = append(msgs, e.Message)
		}
		status := 0
		if ghErr.Response != nil {
			status = ghErr.Response.StatusCode
		}
		return &Error{StatusCode: status, Messages: msgs, Wrapped: err}
	}
	return &Error{Wrapped: err}
}

// Client is a session scoped to one hosting-platform host.
type Client struct {
	gh   *gogithub.Client
	host string
}

// Sessions caches one Client per host, built lazily from config.HostingConfig.
// Client handles are shared read-only across concurrent backport jobs once
// constructed; byHost itself is guarded because construction races across
// RepoKeys on first use.
type Sessions struct {
	cfg config.HostingConfig

	mu     sync.Mutex
	byHost map[string]*Client
}

// NewSessions builds a Sessions cache over the configured hosting hosts.
func NewSessions(cfg config.HostingConfig) *Sessions {
	return &Sessions{cfg: cfg, byHost: make(map[string]*Client)}
}

// For returns the Client for host, constructing and caching it on first use.
func (s *Sessions) For(host string) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.byHost[host]; ok {
		return c, nil
	}
	hc, ok := s.cfg.ForHost(host)
	if !ok {
		return nil, fmt.Errorf("no hosting credentials configured for host %q", host)
	}
	c, err := newClient(hc)
	if err != nil {
		return nil, err
	}
	s.byHost[host] = c
	return c, nil
}

// Token returns the configured token for host, for the Backport Engine's
// credential helper, which authenticates git itself rather than the REST
// client.
func (s *Sessions) Token(host string) (string, bool) {
	hc, ok := s.cfg.ForHost(host)
	if !ok {
		return "", false
	}
	return hc.Token, true
}

func newClient(hc config.HostConfig) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: hc.Token})
	tc := oauth2.NewClient(context.Background(), ts)
	client := gogithub.NewClient(tc)

	if hc.Host != "" && hc.Host != "github.com" {
		base := fmt.Sprintf("https://%s/api/v3/", hc.Host)
		upload := fmt.Sprintf("https://%s/api/uploads/", hc.Host)
		var err error
		client, err = client.WithEnterpriseURLs(base, upload)
		if err != nil {
			return nil, fmt.Errorf("configuring enterprise URLs for %s: %w", hc.Host, err)
		}
	}
	return &Client{gh: client, host: hc.Host}, nil
}

// GetPullRequest fetches a single pull request by number.
func (c *Client) GetPullRequest(ctx context.Context, key models.RepoKey, number int) (*models.PullRequest, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, key.Owner, key.Repo, number)
	if err != nil {
		return nil, wrapError(err)
	}
	return convertPR(pr), nil
}

// ListOpenPullRequests lists every open pull request on key.
func (c *Client) ListOpenPullRequests(ctx context.Context, key models.RepoKey) ([]models.PullRequest, error) {
	opts := &gogithub.PullRequestListOptions{
		State:       "open",
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}
	var out []models.PullRequest
	for {
		prs, resp, err := c.gh.PullRequests.List(ctx, key.Owner, key.Repo, opts)
		if err != nil {
			return nil, wrapError(err)
		}
		for _, pr := range prs {
			out = append(out, *convertPR(pr))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// ListLabels lists the label names on a pull request (pull requests are
// issues for labeling purposes on the hosting platform).
func (c *Client) ListLabels(ctx context.Context, key models.RepoKey, prNumber int) ([]string, error) {
	labels, _, err := c.gh.Issues.ListLabelsByIssue(ctx, key.Owner, key.Repo, prNumber, nil)
	if err != nil {
		return nil, wrapError(err)
	}
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		out = append(out, l.GetName())
	}
	return out, nil
}

// CreatePullRequestOptions describes a derived backport PR to open.
type CreatePullRequestOptions struct {
	Title string
	Body  string
	Head  string
	Base  string
}

// CreatePullRequest opens a new pull request.
func (c *Client) CreatePullRequest(ctx context.Context, key models.RepoKey, opts CreatePullRequestOptions) (*models.PullRequest, error) {
	pr, _, err := c.gh.PullRequests.Create(ctx, key.Owner, key.Repo, &gogithub.NewPullRequest{
		Title: gogithub.Ptr(opts.Title),
		Body:  gogithub.Ptr(opts.Body),
		Head:  gogithub.Ptr(opts.Head),
		Base:  gogithub.Ptr(opts.Base),
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return convertPR(pr), nil
}

// AssignPullRequest adds assignees to an existing pull request.
func (c *Client) AssignPullRequest(ctx context.Context, key models.RepoKey, number int, assignees []string) error {
	if len(assignees) == 0 {
		return nil
	}
	_, _, err := c.gh.Issues.AddAssignees(ctx, key.Owner, key.Repo, number, assignees)
	return wrapError(err)
}

// GetCommit fetches commit metadata by SHA and returns the commit's SHA as
// the hosting platform reports it.
func (c *Client) GetCommit(ctx context.Context, key models.RepoKey, sha string) (string, error) {
	commit, _, err := c.gh.Repositories.GetCommit(ctx, key.Owner, key.Repo, sha, nil)
	if err != nil {
		return "", wrapError(err)
	}
	return commit.GetSHA(), nil
}

func convertPR(pr *gogithub.PullRequest) *models.PullRequest {
	assignees := make([]models.User, 0, len(pr.Assignees))
	for _, a := range pr.Assignees {
		assignees = append(assignees, models.User{Login: a.GetLogin()})
	}
	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}
	return &models.PullRequest{
		Number:         pr.GetNumber(),
		HeadRef:        pr.GetHead().GetRef(),
		BaseRef:        pr.GetBase().GetRef(),
		Merged:         pr.GetMerged(),
		MergeCommitSHA: pr.GetMergeCommitSHA(),
		Title:          pr.GetTitle(),
		Body:           pr.GetBody(),
		User:           models.User{Login: pr.GetUser().GetLogin()},
		Assignees:      assignees,
		Labels:         labels,
		HTMLURL:        pr.GetHTMLURL(),
	}
}
