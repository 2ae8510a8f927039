package hosting

import (
	"context"

	"github.com/octobot-dev/octobot/models"
)

// Router implements the per-call RepoKey-addressed operations that
// backport.Engine and normalizer.LabelLister depend on, resolving each call
// to the right host's session through Sessions.For. Client itself is
// session-scoped to one host, so a process that talks to more than one
// hosting-platform host needs this indirection.
type Router struct {
	sessions *Sessions
}

// NewRouter builds a Router over sessions.
func NewRouter(sessions *Sessions) *Router {
	return &Router{sessions: sessions}
}

func (r *Router) GetPullRequest(ctx context.Context, key models.RepoKey, number int) (*models.PullRequest, error) {
	c, err := r.sessions.For(key.Host)
	if err != nil {
		return nil, err
	}
	return c.GetPullRequest(ctx, key, number)
}

func (r *Router) ListOpenPullRequests(ctx context.Context, key models.RepoKey) ([]models.PullRequest, error) {
	c, err := r.sessions.For(key.Host)
	if err != nil {
		return nil, err
	}
	return c.ListOpenPullRequests(ctx, key)
}

func (r *Router) ListLabels(ctx context.Context, key models.RepoKey, prNumber int) ([]string, error) {
	c, err := r.sessions.For(key.Host)
	if err != nil {
		return nil, err
	}
	return c.ListLabels(ctx, key, prNumber)
}

func (r *Router) CreatePullRequest(ctx context.Context, key models.RepoKey, opts CreatePullRequestOptions) (*models.PullRequest, error) {
	c, err := r.sessions.For(key.Host)
	if err != nil {
		return nil, err
	}
	return c.CreatePullRequest(ctx, key, opts)
}

func (r *Router) AssignPullRequest(ctx context.Context, key models.RepoKey, number int, assignees []string) error {
	c, err := r.sessions.For(key.Host)
	if err != nil {
		return err
	}
	return c.AssignPullRequest(ctx, key, number, assignees)
}

func (r *Router) GetCommit(ctx context.Context, key models.RepoKey, sha string) (string, error) {
	c, err := r.sessions.For(key.Host)
	if err != nil {
		return "", err
	}
	return c.GetCommit(ctx, key, sha)
}
