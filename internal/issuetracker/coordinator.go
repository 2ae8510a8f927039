package issuetracker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/octobot-dev/octobot/internal/config"
	"github.com/octobot-dev/octobot/models"
)

// Tracker is the subset of Client the Coordinator depends on, so tests can
// substitute a fake without standing up a real JIRA-like server.
type Tracker interface {
	AddComment(ctx context.Context, key, body string) error
	TransitionTo(ctx context.Context, key string, targetStates []string) (bool, error)
	TransitionWithResolution(ctx context.Context, key string, targetStates []string, resolution string) (bool, error)
	SetFixVersion(ctx context.Context, key, fieldName, version string) error
	SearchInProgressIssues(ctx context.Context, project string, states []string) ([]string, error)
}

// AdminAuthenticator re-verifies an admin's credentials immediately before
// MergeVersions mutates tracker state. Whether verification runs through
// LDAP or a local password is the admin collaborator's concern; Coordinator
// only depends on this contract.
type AdminAuthenticator interface {
	Authenticate(ctx context.Context, login, password string) error
}

// Coordinator drives issue-tracker side effects through a pull request's
// lifecycle: transitions and annotations keyed off issue references in PR
// titles.
type Coordinator struct {
	tracker Tracker
	auth    AdminAuthenticator
	cfg     config.IssueTrackerConfig
	log     *slog.Logger
}

// New builds a Coordinator. auth may be nil if MergeVersions is never
// called (it is an admin-UI-invoked operation, outside this binary's HTTP
// surface).
func New(tracker Tracker, auth AdminAuthenticator, cfg config.IssueTrackerConfig) *Coordinator {
	return &Coordinator{tracker: tracker, auth: auth, cfg: cfg, log: slog.Default()}
}

// OnPullRequestOpened handles "opened"/"reopened": every issue key parsed
// out of the PR title is transitioned to the first reachable state among
// progress_states then review_states, with a PR-link comment.
func (c *Coordinator) OnPullRequestOpened(ctx context.Context, cfg *models.RepoConfig, pr models.PullRequest) {
	if !c.enabled(cfg) {
		return
	}
	targets := append(append([]string{}, c.cfg.ProgressStates...), c.cfg.ReviewStates...)
	for _, key := range ParseIssueKeys(pr.Title) {
		if err := c.tracker.AddComment(ctx, key, fmt.Sprintf("Pull request opened: %s", pr.HTMLURL)); err != nil {
			c.log.Error("issue tracker comment failed", "issue", key, "pr", pr.Number, "error", err)
			continue
		}
		moved, err := c.tracker.TransitionTo(ctx, key, targets)
		if err != nil {
			c.log.Error("issue tracker transition failed", "issue", key, "pr", pr.Number, "error", err)
			continue
		}
		if !moved {
			c.log.Info("issue tracker: no reachable progress/review state", "issue", key, "pr", pr.Number)
		}
	}
}

// OnPullRequestMerged handles "closed" with merged=true: every referenced
// issue gets a comment carrying the PR's title/body, a transition to
// resolved_states with fixed_resolution, and, when fix_version_field is
// configured and a version can be derived from the PR's base branch, a
// fix-version update.
func (c *Coordinator) OnPullRequestMerged(ctx context.Context, cfg *models.RepoConfig, pr models.PullRequest) {
	if !c.enabled(cfg) {
		return
	}
	version := versionFromBranch(pr.BaseRef)
	body := fmt.Sprintf("Merged: %s\n\n%s", pr.Title, strings.TrimSpace(pr.Body))

	for _, key := range ParseIssueKeys(pr.Title) {
		if err := c.tracker.AddComment(ctx, key, body); err != nil {
			c.log.Error("issue tracker comment failed", "issue", key, "pr", pr.Number, "error", err)
			continue
		}
		moved, err := c.tracker.TransitionWithResolution(ctx, key, c.cfg.ResolvedStates, c.cfg.FixedResolution)
		if err != nil {
			c.log.Error("issue tracker resolve transition failed", "issue", key, "pr", pr.Number, "error", err)
			continue
		}
		if !moved {
			c.log.Info("issue tracker: no reachable resolved state", "issue", key, "pr", pr.Number)
		}
		if c.cfg.FixVersionField != "" && version != "" {
			if err := c.tracker.SetFixVersion(ctx, key, c.cfg.FixVersionField, version); err != nil {
				c.log.Error("issue tracker fix version update failed", "issue", key, "pr", pr.Number, "error", err)
			}
		}
	}
}

// MergeVersions is the admin-UI-invoked bulk operation: it aggregates
// in-progress issues for project and sets their fix-version in one pass,
// after re-authenticating the calling admin.
func (c *Coordinator) MergeVersions(ctx context.Context, adminLogin, adminPassword, project, version string) (int, error) {
	if c.auth == nil {
		return 0, fmt.Errorf("issue tracker admin re-authentication is not configured")
	}
	if err := c.auth.Authenticate(ctx, adminLogin, adminPassword); err != nil {
		return 0, fmt.Errorf("admin re-authentication failed: %w", err)
	}

	keys, err := c.tracker.SearchInProgressIssues(ctx, project, c.cfg.ProgressStates)
	if err != nil {
		return 0, fmt.Errorf("listing in-progress issues for %s: %w", project, err)
	}
	if c.cfg.FixVersionField == "" {
		return 0, fmt.Errorf("issue_tracker.fix_version_field is not configured")
	}

	updated := 0
	for _, key := range keys {
		if err := c.tracker.SetFixVersion(ctx, key, c.cfg.FixVersionField, version); err != nil {
			c.log.Error("merge versions: fix version update failed", "issue", key, "project", project, "error", err)
			continue
		}
		updated++
	}
	return updated, nil
}

func (c *Coordinator) enabled(cfg *models.RepoConfig) bool {
	if !c.cfg.Enabled || c.tracker == nil {
		return false
	}
	return cfg == nil || cfg.IssueTracker
}

// versionFromBranch derives a fix-version string from a base branch name
// the way the Backport Engine derives a target branch's release suffix:
// "release/1.5" -> "1.5"; a branch with no "release/" segment yields "".
func versionFromBranch(ref string) string {
	const prefix = "release/"
	if strings.HasPrefix(ref, prefix) {
		return strings.TrimPrefix(ref, prefix)
	}
	return ""
}
