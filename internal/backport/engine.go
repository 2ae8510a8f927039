package backport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/octobot-dev/octobot/internal/clonepool"
	"github.com/octobot-dev/octobot/internal/gitrunner"
	"github.com/octobot-dev/octobot/internal/hosting"
	"github.com/octobot-dev/octobot/internal/store"
	"github.com/octobot-dev/octobot/models"
)

// Hosting is the subset of hosting.Client operations the engine depends on.
type Hosting interface {
	GetPullRequest(ctx context.Context, key models.RepoKey, number int) (*models.PullRequest, error)
	ListOpenPullRequests(ctx context.Context, key models.RepoKey) ([]models.PullRequest, error)
	CreatePullRequest(ctx context.Context, key models.RepoKey, opts hosting.CreatePullRequestOptions) (*models.PullRequest, error)
	AssignPullRequest(ctx context.Context, key models.RepoKey, number int, assignees []string) error
}

// Pool is the subset of clonepool.Pool operations the engine depends on.
type Pool interface {
	Acquire(ctx context.Context, key models.RepoKey) (*clonepool.CloneLease, error)
	Release(lease *clonepool.CloneLease)
}

// Notifier reports the terminal outcome of a backport job to the PR owner:
// exactly one chat message per failure, one on success.
type Notifier interface {
	NotifyBackportSuccess(ctx context.Context, key models.RepoKey, srcPR models.PullRequest, job models.BackportJob) error
	NotifyBackportFailure(ctx context.Context, key models.RepoKey, srcPR models.PullRequest, job models.BackportJob, cause error) error
}

// Sessions resolves the git-auth token for a host, separately from the REST
// session, since the credential helper authenticates the git subprocess.
type Sessions interface {
	Token(host string) (string, bool)
}

// Engine runs one BackportJob at a time to completion. A single Engine is
// safe to share across repo workers since all of its mutable state lives in
// the job and the per-call clone lease.
type Engine struct {
	db       store.DB
	hosting  Hosting
	sessions Sessions
	pool     Pool
	notifier Notifier
	log      *slog.Logger

	onTransition func(models.BackportJob)
}

// New builds an Engine.
func New(db store.DB, hostingClient Hosting, sessions Sessions, pool Pool, notifier Notifier) *Engine {
	return &Engine{
		db:       db,
		hosting:  hostingClient,
		sessions: sessions,
		pool:     pool,
		notifier: notifier,
		log:      slog.Default(),
	}
}

// OnTransition registers fn to be called after every persisted BackportJob
// state transition, for operator telemetry. Optional; nil disables it.
func (e *Engine) OnTransition(fn func(models.BackportJob)) {
	e.onTransition = fn
}

func (e *Engine) emit(job models.BackportJob) {
	if e.onTransition != nil {
		e.onTransition(job)
	}
}

// Run executes job to completion. It persists and emits the Preparing and
// Opening states and the terminal Done or Failed state; the Validating,
// CherryPicking and Pushing steps are not written to the store. It never
// returns an error to the caller — queue.Handler has no error channel — and
// every failure is logged and persisted before Run returns. A success or
// failure sends exactly one chat notification, except when the source pull
// request cannot be fetched: that failure is logged only, with no chat
// message.
func (e *Engine) Run(ctx context.Context, job models.BackportJob) {
	key := job.RepoKey

	srcPR, err := e.hosting.GetPullRequest(ctx, key, job.SrcPRNumber)
	if err != nil {
		e.fail(ctx, job, models.BackportValidating, nil, err)
		return
	}

	result, err := e.run(ctx, job, srcPR)
	if err != nil {
		e.fail(ctx, result, failureState(err), srcPR, err)
		return
	}

	result.State = models.BackportDone
	if err := store.UpdateBackportJobState(ctx, e.db, result); err != nil {
		e.log.Error("persisting completed backport job", "repo", key.String(), "err", err)
	}
	e.emit(result)
	if err := e.notifier.NotifyBackportSuccess(ctx, key, *srcPR, result); err != nil {
		e.log.Error("notifying backport success", "repo", key.String(), "err", err)
	}
}

// run executes steps 1-9 of the algorithm and returns the job as it should
// be persisted on success. Every early return is a *models.BackportError.
func (e *Engine) run(ctx context.Context, job models.BackportJob, srcPR *models.PullRequest) (models.BackportJob, error) {
	key := job.RepoKey

	// 1. Validate.
	if !srcPR.Merged || srcPR.MergeCommitSHA == "" {
		return job, models.NewBackportError(models.BackportValidating, "source pull request is not merged", "", nil)
	}
	job.MergeCommitSHA = srcPR.MergeCommitSHA
	job.OrigBase = srcPR.BaseRef

	// 2. Name derived branch.
	job.DerivedBranchName = DeriveBranchName(srcPR.HeadRef, job.TargetBranch)

	// 3. Collision check.
	open, err := e.hosting.ListOpenPullRequests(ctx, key)
	if err != nil {
		return job, models.NewBackportError(models.BackportValidating, "", "", err)
	}
	for _, pr := range open {
		if pr.HeadRef == job.DerivedBranchName {
			return job, models.NewBackportError(models.BackportValidating, "Pull request already opened", "", nil)
		}
	}

	preparing := withState(job, models.BackportPreparing)
	if err := store.UpdateBackportJobState(ctx, e.db, preparing); err != nil {
		e.log.Warn("persisting job state", "state", models.BackportPreparing, "err", err)
	}
	e.emit(preparing)

	// 4. Acquire clone.
	lease, err := e.pool.Acquire(ctx, key)
	if err != nil {
		return job, models.NewBackportError(models.BackportPreparing, "", "", err)
	}
	defer e.pool.Release(lease)

	token, _ := e.sessions.Token(key.Host)
	credEnv, cleanupCred, err := gitrunner.WriteCredentialHelper(key.Host, "octobot", token)
	if err != nil {
		return job, models.NewBackportError(models.BackportPreparing, "", "", err)
	}
	defer cleanupCred()
	runner := gitrunner.New(lease.Dir, credEnv)
	remoteURL := fmt.Sprintf("https://%s/%s/%s.git", key.Host, key.Owner, key.Repo)

	if err := clonepool.EnsureCloned(ctx, lease, remoteURL, token); err != nil {
		return job, models.NewBackportError(models.BackportPreparing, "", "", err)
	}

	if err := e.prepareWorktree(ctx, runner, job.TargetBranch, job.DerivedBranchName); err != nil {
		return job, err
	}

	// 6. Cherry-pick.
	if err := e.cherryPick(ctx, runner, job.MergeCommitSHA); err != nil {
		return job, err
	}

	// 7. Rewrite message.
	if err := e.rewriteMessage(ctx, runner, job); err != nil {
		return job, err
	}

	// 8. Push.
	if err := e.pushBranch(ctx, runner, job.DerivedBranchName); err != nil {
		return job, err
	}

	opening := withState(job, models.BackportOpening)
	if err := store.UpdateBackportJobState(ctx, e.db, opening); err != nil {
		e.log.Warn("persisting job state", "state", models.BackportOpening, "err", err)
	}
	e.emit(opening)

	// 9. Open PR.
	derivedPR, err := e.hosting.CreatePullRequest(ctx, key, hosting.CreatePullRequestOptions{
		Title: RewriteTitle(job.OrigBase, job.TargetBranch, firstLine(srcPR.Title)),
		Body:  RewriteBody(srcPR.Body, shortSHA(job.MergeCommitSHA), job.SrcPRNumber),
		Head:  job.DerivedBranchName,
		Base:  job.TargetBranch,
	})
	if err != nil {
		return job, models.NewBackportError(models.BackportOpening, "", "", err)
	}
	if err := e.hosting.AssignPullRequest(ctx, key, derivedPR.Number, srcPR.AssigneeLogins()); err != nil {
		e.log.Warn("assigning derived pull request", "repo", key.String(), "err", err)
	}

	job.ResultPRNumber = derivedPR.Number
	return job, nil
}

func (e *Engine) prepareWorktree(ctx context.Context, runner *gitrunner.Runner, targetBranch, derived string) error {
	if _, err := runner.Run(ctx, "fetch", "origin"); err != nil {
		return wrapGitErr(models.BackportPreparing, err)
	}
	if _, err := runner.Run(ctx, "reset", "--hard", "origin/"+targetBranch); err != nil {
		return wrapGitErr(models.BackportPreparing, err)
	}
	if _, err := runner.Run(ctx, "clean", "-fdx"); err != nil {
		return wrapGitErr(models.BackportPreparing, err)
	}

	current, err := runner.Run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return wrapGitErr(models.BackportPreparing, err)
	}
	if current == derived {
		return nil
	}
	_, _ = runner.Run(ctx, "branch", "-D", derived) // best-effort; stale local branch from a prior failed attempt
	if _, err := runner.Run(ctx, "checkout", "-f", "-b", derived, "origin/"+targetBranch); err != nil {
		return wrapGitErr(models.BackportPreparing, err)
	}
	return nil
}

func (e *Engine) cherryPick(ctx context.Context, runner *gitrunner.Runner, sha string) error {
	if _, err := runner.Run(ctx, "cherry-pick", "-X", "ignore-all-space", sha); err != nil {
		_, _ = runner.Run(ctx, "cherry-pick", "--abort")
		return wrapGitErr(models.BackportCherryPicking, err)
	}
	return nil
}

func (e *Engine) rewriteMessage(ctx context.Context, runner *gitrunner.Runner, job models.BackportJob) error {
	origMsg, err := runner.Run(ctx, "log", "-1", "--pretty=%B", job.MergeCommitSHA)
	if err != nil {
		return wrapGitErr(models.BackportCherryPicking, err)
	}
	newTitle := RewriteTitle(job.OrigBase, job.TargetBranch, firstLine(origMsg))
	newBody := RewriteBody(bodyAfterFirstLine(origMsg), shortSHA(job.MergeCommitSHA), job.SrcPRNumber)

	message := newTitle + "\n\n" + newBody
	if _, err := runner.RunStdin(ctx, []byte(message), "commit", "--amend", "-F", "-"); err != nil {
		return wrapGitErr(models.BackportCherryPicking, err)
	}
	return nil
}

func (e *Engine) pushBranch(ctx context.Context, runner *gitrunner.Runner, derived string) error {
	existing, err := runner.Run(ctx, "ls-remote", "--heads", "origin", derived)
	if err != nil {
		return wrapGitErr(models.BackportPushing, err)
	}
	if strings.TrimSpace(existing) != "" {
		return models.NewBackportError(models.BackportPushing, "derived branch already exists on origin", "", nil)
	}
	if _, err := runner.Run(ctx, "push", "origin", derived+":"+derived); err != nil {
		return wrapGitErr(models.BackportPushing, err)
	}
	return nil
}

func (e *Engine) fail(ctx context.Context, job models.BackportJob, state models.BackportState, srcPR *models.PullRequest, cause error) {
	job.State = models.BackportFailed
	job.FailureReason = cause.Error()
	if err := store.UpdateBackportJobState(ctx, e.db, job); err != nil {
		e.log.Error("persisting failed backport job", "repo", job.RepoKey.String(), "err", err)
	}
	e.emit(job)
	if srcPR == nil {
		e.log.Error("backport failed before source pull request could be fetched", "repo", job.RepoKey.String(), "pr", job.SrcPRNumber, "state", state, "err", cause)
		return
	}
	if err := e.notifier.NotifyBackportFailure(ctx, job.RepoKey, *srcPR, job, cause); err != nil {
		e.log.Error("notifying backport failure", "repo", job.RepoKey.String(), "err", err)
	}
}

func withState(job models.BackportJob, state models.BackportState) models.BackportJob {
	job.State = state
	return job
}

func failureState(err error) models.BackportState {
	if be, ok := err.(*models.BackportError); ok {
		return be.State
	}
	return models.BackportFailed
}

func wrapGitErr(state models.BackportState, err error) error {
	if ge, ok := err.(*gitrunner.Error); ok {
		return models.NewBackportError(state, "", ge.Stderr, err)
	}
	return models.NewBackportError(state, "", "", err)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func bodyAfterFirstLine(s string) string {
	i := strings.IndexByte(s, '\n')
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(s[i+1:])
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
