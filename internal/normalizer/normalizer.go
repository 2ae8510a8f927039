// Package normalizer implements the Event Normalizer: it parses raw webhook
// bodies into the typed WebhookEvent variant, resolves repo/user config, and
// drives the Notifier and Repo Work Queue per the event's dispatch rule.
package normalizer

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/octobot-dev/octobot/internal/store"
	"github.com/octobot-dev/octobot/models"
)

// Notifier fans a classified event out to chat. Implemented by
// internal/notify.Notifier.
type Notifier interface {
	NotifyEvent(ctx context.Context, evt models.WebhookEvent, cfg *models.RepoConfig) error
}

// Enqueuer accepts a backport job onto the per-repo work queue. Implemented
// by internal/queue.Queue.
type Enqueuer interface {
	Enqueue(key models.RepoKey, job models.BackportJob) error
}

// LabelLister enumerates the labels currently on a pull request, used when a
// PR is merged without itself carrying the triggering "labeled" action (the
// labels may have been applied earlier in the PR's life).
type LabelLister interface {
	ListLabels(ctx context.Context, key models.RepoKey, prNumber int) ([]string, error)
}

// IssueTracker drives the issue-tracker coordinator's PR-lifecycle side
// effects. Implemented by internal/issuetracker.Coordinator.
type IssueTracker interface {
	OnPullRequestOpened(ctx context.Context, cfg *models.RepoConfig, pr models.PullRequest)
	OnPullRequestMerged(ctx context.Context, cfg *models.RepoConfig, pr models.PullRequest)
}

// Normalizer wires the Event Normalizer's dependencies.
type Normalizer struct {
	store    *store.Store
	notifier Notifier
	queue    Enqueuer
	labels   LabelLister
	tracker  IssueTracker
	warned   sync.Map // models.RepoKey -> struct{}
	log      *slog.Logger
}

// New builds a Normalizer. tracker may be nil when no issue tracker is
// configured.
func New(st *store.Store, notifier Notifier, queue Enqueuer, labels LabelLister, tracker IssueTracker) *Normalizer {
	return &Normalizer{store: st, notifier: notifier, queue: queue, labels: labels, tracker: tracker, log: slog.Default()}
}

// Dispatch implements ingress.Dispatcher.
func (n *Normalizer) Dispatch(kind models.EventKind, body []byte) int {
	ctx := context.Background()

	switch kind {
	case models.EventPing, models.EventPush:
		return http.StatusOK
	case models.EventPullRequest:
		return n.handlePullRequest(ctx, body)
	case models.EventPullRequestReview:
		return n.handleReview(ctx, body)
	case models.EventPullRequestReviewComm, models.EventIssueComment, models.EventCommitComment:
		return n.handleComment(ctx, kind, body)
	case models.EventStatus:
		return n.handleStatus(ctx, body)
	default:
		return http.StatusOK
	}
}

func (n *Normalizer) handlePullRequest(ctx context.Context, body []byte) int {
	var p wirePullRequestPayload
	if err := json.Unmarshal(body, &p); err != nil {
		n.log.Warn("malformed pull_request payload", "error", err)
		return http.StatusOK
	}

	key := repoKeyFromRepository(p.Repository)
	cfg := n.repoConfig(key)
	pr := p.PullRequest.toModel()

	evt := models.WebhookEvent{
		Kind:       models.EventPullRequest,
		RepoKey:    key,
		Repository: models.Repository{FullName: p.Repository.FullName, HTMLURL: p.Repository.HTMLURL},
		Sender:     models.User{Login: p.Sender.Login},
		Action:     p.Action,
		PR:         pr,
		Label:      p.Label.Name,
	}

	switch p.Action {
	case "opened", "reopened":
		n.notify(ctx, evt, cfg)
		n.trackerOpened(ctx, cfg, *pr)
	case "closed":
		n.notify(ctx, evt, cfg)
		if pr.Merged {
			n.enqueueForMergedLabels(ctx, key, cfg, pr)
			n.trackerMerged(ctx, cfg, *pr)
		}
	case "assigned", "unassigned":
		n.notify(ctx, evt, cfg)
	case "labeled":
		n.notify(ctx, evt, cfg)
		if pr.Merged {
			n.enqueueForLabel(ctx, key, cfg, pr, p.Label.Name)
		}
	}

	return http.StatusOK
}

func (n *Normalizer) trackerOpened(ctx context.Context, cfg *models.RepoConfig, pr models.PullRequest) {
	if n.tracker == nil {
		return
	}
	n.tracker.OnPullRequestOpened(ctx, cfg, pr)
}

func (n *Normalizer) trackerMerged(ctx context.Context, cfg *models.RepoConfig, pr models.PullRequest) {
	if n.tracker == nil {
		return
	}
	n.tracker.OnPullRequestMerged(ctx, cfg, pr)
}

func (n *Normalizer) handleReview(ctx context.Context, body []byte) int {
	var p wireReviewPayload
	if err := json.Unmarshal(body, &p); err != nil {
		n.log.Warn("malformed pull_request_review payload", "error", err)
		return http.StatusOK
	}

	key := repoKeyFromRepository(p.Repository)
	cfg := n.repoConfig(key)
	evt := models.WebhookEvent{
		Kind:        models.EventPullRequestReview,
		RepoKey:     key,
		Repository:  models.Repository{FullName: p.Repository.FullName, HTMLURL: p.Repository.HTMLURL},
		Sender:      models.User{Login: p.Sender.Login},
		PR:          p.PullRequest.toModel(),
		ReviewState: p.Review.State,
		ReviewBody:  p.Review.Body,
	}

	if p.Review.State == "commented" && evt.IsEmptyComment(strings.TrimSpace) {
		return http.StatusOK
	}
	n.notify(ctx, evt, cfg)
	return http.StatusOK
}

func (n *Normalizer) handleComment(ctx context.Context, kind models.EventKind, body []byte) int {
	var p wireCommentPayload
	if err := json.Unmarshal(body, &p); err != nil {
		n.log.Warn("malformed comment payload", "kind", kind, "error", err)
		return http.StatusOK
	}

	key := repoKeyFromRepository(p.Repository)
	cfg := n.repoConfig(key)
	evt := models.WebhookEvent{
		Kind:        kind,
		RepoKey:     key,
		Repository:  models.Repository{FullName: p.Repository.FullName, HTMLURL: p.Repository.HTMLURL},
		Sender:      models.User{Login: p.Sender.Login},
		CommentBody: p.Comment.Body,
	}

	if evt.IsEmptyComment(strings.TrimSpace) {
		return http.StatusOK
	}
	n.notify(ctx, evt, cfg)
	return http.StatusOK
}

func (n *Normalizer) handleStatus(ctx context.Context, body []byte) int {
	var p wireStatusPayload
	if err := json.Unmarshal(body, &p); err != nil {
		n.log.Warn("malformed status payload", "error", err)
		return http.StatusOK
	}

	key := repoKeyFromRepository(p.Repository)
	cfg := n.repoConfig(key)
	evt := models.WebhookEvent{
		Kind:        models.EventStatus,
		RepoKey:     key,
		Repository:  models.Repository{FullName: p.Repository.FullName, HTMLURL: p.Repository.HTMLURL},
		Sender:      models.User{Login: p.Sender.Login},
		StatusState: p.State,
		StatusDesc:  p.Description,
		StatusURL:   p.TargetURL,
	}
	n.notify(ctx, evt, cfg)
	return http.StatusOK
}

// repoConfig resolves the RepoConfig for key, warning once per RepoKey when
// none is configured — the event is still processed.
func (n *Normalizer) repoConfig(key models.RepoKey) *models.RepoConfig {
	cfg, ok := n.store.Current().RepoConfig(key)
	if ok {
		return &cfg
	}
	if _, alreadyWarned := n.warned.LoadOrStore(key, struct{}{}); !alreadyWarned {
		n.log.Warn("no repo config for repo, using defaults", "repo", key.String())
	}
	return nil
}

func (n *Normalizer) notify(ctx context.Context, evt models.WebhookEvent, cfg *models.RepoConfig) {
	if n.notifier == nil {
		return
	}
	if err := n.notifier.NotifyEvent(ctx, evt, cfg); err != nil {
		n.log.Error("notify failed", "repo", evt.RepoKey.String(), "error", err)
	}
}

func (n *Normalizer) enqueueForLabel(ctx context.Context, key models.RepoKey, cfg *models.RepoConfig, pr *models.PullRequest, label string) {
	if cfg == nil || !cfg.BackportEnabled {
		return
	}
	target, ok := matchLabel(cfg.Policy(), label)
	if !ok {
		return
	}
	n.submitBackport(ctx, key, pr, target)
}

func (n *Normalizer) enqueueForMergedLabels(ctx context.Context, key models.RepoKey, cfg *models.RepoConfig, pr *models.PullRequest) {
	if cfg == nil || !cfg.BackportEnabled {
		return
	}
	policy := cfg.Policy()
	labels := pr.Labels
	if n.labels != nil {
		if fresh, err := n.labels.ListLabels(ctx, key, pr.Number); err == nil {
			labels = fresh
		}
	}
	for _, label := range labels {
		if target, ok := matchLabel(policy, label); ok {
			n.submitBackport(ctx, key, pr, target)
		}
	}
}

// submitBackport records the job's idempotency row before enqueueing it, so
// a crash-and-restart never silently re-attempts a job that already opened
// a PR: a prior Done or in-flight row for the same (repo, PR, target) short
// circuits the resubmission instead of queuing a duplicate. A prior Failed
// row is reset to Pending and re-enqueued under its existing ID, since the
// table allows only one row per (repo, PR, target).
func (n *Normalizer) submitBackport(ctx context.Context, key models.RepoKey, pr *models.PullRequest, target string) {
	existing, found, err := store.FindBackportJob(ctx, n.store.DB(), key, pr.Number, target)
	if err != nil {
		n.log.Error("checking backport idempotency", "repo", key.String(), "pr", pr.Number, "target", target, "error", err)
		return
	}
	if found && existing.State != models.BackportFailed {
		n.log.Info("backport already recorded, skipping", "repo", key.String(), "pr", pr.Number, "target", target, "state", existing.State)
		return
	}

	var job models.BackportJob
	if found {
		job = existing
		job.State = models.BackportPending
		job.FailureReason = ""
		job.MergeCommitSHA = pr.MergeCommitSHA
		job.OrigBase = pr.BaseRef
		err = store.UpdateBackportJobState(ctx, n.store.DB(), job)
	} else {
		job, err = store.CreateBackportJob(ctx, n.store.DB(), models.BackportJob{
			RepoKey:        key,
			SrcPRNumber:    pr.Number,
			MergeCommitSHA: pr.MergeCommitSHA,
			TargetBranch:   target,
			OrigBase:       pr.BaseRef,
		})
	}
	if err != nil {
		n.log.Error("recording backport job", "repo", key.String(), "pr", pr.Number, "target", target, "error", err)
		return
	}

	if err := n.queue.Enqueue(key, job); err != nil {
		n.log.Error("error scheduling backport", "repo", key.String(), "pr", pr.Number, "target", target, "error", err)
	}
}

// matchLabel reports whether label matches policy.Pattern, returning the
// substituted target branch.
func matchLabel(policy models.LabelPolicy, label string) (string, bool) {
	re, err := regexp.Compile("(?i)" + policy.Pattern)
	if err != nil {
		return "", false
	}
	loc := re.FindStringSubmatchIndex(label)
	if loc == nil {
		return "", false
	}
	return string(re.ExpandString(nil, policy.TargetTemplate, label, loc)), true
}

// repoKeyFromRepository derives a RepoKey from the webhook's repository
// object: host from html_url, owner/name from full_name.
func repoKeyFromRepository(r wireRepository) models.RepoKey {
	host := "unknown"
	if u, err := url.Parse(r.HTMLURL); err == nil && u.Host != "" {
		host = u.Host
	}
	owner, repo := "", ""
	if parts := strings.SplitN(r.FullName, "/", 2); len(parts) == 2 {
		owner, repo = parts[0], parts[1]
	}
	return models.RepoKey{Host: host, Owner: owner, Repo: repo}
}
