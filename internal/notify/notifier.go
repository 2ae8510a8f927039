// Package notify implements the chat notifier: it composes chat messages
// for classified webhook events and completed backport jobs, fans
// them out to the repo's configured channel plus a deterministic set of
// direct-message recipients, and never notifies a muted handle or the
// event's own sender.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/octobot-dev/octobot/internal/config"
	"github.com/octobot-dev/octobot/internal/hosting"
	"github.com/octobot-dev/octobot/internal/store"
	"github.com/octobot-dev/octobot/models"
)

// Notifier is the concrete chat Notifier wired from config and the
// read-mostly snapshot store (for UserMapping lookups).
type Notifier struct {
	store  *store.Store
	sender *sender
	log    *slog.Logger

	warnedChannel sync.Map // models.RepoKey -> struct{}
}

// New builds a Notifier.
func New(st *store.Store, cfg config.ChatConfig) *Notifier {
	return &Notifier{store: st, sender: newSender(cfg), log: slog.Default()}
}

// NotifyEvent implements normalizer.Notifier: it composes the message for a
// classified webhook event and fans it out to the repo channel plus the
// computed direct-message recipients.
func (n *Notifier) NotifyEvent(ctx context.Context, evt models.WebhookEvent, cfg *models.RepoConfig) error {
	message, color, ok := composeEventMessage(evt)
	if !ok {
		return nil
	}
	if evt.Kind == models.EventPullRequest && evt.Action == "assigned" && evt.PR != nil {
		message = n.composeAssignedMessage(evt.RepoKey.Host, *evt.PR)
	}

	var assignees []string
	var subjectLogin string
	if evt.PR != nil {
		assignees = evt.PR.AssigneeLogins()
		subjectLogin = evt.PR.User.Login
	}

	return n.dispatch(ctx, evt.RepoKey, evt.Repository, cfg, assignees, subjectLogin, evt.Sender.Login, message, color)
}

// NotifyBackportSuccess sends the single success notification a completed
// BackportJob produces: "Created merge Pull Request" to the source PR's
// owner, linking back to the source PR.
func (n *Notifier) NotifyBackportSuccess(ctx context.Context, key models.RepoKey, srcPR models.PullRequest, job models.BackportJob) error {
	message := fmt.Sprintf("Created merge Pull Request for %s", link(srcPR.HTMLURL, fmt.Sprintf("#%d", srcPR.Number)))
	return n.sendToOwner(ctx, key, srcPR, message, ColorGood)
}

// NotifyBackportFailure sends the single failure notification a failed
// BackportJob produces: "Error creating merge Pull Request", color=danger,
// with text derived from the error's decoded JSON body when available, else
// the error's message.
func (n *Notifier) NotifyBackportFailure(ctx context.Context, key models.RepoKey, srcPR models.PullRequest, job models.BackportJob, cause error) error {
	reason := failureText(cause)
	message := fmt.Sprintf("Error creating merge Pull Request for %s: %s", link(srcPR.HTMLURL, fmt.Sprintf("#%d", srcPR.Number)), reason)
	return n.sendToOwner(ctx, key, srcPR, message, ColorDanger)
}

// sendToOwner is the fan-out variant limited to the PR's owner: no channel
// message, no assignee fan-out, just one direct message.
func (n *Notifier) sendToOwner(ctx context.Context, key models.RepoKey, pr models.PullRequest, message, color string) error {
	handle, muted := n.resolveHandle(key.Host, pr.User.Login)
	if muted || handle == "" {
		return nil
	}
	return n.sender.sendDirect(ctx, handle, message, color)
}

// dispatch composes the repo-linked message, sends it to the configured
// channel (warning once if none is configured), and fans it out as direct
// messages to the computed recipient set.
func (n *Notifier) dispatch(ctx context.Context, key models.RepoKey, repo models.Repository, cfg *models.RepoConfig, assignees []string, subjectLogin, senderLogin, message, color string) error {
	full := appendRepoLink(message, repo.HTMLURL, repo.FullName)

	var firstErr error
	if cfg != nil && cfg.ChatChannel != "" {
		if err := n.sender.sendChannel(ctx, cfg.ChatChannel, full, color); err != nil {
			firstErr = err
			n.log.Error("notify: channel send failed", "repo", key.String(), "channel", cfg.ChatChannel, "error", err)
		}
	} else if _, warned := n.warnedChannel.LoadOrStore(key, struct{}{}); !warned {
		n.log.Warn("notify: no chat channel configured, falling back to direct-only", "repo", key.String())
	}

	recipients := recipientSet(assignees, subjectLogin, senderLogin, func(login string) bool {
		_, muted := n.resolveHandle(key.Host, login)
		return muted
	})
	for _, login := range recipients {
		handle, muted := n.resolveHandle(key.Host, login)
		if muted || handle == "" {
			continue
		}
		if err := n.sender.sendDirect(ctx, handle, full, color); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			n.log.Error("notify: direct send failed", "repo", key.String(), "handle", handle, "error", err)
		}
	}
	return firstErr
}

// composeAssignedMessage renders "Pull Request assigned to @h1, @h2" with
// each assignee's real chat handle, skipping anyone whose handle is muted
// the same way fan-out does.
func (n *Notifier) composeAssignedMessage(host string, pr models.PullRequest) string {
	handles := make([]string, 0, len(pr.Assignees))
	for _, a := range pr.Assignees {
		handle, muted := n.resolveHandle(host, a.Login)
		if muted || handle == "" {
			continue
		}
		handles = append(handles, "@"+handle)
	}
	return fmt.Sprintf("Pull Request assigned to %s", strings.Join(handles, ", "))
}

// resolveHandle looks up login's chat handle, falling back to
// models.FallbackChatHandle when no UserMapping row exists.
func (n *Notifier) resolveHandle(host, login string) (handle string, muted bool) {
	if login == "" {
		return "", false
	}
	if m, ok := n.store.Current().UserMapping(host, login); ok {
		return m.ChatHandle, m.Muted
	}
	return models.FallbackChatHandle(login), false
}

// failureText extracts a user-readable reason from a backport failure,
// preferring a hosting-platform error's decoded JSON body.
func failureText(err error) string {
	var hostingErr *hosting.Error
	if errors.As(err, &hostingErr) && len(hostingErr.Messages) > 0 {
		return strings.Join(hostingErr.Messages, "; ")
	}
	var backportErr *models.BackportError
	if errors.As(err, &backportErr) {
		if backportErr.Stderr != "" {
			return backportErr.Reason + ": " + backportErr.Stderr
		}
		return backportErr.Reason
	}
	return err.Error()
}

// composeEventMessage maps an event to its chat message and color, returning
// ok=false for events that produce no notification (ping, push, empty
// comments — the latter already filtered upstream by the Normalizer).
func composeEventMessage(evt models.WebhookEvent) (message, color string, ok bool) {
	switch evt.Kind {
	case models.EventPullRequest:
		return composePullRequestMessage(evt)
	case models.EventPullRequestReview:
		return composeReviewMessage(evt)
	case models.EventPullRequestReviewComm, models.EventIssueComment, models.EventCommitComment:
		return fmt.Sprintf("New comment: %s", truncate(evt.CommentBody, 200)), ColorNone, true
	case models.EventStatus:
		return composeStatusMessage(evt)
	default:
		return "", "", false
	}
}

func composePullRequestMessage(evt models.WebhookEvent) (string, string, bool) {
	if evt.PR == nil {
		return "", "", false
	}
	ref := link(evt.PR.HTMLURL, fmt.Sprintf("#%d: %s", evt.PR.Number, evt.PR.Title))
	switch evt.Action {
	case "opened":
		return "Pull Request opened " + ref, ColorNone, true
	case "reopened":
		return "Pull Request reopened " + ref, ColorNone, true
	case "closed":
		if evt.PR.Merged {
			return "Pull Request merged " + ref, ColorGood, true
		}
		return "Pull Request closed " + ref, ColorNone, true
	case "labeled":
		return fmt.Sprintf("Pull Request labeled `%s` %s", evt.Label, ref), ColorNone, true
	case "assigned":
		// Final text is composed by Notifier.composeAssignedMessage, which
		// resolves each assignee's chat handle through the UserMapping
		// store rather than the bare fallback transform; this placeholder
		// only signals that the event should notify.
		return "Pull Request assigned", ColorNone, true
	case "unassigned":
		return "Pull Request unassigned " + ref, ColorNone, true
	default:
		return "", "", false
	}
}

func composeReviewMessage(evt models.WebhookEvent) (string, string, bool) {
	if evt.PR == nil {
		return "", "", false
	}
	ref := link(evt.PR.HTMLURL, fmt.Sprintf("#%d: %s", evt.PR.Number, evt.PR.Title))
	switch evt.ReviewState {
	case "approved":
		return "Review approved " + ref, ColorGood, true
	case "changes_requested":
		return "Changes requested " + ref, ColorDanger, true
	case "commented":
		return fmt.Sprintf("New review comment: %s", truncate(evt.ReviewBody, 200)), ColorNone, true
	default:
		return "", "", false
	}
}

func composeStatusMessage(evt models.WebhookEvent) (string, string, bool) {
	switch evt.StatusState {
	case "success":
		return fmt.Sprintf("Build succeeded: %s", evt.StatusDesc), ColorGood, true
	case "failure", "error":
		return fmt.Sprintf("Build failed: %s", evt.StatusDesc), ColorDanger, true
	case "pending":
		return "", "", false
	default:
		return "", "", false
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
