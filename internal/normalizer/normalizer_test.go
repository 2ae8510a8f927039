package normalizer

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/octobot-dev/octobot/internal/config"
	"github.com/octobot-dev/octobot/internal/store"
	"github.com/octobot-dev/octobot/models"
)

type recordingNotifier struct {
	events []models.WebhookEvent
}

func (r *recordingNotifier) NotifyEvent(ctx context.Context, evt models.WebhookEvent, cfg *models.RepoConfig) error {
	r.events = append(r.events, evt)
	return nil
}

type recordingQueue struct {
	jobs []models.BackportJob
}

func (q *recordingQueue) Enqueue(key models.RepoKey, job models.BackportJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func newTestNormalizer(t *testing.T, notifier Notifier, queue Enqueuer, backportEnabled bool) *Normalizer {
	t.Helper()
	ctx := context.Background()
	db, err := store.NewSQLite(config.DatabaseConfig{Path: t.TempDir() + "/test.db"})
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.Insert(ctx, "repo_configs", models.RepoConfig{
		Host: "github.com", Owner: "acme", Repo: "widget", BackportEnabled: backportEnabled,
	}); err != nil {
		t.Fatalf("insert repo config: %v", err)
	}
	st, err := store.NewStore(ctx, db)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return New(st, notifier, queue, nil, nil)
}

func TestDispatchPingIsNoop(t *testing.T) {
	notifier := &recordingNotifier{}
	n := newTestNormalizer(t, notifier, &recordingQueue{}, false)

	status := n.Dispatch(models.EventPing, []byte(`{}`))
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(notifier.events) != 0 {
		t.Fatal("expected no notification for ping")
	}
}

func TestDispatchPullRequestOpenedNotifies(t *testing.T) {
	notifier := &recordingNotifier{}
	n := newTestNormalizer(t, notifier, &recordingQueue{}, false)

	body, _ := json.Marshal(map[string]any{
		"action": "opened",
		"pull_request": map[string]any{
			"number": 7, "title": "Add feature",
		},
		"repository": map[string]any{"full_name": "acme/widget", "html_url": "https://github.com/acme/widget"},
		"sender":     map[string]any{"login": "dev1"},
	})

	status := n.Dispatch(models.EventPullRequest, body)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.events))
	}
	if notifier.events[0].RepoKey.String() != "github.com/acme/widget" {
		t.Fatalf("unexpected repo key: %s", notifier.events[0].RepoKey.String())
	}
}

func TestDispatchMergedLabeledPREnqueuesBackport(t *testing.T) {
	notifier := &recordingNotifier{}
	queue := &recordingQueue{}
	n := newTestNormalizer(t, notifier, queue, true)

	body, _ := json.Marshal(map[string]any{
		"action": "labeled",
		"label":  map[string]any{"name": "backport-1.2"},
		"pull_request": map[string]any{
			"number": 7, "merged": true, "merge_commit_sha": "abc123",
			"base": map[string]any{"ref": "main"},
		},
		"repository": map[string]any{"full_name": "acme/widget", "html_url": "https://github.com/acme/widget"},
		"sender":     map[string]any{"login": "dev1"},
	})

	n.Dispatch(models.EventPullRequest, body)

	if len(queue.jobs) != 1 {
		t.Fatalf("expected one enqueued job, got %d", len(queue.jobs))
	}
	if queue.jobs[0].TargetBranch != "release/1.2" {
		t.Fatalf("unexpected target branch: %s", queue.jobs[0].TargetBranch)
	}
}

func TestDispatchLabeledPRIgnoredWhenBackportDisabled(t *testing.T) {
	notifier := &recordingNotifier{}
	queue := &recordingQueue{}
	n := newTestNormalizer(t, notifier, queue, false)

	body, _ := json.Marshal(map[string]any{
		"action": "labeled",
		"label":  map[string]any{"name": "backport-1.2"},
		"pull_request": map[string]any{
			"number": 7, "merged": true,
		},
		"repository": map[string]any{"full_name": "acme/widget", "html_url": "https://github.com/acme/widget"},
	})

	n.Dispatch(models.EventPullRequest, body)

	if len(queue.jobs) != 0 {
		t.Fatalf("expected no enqueued jobs, got %d", len(queue.jobs))
	}
}

func TestDispatchEmptyCommentDropped(t *testing.T) {
	notifier := &recordingNotifier{}
	n := newTestNormalizer(t, notifier, &recordingQueue{}, false)

	body, _ := json.Marshal(map[string]any{
		"comment":    map[string]any{"body": "   "},
		"repository": map[string]any{"full_name": "acme/widget", "html_url": "https://github.com/acme/widget"},
	})

	n.Dispatch(models.EventIssueComment, body)
	if len(notifier.events) != 0 {
		t.Fatal("expected empty comment to be dropped")
	}
}
