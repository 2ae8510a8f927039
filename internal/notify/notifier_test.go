package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/octobot-dev/octobot/internal/config"
	"github.com/octobot-dev/octobot/internal/store"
	"github.com/octobot-dev/octobot/models"
)

type capturedPost struct {
	payload chatPayload
}

func newTestServer(t *testing.T) (*httptest.Server, *sync.Mutex, *[]capturedPost) {
	t.Helper()
	var mu sync.Mutex
	var posts []capturedPost
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p chatPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		mu.Lock()
		posts = append(posts, capturedPost{payload: p})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &mu, &posts
}

func newTestNotifierStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	db, err := store.NewSQLite(config.DatabaseConfig{Path: t.TempDir() + "/notify.db"})
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.Insert(ctx, "repo_configs", models.RepoConfig{
		Host: "github.com", Owner: "acme", Repo: "widget", ChatChannel: "#widget",
	}); err != nil {
		t.Fatalf("insert repo config: %v", err)
	}
	if _, err := db.Insert(ctx, "user_mappings", models.UserMapping{
		Host: "github.com", HostingLogin: "carol", ChatHandle: "carol", Muted: true,
	}); err != nil {
		t.Fatalf("insert muted mapping: %v", err)
	}
	st, err := store.NewStore(ctx, db)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return st
}

func TestNotifyEventAssignedExcludesSenderAndMuted(t *testing.T) {
	srv, mu, posts := newTestServer(t)
	st := newTestNotifierStore(t)
	n := New(st, config.ChatConfig{WebhookURL: srv.URL})

	evt := models.WebhookEvent{
		Kind:       models.EventPullRequest,
		RepoKey:    models.RepoKey{Host: "github.com", Owner: "acme", Repo: "widget"},
		Repository: models.Repository{FullName: "acme/widget", HTMLURL: "https://github.com/acme/widget"},
		Sender:     models.User{Login: "bob-jones"},
		Action:     "assigned",
		PR: &models.PullRequest{
			Number: 5,
			User:   models.User{Login: "alice"},
			Assignees: []models.User{
				{Login: "bob-jones"},
				{Login: "carol"},
			},
		},
	}
	cfg := models.RepoConfig{ChatChannel: "#widget"}

	if err := n.NotifyEvent(context.Background(), evt, &cfg); err != nil {
		t.Fatalf("NotifyEvent: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(*posts) == 0 {
		t.Fatal("expected at least one chat post")
	}
	// The channel post names the assignees by chat handle (bob-jones falls
	// back to bob.jones), skipping muted carol.
	first := (*posts)[0].payload.Text
	if !strings.Contains(first, "@bob.jones") {
		t.Errorf("expected channel message to name @bob.jones, got %q", first)
	}
	if strings.Contains(first, "carol") {
		t.Errorf("expected channel message to never mention muted carol, got %q", first)
	}

	// Direct messages: only alice should receive one (carol is muted, bob
	// is the sender and excluded).
	directTargets := map[string]bool{}
	for _, p := range (*posts)[1:] {
		directTargets[p.payload.Channel] = true
	}
	if !directTargets["@alice"] {
		t.Error("owner alice must receive a direct message")
	}
	if directTargets["@carol"] {
		t.Error("muted carol must not receive a direct message")
	}
	if directTargets["@bob.jones"] {
		t.Error("sender bob-jones must not receive a direct message")
	}
}

func TestNotifyBackportFailureSendsToOwnerOnly(t *testing.T) {
	srv, mu, posts := newTestServer(t)
	st := newTestNotifierStore(t)
	n := New(st, config.ChatConfig{WebhookURL: srv.URL})

	srcPR := models.PullRequest{Number: 22, User: models.User{Login: "alice"}, HTMLURL: "https://github.com/acme/widget/pull/22"}
	key := models.RepoKey{Host: "github.com", Owner: "acme", Repo: "widget"}
	job := models.BackportJob{TargetBranch: "release/1.5"}

	err := n.NotifyBackportFailure(context.Background(), key, srcPR, job, models.NewBackportError(models.BackportPushing, "derived branch already exists on origin", "", nil))
	if err != nil {
		t.Fatalf("NotifyBackportFailure: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(*posts) != 1 {
		t.Fatalf("expected exactly one chat post, got %d", len(*posts))
	}
	p := (*posts)[0].payload
	if p.Channel != "@alice" {
		t.Errorf("expected direct message to @alice, got channel %q", p.Channel)
	}
	if !strings.Contains(p.Text, "already exists") {
		t.Errorf("expected failure reason in text, got %q", p.Text)
	}
	if len(p.Attachments) != 1 || p.Attachments[0].Color != ColorDanger {
		t.Errorf("expected danger-colored attachment, got %+v", p.Attachments)
	}
}

