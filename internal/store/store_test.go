package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/octobot-dev/octobot/internal/config"
	"github.com/octobot-dev/octobot/models"
)

func newTestDB(t *testing.T) DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "octobot-test.db")
	db, err := NewSQLite(config.DatabaseConfig{Path: path})
	if err != nil {
		t.Fatalf("new sqlite db: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSnapshotReloadReflectsInserts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	if _, err := db.Insert(ctx, "repo_configs", models.RepoConfig{
		Host: "github.com", Owner: "acme", Repo: "widget",
		ChatChannel: "#widget", BackportEnabled: true,
	}); err != nil {
		t.Fatalf("insert repo config: %v", err)
	}
	if _, err := db.Insert(ctx, "user_mappings", models.UserMapping{
		Host: "github.com", HostingLogin: "jane-doe", ChatHandle: "jane",
	}); err != nil {
		t.Fatalf("insert user mapping: %v", err)
	}

	st, err := NewStore(ctx, db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	key := models.RepoKey{Host: "github.com", Owner: "acme", Repo: "widget"}
	cfg, ok := st.Current().RepoConfig(key)
	if !ok {
		t.Fatalf("expected repo config for %v", key)
	}
	if !cfg.BackportEnabled || cfg.ChatChannel != "#widget" {
		t.Fatalf("unexpected repo config: %+v", cfg)
	}

	mapping, ok := st.Current().UserMapping("github.com", "jane-doe")
	if !ok || mapping.ChatHandle != "jane" {
		t.Fatalf("unexpected user mapping: %+v ok=%v", mapping, ok)
	}

	if _, ok := st.Current().RepoConfig(models.RepoKey{Host: "github.com", Owner: "acme", Repo: "other"}); ok {
		t.Fatal("expected miss for unconfigured repo")
	}
}

func TestBackportJobIdempotency(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	key := models.RepoKey{Host: "github.com", Owner: "acme", Repo: "widget"}

	if _, found, err := FindBackportJob(ctx, db, key, 42, "release/1.2"); err != nil {
		t.Fatalf("FindBackportJob: %v", err)
	} else if found {
		t.Fatal("expected no job before creation")
	}

	job, err := CreateBackportJob(ctx, db, models.BackportJob{
		RepoKey: key, SrcPRNumber: 42, TargetBranch: "release/1.2", MergeCommitSHA: "abc123",
	})
	if err != nil {
		t.Fatalf("CreateBackportJob: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected assigned ID")
	}
	if job.State != models.BackportPending {
		t.Fatalf("expected pending state, got %s", job.State)
	}

	job.State = models.BackportDone
	job.ResultPRNumber = 99
	if err := UpdateBackportJobState(ctx, db, job); err != nil {
		t.Fatalf("UpdateBackportJobState: %v", err)
	}

	found, ok, err := FindBackportJob(ctx, db, key, 42, "release/1.2")
	if err != nil {
		t.Fatalf("FindBackportJob after update: %v", err)
	}
	if !ok {
		t.Fatal("expected job to be found after creation")
	}
	if found.State != models.BackportDone || found.ResultPRNumber != 99 {
		t.Fatalf("unexpected job after update: %+v", found)
	}
}
