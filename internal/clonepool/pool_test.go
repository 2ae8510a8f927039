package clonepool

import (
	"context"
	"testing"
	"time"

	"github.com/octobot-dev/octobot/models"
)

func TestAcquireReleaseReusesSlot(t *testing.T) {
	p := New(t.TempDir(), 2, time.Second)
	key := models.RepoKey{Host: "github.com", Owner: "acme", Repo: "widget"}

	lease1, err := p.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	lease2, err := p.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("acquire 2: %v", err)
	}
	if lease1.Index == lease2.Index {
		t.Fatal("expected distinct slots from a roster of size 2")
	}

	p.Release(lease1)
	lease3, err := p.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("acquire 3: %v", err)
	}
	if lease3.Index != lease1.Index {
		t.Fatalf("expected released slot %d to be reused, got %d", lease1.Index, lease3.Index)
	}
}

func TestAcquireRebuildsRosterOnExhaustion(t *testing.T) {
	p := New(t.TempDir(), 1, 50*time.Millisecond)
	key := models.RepoKey{Host: "github.com", Owner: "acme", Repo: "widget"}

	first, err := p.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}

	// Roster of size 1 is fully checked out; the next acquire must wait out
	// the backoff, rebuild, and succeed against a fresh generation rather
	// than block forever.
	second, err := p.Acquire(context.Background(), key)
	if err != nil {
		t.Fatalf("acquire after rebuild: %v", err)
	}
	if second.Dir == first.Dir {
		t.Fatal("expected rebuild to produce a distinct directory")
	}
}

func TestAcquireDifferentRepoKeysAreIndependent(t *testing.T) {
	p := New(t.TempDir(), 1, time.Second)
	keyA := models.RepoKey{Host: "github.com", Owner: "acme", Repo: "a"}
	keyB := models.RepoKey{Host: "github.com", Owner: "acme", Repo: "b"}

	if _, err := p.Acquire(context.Background(), keyA); err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	if _, err := p.Acquire(context.Background(), keyB); err != nil {
		t.Fatalf("acquire b should not be blocked by a's roster: %v", err)
	}
}
