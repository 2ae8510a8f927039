// Package clonepool implements the Clone Pool: a bounded, per-RepoKey roster
// of on-disk git working directories leased to the Backport Engine.
package clonepool

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/octobot-dev/octobot/models"
)

// CloneLease is a checked-out slot in a RepoKey's roster.
type CloneLease struct {
	Key   models.RepoKey
	Index int
	Dir   string
}

// Pool owns the roster of clone directories under Root, laid out as
// "<root>/<host>/<owner>/<repo>/<index>".
type Pool struct {
	root           string
	size           int
	acquireTimeout time.Duration
	log            *slog.Logger

	mu      sync.Mutex
	rosters map[models.RepoKey]*roster

	onAcquire func(key models.RepoKey, inUse int)
	onRelease func(key models.RepoKey, inUse int)
}

// OnAcquire registers fn to be called after every successful Acquire, for
// operator telemetry. Optional; nil disables it.
func (p *Pool) OnAcquire(fn func(key models.RepoKey, inUse int)) {
	p.onAcquire = fn
}

// OnRelease registers fn to be called after every Release, for operator
// telemetry. Optional; nil disables it.
func (p *Pool) OnRelease(fn func(key models.RepoKey, inUse int)) {
	p.onRelease = fn
}

type roster struct {
	generation int
	inUse      map[int]bool
}

// New builds a Pool. size is the roster size per RepoKey (default 5);
// acquireTimeout bounds the backoff loop before a roster rebuild (default 60s).
func New(root string, size int, acquireTimeout time.Duration) *Pool {
	if size <= 0 {
		size = 5
	}
	if acquireTimeout <= 0 {
		acquireTimeout = 60 * time.Second
	}
	return &Pool{
		root:           root,
		size:           size,
		acquireTimeout: acquireTimeout,
		log:            slog.Default(),
		rosters:        make(map[models.RepoKey]*roster),
	}
}

// Acquire returns a free slot for key, waiting with 500ms backoff if the
// roster is fully checked out. If the timeout elapses with nothing free, the
// roster is rebuilt with fresh integer indices (self-healing a stuck or
// corrupted working tree) and the search restarts once.
func (p *Pool) Acquire(ctx context.Context, key models.RepoKey) (*CloneLease, error) {
	deadline := time.Now().Add(p.acquireTimeout)
	for {
		if lease, ok := p.tryAcquire(key); ok {
			if p.onAcquire != nil {
				p.onAcquire(key, p.InUse(key))
			}
			return lease, nil
		}
		if time.Now().After(deadline) {
			p.rebuild(key)
			if lease, ok := p.tryAcquire(key); ok {
				if p.onAcquire != nil {
					p.onAcquire(key, p.InUse(key))
				}
				return lease, nil
			}
			return nil, fmt.Errorf("clone pool exhausted for %s after rebuild", key.String())
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (p *Pool) tryAcquire(key models.RepoKey) (*CloneLease, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.rosters[key]
	if !ok {
		r = &roster{inUse: make(map[int]bool)}
		p.rosters[key] = r
	}
	for i := 0; i < p.size; i++ {
		if !r.inUse[i] {
			r.inUse[i] = true
			return &CloneLease{Key: key, Index: i, Dir: p.dir(key, r.generation, i)}, true
		}
	}
	return nil, false
}

// rebuild bumps the roster generation, pointing future leases at fresh
// directories, and clears in-use tracking for the old generation.
func (p *Pool) rebuild(key models.RepoKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.rosters[key]
	if !ok {
		r = &roster{inUse: make(map[int]bool)}
		p.rosters[key] = r
		return
	}
	r.generation++
	r.inUse = make(map[int]bool)
	p.log.Warn("clone pool roster exhausted, rebuilding", "repo", key.String(), "generation", r.generation)
}

// InUse reports how many slots of key's roster are currently leased, for
// operator telemetry.
func (p *Pool) InUse(key models.RepoKey) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.rosters[key]
	if !ok {
		return 0
	}
	return len(r.inUse)
}

// Release returns lease to the roster unconditionally.
func (p *Pool) Release(lease *CloneLease) {
	if lease == nil {
		return
	}
	p.mu.Lock()
	if r, ok := p.rosters[lease.Key]; ok {
		delete(r.inUse, lease.Index)
	}
	p.mu.Unlock()
	if p.onRelease != nil {
		p.onRelease(lease.Key, p.InUse(lease.Key))
	}
}

func (p *Pool) dir(key models.RepoKey, generation, index int) string {
	return filepath.Join(p.root, key.Host, key.Owner, key.Repo, itoa(generation*p.size+index))
}

func itoa(i int) string {
	return fmt.Sprintf("%d", i)
}

// EnsureCloned clones remoteURL into lease.Dir with go-git if it doesn't
// already contain a working tree. Every later git operation in this
// directory (fetch, cherry-pick, push) runs through the Git Runner, not
// go-git — go-git's porcelain API only covers this initial bootstrap.
func EnsureCloned(ctx context.Context, lease *CloneLease, remoteURL, token string) error {
	if _, err := os.Stat(filepath.Join(lease.Dir, ".git")); err == nil {
		return nil
	}

	if err := os.MkdirAll(lease.Dir, 0o755); err != nil {
		return fmt.Errorf("creating clone directory %s: %w", lease.Dir, err)
	}

	opts := &gogit.CloneOptions{URL: remoteURL}
	if token != "" {
		opts.Auth = &githttp.BasicAuth{Username: "octobot", Password: token}
	}

	if _, err := gogit.PlainCloneContext(ctx, lease.Dir, false, opts); err != nil {
		return fmt.Errorf("cloning %s into %s: %w", remoteURL, lease.Dir, err)
	}
	return nil
}
