package store

import (
	"context"
	"sync/atomic"

	"github.com/octobot-dev/octobot/models"
)

// Snapshot is a read-mostly view over RepoConfig and UserMapping rows. The
// Normalizer and the Notifier read through it on every event rather than
// hitting the DB directly; updates from the (out-of-scope) admin collaborator
// replace the whole snapshot atomically, so readers never observe a partial
// update — the copy-on-write model the core state used to fake with global
// mutable maps.
type Snapshot struct {
	RepoConfigs  map[models.RepoKey]models.RepoConfig
	UserMappings map[string]models.UserMapping // keyed by host+"/"+hosting_login
}

func userMappingKey(host, login string) string {
	return host + "/" + login
}

// RepoConfig looks up the config for key, reporting whether one exists.
func (s *Snapshot) RepoConfig(key models.RepoKey) (models.RepoConfig, bool) {
	if s == nil {
		return models.RepoConfig{}, false
	}
	c, ok := s.RepoConfigs[key]
	return c, ok
}

// UserMapping looks up the chat mapping for a hosting login on host.
func (s *Snapshot) UserMapping(host, login string) (models.UserMapping, bool) {
	if s == nil {
		return models.UserMapping{}, false
	}
	m, ok := s.UserMappings[userMappingKey(host, login)]
	return m, ok
}

// Store owns the current Snapshot and the DB it is loaded from. Callers
// obtain the live snapshot via Current(); Reload atomically swaps it for a
// freshly-queried one.
type Store struct {
	db      DB
	current atomic.Pointer[Snapshot]
}

// NewStore wraps db in a Store, performing an initial load.
func NewStore(ctx context.Context, db DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// DB returns the underlying DB, for callers that need direct access (e.g.
// BackportJob bookkeeping, which is write-heavy and not part of the snapshot).
func (s *Store) DB() DB { return s.db }

// Current returns the live snapshot. Safe for concurrent use; the returned
// pointer is never mutated in place.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Reload re-queries repo_configs and user_mappings and atomically publishes
// the result as the new Current snapshot.
func (s *Store) Reload(ctx context.Context) error {
	var configs []models.RepoConfig
	if err := s.db.Select(ctx, &configs, `SELECT id, host, owner, repo, chat_channel,
		force_push_notify, backport_enabled, issue_tracker, label_pattern, target_template
		FROM repo_configs`); err != nil {
		return err
	}

	var mappings []models.UserMapping
	if err := s.db.Select(ctx, &mappings, `SELECT id, host, hosting_login, chat_handle, muted
		FROM user_mappings`); err != nil {
		return err
	}

	next := &Snapshot{
		RepoConfigs:  make(map[models.RepoKey]models.RepoConfig, len(configs)),
		UserMappings: make(map[string]models.UserMapping, len(mappings)),
	}
	for _, c := range configs {
		next.RepoConfigs[c.Key()] = c
	}
	for _, m := range mappings {
		next.UserMappings[userMappingKey(m.Host, m.HostingLogin)] = m
	}

	s.current.Store(next)
	return nil
}
