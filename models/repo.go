package models

import "fmt"

// RepoKey identifies a repository for routing, config lookup, queue
// selection and clone-pool partitioning. It is immutable once constructed.
type RepoKey struct {
	Host  string `json:"host"  db:"host"`
	Owner string `json:"owner" db:"owner"`
	Repo  string `json:"repo"  db:"repo"`
}

// String renders the canonical "host/owner/repo" form used in logs, clone
// directory paths and chat links.
func (k RepoKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Host, k.Owner, k.Repo)
}

// FullName renders "owner/repo", the form hosting platforms use in payloads.
func (k RepoKey) FullName() string {
	return fmt.Sprintf("%s/%s", k.Owner, k.Repo)
}

// LabelPolicy maps a label regex to a target-branch template. The default
// policy recognises "backport-<suffix>" labels and targets "release/<suffix>".
type LabelPolicy struct {
	// Pattern is matched case-insensitively against label names. It must
	// contain exactly one capture group, whose value substitutes "$1" in
	// TargetTemplate.
	Pattern string `mapstructure:"pattern" json:"pattern" db:"pattern"`
	// TargetTemplate is the branch name template, e.g. "release/$1".
	TargetTemplate string `mapstructure:"target_template" json:"target_template" db:"target_template"`
}

// DefaultLabelPolicy is used whenever a RepoConfig does not override it.
func DefaultLabelPolicy() LabelPolicy {
	return LabelPolicy{
		Pattern:        `^backport-(.+)$`,
		TargetTemplate: "release/$1",
	}
}

// RepoConfig is the per-RepoKey policy snapshot read by the Event Normalizer,
// the Notifier and the issue-tracker Coordinator. Absence of a RepoConfig for a RepoKey is valid — the
// event is still processed, but the Notifier falls back to direct-only
// messages and warns once.
type RepoConfig struct {
	ID              int64  `json:"id"                db:"id"`
	Host            string `json:"host"              db:"host"`
	Owner           string `json:"owner"             db:"owner"`
	Repo            string `json:"repo"              db:"repo"`
	ChatChannel     string `json:"chat_channel"      db:"chat_channel"`
	ForcePushNotify bool   `json:"force_push_notify" db:"force_push_notify"`
	BackportEnabled bool   `json:"backport_enabled"  db:"backport_enabled"`
	IssueTracker    bool   `json:"issue_tracker"     db:"issue_tracker"`
	LabelPattern    string `json:"label_pattern"     db:"label_pattern"`
	TargetTemplate  string `json:"target_template"   db:"target_template"`
}

// Key reconstructs the RepoKey this config belongs to.
func (c RepoConfig) Key() RepoKey {
	return RepoKey{Host: c.Host, Owner: c.Owner, Repo: c.Repo}
}

// Policy returns the repo's effective label policy, falling back to the
// package default when the config leaves it unset.
func (c RepoConfig) Policy() LabelPolicy {
	if c.LabelPattern == "" || c.TargetTemplate == "" {
		return DefaultLabelPolicy()
	}
	return LabelPolicy{Pattern: c.LabelPattern, TargetTemplate: c.TargetTemplate}
}

// UserMapping maps a host-scoped hosting-platform login to a chat handle.
// Lookups that miss fall back to replacing "-" with "." in the login.
type UserMapping struct {
	ID           int64  `json:"id"            db:"id"`
	Host         string `json:"host"          db:"host"`
	HostingLogin string `json:"hosting_login" db:"hosting_login"`
	ChatHandle   string `json:"chat_handle"   db:"chat_handle"`
	Muted        bool   `json:"muted"         db:"muted"`
}

// FallbackChatHandle derives the default chat handle for a login that has no
// explicit UserMapping row.
func FallbackChatHandle(login string) string {
	out := make([]rune, 0, len(login))
	for _, r := range login {
		if r == '-' {
			out = append(out, '.')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// User identifies a hosting-platform account attached to an event.
type User struct {
	Login string `json:"login"`
}

// PullRequest is the subset of hosting-platform pull-request state the core
// engine needs.
type PullRequest struct {
	Number         int      `json:"number"`
	HeadRef        string   `json:"head_ref"`
	BaseRef        string   `json:"base_ref"`
	Merged         bool     `json:"merged"`
	MergeCommitSHA string   `json:"merge_commit_sha"`
	Title          string   `json:"title"`
	Body           string   `json:"body"`
	User           User     `json:"user"`
	Assignees      []User   `json:"assignees"`
	Labels         []string `json:"labels"`
	HTMLURL        string   `json:"html_url"`
}

// AssigneeLogins returns the plain login strings for PR.Assignees.
func (p PullRequest) AssigneeLogins() []string {
	out := make([]string, 0, len(p.Assignees))
	for _, a := range p.Assignees {
		out = append(out, a.Login)
	}
	return out
}
