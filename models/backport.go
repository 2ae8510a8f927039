package models

import "fmt"

// BackportState enumerates the backport job state machine.
//
//	Pending → Validating → Preparing → CherryPicking → Pushing → Opening → Done
//	any state → Failed{reason}
type BackportState string

const (
	BackportPending       BackportState = "pending"
	BackportValidating    BackportState = "validating"
	BackportPreparing     BackportState = "preparing"
	BackportCherryPicking BackportState = "cherry_picking"
	BackportPushing       BackportState = "pushing"
	BackportOpening       BackportState = "opening"
	BackportDone          BackportState = "done"
	BackportFailed        BackportState = "failed"
)

// BackportJob is derived from a merged PullRequest plus a matching label.
// Its idempotency key is (RepoKey, SrcPRNumber, TargetBranch): re-submitting
// a job whose derived branch already exists on origin must fail, not mutate
// the remote.
type BackportJob struct {
	ID                int64         `json:"id"                  db:"id"`
	RepoKey           RepoKey       `json:"repo_key"`
	SrcPRNumber       int           `json:"src_pr_number"       db:"src_pr_number"`
	MergeCommitSHA    string        `json:"merge_commit_sha"    db:"merge_commit_sha"`
	TargetBranch      string        `json:"target_branch"       db:"target_branch"`
	DerivedBranchName string        `json:"derived_branch_name" db:"derived_branch_name"`
	OrigBase          string        `json:"orig_base"           db:"orig_base"`
	State             BackportState `json:"state"                db:"state"`
	FailureReason     string        `json:"failure_reason"      db:"failure_reason"`
	ResultPRNumber    int           `json:"result_pr_number"    db:"result_pr_number"`
}

// IdempotencyKey identifies jobs that must never run concurrently or be
// silently re-applied.
func (j BackportJob) IdempotencyKey() string {
	return fmt.Sprintf("%s#%d->%s", j.RepoKey.String(), j.SrcPRNumber, j.TargetBranch)
}

// BackportError is a structured failure carrying the state the job failed in
// and, when available, stderr from the git subprocess or the hosting
// platform's decoded error body.
type BackportError struct {
	State   BackportState
	Reason  string
	Stderr  string
	Wrapped error
}

func (e *BackportError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %s: %s", e.State, e.Reason, e.Stderr)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Reason)
}

func (e *BackportError) Unwrap() error { return e.Wrapped }

// NewBackportError constructs a BackportError, capturing the wrapped error's
// message in Reason when Reason is left blank.
func NewBackportError(state BackportState, reason string, stderr string, wrapped error) *BackportError {
	if reason == "" && wrapped != nil {
		reason = wrapped.Error()
	}
	return &BackportError{State: state, Reason: reason, Stderr: stderr, Wrapped: wrapped}
}
