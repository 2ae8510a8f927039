package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/octobot-dev/octobot/models"
)

// backportJobRow mirrors models.BackportJob with the repo key flattened into
// columns, since the reflection-based mini-ORM scans one struct per row.
type backportJobRow struct {
	ID                int64  `db:"id"`
	Host              string `db:"host"`
	Owner             string `db:"owner"`
	Repo              string `db:"repo"`
	SrcPRNumber       int    `db:"src_pr_number"`
	MergeCommitSHA    string `db:"merge_commit_sha"`
	TargetBranch      string `db:"target_branch"`
	DerivedBranchName string `db:"derived_branch_name"`
	OrigBase          string `db:"orig_base"`
	State             string `db:"state"`
	FailureReason     string `db:"failure_reason"`
	ResultPRNumber    int    `db:"result_pr_number"`
}

func (r backportJobRow) toModel() models.BackportJob {
	return models.BackportJob{
		ID:                r.ID,
		RepoKey:           models.RepoKey{Host: r.Host, Owner: r.Owner, Repo: r.Repo},
		SrcPRNumber:       r.SrcPRNumber,
		MergeCommitSHA:    r.MergeCommitSHA,
		TargetBranch:      r.TargetBranch,
		DerivedBranchName: r.DerivedBranchName,
		OrigBase:          r.OrigBase,
		State:             models.BackportState(r.State),
		FailureReason:     r.FailureReason,
		ResultPRNumber:    r.ResultPRNumber,
	}
}

func fromModel(j models.BackportJob) backportJobRow {
	return backportJobRow{
		ID:                j.ID,
		Host:              j.RepoKey.Host,
		Owner:             j.RepoKey.Owner,
		Repo:              j.RepoKey.Repo,
		SrcPRNumber:       j.SrcPRNumber,
		MergeCommitSHA:    j.MergeCommitSHA,
		TargetBranch:      j.TargetBranch,
		DerivedBranchName: j.DerivedBranchName,
		OrigBase:          j.OrigBase,
		State:             string(j.State),
		FailureReason:     j.FailureReason,
		ResultPRNumber:    j.ResultPRNumber,
	}
}

// FindBackportJob looks up a previously recorded job by its idempotency key
// (repo, src PR, target branch). Absence is not an error — callers treat a
// miss as "never attempted".
func FindBackportJob(ctx context.Context, db DB, key models.RepoKey, srcPR int, targetBranch string) (models.BackportJob, bool, error) {
	var row backportJobRow
	err := db.Get(ctx, &row, `SELECT id, host, owner, repo, src_pr_number, merge_commit_sha,
		target_branch, derived_branch_name, orig_base, state, failure_reason, result_pr_number
		FROM backport_jobs WHERE host = ? AND owner = ? AND repo = ? AND src_pr_number = ? AND target_branch = ?`,
		key.Host, key.Owner, key.Repo, srcPR, targetBranch)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BackportJob{}, false, nil
	}
	if err != nil {
		return models.BackportJob{}, false, err
	}
	return row.toModel(), true, nil
}

// CreateBackportJob records a new job in BackportPending and returns it with
// its assigned ID.
func CreateBackportJob(ctx context.Context, db DB, job models.BackportJob) (models.BackportJob, error) {
	job.State = models.BackportPending
	row := fromModel(job)
	id, err := db.Insert(ctx, "backport_jobs", row)
	if err != nil {
		return models.BackportJob{}, err
	}
	job.ID = id
	return job, nil
}

// UpdateBackportJobState persists a state transition plus any fields the
// current step populated (derived branch name, failure reason, result PR).
func UpdateBackportJobState(ctx context.Context, db DB, job models.BackportJob) error {
	row := fromModel(job)
	return db.Update(ctx, "backport_jobs", row, "id = ?", job.ID)
}
