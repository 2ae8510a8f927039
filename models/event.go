package models

// EventKind is the value of the X-GitHub-Event-style header the Signed
// Ingress uses to classify a webhook before handing it to the Normalizer.
type EventKind string

const (
	EventPing                  EventKind = "ping"
	EventPush                  EventKind = "push"
	EventPullRequest           EventKind = "pull_request"
	EventPullRequestReview     EventKind = "pull_request_review"
	EventPullRequestReviewComm EventKind = "pull_request_review_comment"
	EventIssueComment          EventKind = "issue_comment"
	EventCommitComment         EventKind = "commit_comment"
	EventStatus                EventKind = "status"
)

// Repository identifies the repo a webhook fired for, in hosting-platform
// wire form (used to derive a RepoKey).
type Repository struct {
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
}

// WebhookEvent is the tagged variant the Normalizer produces. Kind selects
// which group of variant fields below is populated; callers should switch on
// Kind.
type WebhookEvent struct {
	Kind       EventKind
	RepoKey    RepoKey
	Repository Repository
	Sender     User

	// PullRequest variant fields.
	Action string // opened|closed|reopened|assigned|unassigned|labeled
	PR     *PullRequest
	Label  string // populated for the "labeled" action

	// Review variant fields.
	ReviewState string // approved|changes_requested|commented
	ReviewBody  string

	// Comment variant fields (review comment, issue comment, commit comment).
	CommentBody string

	// Status variant fields.
	StatusState string // success|failure|error|pending
	StatusDesc  string
	StatusURL   string
}

// IsEmptyComment reports whether the event carries a whitespace-only or
// absent comment/review body — such events never produce a notification.
func (e WebhookEvent) IsEmptyComment(trim func(string) string) bool {
	body := e.CommentBody
	if e.Kind == EventPullRequestReview {
		body = e.ReviewBody
	}
	return trim(body) == ""
}
