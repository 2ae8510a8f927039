package normalizer

import "github.com/octobot-dev/octobot/models"

// These structs mirror the hosting platform's webhook JSON wire format
// (GitHub-compatible) closely enough to extract what the core needs; they
// are intentionally partial — fields nothing downstream reads are left out
// rather than modeled faithfully.

type wireUser struct {
	Login string `json:"login"`
}

type wireRepository struct {
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
}

type wireLabel struct {
	Name string `json:"name"`
}

type wirePullRequest struct {
	Number    int         `json:"number"`
	Title     string      `json:"title"`
	Body      string      `json:"body"`
	Merged    bool        `json:"merged"`
	HTMLURL   string      `json:"html_url"`
	User      wireUser    `json:"user"`
	Assignees []wireUser  `json:"assignees"`
	Labels    []wireLabel `json:"labels"`
	Head      struct {
		Ref string `json:"ref"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
	MergeCommitSHA string `json:"merge_commit_sha"`
}

type wirePullRequestPayload struct {
	Action      string          `json:"action"`
	Number      int             `json:"number"`
	PullRequest wirePullRequest `json:"pull_request"`
	Label       wireLabel       `json:"label"`
	Repository  wireRepository  `json:"repository"`
	Sender      wireUser        `json:"sender"`
}

type wireReviewPayload struct {
	Action string `json:"action"`
	Review struct {
		State string `json:"state"`
		Body  string `json:"body"`
	} `json:"review"`
	PullRequest wirePullRequest `json:"pull_request"`
	Repository  wireRepository  `json:"repository"`
	Sender      wireUser        `json:"sender"`
}

type wireCommentPayload struct {
	Action  string `json:"action"`
	Comment struct {
		Body string `json:"body"`
	} `json:"comment"`
	Repository wireRepository `json:"repository"`
	Sender     wireUser       `json:"sender"`
}

type wireStatusPayload struct {
	State       string         `json:"state"`
	Description string         `json:"description"`
	TargetURL   string         `json:"target_url"`
	Repository  wireRepository `json:"repository"`
	Sender      wireUser       `json:"sender"`
}

func (p wirePullRequest) toModel() *models.PullRequest {
	assignees := make([]models.User, 0, len(p.Assignees))
	for _, a := range p.Assignees {
		assignees = append(assignees, models.User{Login: a.Login})
	}
	labels := make([]string, 0, len(p.Labels))
	for _, l := range p.Labels {
		labels = append(labels, l.Name)
	}
	return &models.PullRequest{
		Number:         p.Number,
		HeadRef:        p.Head.Ref,
		BaseRef:        p.Base.Ref,
		Merged:         p.Merged,
		MergeCommitSHA: p.MergeCommitSHA,
		Title:          p.Title,
		Body:           p.Body,
		User:           models.User{Login: p.User.Login},
		Assignees:      assignees,
		Labels:         labels,
		HTMLURL:        p.HTMLURL,
	}
}
