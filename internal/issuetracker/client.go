// Package issuetracker implements PR lifecycle transitions and annotations
// on a JIRA-like issue tracker, driven by issue keys parsed out of PR
// titles.
package issuetracker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	jira "github.com/andygrunwald/go-jira"

	"github.com/octobot-dev/octobot/internal/config"
)

// Client is the typed set of issue-tracker operations the Coordinator
// depends on, wrapping github.com/andygrunwald/go-jira the way
// internal/hosting wraps go-github: a thin session scoped to one tracker,
// returning plain errors the Coordinator logs and surfaces to chat.
type Client struct {
	jc *jira.Client
}

// NewClient builds a Client authenticated against cfg.BaseURL with basic
// auth (username/token), matching go-jira's BasicAuthTransport.
func NewClient(cfg config.IssueTrackerConfig) (*Client, error) {
	tp := jira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.Token,
		Transport: &http.Transport{
			// #nosec G402 -- default TLS config; the issue tracker base URL is operator-configured, not user input
		},
	}
	httpClient := tp.Client()
	httpClient.Timeout = 30 * time.Second

	jc, err := jira.NewClient(httpClient, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("building issue tracker client: %w", err)
	}
	return &Client{jc: jc}, nil
}

// GetIssue fetches an issue by key, returning nil (not an error) when the
// tracker reports 404 — a PR title matching an unknown or mistyped key is
// common and should not fail the whole transition pass.
func (c *Client) GetIssue(ctx context.Context, key string) (*jira.Issue, error) {
	issue, resp, err := c.jc.Issue.GetWithContext(ctx, key, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching issue %s: %w", key, err)
	}
	return issue, nil
}

// AddComment appends a plain-text comment to an issue.
func (c *Client) AddComment(ctx context.Context, key, body string) error {
	_, _, err := c.jc.Issue.AddCommentWithContext(ctx, key, &jira.Comment{Body: body})
	if err != nil {
		return fmt.Errorf("commenting on %s: %w", key, err)
	}
	return nil
}

// TransitionTo moves an issue to the first of targetStates its current
// transition list permits, matching by the transition's destination status
// name. Returns false (no error) if none of targetStates is reachable from
// the issue's current status — a no-op the Coordinator logs and moves on
// from, since a tracker's workflow is operator-configured and may not offer
// every configured state from every starting point.
func (c *Client) TransitionTo(ctx context.Context, key string, targetStates []string) (bool, error) {
	transitions, _, err := c.jc.Issue.GetTransitionsWithContext(ctx, key)
	if err != nil {
		return false, fmt.Errorf("listing transitions for %s: %w", key, err)
	}
	for _, want := range targetStates {
		for _, t := range transitions {
			if t.To.Name == want {
				if _, err := c.jc.Issue.DoTransitionWithContext(ctx, key, t.ID); err != nil {
					return false, fmt.Errorf("transitioning %s to %s: %w", key, want, err)
				}
				return true, nil
			}
		}
	}
	return false, nil
}

// SetFixVersion sets the named fix-version custom/standard field on an
// issue. fieldName is "fixVersions" for the standard JIRA field or a
// "customfield_NNNNN" id for a custom one; both are valid issue-update keys.
func (c *Client) SetFixVersion(ctx context.Context, key, fieldName, version string) error {
	update := map[string]interface{}{
		fieldName: []map[string]string{{"name": version}},
	}
	_, err := c.jc.Issue.UpdateIssueWithContext(ctx, key, map[string]interface{}{"fields": update})
	if err != nil {
		return fmt.Errorf("setting fix version on %s: %w", key, err)
	}
	return nil
}

// TransitionWithResolution behaves like TransitionTo but additionally sets
// the issue's resolution field in the same transition call. go-jira's typed
// DoTransition doesn't accept extra fields, so this issues the transition
// request directly the way the library's own docs recommend for endpoints
// its typed API doesn't cover.
func (c *Client) TransitionWithResolution(ctx context.Context, key string, targetStates []string, resolution string) (bool, error) {
	transitions, _, err := c.jc.Issue.GetTransitionsWithContext(ctx, key)
	if err != nil {
		return false, fmt.Errorf("listing transitions for %s: %w", key, err)
	}
	for _, want := range targetStates {
		for _, t := range transitions {
			if t.To.Name != want {
				continue
			}
			payload := map[string]interface{}{
				"transition": map[string]string{"id": t.ID},
			}
			if resolution != "" {
				payload["fields"] = map[string]interface{}{
					"resolution": map[string]string{"name": resolution},
				}
			}
			req, err := c.jc.NewRequestWithContext(ctx, http.MethodPost, "rest/api/2/issue/"+key+"/transitions", payload)
			if err != nil {
				return false, fmt.Errorf("building transition request for %s: %w", key, err)
			}
			resp, err := c.jc.Do(req, nil)
			if err != nil {
				return false, fmt.Errorf("transitioning %s to %s: %w", key, want, err)
			}
			defer resp.Body.Close()
			return true, nil
		}
	}
	return false, nil
}

// SearchInProgressIssues returns the keys of issues in project matching
// states, for the admin "merge versions" operation: aggregating in-progress
// issues to bulk-set a fix version.
func (c *Client) SearchInProgressIssues(ctx context.Context, project string, states []string) ([]string, error) {
	jql := fmt.Sprintf("project = %q AND status in (%s)", project, quoteJoin(states))
	result, _, err := c.jc.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{MaxResults: 200})
	if err != nil {
		return nil, fmt.Errorf("searching project %s: %w", project, err)
	}
	keys := make([]string, 0, len(result))
	for _, issue := range result {
		keys = append(keys, issue.Key)
	}
	return keys, nil
}

func quoteJoin(states []string) string {
	out := ""
	for i, s := range states {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%q", s)
	}
	return out
}
