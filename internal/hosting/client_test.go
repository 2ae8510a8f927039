package hosting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	gogithub "github.com/google/go-github/v68/github"

	"github.com/octobot-dev/octobot/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gh := gogithub.NewClient(srv.Client())
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	gh.BaseURL = base
	return &Client{gh: gh, host: "github.com"}
}

func TestGetPullRequestConvertsFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widget/pulls/7" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"number":           7,
			"merged":           true,
			"merge_commit_sha": "abc123",
			"title":            "Fix the thing",
			"head":             map[string]any{"ref": "feature/x"},
			"base":             map[string]any{"ref": "main"},
			"user":             map[string]any{"login": "alice"},
		})
	})

	pr, err := c.GetPullRequest(context.Background(), models.RepoKey{Owner: "acme", Repo: "widget"}, 7)
	if err != nil {
		t.Fatalf("GetPullRequest: %v", err)
	}
	if !pr.Merged || pr.MergeCommitSHA != "abc123" || pr.User.Login != "alice" {
		t.Fatalf("unexpected conversion: %+v", pr)
	}
}

func TestCreatePullRequestWrapsDecodedErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "Validation Failed",
			"errors":  []map[string]any{{"message": "A pull request already exists"}},
		})
	})

	_, err := c.CreatePullRequest(context.Background(), models.RepoKey{Owner: "acme", Repo: "widget"}, CreatePullRequestOptions{
		Title: "t", Body: "b", Head: "h", Base: "m",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var hostErr *Error
	if e, ok := err.(*Error); ok {
		hostErr = e
	} else {
		t.Fatalf("expected *hosting.Error, got %T", err)
	}
	if hostErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", hostErr.StatusCode)
	}
	if len(hostErr.Messages) == 0 {
		t.Fatal("expected decoded error messages")
	}
}

func TestListLabelsReturnsNames(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{{"name": "backport-1.2"}, {"name": "bug"}})
	})

	labels, err := c.ListLabels(context.Background(), models.RepoKey{Owner: "acme", Repo: "widget"}, 7)
	if err != nil {
		t.Fatalf("ListLabels: %v", err)
	}
	if len(labels) != 2 || labels[0] != "backport-1.2" {
		t.Fatalf("unexpected labels: %v", labels)
	}
}
