package gitrunner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	r := New(dir, nil)
	ctx := context.Background()

	for _, args := range [][]string{
		{"init"},
		{"config", "user.email", "octobot@example.com"},
		{"config", "user.name", "octobot"},
	} {
		if _, err := r.Run(ctx, args...); err != nil {
			t.Fatalf("git %v: %v", args, err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run(ctx, "add", "a.txt"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := r.Run(ctx, "commit", "-m", "initial"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return dir
}

func TestRunExecutesGitInDir(t *testing.T) {
	dir := initRepo(t)
	r := New(dir, nil)

	out, err := r.Run(context.Background(), "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		t.Fatalf("rev-parse: %v", err)
	}
	if out != "master" && out != "main" {
		t.Fatalf("unexpected branch name %q", out)
	}
}

func TestRunReturnsStructuredErrorWithStderr(t *testing.T) {
	dir := initRepo(t)
	r := New(dir, nil)

	_, err := r.Run(context.Background(), "cherry-pick", "deadbeef")
	if err == nil {
		t.Fatal("expected cherry-pick of an unknown sha to fail")
	}
	var gitErr *Error
	if !errors.As(err, &gitErr) {
		t.Fatalf("expected *gitrunner.Error, got %T: %v", err, err)
	}
	if gitErr.Stderr == "" {
		t.Fatal("expected stderr to be captured")
	}
}

func TestRunStdinFeedsCommitMessage(t *testing.T) {
	dir := initRepo(t)
	r := New(dir, nil)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("two\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run(ctx, "add", "a.txt"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := r.RunStdin(ctx, []byte("rewritten subject\n\nbody line\n"), "commit", "-F", "-"); err != nil {
		t.Fatalf("commit -F -: %v", err)
	}

	out, err := r.Run(ctx, "log", "-1", "--pretty=%B")
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if !strings.Contains(out, "rewritten subject") {
		t.Fatalf("expected rewritten commit message, got %q", out)
	}
}

func TestWriteCredentialHelperProducesUsableEnv(t *testing.T) {
	env, cleanup, err := WriteCredentialHelper("github.com", "octobot", "s3cr3t")
	if err != nil {
		t.Fatalf("WriteCredentialHelper: %v", err)
	}
	defer cleanup()
	var path string
	for _, e := range env {
		if strings.HasPrefix(e, "GIT_ASKPASS=") {
			path = strings.TrimPrefix(e, "GIT_ASKPASS=")
		}
	}
	if path == "" {
		t.Fatal("expected GIT_ASKPASS in env")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("helper script missing: %v", err)
	}
	if info.Mode()&0o100 == 0 {
		t.Fatal("expected helper script to be executable")
	}

	match, err := exec.Command(path, "Password for 'octobot@github.com': ").CombinedOutput()
	if err != nil {
		t.Fatalf("askpass script on matching prompt: %v (%s)", err, match)
	}
	if strings.TrimSpace(string(match)) != "s3cr3t" {
		t.Fatalf("expected token on matching prompt, got %q", match)
	}

	mismatch, err := exec.Command(path, "Password for 'someone@other.example': ").CombinedOutput()
	if err == nil {
		t.Fatal("expected non-zero exit on mismatched prompt")
	}
	if strings.TrimSpace(string(mismatch)) != PromptMismatch {
		t.Fatalf("expected sentinel on mismatched prompt, got %q", mismatch)
	}
}
