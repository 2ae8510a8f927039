package backport

import "testing"

func TestDeriveBranchName(t *testing.T) {
	cases := []struct {
		head, target, want string
	}{
		{"feature/add-thing", "release/1.2", "add-thing-1.2"},
		{"fix-bug", "master", "fix-bug-master"},
		{"a/b/c", "x/y/z", "c-z"},
	}
	for _, c := range cases {
		got := DeriveBranchName(c.head, c.target)
		if got != c.want {
			t.Errorf("DeriveBranchName(%q, %q) = %q, want %q", c.head, c.target, got, c.want)
		}
	}
}

func TestRewriteTitleStripsPRReferenceAndPrefixes(t *testing.T) {
	got := RewriteTitle("release/2.0", "release/1.2", "Fix the widget (#42)")
	want := "2.0->1.2: Fix the widget"
	if got != want {
		t.Errorf("RewriteTitle = %q, want %q", got, want)
	}
}

func TestRewriteTitleWithoutReleasePrefixPassesThrough(t *testing.T) {
	got := RewriteTitle("main", "release/1.2", "Fix the widget")
	want := "main->1.2: Fix the widget"
	if got != want {
		t.Errorf("RewriteTitle = %q, want %q", got, want)
	}
}

func TestRewriteBodyAppendsProvenance(t *testing.T) {
	got := RewriteBody("  original body text  \n", "abc1234", 42)
	want := "original body text\n\n(cherry-picked from abc1234, PR #42)"
	if got != want {
		t.Errorf("RewriteBody = %q, want %q", got, want)
	}
}

func TestRewriteBodyHandlesEmptyBody(t *testing.T) {
	got := RewriteBody("   ", "abc1234", 7)
	want := "\n\n(cherry-picked from abc1234, PR #7)"
	if got != want {
		t.Errorf("RewriteBody = %q, want %q", got, want)
	}
}
