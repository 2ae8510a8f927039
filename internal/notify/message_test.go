package notify

import "testing"

func TestEscapeChatText(t *testing.T) {
	got := escapeChatText(`a & b < c > d`)
	want := "a &amp; b &lt; c &gt; d"
	if got != want {
		t.Fatalf("escapeChatText: got %q want %q", got, want)
	}
}

func TestLink(t *testing.T) {
	got := link("https://example.com/a&b", "Title <x>")
	want := "<https://example.com/a&amp;b|Title &lt;x&gt;>"
	if got != want {
		t.Fatalf("link: got %q want %q", got, want)
	}
}

func TestAppendRepoLink(t *testing.T) {
	got := appendRepoLink("hello", "https://github.com/acme/widget", "acme/widget")
	want := "hello (<https://github.com/acme/widget|acme/widget>)"
	if got != want {
		t.Fatalf("appendRepoLink: got %q want %q", got, want)
	}
}

func TestRecipientSetExcludesSenderAndMuted(t *testing.T) {
	muted := map[string]bool{"carol": true}
	got := recipientSet(
		[]string{"bob-jones", "carol"},
		"alice",
		"bob-jones",
		func(login string) bool { return muted[login] },
	)
	want := []string{"alice"}
	if len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("recipientSet: got %v want %v", got, want)
	}
}

func TestRecipientSetDeduplicatesSubjectAsAssignee(t *testing.T) {
	got := recipientSet([]string{"alice"}, "alice", "", func(string) bool { return false })
	if len(got) != 1 || got[0] != "alice" {
		t.Fatalf("recipientSet: got %v, want single alice", got)
	}
}
