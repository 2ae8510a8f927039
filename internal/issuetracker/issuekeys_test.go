package issuetracker

import (
	"reflect"
	"testing"
)

func TestParseIssueKeys(t *testing.T) {
	cases := []struct {
		title string
		want  []string
	}{
		{"PROJ-123: fix the thing", []string{"PROJ-123"}},
		{"no issue here", nil},
		{"PROJ-1 and PROJ-1 again, plus OPS-42", []string{"PROJ-1", "OPS-42"}},
		{"lowercase-123 is not a key", nil},
	}
	for _, tc := range cases {
		got := ParseIssueKeys(tc.title)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ParseIssueKeys(%q) = %v, want %v", tc.title, got, tc.want)
		}
	}
}

func TestVersionFromBranch(t *testing.T) {
	cases := map[string]string{
		"release/1.5": "1.5",
		"main":         "",
		"feature/x":    "",
	}
	for in, want := range cases {
		if got := versionFromBranch(in); got != want {
			t.Errorf("versionFromBranch(%q) = %q, want %q", in, got, want)
		}
	}
}
