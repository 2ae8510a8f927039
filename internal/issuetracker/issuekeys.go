package issuetracker

import "regexp"

// issueKeyPattern matches JIRA-style issue keys: an uppercase letter followed
// by one or more uppercase letters or digits, a hyphen, then digits
// (e.g. "PROJ-123"). Re-used across a PR
// title, so a title naming several issues transitions all of them.
var issueKeyPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9]+-\d+\b`)

// ParseIssueKeys extracts every issue key referenced in s, in order of
// first appearance, de-duplicated.
func ParseIssueKeys(s string) []string {
	matches := issueKeyPattern.FindAllString(s, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
