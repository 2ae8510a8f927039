// Package backport implements the Backport Engine: the state machine that
// turns a merged, labeled pull request into a derived PR on a release
// branch via real git worktree operations.
package backport

import (
	"regexp"
	"strconv"
	"strings"
)

// lastSegment returns the final "/"-delimited component of a ref, e.g.
// "release/1.2" -> "1.2", "main" -> "main".
func lastSegment(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// DeriveBranchName names the backport branch from the source PR's head and
// the backport target: "<src_head_last_segment>-<target_last_segment>".
func DeriveBranchName(headRef, targetBranch string) string {
	return lastSegment(headRef) + "-" + lastSegment(targetBranch)
}

var trailingPRRefPattern = regexp.MustCompile(`\s*\(#\d+\)\s*$`)

// withoutRelease strips a leading "release" last-segment down to whatever
// follows it, so "release/1.2" reads as "1.2" in a rewritten title; a
// branch with no "release" prefix passes through unchanged.
func withoutRelease(ref string) string {
	seg := lastSegment(ref)
	return strings.TrimPrefix(seg, "release")
}

// RewriteTitle composes the derived PR's title from the original PR's
// title, the branch it was originally based on, and the backport target.
// Trailing "(#N)" PR-reference suffixes are stripped from the original
// title before the new prefix is added.
func RewriteTitle(origBase, targetBranch, origTitle string) string {
	clean := trailingPRRefPattern.ReplaceAllString(origTitle, "")
	return withoutRelease(origBase) + "->" + withoutRelease(targetBranch) + ": " + clean
}

// RewriteBody composes the derived commit/PR body: the original body
// trimmed, a blank line, then a cherry-pick provenance note.
func RewriteBody(origBody, shortSHA string, srcPRNumber int) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(origBody))
	b.WriteString("\n\n(cherry-picked from ")
	b.WriteString(shortSHA)
	b.WriteString(", PR #")
	b.WriteString(strconv.Itoa(srcPRNumber))
	b.WriteString(")")
	return b.String()
}
