package notify

import "strings"

// escapeChatText escapes the three characters the chat wire format treats
// specially.
func escapeChatText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

// link renders a chat-wire-form hyperlink: "<url|text>", with both url and
// text escaped independently.
func link(url, text string) string {
	return "<" + escapeChatText(url) + "|" + escapeChatText(text) + ">"
}

// appendRepoLink composes the channel/direct message body: the caller's
// message with the repo link appended in parentheses.
func appendRepoLink(message, repoURL, repoFullName string) string {
	return message + " (" + link(repoURL, repoFullName) + ")"
}

// recipientSet computes the deterministic fan-out set for a notification:
// assignees plus subjectLogin, minus senderLogin, minus any login whose
// resolved chat handle is muted. Order follows assignees then subject, with
// duplicates collapsed.
func recipientSet(assignees []string, subjectLogin, senderLogin string, muted func(login string) bool) []string {
	seen := make(map[string]bool, len(assignees)+1)
	out := make([]string, 0, len(assignees)+1)
	add := func(login string) {
		if login == "" || login == senderLogin || seen[login] || muted(login) {
			return
		}
		seen[login] = true
		out = append(out, login)
	}
	for _, a := range assignees {
		add(a)
	}
	add(subjectLogin)
	return out
}
