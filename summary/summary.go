// Package summary recognises completion summaries in agent messages and keeps
// them as numbered markdown documents per project and session.
package summary

import (
	"strings"
)

// minLooseLength is the size above which softer summary signals count.
const minLooseLength = 200

// IsCompletionSummary reports whether text reads like an end-of-task summary:
// a standalone Summary heading anywhere, or long text that mentions a summary
// or carries numbered steps.
func IsCompletionSummary(text string) bool {
	lines := strings.Split(text, "\n")
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "# Summary" || t == "## Summary" {
			return true
		}
	}

	if len(text) <= minLooseLength {
		return false
	}

	if strings.Contains(strings.ToLower(text), "summary") {
		return true
	}

	for _, l := range lines {
		t := strings.TrimLeft(l, " \t\r")
		if strings.HasPrefix(t, "1.") || strings.HasPrefix(t, "Fix 1:") || strings.HasPrefix(t, "Step 1") {
			return true
		}
	}
	return false
}

// EncodeProjectPath converts a working directory into the agent's project
// directory name: "C:\dev\app" becomes "C--dev-app" and "/home/u/app"
// becomes "-home-u-app".
func EncodeProjectPath(path string) string {
	s := strings.ReplaceAll(path, "/", "\\")
	s = strings.ReplaceAll(s, ":\\", "--")
	return strings.ReplaceAll(s, "\\", "-")
}
