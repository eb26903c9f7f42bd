package summary

import (
	"strings"
	"testing"
)

func TestIsCompletionSummary(t *testing.T) {
	long := strings.Repeat("Refactored the watcher loop and fixed tests. ", 6)

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"h1 heading", "Done.\n# Summary\n- fixed it", true},
		{"h2 heading indented", "  ## Summary  \nshort", true},
		{"heading inside line", "See ## Summary below", false},
		{"short mention", "summary: done", false},
		{"long mention", long + "In summary, all green.", true},
		{"long numbered", long + "\n  1. moved files\n  2. fixed imports", true},
		{"long fix list", long + "\nFix 1: null check", true},
		{"long step list", long + "\nStep 1 - build", true},
		{"long prose", long, false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCompletionSummary(tt.text); got != tt.want {
				t.Errorf("IsCompletionSummary() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeProjectPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{`C:\dev\profile-server`, "C--dev-profile-server"},
		{`C:\dev\profile-server\.worktrees\aero-planning`, "C--dev-profile-server-.worktrees-aero-planning"},
		{"/home/u/projects/my-app", "-home-u-projects-my-app"},
		{"C:/mixed/sep", "C--mixed-sep"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := EncodeProjectPath(tt.path); got != tt.want {
				t.Errorf("EncodeProjectPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
