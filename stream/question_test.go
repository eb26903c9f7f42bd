package stream

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newQuestionDetector(clock *fakeClock) *QuestionDetector {
	d := NewQuestionDetector(QuestionOptions{
		Prefix:          "? ",
		Exclusions:      []string{"? for shortcuts"},
		ConfirmSuffixes: []string{"(y/n)", "(Y/n)"},
		NavHints:        []string{"Enter to select", "to navigate"},
		DedupWindow:     10 * time.Second,
	})
	d.now = clock.now
	return d
}

func TestQuestionDetector_Match(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"prefixed", "? Which file should I edit?\r\n", "Which file should I edit?", true},
		{"escape sequences stripped", "\x1b[1m? Continue?\x1b[0m\n", "Continue?", true},
		{"shortcut footer excluded", "  ? for shortcuts\n", "", false},
		{"confirmation suffix", "Overwrite config.yaml? (y/n)", "Overwrite config.yaml? (y/n)", true},
		{"plain output", "Running tests...\nok\n", "", false},
		{
			"selection menu",
			"Do you want to make this edit?\n❯ 1. Yes\n  2. No\nEnter to select · ↑/↓ to navigate",
			"Do you want to make this edit?",
			true,
		},
		{"one hint is not enough", "Pick one?\nEnter to select", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newQuestionDetector(&fakeClock{t: time.Unix(0, 0)})
			got, ok := d.Scan(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("got (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestQuestionDetector_Dedup(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	d := newQuestionDetector(clock)

	if _, ok := d.Scan("? Proceed?"); !ok {
		t.Fatal("expected first detection")
	}

	clock.t = clock.t.Add(9 * time.Second)
	if _, ok := d.Scan("? Proceed?"); ok {
		t.Error("expected repeat inside window to be suppressed")
	}

	clock.t = clock.t.Add(2 * time.Second)
	if _, ok := d.Scan("? Proceed?"); !ok {
		t.Error("expected repeat after window to be emitted")
	}

	clock.t = clock.t.Add(time.Second)
	if _, ok := d.Scan("? Something else?"); !ok {
		t.Error("expected different question to be emitted")
	}
	if _, ok := d.Scan("? Proceed?"); !ok {
		t.Error("expected earlier question to be emitted after a different one")
	}
}
