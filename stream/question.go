package stream

import (
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
)

// QuestionOptions are the trigger strings for prompt detection. They follow
// one CLI's rendering and are loaded from configuration.
type QuestionOptions struct {
	Prefix          string
	Exclusions      []string
	ConfirmSuffixes []string
	NavHints        []string
	DedupWindow     time.Duration
}

// QuestionDetector recognises interactive prompts in terminal output.
type QuestionDetector struct {
	opts   QuestionOptions
	last   string
	lastAt time.Time
	now    func() time.Time
}

func NewQuestionDetector(opts QuestionOptions) *QuestionDetector {
	return &QuestionDetector{opts: opts, now: time.Now}
}

// Scan returns the detected question text, unless it repeats the previous
// question within the dedup window.
func (d *QuestionDetector) Scan(text string) (string, bool) {
	q, ok := d.match(text)
	if !ok {
		return "", false
	}

	now := d.now()
	if q == d.last && !d.lastAt.IsZero() && now.Sub(d.lastAt) < d.opts.DedupWindow {
		return "", false
	}
	d.last = q
	d.lastAt = now
	return q, true
}

func (d *QuestionDetector) match(text string) (string, bool) {
	plain := ansi.Strip(text)
	lines := splitLines(plain)

	for _, line := range lines {
		if d.opts.Prefix != "" && strings.HasPrefix(line, d.opts.Prefix) && !d.excluded(line) {
			q := strings.TrimSpace(strings.TrimPrefix(line, d.opts.Prefix))
			if q != "" {
				return q, true
			}
		}
		for _, suffix := range d.opts.ConfirmSuffixes {
			if suffix != "" && strings.HasSuffix(line, suffix) {
				return line, true
			}
		}
	}

	if !d.fullScreenPrompt(plain) {
		return "", false
	}
	for _, line := range lines {
		if strings.HasSuffix(line, "?") {
			return line, true
		}
	}
	return "", false
}

func (d *QuestionDetector) excluded(line string) bool {
	for _, ex := range d.opts.Exclusions {
		if ex != "" && strings.HasPrefix(line, ex) {
			return true
		}
	}
	return false
}

// fullScreenPrompt reports whether every navigation hint is on screen, as in
// a selection menu.
func (d *QuestionDetector) fullScreenPrompt(plain string) bool {
	if len(d.opts.NavHints) == 0 {
		return false
	}
	for _, hint := range d.opts.NavHints {
		if !strings.Contains(plain, hint) {
			return false
		}
	}
	return true
}

func splitLines(s string) []string {
	raw := strings.FieldsFunc(s, func(r rune) bool { return r == '\r' || r == '\n' })
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
