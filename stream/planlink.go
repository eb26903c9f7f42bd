package stream

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// planTailSize is how much already-scanned text is kept so that a marker or
// filename split across two reads is still found.
const planTailSize = 512

// PlanDetector finds references to plan documents in terminal output and
// reports each filename once.
type PlanDetector struct {
	markers   []string
	extension string
	tail      string
	seen      map[string]struct{}
}

func NewPlanDetector(markers []string, extension string) *PlanDetector {
	return &PlanDetector{
		markers:   markers,
		extension: extension,
		seen:      make(map[string]struct{}),
	}
}

// Scan returns filenames seen for the first time, in stream order.
func (d *PlanDetector) Scan(text string) []string {
	window := d.tail + text
	d.tail = keepTail(window, planTailSize)

	type hit struct {
		pos  int
		name string
	}
	var hits []hit
	for _, marker := range d.markers {
		if marker == "" {
			continue
		}
		from := 0
		for {
			idx := strings.Index(window[from:], marker)
			if idx < 0 {
				break
			}
			start := from + idx + len(marker)
			name, complete := d.filenameAt(window[start:])
			if complete {
				hits = append(hits, hit{pos: start, name: name})
			}
			from = start
		}
	}

	// Both marker styles may appear in one window; report in stream order.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	var found []string
	for _, h := range hits {
		if _, ok := d.seen[h.name]; ok {
			continue
		}
		d.seen[h.name] = struct{}{}
		found = append(found, h.name)
	}
	return found
}

// filenameAt reads a filename from the start of s, stopping at a control
// character, space or quote. A name that runs to the end of s counts only
// if it already carries the extension.
func (d *PlanDetector) filenameAt(s string) (string, bool) {
	end := strings.IndexFunc(s, isFilenameTerminator)
	if end < 0 {
		end = len(s)
	}
	name := s[:end]
	if len(name) <= len(d.extension) || !strings.HasSuffix(name, d.extension) {
		return "", false
	}
	return name, true
}

func isFilenameTerminator(r rune) bool {
	return r < 0x20 || r == 0x7f || r == ' ' || r == '\'' || r == '"'
}

// keepTail returns at most n trailing bytes of s, starting on a rune boundary.
func keepTail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}
