package stream

import (
	"reflect"
	"testing"
)

func newPlanDetector() *PlanDetector {
	return NewPlanDetector([]string{".claude\\plans\\", ".claude/plans/"}, ".md")
}

func TestPlanDetector_Scan(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   [][]string
	}{
		{
			name:   "unix path",
			chunks: []string{"Wrote /home/u/.claude/plans/happy-otter.md\r\n"},
			want:   [][]string{{"happy-otter.md"}},
		},
		{
			name:   "windows path in quotes",
			chunks: []string{`saved "C:\Users\u\.claude\plans\plan-1.md" ok`},
			want:   [][]string{{"plan-1.md"}},
		},
		{
			name:   "wrong extension",
			chunks: []string{".claude/plans/notes.txt "},
			want:   [][]string{nil},
		},
		{
			name:   "bare extension is not a name",
			chunks: []string{".claude/plans/.md "},
			want:   [][]string{nil},
		},
		{
			name:   "marker split across reads",
			chunks: []string{".claude/plans/fo", "o.md "},
			want:   [][]string{nil, {"foo.md"}},
		},
		{
			name:   "marker itself split",
			chunks: []string{"see .clau", "de/plans/bar.md\n"},
			want:   [][]string{nil, {"bar.md"}},
		},
		{
			name:   "repeat is suppressed",
			chunks: []string{".claude/plans/a.md ", "again .claude/plans/a.md ", ".claude/plans/b.md "},
			want:   [][]string{{"a.md"}, nil, {"b.md"}},
		},
		{
			name:   "two in one chunk",
			chunks: []string{".claude/plans/x.md and .claude\\plans\\y.md\n"},
			want:   [][]string{{"x.md", "y.md"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newPlanDetector()
			for i, chunk := range tt.chunks {
				got := d.Scan(chunk)
				if !reflect.DeepEqual(got, tt.want[i]) {
					t.Errorf("chunk %d: got %v, want %v", i, got, tt.want[i])
				}
			}
		})
	}
}

func TestPlanDetector_TailIsBounded(t *testing.T) {
	d := newPlanDetector()
	big := make([]byte, 10*planTailSize)
	for i := range big {
		big[i] = 'x'
	}
	d.Scan(string(big))
	if len(d.tail) > planTailSize {
		t.Errorf("tail grew to %d bytes", len(d.tail))
	}
}
