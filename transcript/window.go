// Package transcript keeps bounded, incrementally refreshed views over JSONL
// session transcripts.
package transcript

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrRotated is returned by Poll when the file is shorter than the caller's
// offset. The caller should open the window again.
var ErrRotated = errors.New("transcript was truncated or rotated")

// ErrInvalidOffset is returned by Poll for a negative offset.
var ErrInvalidOffset = errors.New("invalid transcript offset")

type OpenResult struct {
	Items  []Item `json:"items"`
	Offset int64  `json:"offset"`
}

type PollResult struct {
	Items   []Item `json:"items"`
	Offset  int64  `json:"offset"`
	HasNew  bool   `json:"has_new"`
	Evicted int    `json:"evicted"`
}

// Window holds the most recent items of one transcript, at most maxItems.
type Window struct {
	path      string
	tailLines int
	maxItems  int

	mu     sync.Mutex
	items  []Item
	offset int64
}

func NewWindow(path string, tailLines, maxItems int) *Window {
	return &Window{path: path, tailLines: tailLines, maxItems: maxItems}
}

func (w *Window) Path() string {
	return w.path
}

// Open reads the whole file and keeps the items of its last tailLines lines.
// A missing file opens as an empty window at offset 0.
func (w *Window) Open() (OpenResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.items = nil
	w.offset = 0

	data, err := os.ReadFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return OpenResult{Items: []Item{}}, nil
		}
		return OpenResult{}, fmt.Errorf("failed to read transcript: %w", err)
	}

	lines := splitLines(data)
	if len(lines) > w.tailLines {
		lines = lines[len(lines)-w.tailLines:]
	}
	for _, line := range lines {
		w.items = append(w.items, ParseLine(line)...)
	}
	w.evict()
	w.offset = int64(len(data))

	return OpenResult{Items: w.snapshot(), Offset: w.offset}, nil
}

// Poll reads complete lines appended after offset. A trailing line without
// its newline is left for the next poll, so the returned offset can stop
// short of the file length.
func (w *Window) Poll(offset int64) (PollResult, error) {
	if offset < 0 {
		return PollResult{}, fmt.Errorf("%w: %d", ErrInvalidOffset, offset)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.Open(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return PollResult{Items: []Item{}, Offset: offset}, nil
		}
		return PollResult{}, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return PollResult{}, fmt.Errorf("failed to stat transcript: %w", err)
	}
	length := info.Size()
	if length < offset {
		return PollResult{}, ErrRotated
	}
	if length == offset {
		return PollResult{Items: []Item{}, Offset: offset}, nil
	}

	buf := make([]byte, length-offset)
	if _, err := f.ReadAt(buf, offset); err != nil && !errors.Is(err, io.EOF) {
		return PollResult{}, fmt.Errorf("failed to read transcript: %w", err)
	}

	end := bytes.LastIndexByte(buf, '\n')
	if end < 0 {
		return PollResult{Items: []Item{}, Offset: offset}, nil
	}
	complete := buf[:end+1]

	added := []Item{}
	for _, line := range splitLines(complete) {
		added = append(added, ParseLine(line)...)
	}

	w.items = append(w.items, added...)
	evicted := w.evict()
	w.offset = offset + int64(len(complete))

	return PollResult{
		Items:   added,
		Offset:  w.offset,
		HasNew:  len(added) > 0,
		Evicted: evicted,
	}, nil
}

// Items returns a copy of the buffered items.
func (w *Window) Items() []Item {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot()
}

// Offset returns the byte offset after the last consumed line.
func (w *Window) Offset() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.offset
}

func (w *Window) evict() int {
	excess := len(w.items) - w.maxItems
	if excess <= 0 {
		return 0
	}
	w.items = append(w.items[:0:0], w.items[excess:]...)
	return excess
}

func (w *Window) snapshot() []Item {
	out := make([]Item, len(w.items))
	copy(out, w.items)
	return out
}

// splitLines splits on '\n', dropping a trailing empty segment and any '\r'.
func splitLines(data []byte) [][]byte {
	lines := bytes.Split(data, []byte{'\n'})
	if n := len(lines); n > 0 && len(lines[n-1]) == 0 {
		lines = lines[:n-1]
	}
	for i, l := range lines {
		lines[i] = bytes.TrimSuffix(l, []byte{'\r'})
	}
	return lines
}
