package transcript

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/tinker495/associate/config"
)

func TestManager_OpenPollClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jsonl")
	writeLines(t, path, 0, 5)

	m := NewManager(config.TranscriptConfig{TailLines: 2, MaxItems: 10}, nil)
	res, err := m.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 2 {
		t.Errorf("expected tail of 2, got %d", len(res.Items))
	}

	writeLines(t, path, 5, 6)
	poll, err := m.Poll(path, res.Offset)
	if err != nil {
		t.Fatal(err)
	}
	if len(poll.Items) != 1 {
		t.Errorf("expected 1 new item, got %d", len(poll.Items))
	}

	if got := m.Paths(); !reflect.DeepEqual(got, []string{filepath.Clean(path)}) {
		t.Errorf("unexpected open paths %v", got)
	}
	m.Close(path)
	if len(m.Paths()) != 0 {
		t.Error("expected no open windows after close")
	}
}

func TestManager_PollWithoutOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "b.jsonl")
	writeLines(t, path, 0, 3)

	m := NewManager(config.TranscriptConfig{TailLines: 200, MaxItems: 5000}, nil)
	poll, err := m.Poll(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(poll.Items) != 3 {
		t.Errorf("expected all 3 items from offset 0, got %d", len(poll.Items))
	}
}
