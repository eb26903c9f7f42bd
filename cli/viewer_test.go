package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinker495/associate/transcript"
)

func userLine(text string) string {
	return fmt.Sprintf(`{"type":"user","message":{"content":%q}}`+"\n", text)
}

func openViewer(t *testing.T, lines int) (viewerModel, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	var b strings.Builder
	for i := 0; i < lines; i++ {
		b.WriteString(userLine(fmt.Sprintf("message %d", i)))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}

	window := transcript.NewWindow(path, 200, 5000)
	res, err := window.Open()
	if err != nil {
		t.Fatal(err)
	}
	return newViewer(window, res, time.Millisecond), path
}

func update(t *testing.T, m viewerModel, msg tea.Msg) (viewerModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	vm, ok := next.(viewerModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return vm, cmd
}

func TestViewer_ShowsNewestItems(t *testing.T) {
	m, _ := openViewer(t, 30)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 60, Height: 12})

	view := m.View()
	if !strings.Contains(view, "message 29") {
		t.Errorf("view should end with the newest item:\n%s", view)
	}
	if strings.Contains(view, "message 5\n") {
		t.Errorf("view should not show old items:\n%s", view)
	}
	if !strings.Contains(view, "30 items") {
		t.Errorf("header should count items:\n%s", view)
	}
}

func TestViewer_Scroll(t *testing.T) {
	m, _ := openViewer(t, 30)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 60, Height: 12})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	if m.scroll != 1 {
		t.Fatalf("scroll = %d, want 1", m.scroll)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("g")})
	if want := 30 - m.bodyHeight(); m.scroll != want {
		t.Errorf("scroll after g = %d, want %d", m.scroll, want)
	}
	if !strings.Contains(m.View(), "message 0") {
		t.Error("top of transcript should be visible after g")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("G")})
	if m.scroll != 0 {
		t.Errorf("scroll after G = %d, want 0", m.scroll)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.scroll != 0 {
		t.Errorf("scroll should not go below 0, got %d", m.scroll)
	}
}

func TestViewer_PollAppends(t *testing.T) {
	m, path := openViewer(t, 3)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(userLine("fresh")); err != nil {
		t.Fatal(err)
	}
	f.Close()

	_, cmd := update(t, m, tickMsg{})
	if cmd == nil {
		t.Fatal("tick should schedule a poll")
	}
	msg := cmd()
	pm, ok := msg.(pollMsg)
	if !ok {
		t.Fatalf("poll returned %T", msg)
	}
	if pm.err != nil || pm.fresh != 1 {
		t.Fatalf("pollMsg = %+v", pm)
	}

	m, next := update(t, m, pm)
	if next == nil {
		t.Error("poll result should schedule the next tick")
	}
	if len(m.items) != 4 || m.items[3].Text != "fresh" {
		t.Errorf("items after poll = %+v", m.items)
	}
}

func TestViewer_PollReopensAfterRotation(t *testing.T) {
	m, path := openViewer(t, 5)
	if err := os.WriteFile(path, []byte(userLine("rotated")), 0644); err != nil {
		t.Fatal(err)
	}

	_, cmd := update(t, m, tickMsg{})
	pm := cmd().(pollMsg)
	if !pm.reopened || pm.err != nil {
		t.Fatalf("pollMsg = %+v, want reopened", pm)
	}

	m, _ = update(t, m, pm)
	if len(m.items) != 1 || m.items[0].Text != "rotated" {
		t.Errorf("items after rotation = %+v", m.items)
	}
}

func TestViewer_Quit(t *testing.T) {
	m, _ := openViewer(t, 1)
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
