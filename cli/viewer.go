package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/tinker495/associate/transcript"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	kindStyles = map[transcript.Kind]lipgloss.Style{
		transcript.KindUser:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		transcript.KindAssistant:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		transcript.KindToolUse:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		transcript.KindToolResult: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		transcript.KindSystem:     lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		transcript.KindProgress:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
)

type tickMsg struct{}

// pollMsg carries one refresh of the window. reopened is set when the
// transcript was rotated and read again from the start.
type pollMsg struct {
	offset   int64
	fresh    int
	reopened bool
	err      error
}

// viewerModel is a scrolling view over a transcript window. scroll counts
// rows up from the newest item; 0 keeps the view pinned to the bottom.
type viewerModel struct {
	window   *transcript.Window
	interval time.Duration

	items  []transcript.Item
	offset int64
	scroll int
	width  int
	height int
	err    error
}

func newViewer(window *transcript.Window, opened transcript.OpenResult, interval time.Duration) viewerModel {
	if interval <= 0 {
		interval = time.Second
	}
	return viewerModel{
		window:   window,
		interval: interval,
		items:    opened.Items,
		offset:   opened.Offset,
		width:    80,
		height:   24,
	}
}

func (m viewerModel) Init() tea.Cmd {
	return m.tick()
}

func (m viewerModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m viewerModel) poll() tea.Cmd {
	window, offset := m.window, m.offset
	return func() tea.Msg {
		res, err := window.Poll(offset)
		if errors.Is(err, transcript.ErrRotated) {
			opened, err := window.Open()
			return pollMsg{offset: opened.Offset, reopened: true, err: err}
		}
		if err != nil {
			return pollMsg{offset: offset, err: err}
		}
		return pollMsg{offset: res.Offset, fresh: len(res.Items)}
	}
}

func (m viewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.clampScroll()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			m.scroll++
		case "down", "j":
			m.scroll--
		case "pgup":
			m.scroll += m.bodyHeight()
		case "pgdown":
			m.scroll -= m.bodyHeight()
		case "g", "home":
			m.scroll = len(m.items)
		case "G", "end":
			m.scroll = 0
		}
		m.clampScroll()
		return m, nil

	case tickMsg:
		return m, m.poll()

	case pollMsg:
		m.err = msg.err
		m.offset = msg.offset
		if msg.err == nil {
			m.items = m.window.Items()
			if msg.reopened {
				m.scroll = 0
			} else if m.scroll > 0 {
				m.scroll += msg.fresh
			}
			m.clampScroll()
		}
		return m, m.tick()
	}
	return m, nil
}

func (m viewerModel) bodyHeight() int {
	h := m.height - 2
	if h < 1 {
		h = 1
	}
	return h
}

func (m *viewerModel) clampScroll() {
	limit := len(m.items) - m.bodyHeight()
	if limit < 0 {
		limit = 0
	}
	if m.scroll > limit {
		m.scroll = limit
	}
	if m.scroll < 0 {
		m.scroll = 0
	}
}

func (m viewerModel) View() string {
	var b strings.Builder

	header := fmt.Sprintf("%d items  %s", len(m.items), m.window.Path())
	b.WriteString(headerStyle.Render(ansi.Truncate(header, m.width, "…")))
	b.WriteByte('\n')

	end := len(m.items) - m.scroll
	start := end - m.bodyHeight()
	if start < 0 {
		start = 0
	}
	rows := 0
	for _, item := range m.items[start:end] {
		b.WriteString(m.renderItem(item))
		b.WriteByte('\n')
		rows++
	}
	for ; rows < m.bodyHeight(); rows++ {
		b.WriteByte('\n')
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render(ansi.Truncate("error: "+m.err.Error(), m.width, "…")))
	} else {
		footer := "following"
		if m.scroll > 0 {
			footer = fmt.Sprintf("%d newer items below", m.scroll)
		}
		b.WriteString(footerStyle.Render(footer + "  ·  q quit  ↑/↓ scroll  G bottom"))
	}
	return b.String()
}

func (m viewerModel) renderItem(item transcript.Item) string {
	style, ok := kindStyles[item.Kind]
	if !ok {
		style = lipgloss.NewStyle()
	}
	prefix := timeStyle.Render(itemTime(item)) + " " + style.Render(fmt.Sprintf("%-11s", item.Kind)) + " "
	room := m.width - lipgloss.Width(prefix)
	if room < 1 {
		room = 1
	}
	text := ansi.Strip(firstLine(item.Text))
	return prefix + ansi.Truncate(text, room, "…")
}
