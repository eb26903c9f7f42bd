package transcript

import (
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tinker495/associate/config"
)

// Manager keeps one window per transcript path for request handlers.
type Manager struct {
	mu        sync.Mutex
	windows   map[string]*Window
	tailLines int
	maxItems  int
	logger    *slog.Logger
}

func NewManager(cfg config.TranscriptConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		windows:   make(map[string]*Window),
		tailLines: cfg.TailLines,
		maxItems:  cfg.MaxItems,
		logger:    logger,
	}
}

// Open starts a fresh window for path, replacing any open one.
func (m *Manager) Open(path string) (OpenResult, error) {
	key := filepath.Clean(path)
	w := NewWindow(key, m.tailLines, m.maxItems)

	m.mu.Lock()
	m.windows[key] = w
	m.mu.Unlock()

	res, err := w.Open()
	if err != nil {
		return res, err
	}
	m.logger.Debug("transcript opened", "path", key, "items", len(res.Items), "offset", res.Offset)
	return res, nil
}

// Poll returns items appended after offset. Polling a path that was never
// opened starts an empty window at that offset.
func (m *Manager) Poll(path string, offset int64) (PollResult, error) {
	key := filepath.Clean(path)

	m.mu.Lock()
	w, ok := m.windows[key]
	if !ok {
		w = NewWindow(key, m.tailLines, m.maxItems)
		m.windows[key] = w
	}
	m.mu.Unlock()

	return w.Poll(offset)
}

func (m *Manager) Close(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.windows, filepath.Clean(path))
}

// Paths lists the open windows.
func (m *Manager) Paths() []string {
	m.mu.Lock()
	paths := make([]string, 0, len(m.windows))
	for p := range m.windows {
		paths = append(paths, p)
	}
	m.mu.Unlock()

	sort.Strings(paths)
	return paths
}
