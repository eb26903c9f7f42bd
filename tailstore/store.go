// Package tailstore remembers how far each append-only log has been consumed,
// so a restart resumes where the last run stopped instead of replaying history.
package tailstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/tinker495/associate/internal/fileutil"
)

// ErrLocked is returned by Open when another process owns the offset document.
var ErrLocked = errors.New("offset store is locked by another process")

// document is the on-disk shape. Unknown top-level keys are carried through
// untouched on rewrite.
type document struct {
	HookOffsets map[string]int64 `json:"hook_offsets"`
}

type Store struct {
	path    string
	lock    *flock.Flock
	offsets map[string]int64
	extra   map[string]json.RawMessage
	mu      sync.Mutex
	logger  *slog.Logger
}

// Open takes the single-writer lock on path and loads the stored offsets.
// A missing or unreadable document starts empty.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := fileutil.EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock offset store: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	s := &Store{
		path:    path,
		lock:    lock,
		offsets: make(map[string]int64),
		extra:   make(map[string]json.RawMessage),
		logger:  logger,
	}
	s.load()
	return s, nil
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read offset store, starting empty", "path", s.path, "error", err)
		}
		return
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("corrupt offset store, starting empty", "path", s.path, "error", err)
		return
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("corrupt offset map, starting empty", "path", s.path, "error", err)
	} else if doc.HookOffsets != nil {
		s.offsets = doc.HookOffsets
	}

	delete(raw, "hook_offsets")
	s.extra = raw
}

// Offset returns the stored offset for file, if any.
func (s *Store) Offset(file string) (int64, bool) {
	key := normalize(file)

	s.mu.Lock()
	defer s.mu.Unlock()
	off, ok := s.offsets[key]
	return off, ok
}

// Prime records the current length of an existing file that has no offset
// yet, so pre-existing content is never replayed.
func (s *Store) Prime(file string) error {
	key := normalize(file)

	info, err := os.Stat(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", file, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.offsets[key]; ok {
		return nil
	}
	s.offsets[key] = info.Size()
	if err := s.persistUnlocked(); err != nil {
		delete(s.offsets, key)
		return err
	}
	return nil
}

// ReadNew returns the bytes appended to file since the stored offset. A file
// shorter than its offset was truncated and is read from the start, which is
// reported through rewound. The new offset is persisted before the bytes are
// returned; if that fails nothing is returned and the offset is unchanged.
func (s *Store) ReadNew(file string) (data []byte, rewound bool, err error) {
	key := normalize(file)

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, false, fmt.Errorf("failed to stat %s: %w", file, err)
	}
	length := info.Size()

	prev, known := s.offsets[key]
	start := prev
	if !known {
		start = 0
	} else if length < prev {
		start = 0
		rewound = true
	}

	if start == length {
		if rewound {
			s.offsets[key] = length
			if err := s.persistUnlocked(); err != nil {
				s.offsets[key] = prev
				return nil, false, err
			}
		}
		return nil, rewound, nil
	}

	buf := make([]byte, length-start)
	if _, err := f.ReadAt(buf, start); err != nil && !errors.Is(err, io.EOF) {
		return nil, false, fmt.Errorf("failed to read %s: %w", file, err)
	}

	s.offsets[key] = length
	if err := s.persistUnlocked(); err != nil {
		if known {
			s.offsets[key] = prev
		} else {
			delete(s.offsets, key)
		}
		return nil, false, err
	}

	return buf, rewound, nil
}

// Persist writes the whole document.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistUnlocked()
}

func (s *Store) persistUnlocked() error {
	out := make(map[string]any, len(s.extra)+1)
	for k, v := range s.extra {
		out[k] = v
	}
	out["hook_offsets"] = s.offsets

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode offsets: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to persist offsets: %w", err)
	}
	return nil
}

// Close releases the single-writer lock.
func (s *Store) Close() error {
	if s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}

func normalize(file string) string {
	abs, err := filepath.Abs(file)
	if err != nil {
		return filepath.Clean(file)
	}
	return abs
}
