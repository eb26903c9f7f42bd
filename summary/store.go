package summary

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	dirName        = "summaries"
	previewLength  = 200
	maxSaveRetries = 5
)

// ErrInvalidPath is returned when a project or file name would escape the
// summaries directory.
var ErrInvalidPath = errors.New("invalid summary path")

// File describes one stored summary.
type File struct {
	SessionID string    `json:"session_id"`
	Filename  string    `json:"filename"`
	Created   time.Time `json:"created"`
	Preview   string    `json:"preview"`
}

// Store keeps summaries under <root>/<project dir>/summaries.
type Store struct {
	root   string
	logger *slog.Logger
}

func NewStore(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: root, logger: logger}
}

func (s *Store) dir(projectDir string) (string, error) {
	if !isPlainName(projectDir) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, projectDir)
	}
	return filepath.Join(s.root, projectDir, dirName), nil
}

// Save writes content as the session's next summary and returns its
// description.
func (s *Store) Save(projectDir, sessionID, content string) (File, error) {
	if !isPlainName(sessionID) {
		return File{}, fmt.Errorf("%w: session %q", ErrInvalidPath, sessionID)
	}
	dir, err := s.dir(projectDir)
	if err != nil {
		return File{}, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return File{}, fmt.Errorf("failed to create summaries directory: %w", err)
	}

	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		name := fmt.Sprintf("%s-summary-%03d.md", sessionID, nextCounter(dir, sessionID))
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return File{}, fmt.Errorf("failed to create summary: %w", err)
		}
		if _, err := f.WriteString(content); err != nil {
			f.Close()
			return File{}, fmt.Errorf("failed to write summary: %w", err)
		}
		if err := f.Close(); err != nil {
			return File{}, fmt.Errorf("failed to close summary: %w", err)
		}

		s.logger.Info("summary saved", "session", sessionID, "file", path)
		return File{
			SessionID: sessionID,
			Filename:  name,
			Created:   time.Now(),
			Preview:   Preview(content),
		}, nil
	}
	return File{}, fmt.Errorf("failed to allocate summary name for session %s", sessionID)
}

// List returns the session's summaries ordered by counter. A missing
// directory yields an empty list.
func (s *Store) List(projectDir, sessionID string) ([]File, error) {
	dir, err := s.dir(projectDir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []File{}, nil
		}
		return nil, fmt.Errorf("failed to read summaries directory: %w", err)
	}

	prefix := sessionID + "-summary-"
	files := []File{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".md") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			s.logger.Debug("skipping unreadable summary", "file", name, "error", err)
			continue
		}
		var created time.Time
		if info, err := e.Info(); err == nil {
			created = info.ModTime()
		}
		files = append(files, File{
			SessionID: sessionID,
			Filename:  name,
			Created:   created,
			Preview:   Preview(string(content)),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })
	return files, nil
}

// Read returns the markdown of one summary.
func (s *Store) Read(projectDir, filename string) (string, error) {
	dir, err := s.dir(projectDir)
	if err != nil {
		return "", err
	}
	if !isPlainName(filename) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, filename)
	}

	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		return "", fmt.Errorf("failed to read summary: %w", err)
	}
	return string(data), nil
}

// Preview returns the first characters of content.
func Preview(content string) string {
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	n := 0
	for i := range content {
		if n == previewLength {
			return content[:i]
		}
		n++
	}
	return content
}

func nextCounter(dir, sessionID string) int {
	prefix := sessionID + "-summary-"
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 1
	}

	highest := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".md") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".md"))
		if err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1
}

// isPlainName accepts a single path element that stays inside its parent.
func isPlainName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.IsLocal(name)
}
