// Package router watches the agent's home directory, turns file changes into
// topic events and tails the hook event log.
package router

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tinker495/associate/config"
	"github.com/tinker495/associate/events"
	"github.com/tinker495/associate/summary"
	"github.com/tinker495/associate/tailstore"
)

// maxPartialLine bounds the unterminated tail of the hook log kept between
// reads.
const maxPartialLine = 1 << 20

type watchRoot struct {
	path      string
	recursive bool
}

type Router struct {
	home        string
	appDir      string
	hookLog     string
	roots       []watchRoot
	watched     map[string]bool
	termination map[string]bool
	interval    time.Duration

	watcher   *fsnotify.Watcher
	offsets   *tailstore.Store
	summaries *summary.Store
	emitter   events.Emitter
	logger    *slog.Logger

	partial []byte
}

func New(cfg *config.Config, offsets *tailstore.Store, summaries *summary.Store, emitter events.Emitter, logger *slog.Logger) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	home := filepath.Clean(cfg.Paths.ClaudeHome)
	appDir := filepath.Clean(cfg.Paths.AppDir)

	termination := make(map[string]bool, len(cfg.Watch.TerminationEvents))
	for _, name := range cfg.Watch.TerminationEvents {
		termination[name] = true
	}

	return &Router{
		home:    home,
		appDir:  appDir,
		hookLog: filepath.Clean(cfg.HookLogPath()),
		roots: []watchRoot{
			{filepath.Join(home, "teams"), true},
			{filepath.Join(home, "tasks"), true},
			{filepath.Join(home, "projects"), true},
			{filepath.Join(home, "todos"), false},
			{filepath.Join(home, "plans"), false},
			{filepath.Join(home, "notes"), false},
			{appDir, false},
		},
		watched:     make(map[string]bool),
		termination: termination,
		interval:    cfg.PollInterval(),
		watcher:     fsw,
		offsets:     offsets,
		summaries:   summaries,
		emitter:     emitter,
		logger:      logger,
	}, nil
}

// Run watches until ctx is cancelled. Roots that do not exist yet are
// retried on every poll tick.
func (r *Router) Run(ctx context.Context) error {
	if err := os.MkdirAll(r.appDir, 0755); err != nil {
		return fmt.Errorf("failed to create app directory: %w", err)
	}
	if err := r.offsets.Prime(r.hookLog); err != nil {
		r.logger.Warn("failed to prime hook log offset", "error", err)
	}
	r.addRoots()
	r.drainHookLog()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			r.handleEvent(event)
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watcher error", "error", err)
		case <-ticker.C:
			r.addRoots()
			r.drainHookLog()
		}
	}
}

func (r *Router) Close() error {
	return r.watcher.Close()
}

// addRoots watches every root that exists and is not watched yet. A watched
// root that has disappeared is forgotten so it is added again once it is
// recreated.
func (r *Router) addRoots() {
	for _, root := range r.roots {
		info, err := os.Stat(root.path)
		exists := err == nil && info.IsDir()
		if r.watched[root.path] {
			if !exists {
				r.forgetRoot(root.path)
			}
			continue
		}
		if !exists {
			continue
		}
		if root.recursive {
			r.addRecursive(root.path)
		} else if err := r.watcher.Add(root.path); err != nil {
			r.logger.Warn("failed to watch directory", "path", root.path, "error", err)
			continue
		}
		r.watched[root.path] = true
		r.logger.Debug("watching", "path", root.path, "recursive", root.recursive)
	}
}

func (r *Router) forgetRoot(path string) {
	if !r.watched[path] {
		return
	}
	delete(r.watched, path)
	// fsnotify usually drops the watch itself when the directory goes away.
	_ = r.watcher.Remove(path)
	r.logger.Debug("watched root removed", "path", path)
}

func (r *Router) isRoot(path string) bool {
	for _, root := range r.roots {
		if root.path == path {
			return true
		}
	}
	return false
}

func (r *Router) addRecursive(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := r.watcher.Add(path); err != nil {
			r.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (r *Router) underRecursiveRoot(path string) bool {
	for _, root := range r.roots {
		if !root.recursive {
			continue
		}
		rel, err := filepath.Rel(root.path, path)
		if err == nil && rel != "." && filepath.IsLocal(rel) {
			return true
		}
	}
	return false
}

func (r *Router) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	path := filepath.Clean(event.Name)

	if path == r.hookLog {
		r.drainHookLog()
		return
	}

	if (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) && r.isRoot(path) {
		r.forgetRoot(path)
	}

	newDir := false
	if event.Has(fsnotify.Create) && r.underRecursiveRoot(path) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			r.addRecursive(path)
			newDir = true
		}
	}

	r.route(path)
	if newDir {
		r.routeExisting(path)
	}
}

func (r *Router) route(path string) {
	route, ok := Classify(r.home, path)
	if !ok {
		return
	}
	r.emitter.Emit(route.Topic, route.Payload)
}

// routeExisting emits routes for entries written into a new directory before
// its watch was in place.
func (r *Router) routeExisting(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == dir {
			return nil
		}
		r.route(path)
		return nil
	})
}

// drainHookLog relays every complete record appended since the last read.
func (r *Router) drainHookLog() {
	data, rewound, err := r.offsets.ReadNew(r.hookLog)
	if err != nil {
		r.logger.Warn("failed to read hook log", "error", err)
		return
	}
	if rewound {
		r.partial = nil
	}
	if len(data) == 0 {
		return
	}

	buf := append(r.partial, data...)
	r.partial = nil

	for {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			break
		}
		r.handleLine(buf[:idx])
		buf = buf[idx+1:]
	}

	if len(buf) > 0 {
		if len(buf) > maxPartialLine {
			r.logger.Warn("dropping oversized partial hook record", "bytes", len(buf))
		} else {
			r.partial = append([]byte(nil), buf...)
		}
	}
}

func (r *Router) handleLine(line []byte) {
	ev, ok := ParseHookEvent(line)
	if !ok {
		if len(bytes.TrimSpace(line)) > 0 {
			r.logger.Debug("skipping unparseable hook record")
		}
		return
	}

	if r.termination[ev.HookEventName] && summary.IsCompletionSummary(ev.LastAssistantMessage) {
		r.saveSummary(ev)
	}
	r.emitter.Emit(events.HookEvent, ev)
}

func (r *Router) saveSummary(ev HookEvent) {
	if ev.Cwd == "" {
		r.logger.Debug("summary without working directory, not saved", "session", ev.SessionID)
		return
	}
	projectDir := summary.EncodeProjectPath(ev.Cwd)

	f, err := r.summaries.Save(projectDir, ev.SessionID, ev.LastAssistantMessage)
	if err != nil {
		r.logger.Warn("failed to save summary", "session", ev.SessionID, "error", err)
		return
	}
	r.emitter.Emit(events.SessionSummary, events.SummaryPayload{
		SessionID:  ev.SessionID,
		ProjectDir: projectDir,
		Filename:   f.Filename,
		Preview:    f.Preview,
	})
}
