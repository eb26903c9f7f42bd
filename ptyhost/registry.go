// Package ptyhost owns the live agent sessions and their pseudo-terminals.
package ptyhost

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tinker495/associate/config"
	"github.com/tinker495/associate/events"
	"github.com/tinker495/associate/stream"
)

const (
	DefaultRows = 24
	DefaultCols = 80
)

// State is a session's lifecycle position. Killed sessions are no longer
// registered, so they have no state.
type State int32

const (
	StateSpawned State = iota
	StateStreaming
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateSpawned:
		return "spawned"
	case StateStreaming:
		return "streaming"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

type SpawnRequest struct {
	ID       string `json:"id"`
	ResumeID string `json:"resume_id,omitempty"`
	Cwd      string `json:"cwd"`
	Rows     uint16 `json:"rows"`
	Cols     uint16 `json:"cols"`
}

type session struct {
	id      string
	term    Terminal
	writeMu sync.Mutex
	state   atomic.Int32
}

// Registry maps session ids to running terminals. The mutex covers map
// bookkeeping only; terminal I/O happens outside it.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	pumps    sync.WaitGroup

	agent   config.AgentConfig
	detect  stream.Options
	start   Starter
	emitter events.Emitter
	logger  *slog.Logger
	environ func() []string
}

type Option func(*Registry)

// WithStarter replaces the platform terminal backend.
func WithStarter(s Starter) Option {
	return func(r *Registry) { r.start = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

func NewRegistry(cfg *config.Config, emitter events.Emitter, opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*session),
		agent:    cfg.Agent,
		detect:   stream.OptionsFromConfig(cfg),
		start:    StartTerminal,
		emitter:  emitter,
		logger:   slog.Default(),
		environ:  os.Environ,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Spawn starts the agent in a new terminal and begins streaming its output.
// An empty request id is replaced by a generated one, which is returned.
func (r *Registry) Spawn(ctx context.Context, req SpawnRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Rows == 0 {
		req.Rows = DefaultRows
	}
	if req.Cols == 0 {
		req.Cols = DefaultCols
	}

	r.mu.Lock()
	_, exists := r.sessions[req.ID]
	r.mu.Unlock()
	if exists {
		return "", fmt.Errorf("%w: %s", ErrSessionExists, req.ID)
	}

	args := append([]string{}, r.agent.Args...)
	if req.ResumeID != "" {
		args = append(args, "--resume", req.ResumeID)
	}
	cmd := Command{
		Path: r.agent.Command,
		Args: args,
		Dir:  req.Cwd,
		Env:  BuildEnv(r.environ(), r.agent.StripEnv, r.agent.Env),
		Rows: req.Rows,
		Cols: req.Cols,
	}

	term, err := r.start(cmd)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSpawnFailed, err)
	}

	s := &session{id: req.ID, term: term}

	r.mu.Lock()
	if _, exists := r.sessions[req.ID]; exists {
		r.mu.Unlock()
		_ = term.Terminate()
		return "", fmt.Errorf("%w: %s", ErrSessionExists, req.ID)
	}
	r.sessions[req.ID] = s
	r.mu.Unlock()

	pump := stream.NewPump(req.ID, term, r.emitter, r.detect, r.logger)
	pump.OnStreaming = func() { s.state.Store(int32(StateStreaming)) }

	r.pumps.Add(1)
	go func() {
		defer r.pumps.Done()
		pump.Run()
		s.state.Store(int32(StateEnded))
		r.logger.Info("session stream ended", "session", req.ID)
	}()

	r.logger.Info("session spawned", "session", req.ID, "cwd", req.Cwd, "resume", req.ResumeID)
	return req.ID, nil
}

func (r *Registry) lookup(id string) (*session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

func (r *Registry) Resize(id string, rows, cols uint16) error {
	if rows == 0 || cols == 0 {
		return ErrInvalidSize
	}
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	if err := s.term.Resize(rows, cols); err != nil {
		return fmt.Errorf("failed to resize session %s: %w", id, err)
	}
	return nil
}

// Write sends data to the session's input.
func (r *Registry) Write(id string, data []byte) error {
	s, err := r.lookup(id)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for len(data) > 0 {
		n, err := s.term.Write(data)
		if err != nil {
			return fmt.Errorf("failed to write to session %s: %w", id, err)
		}
		data = data[n:]
	}
	return nil
}

// Kill removes the session and terminates its process. Unknown ids are
// ignored.
func (r *Registry) Kill(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := s.term.Terminate(); err != nil {
		r.logger.Warn("failed to terminate session", "session", id, "error", err)
	}
	r.logger.Info("session killed", "session", id)
	return nil
}

// KillAll terminates every session. Used on shutdown.
func (r *Registry) KillAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	for id, s := range all {
		if err := s.term.Terminate(); err != nil {
			r.logger.Warn("failed to terminate session", "session", id, "error", err)
		}
	}
}

// Wait blocks until every pump has exited.
func (r *Registry) Wait() {
	r.pumps.Wait()
}

// List returns the registered ids in sorted order.
func (r *Registry) List() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Strings(ids)
	return ids
}

func (r *Registry) State(id string) (State, error) {
	s, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	return State(s.state.Load()), nil
}
