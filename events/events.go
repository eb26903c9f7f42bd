package events

import (
	"log/slog"
	"sync"
	"time"
)

// Topics published on the bus.
const (
	TerminalOutput    = "terminal-output"
	SessionEnded      = "session-ended"
	PlanLinked        = "plan-linked"
	QuestionDetected  = "question-detected"
	TeamChanged       = "team-changed"
	InboxChanged      = "inbox-changed"
	TaskChanged       = "task-changed"
	TranscriptUpdated = "transcript-updated"
	SessionChanged    = "session-changed"
	TodosChanged      = "todos-changed"
	PlansChanged      = "plans-changed"
	NotesChanged      = "notes-changed"
	HookEvent         = "hook-event"
	SessionSummary    = "session-summary"
)

// Event is a topic-tagged notification. Payload must be JSON-encodable.
type Event struct {
	Topic   string    `json:"topic"`
	Payload any       `json:"payload"`
	Time    time.Time `json:"time"`
}

type Emitter interface {
	Emit(topic string, payload any)
}

// Terminal output payloads.

type OutputPayload struct {
	SessionID string `json:"session_id"`
	Data      string `json:"data"`
}

type SessionPayload struct {
	SessionID string `json:"session_id"`
}

type PlanPayload struct {
	SessionID string `json:"session_id"`
	Filename  string `json:"filename"`
}

type QuestionPayload struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// Router payloads.

type ProjectPathPayload struct {
	ProjectID string `json:"project_id"`
	Path      string `json:"path"`
}

type SummaryPayload struct {
	SessionID  string `json:"session_id"`
	ProjectDir string `json:"project_dir"`
	Filename   string `json:"filename"`
	Preview    string `json:"preview"`
}

const subscriberBuffer = 256

// Bus fans events out to subscribers. A subscriber that cannot keep up loses
// events rather than stalling the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
	logger *slog.Logger
	now    func() time.Time
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[int]chan Event),
		logger: logger,
		now:    time.Now,
	}
}

// Emit publishes an event to every subscriber without blocking.
func (b *Bus) Emit(topic string, payload any) {
	ev := Event{Topic: topic, Payload: payload, Time: b.now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("subscriber channel full, dropping event", "subscriber", id, "topic", topic)
		}
	}
}

// Subscribe returns a channel of events and a function that ends the
// subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Close closes every subscriber channel. Later emits are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Recorder is an Emitter that keeps every event in order. Used by tests and
// one-shot commands.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(topic string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Topic: topic, Payload: payload})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Topics returns the recorded topics in emission order.
func (r *Recorder) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Topic
	}
	return out
}
