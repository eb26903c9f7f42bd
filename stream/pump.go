package stream

import (
	"errors"
	"io"
	"log/slog"

	"github.com/tinker495/associate/config"
	"github.com/tinker495/associate/events"
)

// ReadSize is the chunk size for terminal reads.
const ReadSize = 4096

// Options configures the detectors of one pump.
type Options struct {
	PlanMarkers   []string
	PlanExtension string
	Question      QuestionOptions
}

// OptionsFromConfig builds detector options from the detect section.
func OptionsFromConfig(cfg *config.Config) Options {
	d := cfg.Detect
	return Options{
		PlanMarkers:   d.PlanMarkers,
		PlanExtension: d.PlanExtension,
		Question: QuestionOptions{
			Prefix:          d.QuestionPrefix,
			Exclusions:      d.QuestionExclusions,
			ConfirmSuffixes: d.ConfirmSuffixes,
			NavHints:        d.NavigationHints,
			DedupWindow:     cfg.DedupWindow(),
		},
	}
}

// Pump reads one session's terminal output until it ends. It owns the
// session's decode state; nothing else touches it.
type Pump struct {
	sessionID string
	src       io.Reader
	emitter   events.Emitter
	logger    *slog.Logger

	decoder   Decoder
	plans     *PlanDetector
	questions *QuestionDetector

	// OnStreaming, if set, runs once before the first read.
	OnStreaming func()
}

func NewPump(sessionID string, src io.Reader, emitter events.Emitter, opts Options, logger *slog.Logger) *Pump {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pump{
		sessionID: sessionID,
		src:       src,
		emitter:   emitter,
		logger:    logger.With("session", sessionID),
		plans:     NewPlanDetector(opts.PlanMarkers, opts.PlanExtension),
		questions: NewQuestionDetector(opts.Question),
	}
}

// Run blocks until the stream ends or fails, then emits session-ended.
func (p *Pump) Run() {
	if p.OnStreaming != nil {
		p.OnStreaming()
	}

	buf := make([]byte, ReadSize)
	for {
		n, err := p.src.Read(buf)
		if n > 0 {
			p.handle(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.logger.Debug("terminal read ended", "error", err)
			}
			break
		}
		if n == 0 {
			break
		}
	}

	p.emitter.Emit(events.SessionEnded, events.SessionPayload{SessionID: p.sessionID})
}

func (p *Pump) handle(chunk []byte) {
	text := p.decoder.Feed(chunk)
	if text == "" {
		return
	}

	for _, name := range p.plans.Scan(text) {
		p.emitter.Emit(events.PlanLinked, events.PlanPayload{SessionID: p.sessionID, Filename: name})
	}
	if q, ok := p.questions.Scan(text); ok {
		p.emitter.Emit(events.QuestionDetected, events.QuestionPayload{SessionID: p.sessionID, Text: q})
	}
	p.emitter.Emit(events.TerminalOutput, events.OutputPayload{SessionID: p.sessionID, Data: text})
}
