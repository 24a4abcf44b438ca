package denoise

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"tabcap/internal/logging"
)

// Engine produces a denoised frame for each input frame. Implementations
// wrap whatever model backs noise suppression; Denoise must return a frame
// of the same length as the input.
type Engine interface {
	Denoise(ctx context.Context, frame []byte) ([]byte, error)
}

// Processor runs the per-frame round trip to an Engine with a hard budget
// matching the frame period. A frame whose round trip misses the budget
// (or errors) passes through unmodified, since late denoised audio is
// worthless in a real-time graph; the miss is counted so a
// passthrough-heavy session is visible instead of silent.
type Processor struct {
	engine Engine
	budget time.Duration
	logger *slog.Logger

	processed atomic.Uint64
	missed    atomic.Uint64
}

// NewProcessor builds a processor with the given per-frame budget. A nil
// engine yields a processor that passes every frame through and counts it
// as missed, which keeps the accounting honest when no model is wired.
func NewProcessor(engine Engine, budget time.Duration, logger *slog.Logger) *Processor {
	if budget <= 0 {
		budget = 10 * time.Millisecond
	}
	return &Processor{
		engine: engine,
		budget: budget,
		logger: logging.NewComponentLogger(logger, "denoise"),
	}
}

// Process returns the denoised frame when the engine answers within the
// budget, and the original frame otherwise. It never fails: the caller
// always has a frame to hand to the encoder on time.
func (p *Processor) Process(ctx context.Context, frame []byte) []byte {
	p.processed.Add(1)
	if p.engine == nil {
		p.missed.Add(1)
		return frame
	}

	frameCtx, cancel := context.WithTimeout(ctx, p.budget)
	defer cancel()

	type result struct {
		frame []byte
		err   error
	}
	done := make(chan result, 1)
	go func() {
		out, err := p.engine.Denoise(frameCtx, frame)
		done <- result{frame: out, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil || len(res.frame) != len(frame) {
			p.missed.Add(1)
			return frame
		}
		return res.frame
	case <-frameCtx.Done():
		p.missed.Add(1)
		return frame
	}
}

// Stats reports total frames seen and how many fell back to passthrough.
func (p *Processor) Stats() (processed, missed uint64) {
	return p.processed.Load(), p.missed.Load()
}

// LogSummary emits one line describing how much of the session was
// actually denoised. Called at session teardown.
func (p *Processor) LogSummary() {
	processed, missed := p.Stats()
	if processed == 0 {
		return
	}
	if missed > 0 {
		p.logger.Warn("frames passed through undenoised",
			logging.Uint64("processed", processed),
			logging.Uint64("missed", missed),
			logging.String(logging.FieldEventType, "denoise_budget_missed"),
			logging.String(logging.FieldImpact, "parts of the recording kept original noise"),
			logging.String(logging.FieldErrorHint, "raise denoise.frame_ms or disable denoise"))
		return
	}
	p.logger.Debug("denoise summary", logging.Uint64("processed", processed))
}
