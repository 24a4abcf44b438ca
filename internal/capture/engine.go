package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tabcap/internal/config"
	"tabcap/internal/denoise"
	"tabcap/internal/logging"
	"tabcap/internal/msgbus"
	"tabcap/internal/protocol"
)

// Engine is the only component allowed to touch media sources. It acquires
// tab and microphone streams, mixes them, drives the chunked recorder and
// the level monitor, and hands finished artifacts back over the bus.
type Engine struct {
	cfg           *config.Config
	logger        *slog.Logger
	tabs          TabStreamOpener
	mic           MicrophoneOpener
	denoiseEngine denoise.Engine
	emitLevel     func(level protocol.AudioLevel)

	mu       sync.Mutex
	sessions map[int]*captureSession
}

type captureSession struct {
	tabID    int
	graph    *Graph
	recorder *Recorder
	monitor  *levelMonitor
	denoiser *denoise.Processor
}

// EngineOption configures optional engine behavior.
type EngineOption func(*Engine)

// WithDenoiseEngine plugs a noise-suppression model into the frame path.
func WithDenoiseEngine(engine denoise.Engine) EngineOption {
	return func(e *Engine) { e.denoiseEngine = engine }
}

// WithLevelEmitter sets the sink for audio level notifications. The sink
// must be non-blocking; delivery is best-effort by contract.
func WithLevelEmitter(emit func(protocol.AudioLevel)) EngineOption {
	return func(e *Engine) { e.emitLevel = emit }
}

// NewEngine constructs the capture engine. mic may be nil when no
// microphone source exists at all.
func NewEngine(cfg *config.Config, tabs TabStreamOpener, mic MicrophoneOpener, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "capture"),
		tabs:     tabs,
		mic:      mic,
		sessions: make(map[int]*captureSession),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.emitLevel == nil {
		e.emitLevel = func(protocol.AudioLevel) {}
	}
	return e
}

// Start acquires media for a tab and begins recording. Acquisition happens
// outside any engine-wide lock: a failed start leaves the engine
// immediately ready for a fresh attempt on any tab, including this one.
func (e *Engine) Start(ctx context.Context, streamID string, tabID int) error {
	log := e.logger.With(logging.Int(logging.FieldTab, tabID))

	if e.hasSession(tabID) {
		return protocol.Wrap("capture", "start", protocol.ErrAlreadyRecording)
	}

	tabStream, err := e.tabs.OpenTabStream(ctx, streamID)
	if err != nil {
		log.Error("tab audio acquisition failed", logging.Error(err))
		return protocol.Wrap("capture", "open tab stream", protocol.ErrTabAudioUnavailable)
	}

	micStream := e.acquireMicrophone(ctx, log)

	// Acquisition waits above run under the start request's deadline;
	// everything from here on lives as long as the session does.
	runCtx := context.WithoutCancel(ctx)

	analyzer := &Analyzer{}
	graph, err := NewGraph(runCtx, tabStream, micStream, analyzer)
	if err != nil {
		// Mixing failed: release the mic side and continue tab-only.
		log.Warn("audio mix failed; continuing with tab audio only",
			logging.Error(err),
			logging.String(logging.FieldEventType, "mix_failed"),
			logging.String(logging.FieldImpact, "recording will not include microphone audio"),
			logging.String(logging.FieldErrorHint, "check microphone permissions and devices"))
		if micStream != nil {
			for _, track := range micStream.AudioTracks() {
				track.Stop()
			}
			micStream.Close()
		}
		graph, _ = NewGraph(runCtx, tabStream, nil, analyzer)
	}

	if len(graph.AudioTracks()) == 0 {
		graph.Close()
		log.Error("acquired stream has no audio tracks")
		return protocol.Wrap("capture", "verify stream", protocol.ErrNoAudioTracks)
	}

	var denoiser *denoise.Processor
	filter := frameFilter(nil)
	if e.cfg.Denoise.Enabled {
		budget := time.Duration(e.cfg.Denoise.FrameMs) * time.Millisecond
		denoiser = denoise.NewProcessor(e.denoiseEngine, budget, e.logger)
		filter = func(ctx context.Context, frame []byte) []byte {
			return denoiser.Process(ctx, frame)
		}
	}

	recorder := newRecorder(graph, time.Duration(e.cfg.Capture.ChunkIntervalMs)*time.Millisecond, filter)
	monitor := startLevelMonitor(runCtx,
		time.Duration(e.cfg.Capture.LevelIntervalMs)*time.Millisecond,
		analyzer,
		func(level int) {
			e.emitLevel(protocol.AudioLevel{TabID: tabID, Level: level})
		})

	cs := &captureSession{
		tabID:    tabID,
		graph:    graph,
		recorder: recorder,
		monitor:  monitor,
		denoiser: denoiser,
	}

	e.mu.Lock()
	if _, exists := e.sessions[tabID]; exists {
		e.mu.Unlock()
		monitor.Stop()
		graph.Close()
		return protocol.Wrap("capture", "register", protocol.ErrAlreadyRecording)
	}
	e.sessions[tabID] = cs
	e.mu.Unlock()

	recorder.Start(runCtx)
	log.Info("recording started",
		logging.String("stream_id", streamID),
		logging.Int("tracks", len(graph.AudioTracks())))
	return nil
}

// acquireMicrophone attempts the optional microphone stream. Failure is
// logged, never surfaced: a worse recording beats no recording.
func (e *Engine) acquireMicrophone(ctx context.Context, log *slog.Logger) Stream {
	if e.mic == nil || !e.cfg.Capture.MicrophoneEnabled {
		return nil
	}
	constraints := MicConstraints{
		EchoCancellation: e.cfg.Capture.EchoCancellation,
		NoiseSuppression: e.cfg.Capture.NoiseSuppression,
		AutoGainControl:  e.cfg.Capture.AutoGainControl,
	}
	micStream, err := e.mic.OpenMicrophone(ctx, constraints)
	if err != nil {
		log.Warn("microphone unavailable; recording tab audio only",
			logging.Error(err),
			logging.String(logging.FieldEventType, "microphone_unavailable"),
			logging.String(logging.FieldImpact, "recording will not include microphone audio"),
			logging.String(logging.FieldErrorHint, "check microphone permissions"))
		return nil
	}
	return micStream
}

// Stop finishes a tab's recording and returns the artifact. All media
// tracks are stopped and the graph is torn down before the session leaves
// the engine; the level monitor is cancelled on every path.
func (e *Engine) Stop(ctx context.Context, tabID int) (protocol.RecordingComplete, error) {
	e.mu.Lock()
	cs, exists := e.sessions[tabID]
	if !exists {
		e.mu.Unlock()
		return protocol.RecordingComplete{}, protocol.Wrap("capture", "stop", protocol.ErrNoActiveRecording)
	}
	delete(e.sessions, tabID)
	e.mu.Unlock()

	blob := e.teardown(cs)
	e.logger.Info("recording stopped",
		logging.Int(logging.FieldTab, tabID),
		logging.Int("chunks", cs.recorder.ChunkCount()),
		logging.Int("bytes", len(blob)))

	return protocol.RecordingComplete{
		TabID:    tabID,
		Audio:    blob,
		MIMEType: MIMEType,
		Size:     int64(len(blob)),
	}, nil
}

// Drop abandons a tab's capture state without producing an artifact. Safe
// for tabs the engine never saw; used by force-stop recovery.
func (e *Engine) Drop(tabID int) {
	e.mu.Lock()
	cs, exists := e.sessions[tabID]
	delete(e.sessions, tabID)
	e.mu.Unlock()
	if !exists {
		return
	}
	_ = e.teardown(cs)
	e.logger.Info("capture state dropped", logging.Int(logging.FieldTab, tabID))
}

func (e *Engine) teardown(cs *captureSession) []byte {
	cs.monitor.Stop()
	blob := cs.recorder.Stop()
	cs.graph.Close()
	if cs.denoiser != nil {
		cs.denoiser.LogSummary()
	}
	return blob
}

func (e *Engine) hasSession(tabID int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, exists := e.sessions[tabID]
	return exists
}

// ActiveTabs lists tabs with live capture state, for diagnostics.
func (e *Engine) ActiveTabs() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	tabs := make([]int, 0, len(e.sessions))
	for tabID := range e.sessions {
		tabs = append(tabs, tabID)
	}
	return tabs
}

// Handler adapts the engine to the message bus.
func (e *Engine) Handler() msgbus.Handler {
	return func(ctx context.Context, from protocol.Context, msg any) (any, error) {
		switch m := msg.(type) {
		case protocol.StartRecording:
			if err := e.Start(ctx, m.StreamID, m.TabID); err != nil {
				return nil, err
			}
			return protocol.Ack{}, nil
		case protocol.StopRecording:
			return e.Stop(ctx, m.TabID)
		case protocol.DropSession:
			e.Drop(m.TabID)
			return protocol.Ack{}, nil
		default:
			return nil, fmt.Errorf("capture: unexpected message %T from %s", msg, from)
		}
	}
}
