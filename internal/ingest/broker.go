package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tabcap/internal/capture"
	"tabcap/internal/logging"
	"tabcap/internal/protocol"
)

// handleTTL bounds how long a minted stream handle stays claimable. A
// handle that was never consumed expires rather than accumulating.
const handleTTL = 30 * time.Second

// micWait is how long a capture start waits for a microphone feed before
// degrading to tab-only audio.
const micWait = 2 * time.Second

// tabWait is how long a claimed handle waits for the page's tab feed to
// finish its ingest round trip. The engine reaches OpenTabStream over the
// in-process bus well before the page can connect, so the wait is the
// normal case, and it must end on its own: the capture actor blocks here
// and a page that never connects must not wedge it.
const tabWait = 5 * time.Second

// Broker hands out single-use tab capture handles and matches them with
// the audio feeds the browser helper pushes over the ingest endpoint. It
// is the daemon's implementation of both stream openers and of the
// popup's handle acquisition.
type Broker struct {
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*feed
	mic     *feed
}

// NewBroker constructs an empty broker.
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		logger:  logging.NewComponentLogger(logger, "ingest"),
		pending: make(map[string]*feed),
	}
}

// MediaStreamID mints a fresh tab capture handle. Handles are single use
// and expire unclaimed after a short window.
func (b *Broker) MediaStreamID(ctx context.Context, tabID int) (string, error) {
	id := uuid.NewString()
	f := newFeed(id, "tab audio")

	b.mu.Lock()
	b.pending[id] = f
	b.mu.Unlock()

	time.AfterFunc(handleTTL, func() {
		b.mu.Lock()
		stale, ok := b.pending[id]
		if ok && !stale.claimed {
			delete(b.pending, id)
			stale.Close()
		}
		b.mu.Unlock()
	})

	b.logger.Debug("capture handle minted",
		logging.Int(logging.FieldTab, tabID),
		logging.String("stream_id", id))
	return id, nil
}

// OpenTabStream claims a minted handle, waiting for the helper's audio
// feed to arrive. Claims are single use, but the handle stays visible to
// attachTab until the wait settles: the engine's claim normally lands
// before the page has finished connecting, and a feed arriving after the
// claim must still bind.
func (b *Broker) OpenTabStream(ctx context.Context, streamID string) (capture.Stream, error) {
	b.mu.Lock()
	f, ok := b.pending[streamID]
	if ok && !f.claimed {
		f.claimed = true
	} else {
		ok = false
	}
	b.mu.Unlock()
	if !ok {
		return nil, protocol.Wrap("ingest", "claim handle", protocol.ErrTabAudioUnavailable)
	}

	wait := time.NewTimer(tabWait)
	defer wait.Stop()
	select {
	case <-f.attached:
		b.forget(streamID)
		return f, nil
	case <-wait.C:
	case <-ctx.Done():
	}

	// forget holds the same lock attachTab binds under, so after it the
	// feed either attached or never will.
	b.forget(streamID)
	if f.attachedNow() {
		return f, nil
	}
	f.Close()
	return nil, protocol.Wrap("ingest", "await tab feed", protocol.ErrTabAudioUnavailable)
}

func (b *Broker) forget(streamID string) {
	b.mu.Lock()
	delete(b.pending, streamID)
	b.mu.Unlock()
}

// OpenMicrophone returns the current microphone feed, waiting briefly for
// one to connect. Constraints are advisory here; the helper applied them
// when it opened the device.
func (b *Broker) OpenMicrophone(ctx context.Context, _ capture.MicConstraints) (capture.Stream, error) {
	deadline := time.NewTimer(micWait)
	defer deadline.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		b.mu.Lock()
		mic := b.mic
		b.mu.Unlock()
		if mic != nil && mic.attachedNow() && !mic.closedNow() {
			return mic, nil
		}
		select {
		case <-ticker.C:
		case <-deadline.C:
			return nil, protocol.Wrap("ingest", "await microphone feed", protocol.ErrNoAudioTracks)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// attachTab binds an incoming helper connection to its minted handle.
// Unknown or already-claimed handles are rejected.
func (b *Broker) attachTab(streamID, label string) (*feed, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.pending[streamID]
	if !ok || f.attachedNow() {
		return nil, false
	}
	f.attach(label)
	return f, true
}

// attachMic registers the helper's microphone feed, replacing any stale
// one.
func (b *Broker) attachMic(label string) *feed {
	f := newFeed(uuid.NewString(), label)
	f.attach(label)
	b.mu.Lock()
	old := b.mic
	b.mic = f
	b.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return f
}

func (b *Broker) dropMic(f *feed) {
	b.mu.Lock()
	if b.mic == f {
		b.mic = nil
	}
	b.mu.Unlock()
}
