package ingest

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"tabcap/internal/capture"
)

// feedBuffer is how many frames a feed holds before the reader falls
// behind and frames drop. At 10ms frames this is roughly two thirds of a
// second of slack.
const feedBuffer = 64

// feed is one live audio connection adapted to the capture Stream
// interface. Frames arrive from the websocket read loop and leave through
// ReadFrame on the mixing side.
type feed struct {
	id    string
	label string

	frames   chan []byte
	attached chan struct{}
	isOpen   atomic.Bool

	// claimed marks the handle consumed by OpenTabStream. Guarded by
	// Broker.mu.
	claimed bool

	closeOnce sync.Once
	closed    chan struct{}
	dropped   atomic.Uint64
}

func newFeed(id, label string) *feed {
	return &feed{
		id:       id,
		label:    label,
		frames:   make(chan []byte, feedBuffer),
		attached: make(chan struct{}),
		closed:   make(chan struct{}),
	}
}

func (f *feed) attach(label string) {
	if label != "" {
		f.label = label
	}
	f.isOpen.Store(true)
	close(f.attached)
}

func (f *feed) attachedNow() bool { return f.isOpen.Load() }

func (f *feed) closedNow() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// push enqueues one frame, dropping it when the buffer is full. The
// reader prefers fresh audio with a gap over ever blocking the ingest
// connection.
func (f *feed) push(frame []byte) {
	select {
	case f.frames <- frame:
	default:
		f.dropped.Add(1)
	}
}

// ReadFrame implements capture.Stream.
func (f *feed) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-f.frames:
		return frame, nil
	case <-f.closed:
		// Drain anything buffered before reporting end of stream.
		select {
		case frame := <-f.frames:
			return frame, nil
		default:
			return nil, io.EOF
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AudioTracks implements capture.Stream. A feed always carries exactly
// one track whose Stop tears the whole feed down.
func (f *feed) AudioTracks() []capture.Track {
	return []capture.Track{feedTrack{feed: f}}
}

// Close implements capture.Stream. Idempotent; the ingest read loop
// observes it and hangs up.
func (f *feed) Close() {
	f.closeOnce.Do(func() { close(f.closed) })
}

type feedTrack struct {
	feed *feed
}

func (t feedTrack) ID() string    { return t.feed.id }
func (t feedTrack) Label() string { return t.feed.label }
func (t feedTrack) Stop()         { t.feed.Close() }
