package capture

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// MIMEType tags finished artifacts. Frames are treated as opaque encoded
// audio; the engine never re-encodes.
const MIMEType = "audio/webm;codecs=opus"

type frameSource interface {
	ReadFrame(ctx context.Context) ([]byte, error)
}

// frameFilter transforms a frame before it is appended. Used to route the
// signal through the denoise processor; nil means record frames as read.
type frameFilter func(ctx context.Context, frame []byte) []byte

// Recorder accumulates frames into ordered chunks, flushing the working
// buffer on a fixed interval so memory stays bounded and a crashed tab
// still leaves recoverable audio behind. Chunks are append-only until the
// recorder stops; the artifact is always their in-order concatenation.
type Recorder struct {
	source   frameSource
	filter   frameFilter
	interval time.Duration

	mu      sync.Mutex
	chunks  [][]byte
	pending bytes.Buffer
	stopped bool

	cancel context.CancelFunc
	done   chan struct{}
}

func newRecorder(source frameSource, interval time.Duration, filter frameFilter) *Recorder {
	if interval <= 0 {
		interval = time.Second
	}
	return &Recorder{
		source:   source,
		filter:   filter,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins pulling frames until Stop or stream end.
func (r *Recorder) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	go r.run(runCtx)
}

func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)
	lastFlush := time.Now()
	for {
		frame, err := r.source.ReadFrame(ctx)
		if err != nil {
			return
		}
		if r.filter != nil {
			frame = r.filter(ctx, frame)
		}
		r.mu.Lock()
		if r.stopped {
			r.mu.Unlock()
			return
		}
		r.pending.Write(frame)
		if time.Since(lastFlush) >= r.interval {
			r.flushLocked()
			lastFlush = time.Now()
		}
		r.mu.Unlock()
	}
}

func (r *Recorder) flushLocked() {
	if r.pending.Len() == 0 {
		return
	}
	chunk := make([]byte, r.pending.Len())
	copy(chunk, r.pending.Bytes())
	r.chunks = append(r.chunks, chunk)
	r.pending.Reset()
}

// Stop halts frame intake, performs the final flush, and returns the
// concatenated artifact. A second Stop synthesizes the same result from
// the already-accumulated chunks instead of erroring, so retried stop
// commands stay idempotent.
func (r *Recorder) Stop() []byte {
	r.mu.Lock()
	alreadyStopped := r.stopped
	r.stopped = true
	r.flushLocked()
	r.mu.Unlock()

	if !alreadyStopped && r.cancel != nil {
		r.cancel()
		<-r.done
		// The run loop may have buffered one last frame before exiting.
		r.mu.Lock()
		r.flushLocked()
		r.mu.Unlock()
	}
	return r.Blob()
}

// Blob returns the in-order concatenation of all flushed chunks.
func (r *Recorder) Blob() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int
	for _, chunk := range r.chunks {
		total += len(chunk)
	}
	blob := make([]byte, 0, total)
	for _, chunk := range r.chunks {
		blob = append(blob, chunk...)
	}
	return blob
}

// ChunkCount reports how many chunk flushes have happened.
func (r *Recorder) ChunkCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}
