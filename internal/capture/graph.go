package capture

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
)

// Analyzer exposes a running audio level for metering without altering the
// signal. Observe updates from every frame passing through the graph;
// Level reads the latest value on the metering interval.
type Analyzer struct {
	level atomic.Int64
}

// Observe computes the average magnitude of the frame's 16-bit samples and
// stores it scaled to 0..100.
func (a *Analyzer) Observe(frame []byte) {
	if len(frame) < 2 {
		a.level.Store(0)
		return
	}
	var total int64
	samples := len(frame) / 2
	for i := 0; i+1 < len(frame); i += 2 {
		sample := int16(uint16(frame[i]) | uint16(frame[i+1])<<8)
		if sample < 0 {
			sample = -sample
		}
		total += int64(sample)
	}
	avg := total / int64(samples)
	level := avg * 100 / 32767
	if level > 100 {
		level = 100
	}
	a.level.Store(level)
}

// Level returns the current 0..100 audio level.
func (a *Analyzer) Level() int {
	return int(a.level.Load())
}

var errNoMicTracks = errors.New("microphone stream has no audio tracks")

// Graph is the mixed tab+microphone audio graph. The tab stream is the
// clock source: every output frame is one tab frame, with the most recent
// microphone frame mixed in when one is available. Both the mixed signal
// and the analyzer observe the same frames, matching the shared
// analyzer/destination node layout.
type Graph struct {
	tab      Stream
	mic      Stream
	analyzer *Analyzer

	micFrames chan []byte
	cancel    context.CancelFunc
	pumpDone  chan struct{}
	closed    atomic.Bool
}

// NewGraph wires tab and optional microphone streams into a mixed graph.
// Construction fails when the microphone stream cannot contribute audio;
// the caller falls back to tab-only and must release the mic stream.
func NewGraph(ctx context.Context, tab, mic Stream, analyzer *Analyzer) (*Graph, error) {
	if analyzer == nil {
		analyzer = &Analyzer{}
	}
	g := &Graph{
		tab:      tab,
		mic:      mic,
		analyzer: analyzer,
		pumpDone: make(chan struct{}),
	}
	if mic == nil {
		close(g.pumpDone)
		return g, nil
	}
	if len(mic.AudioTracks()) == 0 {
		return nil, errNoMicTracks
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.micFrames = make(chan []byte, 4)
	go g.pumpMic(pumpCtx)
	return g, nil
}

// pumpMic keeps the freshest microphone frame available without ever
// blocking the tab-driven read path.
func (g *Graph) pumpMic(ctx context.Context) {
	defer close(g.pumpDone)
	for {
		frame, err := g.mic.ReadFrame(ctx)
		if err != nil {
			return
		}
		select {
		case g.micFrames <- frame:
		default:
			// Drop the oldest buffered frame to keep mixing current.
			select {
			case <-g.micFrames:
			default:
			}
			select {
			case g.micFrames <- frame:
			default:
			}
		}
	}
}

// AudioTracks returns every track feeding the graph.
func (g *Graph) AudioTracks() []Track {
	tracks := append([]Track(nil), g.tab.AudioTracks()...)
	if g.mic != nil {
		tracks = append(tracks, g.mic.AudioTracks()...)
	}
	return tracks
}

// ReadFrame produces the next mixed frame and feeds the analyzer.
func (g *Graph) ReadFrame(ctx context.Context) ([]byte, error) {
	if g.closed.Load() {
		return nil, io.EOF
	}
	frame, err := g.tab.ReadFrame(ctx)
	if err != nil {
		return nil, err
	}
	if g.micFrames != nil {
		select {
		case micFrame := <-g.micFrames:
			frame = mixFrames(frame, micFrame)
		default:
		}
	}
	g.analyzer.Observe(frame)
	return frame, nil
}

// Close tears the graph down: every track is stopped and both streams are
// released. Safe to call more than once and concurrently with reads.
func (g *Graph) Close() {
	if g.closed.Swap(true) {
		return
	}
	if g.cancel != nil {
		g.cancel()
	}
	for _, track := range g.AudioTracks() {
		track.Stop()
	}
	g.tab.Close()
	if g.mic != nil {
		g.mic.Close()
	}
	<-g.pumpDone
}

// mixFrames averages two frames of 16-bit little-endian samples. Length
// mismatches mix the overlapping prefix and keep the tab remainder.
func mixFrames(tab, mic []byte) []byte {
	out := append([]byte(nil), tab...)
	n := len(tab)
	if len(mic) < n {
		n = len(mic)
	}
	for i := 0; i+1 < n; i += 2 {
		a := int32(int16(uint16(tab[i]) | uint16(tab[i+1])<<8))
		b := int32(int16(uint16(mic[i]) | uint16(mic[i+1])<<8))
		mixed := (a + b) / 2
		out[i] = byte(uint16(int16(mixed)))
		out[i+1] = byte(uint16(int16(mixed)) >> 8)
	}
	return out
}
