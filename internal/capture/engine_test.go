package capture_test

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"tabcap/internal/capture"
	"tabcap/internal/protocol"
	"tabcap/internal/testsupport"
)

type fakeTrack struct {
	id    string
	stops atomic.Int32
}

func (t *fakeTrack) ID() string    { return t.id }
func (t *fakeTrack) Label() string { return t.id }
func (t *fakeTrack) Stop()         { t.stops.Add(1) }

type fakeStream struct {
	tracks []capture.Track
	frames chan []byte
	closed atomic.Bool
}

func newFakeStream(trackIDs []string, frames ...[]byte) *fakeStream {
	s := &fakeStream{frames: make(chan []byte, len(frames)+1)}
	for _, id := range trackIDs {
		s.tracks = append(s.tracks, &fakeTrack{id: id})
	}
	for _, frame := range frames {
		s.frames <- frame
	}
	return s
}

func (s *fakeStream) AudioTracks() []capture.Track { return s.tracks }

func (s *fakeStream) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-s.frames:
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeStream) Close() { s.closed.Store(true) }

func (s *fakeStream) drained(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(s.frames) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("frames never consumed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// The last frame may still be in flight inside the recorder loop.
	time.Sleep(50 * time.Millisecond)
}

type fakeTabs struct {
	stream capture.Stream
	err    error
	gotID  string
}

func (f *fakeTabs) OpenTabStream(ctx context.Context, streamID string) (capture.Stream, error) {
	f.gotID = streamID
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

type fakeMic struct {
	stream capture.Stream
	err    error
	calls  atomic.Int32
}

func (f *fakeMic) OpenMicrophone(ctx context.Context, constraints capture.MicConstraints) (capture.Stream, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

func TestStartAndStopProducesOrderedArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMicrophoneDisabled())
	tab := newFakeStream([]string{"tab-1"}, []byte{1, 2}, []byte{3, 4}, []byte{5, 6})
	engine := capture.NewEngine(cfg, &fakeTabs{stream: tab}, nil, nil)

	if err := engine.Start(context.Background(), "handle-1", 7); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	tab.drained(t)

	complete, err := engine.Stop(context.Background(), 7)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !bytes.Equal(complete.Audio, []byte{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("artifact = %v, want in-order concatenation", complete.Audio)
	}
	if complete.MIMEType != capture.MIMEType {
		t.Fatalf("mime = %q", complete.MIMEType)
	}
	if complete.Size != int64(len(complete.Audio)) {
		t.Fatalf("size = %d, want %d", complete.Size, len(complete.Audio))
	}
	if !tab.closed.Load() {
		t.Fatal("tab stream was not closed")
	}
}

func TestStartPassesStreamHandle(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMicrophoneDisabled())
	tabs := &fakeTabs{stream: newFakeStream([]string{"tab-1"})}
	engine := capture.NewEngine(cfg, tabs, nil, nil)

	if err := engine.Start(context.Background(), "handle-42", 1); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if tabs.gotID != "handle-42" {
		t.Fatalf("stream handle = %q", tabs.gotID)
	}
	engine.Drop(1)
}

func TestStartTabAudioUnavailable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tabs := &fakeTabs{err: errors.New("expired handle")}
	engine := capture.NewEngine(cfg, tabs, nil, nil)

	err := engine.Start(context.Background(), "stale", 3)
	if !errors.Is(err, protocol.ErrTabAudioUnavailable) {
		t.Fatalf("expected ErrTabAudioUnavailable, got %v", err)
	}

	// A failed start leaves the engine ready for the same tab.
	tabs.err = nil
	tabs.stream = newFakeStream([]string{"tab-1"})
	if err := engine.Start(context.Background(), "fresh", 3); err != nil {
		t.Fatalf("fresh Start failed: %v", err)
	}
	engine.Drop(3)
}

func TestStartMicrophoneFailureIsNonFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tab := newFakeStream([]string{"tab-1"}, []byte{9, 9})
	mic := &fakeMic{err: errors.New("permission denied")}
	engine := capture.NewEngine(cfg, &fakeTabs{stream: tab}, mic, nil)

	if err := engine.Start(context.Background(), "handle", 5); err != nil {
		t.Fatalf("Start should tolerate microphone failure, got %v", err)
	}
	if mic.calls.Load() != 1 {
		t.Fatalf("microphone open calls = %d", mic.calls.Load())
	}
	tab.drained(t)

	complete, err := engine.Stop(context.Background(), 5)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !bytes.Equal(complete.Audio, []byte{9, 9}) {
		t.Fatalf("artifact = %v", complete.Audio)
	}
}

func TestStartMicrophoneDisabledSkipsAcquisition(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMicrophoneDisabled())
	tab := newFakeStream([]string{"tab-1"})
	mic := &fakeMic{stream: newFakeStream([]string{"mic-1"})}
	engine := capture.NewEngine(cfg, &fakeTabs{stream: tab}, mic, nil)

	if err := engine.Start(context.Background(), "handle", 2); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if mic.calls.Load() != 0 {
		t.Fatal("microphone should not be opened when disabled")
	}
	engine.Drop(2)
}

func TestStartNoAudioTracks(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMicrophoneDisabled())
	tab := newFakeStream(nil)
	engine := capture.NewEngine(cfg, &fakeTabs{stream: tab}, nil, nil)

	err := engine.Start(context.Background(), "handle", 4)
	if !errors.Is(err, protocol.ErrNoAudioTracks) {
		t.Fatalf("expected ErrNoAudioTracks, got %v", err)
	}
	if !tab.closed.Load() {
		t.Fatal("trackless stream must be released")
	}
}

func TestStartSecondSessionSameTab(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMicrophoneDisabled())
	engine := capture.NewEngine(cfg, &fakeTabs{stream: newFakeStream([]string{"tab-1"})}, nil, nil)

	if err := engine.Start(context.Background(), "first", 8); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	err := engine.Start(context.Background(), "second", 8)
	if !errors.Is(err, protocol.ErrAlreadyRecording) {
		t.Fatalf("expected ErrAlreadyRecording, got %v", err)
	}
	engine.Drop(8)
}

func TestStopWithoutSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine := capture.NewEngine(cfg, &fakeTabs{}, nil, nil)

	_, err := engine.Stop(context.Background(), 12)
	if !errors.Is(err, protocol.ErrNoActiveRecording) {
		t.Fatalf("expected ErrNoActiveRecording, got %v", err)
	}
}

func TestDropReleasesTracks(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMicrophoneDisabled())
	tab := newFakeStream([]string{"tab-1"})
	engine := capture.NewEngine(cfg, &fakeTabs{stream: tab}, nil, nil)

	if err := engine.Start(context.Background(), "handle", 6); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	engine.Drop(6)

	if !tab.closed.Load() {
		t.Fatal("stream not closed on drop")
	}
	track := tab.tracks[0].(*fakeTrack)
	if track.stops.Load() == 0 {
		t.Fatal("track not stopped on drop")
	}
	if len(engine.ActiveTabs()) != 0 {
		t.Fatal("session still active after drop")
	}

	// Dropping a tab the engine never saw is a no-op.
	engine.Drop(999)
}

func TestLevelEmitterReceivesNotifications(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMicrophoneDisabled())
	cfg.Capture.LevelIntervalMs = 10

	loud := []byte{0xff, 0x7f, 0xff, 0x7f}
	tab := newFakeStream([]string{"tab-1"}, loud)
	levels := make(chan protocol.AudioLevel, 16)
	engine := capture.NewEngine(cfg, &fakeTabs{stream: tab}, nil, nil,
		capture.WithLevelEmitter(func(level protocol.AudioLevel) {
			select {
			case levels <- level:
			default:
			}
		}))

	if err := engine.Start(context.Background(), "handle", 9); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer engine.Drop(9)
	tab.drained(t)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case level := <-levels:
			if level.TabID != 9 {
				t.Fatalf("level tab = %d", level.TabID)
			}
			if level.Level > 0 {
				return
			}
		case <-deadline:
			t.Fatal("no non-zero level emitted")
		}
	}
}
