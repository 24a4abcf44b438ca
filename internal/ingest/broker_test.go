package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tabcap/internal/capture"
	"tabcap/internal/protocol"
)

func TestOpenTabStreamClaimsHandleOnce(t *testing.T) {
	b := NewBroker(nil)
	streamID, err := b.MediaStreamID(context.Background(), 1)
	if err != nil {
		t.Fatalf("MediaStreamID: %v", err)
	}

	f, ok := b.attachTab(streamID, "tab audio")
	if !ok {
		t.Fatal("attachTab rejected a freshly minted handle")
	}
	defer f.Close()

	stream, err := b.OpenTabStream(context.Background(), streamID)
	if err != nil {
		t.Fatalf("OpenTabStream: %v", err)
	}
	if stream == nil {
		t.Fatal("nil stream")
	}

	// The handle is consumed; a second claim fails.
	_, err = b.OpenTabStream(context.Background(), streamID)
	if !errors.Is(err, protocol.ErrTabAudioUnavailable) {
		t.Fatalf("second claim = %v, want ErrTabAudioUnavailable", err)
	}
}

func TestOpenTabStreamClaimBeforeAttach(t *testing.T) {
	b := NewBroker(nil)
	streamID, err := b.MediaStreamID(context.Background(), 1)
	if err != nil {
		t.Fatalf("MediaStreamID: %v", err)
	}

	type claim struct {
		stream capture.Stream
		err    error
	}
	claims := make(chan claim, 1)
	go func() {
		stream, err := b.OpenTabStream(context.Background(), streamID)
		claims <- claim{stream, err}
	}()

	// The engine's claim arrives over the in-process bus before the page
	// finishes its ingest round trip. The late feed must still bind.
	time.Sleep(50 * time.Millisecond)
	f, ok := b.attachTab(streamID, "tab audio")
	if !ok {
		t.Fatal("attachTab rejected the feed for a claimed handle")
	}
	defer f.Close()

	select {
	case c := <-claims:
		if c.err != nil {
			t.Fatalf("OpenTabStream: %v", c.err)
		}
		f.push([]byte{1, 2})
		frame, err := c.stream.ReadFrame(context.Background())
		if err != nil || !bytes.Equal(frame, []byte{1, 2}) {
			t.Fatalf("frame = %v, %v", frame, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OpenTabStream did not return after the feed attached")
	}
}

func TestFailedClaimForgetsHandle(t *testing.T) {
	b := NewBroker(nil)
	streamID, err := b.MediaStreamID(context.Background(), 1)
	if err != nil {
		t.Fatalf("MediaStreamID: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := b.OpenTabStream(ctx, streamID); !errors.Is(err, protocol.ErrTabAudioUnavailable) {
		t.Fatalf("err = %v, want ErrTabAudioUnavailable", err)
	}

	// The claim settled without a feed; a page connecting afterwards is
	// turned away instead of feeding a dead stream.
	if _, ok := b.attachTab(streamID, "late"); ok {
		t.Fatal("attachTab accepted a handle whose claim already failed")
	}
}

func TestOpenTabStreamUnknownHandle(t *testing.T) {
	b := NewBroker(nil)
	_, err := b.OpenTabStream(context.Background(), "never-minted")
	if !errors.Is(err, protocol.ErrTabAudioUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestOpenTabStreamTimesOutWithoutFeed(t *testing.T) {
	b := NewBroker(nil)
	streamID, err := b.MediaStreamID(context.Background(), 2)
	if err != nil {
		t.Fatalf("MediaStreamID: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = b.OpenTabStream(ctx, streamID)
	if !errors.Is(err, protocol.ErrTabAudioUnavailable) {
		t.Fatalf("err = %v, want ErrTabAudioUnavailable", err)
	}
}

func TestAttachTabRejectsDoubleAttach(t *testing.T) {
	b := NewBroker(nil)
	streamID, err := b.MediaStreamID(context.Background(), 3)
	if err != nil {
		t.Fatalf("MediaStreamID: %v", err)
	}

	if _, ok := b.attachTab(streamID, "first"); !ok {
		t.Fatal("first attach rejected")
	}
	if _, ok := b.attachTab(streamID, "second"); ok {
		t.Fatal("second attach must be rejected")
	}
}

func TestOpenMicrophoneWaitsForFeed(t *testing.T) {
	b := NewBroker(nil)

	go func() {
		time.Sleep(100 * time.Millisecond)
		b.attachMic("built-in mic")
	}()

	stream, err := b.OpenMicrophone(context.Background(), capture.MicConstraints{})
	if err != nil {
		t.Fatalf("OpenMicrophone: %v", err)
	}
	tracks := stream.AudioTracks()
	if len(tracks) != 1 || tracks[0].Label() != "built-in mic" {
		t.Fatalf("tracks = %v", tracks)
	}
}

func TestOpenMicrophoneDegradesWithoutFeed(t *testing.T) {
	b := NewBroker(nil)

	start := time.Now()
	_, err := b.OpenMicrophone(context.Background(), capture.MicConstraints{})
	if !errors.Is(err, protocol.ErrNoAudioTracks) {
		t.Fatalf("err = %v, want ErrNoAudioTracks", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("microphone wait took far too long")
	}
}

func TestFeedDeliversFramesInOrder(t *testing.T) {
	f := newFeed("id", "tab audio")
	f.attach("")

	f.push([]byte{1})
	f.push([]byte{2})
	f.Close()

	var got []byte
	for {
		frame, err := f.ReadFrame(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		got = append(got, frame...)
	}
	if !bytes.Equal(got, []byte{1, 2}) {
		t.Fatalf("frames = %v", got)
	}
}

func TestFeedTrackStopClosesFeed(t *testing.T) {
	f := newFeed("id", "tab audio")
	f.attach("")

	f.AudioTracks()[0].Stop()
	if !f.closedNow() {
		t.Fatal("track stop must close the feed")
	}
	if _, err := f.ReadFrame(context.Background()); err != io.EOF {
		t.Fatalf("ReadFrame after stop = %v, want io.EOF", err)
	}
	// Close is idempotent.
	f.Close()
}

func TestIngestEndpointFeedsTabStream(t *testing.T) {
	b := NewBroker(nil)
	srv := httptest.NewServer(b.Handler(websocket.Upgrader{}))
	defer srv.Close()

	streamID, err := b.MediaStreamID(context.Background(), 4)
	if err != nil {
		t.Fatalf("MediaStreamID: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{})
	if err != nil {
		t.Fatalf("dial ingest: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	if err := conn.WriteJSON(hello{Kind: kindTab, StreamID: streamID, Label: "tab audio"}); err != nil {
		t.Fatalf("write hello: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stream, err := b.OpenTabStream(ctx, streamID)
	if err != nil {
		t.Fatalf("OpenTabStream: %v", err)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{7, 8, 9}); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	frame, err := stream.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(frame, []byte{7, 8, 9}) {
		t.Fatalf("frame = %v", frame)
	}
}

func TestIngestEndpointRejectsUnknownHandle(t *testing.T) {
	b := NewBroker(nil)
	srv := httptest.NewServer(b.Handler(websocket.Upgrader{}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{})
	if err != nil {
		t.Fatalf("dial ingest: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	if err := conn.WriteJSON(hello{Kind: kindTab, StreamID: "bogus"}); err != nil {
		t.Fatalf("write hello: %v", err)
	}

	// The server hangs up on an unknown handle.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected server to close the connection")
	}
}
