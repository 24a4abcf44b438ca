package contentbridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tabcap/internal/config"
	"tabcap/internal/meeting"
	"tabcap/internal/msgbus"
	"tabcap/internal/protocol"
	"tabcap/internal/testsupport"
)

func newTestBridge(t *testing.T) (*Bridge, *msgbus.Bus, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Timeouts.Command = 1
	bus := msgbus.New(context.Background(), nil)
	t.Cleanup(bus.Close)
	return New(cfg, bus, nil), bus, cfg
}

func newTestChannel(t *testing.T, bridge *Bridge) *httptest.Server {
	t.Helper()
	ch := NewPageChannel(bridge)
	ch.baseCtx = context.Background()
	srv := httptest.NewServer(http.HandlerFunc(ch.handleUpgrade))
	t.Cleanup(srv.Close)
	return srv
}

func dialChannel(t *testing.T, srv *httptest.Server, origin string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial page channel: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, what string, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !pred() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestChannelRejectsWrongOrigin(t *testing.T) {
	bridge, _, _ := newTestBridge(t)
	srv := newTestChannel(t, bridge)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	tests := []struct {
		name   string
		origin string
	}{
		{"missing origin", ""},
		{"wrong origin", "https://evil.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
			if err == nil {
				conn.Close()
				t.Fatal("handshake should be rejected")
			}
			if resp != nil {
				resp.Body.Close()
			}
		})
	}
}

func TestChannelRejectsAllOriginsWhenUnconfigured(t *testing.T) {
	bridge, _, cfg := newTestBridge(t)
	cfg.Bridge.PageOrigin = ""
	srv := newTestChannel(t, bridge)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{}
	header.Set("Origin", "https://meet.google.com")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		conn.Close()
		t.Fatal("empty allowed origin must reject every origin")
	}
	if resp != nil {
		resp.Body.Close()
	}
}

func TestRegisterPageFeedsMeetingInfo(t *testing.T) {
	bridge, _, _ := newTestBridge(t)
	srv := newTestChannel(t, bridge)
	conn := dialChannel(t, srv, "https://meet.google.com")

	err := conn.WriteJSON(pageMessage{
		Type:  msgRegisterPage,
		TabID: 5,
		Page: &pageSnapshot{
			URL:       "https://meet.google.com/abc-defg-hij",
			Title:     "Weekly Sync - Google Meet",
			Selectors: map[string]string{"[data-meeting-title]": "Weekly Sync"},
		},
	})
	if err != nil {
		t.Fatalf("write register: %v", err)
	}

	waitFor(t, "page registration", func() bool {
		return bridge.MeetingInfo(5).Platform == meeting.PlatformGoogleMeet
	})
	meta := bridge.MeetingInfo(5)
	if meta.Title != "Weekly Sync" || meta.MeetingID != "abc-defg-hij" {
		t.Fatalf("meta = %+v", meta)
	}
}

func TestMeetingInfoWithoutPage(t *testing.T) {
	bridge, _, _ := newTestBridge(t)
	meta := bridge.MeetingInfo(404)
	if meta.Platform != meeting.PlatformUnknown {
		t.Fatalf("platform = %s", meta.Platform)
	}
	if meta.Title == "" {
		t.Fatal("fallback metadata must carry a title")
	}
}

func TestWidgetFollowsRecordingNotifications(t *testing.T) {
	bridge, _, _ := newTestBridge(t)
	handler := bridge.Handler()
	ctx := context.Background()

	bridge.RegisterPage(3, meeting.Page{URL: "https://meet.google.com/x"})
	if bridge.Widget(3) != WidgetHidden {
		t.Fatal("widget should start hidden")
	}

	if _, err := handler(ctx, protocol.ContextCoordinator, protocol.RecordingStarted{TabID: 3}); err != nil {
		t.Fatalf("started notification: %v", err)
	}
	if bridge.Widget(3) != WidgetCompact {
		t.Fatalf("widget = %s, want compact", bridge.Widget(3))
	}

	if _, err := handler(ctx, protocol.ContextCoordinator, protocol.RecordingStopped{TabID: 3}); err != nil {
		t.Fatalf("stopped notification: %v", err)
	}
	if bridge.Widget(3) != WidgetHidden {
		t.Fatalf("widget = %s, want hidden", bridge.Widget(3))
	}
}

func TestExpandIgnoredWhileHidden(t *testing.T) {
	bridge, _, _ := newTestBridge(t)
	bridge.RegisterPage(4, meeting.Page{URL: "https://meet.google.com/x"})

	// A stale expand from the page must not reveal the widget.
	bridge.expandWidget(4, true)
	if bridge.Widget(4) != WidgetHidden {
		t.Fatalf("widget = %s, want hidden", bridge.Widget(4))
	}

	bridge.setWidget(4, WidgetCompact)
	bridge.expandWidget(4, true)
	if bridge.Widget(4) != WidgetExpanded {
		t.Fatalf("widget = %s, want expanded", bridge.Widget(4))
	}
	bridge.expandWidget(4, false)
	if bridge.Widget(4) != WidgetCompact {
		t.Fatalf("widget = %s, want compact", bridge.Widget(4))
	}
}

func TestRecordingEventsPushToPage(t *testing.T) {
	bridge, _, _ := newTestBridge(t)
	srv := newTestChannel(t, bridge)
	conn := dialChannel(t, srv, "https://meet.google.com")

	err := conn.WriteJSON(pageMessage{
		Type:  msgRegisterPage,
		TabID: 6,
		Page:  &pageSnapshot{URL: "https://meet.google.com/x"},
	})
	if err != nil {
		t.Fatalf("write register: %v", err)
	}
	waitFor(t, "page registration", func() bool { return bridge.connFor(6) != nil })

	if _, err := bridge.Handler()(context.Background(), protocol.ContextCoordinator, protocol.RecordingStarted{TabID: 6}); err != nil {
		t.Fatalf("started notification: %v", err)
	}

	var event pageEvent
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read page event: %v", err)
	}
	if event.Type != eventRecordingStarted || event.TabID != 6 {
		t.Fatalf("event = %+v", event)
	}
}

func TestRequestCaptureSendsStreamHandle(t *testing.T) {
	bridge, _, _ := newTestBridge(t)
	srv := newTestChannel(t, bridge)
	conn := dialChannel(t, srv, "https://meet.google.com")

	err := conn.WriteJSON(pageMessage{
		Type:  msgRegisterPage,
		TabID: 7,
		Page:  &pageSnapshot{URL: "https://meet.google.com/x"},
	})
	if err != nil {
		t.Fatalf("write register: %v", err)
	}
	waitFor(t, "page registration", func() bool { return bridge.connFor(7) != nil })

	bridge.RequestCapture(7, "handle-99")

	var event pageEvent
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read page event: %v", err)
	}
	if event.Type != eventCaptureRequested || event.StreamID != "handle-99" {
		t.Fatalf("event = %+v", event)
	}
}

func TestPageStopRelaysToCoordinator(t *testing.T) {
	bridge, bus, _ := newTestBridge(t)
	srv := newTestChannel(t, bridge)
	conn := dialChannel(t, srv, "https://meet.google.com")

	stops := make(chan any, 2)
	err := bus.Register(protocol.ContextCoordinator, func(ctx context.Context, from protocol.Context, msg any) (any, error) {
		stops <- msg
		return protocol.Ack{}, nil
	})
	if err != nil {
		t.Fatalf("register coordinator: %v", err)
	}

	if err := conn.WriteJSON(pageMessage{Type: msgStopRecording, TabID: 8}); err != nil {
		t.Fatalf("write stop: %v", err)
	}
	select {
	case msg := <-stops:
		if stop, ok := msg.(protocol.StopRecordingRequest); !ok || stop.TabID != 8 {
			t.Fatalf("relayed = %#v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stop never relayed")
	}

	if err := conn.WriteJSON(pageMessage{Type: msgDiscardRecording, TabID: 8}); err != nil {
		t.Fatalf("write discard: %v", err)
	}
	select {
	case msg := <-stops:
		if discard, ok := msg.(protocol.DiscardRecordingRequest); !ok || discard.TabID != 8 {
			t.Fatalf("relayed = %#v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("discard never relayed")
	}
}

func TestDisconnectDropsPage(t *testing.T) {
	bridge, _, _ := newTestBridge(t)
	srv := newTestChannel(t, bridge)
	conn := dialChannel(t, srv, "https://meet.google.com")

	err := conn.WriteJSON(pageMessage{
		Type:  msgRegisterPage,
		TabID: 9,
		Page:  &pageSnapshot{URL: "https://meet.google.com/x"},
	})
	if err != nil {
		t.Fatalf("write register: %v", err)
	}
	waitFor(t, "page registration", func() bool { return bridge.connFor(9) != nil })

	conn.Close()
	waitFor(t, "page drop", func() bool {
		return bridge.MeetingInfo(9).Platform == meeting.PlatformUnknown
	})
}
