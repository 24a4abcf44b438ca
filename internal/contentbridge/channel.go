package contentbridge

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tabcap/internal/logging"
	"tabcap/internal/meeting"
)

// Inbound page channel message types.
const (
	msgRegisterPage     = "REGISTER_PAGE"
	msgStopRecording    = "STOP_RECORDING"
	msgDiscardRecording = "DISCARD_RECORDING"
	msgWidgetExpanded   = "WIDGET_EXPANDED"
	msgWidgetCollapsed  = "WIDGET_COLLAPSED"
)

// Outbound page channel event types.
const (
	eventRecordingStarted = "RECORDING_STARTED"
	eventRecordingStopped = "RECORDING_STOPPED"
	eventCaptureRequested = "CAPTURE_REQUESTED"
)

type pageMessage struct {
	Type  string        `json:"type"`
	TabID int           `json:"tabId"`
	Page  *pageSnapshot `json:"page,omitempty"`
}

type pageSnapshot struct {
	URL       string            `json:"url"`
	Title     string            `json:"title"`
	Selectors map[string]string `json:"selectors"`
}

type pageEvent struct {
	Type     string `json:"type"`
	TabID    int    `json:"tabId"`
	StreamID string `json:"streamId,omitempty"`
}

// pageConn serializes writes to one websocket connection.
type pageConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *pageConn) send(event pageEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(event)
}

// PageChannel is the websocket endpoint meeting pages connect to. Every
// connection passes an Origin check against the configured page origin
// before any message is acted on; a wrong or missing origin is rejected at
// upgrade time.
type PageChannel struct {
	bridge   *Bridge
	mux      *http.ServeMux
	server   *http.Server
	upgrader websocket.Upgrader

	// baseCtx outlives individual HTTP requests; websocket sessions and
	// their relays run against it, not the upgrade request's context.
	baseCtx context.Context
}

// NewPageChannel builds the channel for the bridge's configured bind
// address and origin.
func NewPageChannel(bridge *Bridge) *PageChannel {
	ch := &PageChannel{bridge: bridge}
	ch.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     ch.checkOrigin,
	}
	ch.mux = http.NewServeMux()
	ch.mux.HandleFunc("/channel", ch.handleUpgrade)
	ch.server = &http.Server{
		Addr:              bridge.cfg.Bridge.PageBind,
		Handler:           ch.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ch
}

// Mount attaches an additional handler to the channel's server, sharing
// its bind address. Must run before Start.
func (ch *PageChannel) Mount(path string, handler http.Handler) {
	ch.mux.Handle(path, handler)
}

// Upgrader exposes the origin-checked websocket upgrader so mounted
// endpoints enforce the same page origin policy.
func (ch *PageChannel) Upgrader() websocket.Upgrader {
	return ch.upgrader
}

func (ch *PageChannel) checkOrigin(r *http.Request) bool {
	allowed := ch.bridge.cfg.Bridge.PageOrigin
	if allowed == "" {
		return false
	}
	origin := strings.TrimRight(strings.TrimSpace(r.Header.Get("Origin")), "/")
	return strings.EqualFold(origin, allowed)
}

// Start begins serving the page channel. Bind failure is returned to the
// caller; the daemon treats it as fatal because a silently missing channel
// would strand every page widget.
func (ch *PageChannel) Start(ctx context.Context) error {
	ch.baseCtx = ctx
	if ch.server.Addr == "" {
		return nil
	}
	listener, err := net.Listen("tcp", ch.server.Addr)
	if err != nil {
		return err
	}
	ch.bridge.logger.Info("page channel listening",
		logging.String("addr", listener.Addr().String()))
	go func() {
		if err := ch.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ch.bridge.logger.Error("page channel server failed", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = ch.server.Shutdown(shutdownCtx)
	}()
	return nil
}

func (ch *PageChannel) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := ch.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ch.bridge.logger.Debug("page channel upgrade rejected",
			logging.String("origin", r.Header.Get("Origin")),
			logging.Error(err))
		return
	}
	ch.readLoop(ch.baseCtx, conn)
}

func (ch *PageChannel) readLoop(ctx context.Context, conn *websocket.Conn) {
	wrapped := &pageConn{conn: conn}
	tabID := -1
	defer func() {
		_ = conn.Close()
		if tabID >= 0 {
			ch.bridge.DropPage(tabID)
		}
	}()

	for {
		var msg pageMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case msgRegisterPage:
			if msg.Page == nil {
				continue
			}
			tabID = msg.TabID
			ch.bridge.RegisterPage(msg.TabID, meeting.Page{
				URL:       msg.Page.URL,
				Title:     msg.Page.Title,
				Selectors: msg.Page.Selectors,
			})
			ch.bridge.attachConn(msg.TabID, wrapped)
		case msgStopRecording:
			ch.bridge.relayStop(ctx, msg.TabID, false)
		case msgDiscardRecording:
			ch.bridge.relayStop(ctx, msg.TabID, true)
		case msgWidgetExpanded:
			ch.bridge.expandWidget(msg.TabID, true)
		case msgWidgetCollapsed:
			ch.bridge.expandWidget(msg.TabID, false)
		default:
			ch.bridge.logger.Debug("unknown page message",
				logging.String("type", msg.Type))
		}
	}
}
