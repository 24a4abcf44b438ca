package contentbridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tabcap/internal/config"
	"tabcap/internal/logging"
	"tabcap/internal/meeting"
	"tabcap/internal/msgbus"
	"tabcap/internal/protocol"
)

// WidgetState is the on-page widget's visibility for a tab.
type WidgetState string

const (
	WidgetHidden   WidgetState = "hidden"
	WidgetCompact  WidgetState = "compact"
	WidgetExpanded WidgetState = "expanded"
)

// Bridge is the daemon's stand-in for the content script: it keeps a page
// snapshot per connected tab, answers meeting info queries against it, and
// drives the widget from recording notifications. Widget state comes only
// from those notifications; the bridge never asks the coordinator whether a
// recording exists.
type Bridge struct {
	cfg    *config.Config
	logger *slog.Logger
	bus    *msgbus.Bus
	now    func() time.Time

	mu      sync.Mutex
	pages   map[int]meeting.Page
	widgets map[int]WidgetState
	conns   map[int]*pageConn
}

// New constructs the bridge.
func New(cfg *config.Config, bus *msgbus.Bus, logger *slog.Logger) *Bridge {
	return &Bridge{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "bridge"),
		bus:     bus,
		now:     time.Now,
		pages:   make(map[int]meeting.Page),
		widgets: make(map[int]WidgetState),
		conns:   make(map[int]*pageConn),
	}
}

// RegisterPage stores the latest page snapshot for a tab. Repeated
// registration overwrites; pages re-send their snapshot on navigation.
func (b *Bridge) RegisterPage(tabID int, page meeting.Page) {
	b.mu.Lock()
	b.pages[tabID] = page
	if _, ok := b.widgets[tabID]; !ok {
		b.widgets[tabID] = WidgetHidden
	}
	b.mu.Unlock()
	b.logger.Debug("page registered",
		logging.Int(logging.FieldTab, tabID),
		logging.String("url", page.URL))
}

// DropPage forgets a tab, typically on page channel disconnect.
func (b *Bridge) DropPage(tabID int) {
	b.mu.Lock()
	delete(b.pages, tabID)
	delete(b.widgets, tabID)
	delete(b.conns, tabID)
	b.mu.Unlock()
}

// MeetingInfo extracts metadata from the tab's page snapshot. Tabs with no
// registered page yield UNKNOWN fallback metadata; the reply is always
// well-formed.
func (b *Bridge) MeetingInfo(tabID int) meeting.Metadata {
	b.mu.Lock()
	page, ok := b.pages[tabID]
	b.mu.Unlock()
	if !ok {
		return meeting.Fallback(meeting.PlatformUnknown, "", b.now())
	}
	return meeting.Extract(page, b.now())
}

// Widget reports the widget state for a tab.
func (b *Bridge) Widget(tabID int) WidgetState {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.widgets[tabID]
	if !ok {
		return WidgetHidden
	}
	return state
}

func (b *Bridge) setWidget(tabID int, state WidgetState) {
	b.mu.Lock()
	b.widgets[tabID] = state
	b.mu.Unlock()
}

// expandWidget only applies while the widget is visible; an expand from a
// hidden widget is a stale page message and is dropped.
func (b *Bridge) expandWidget(tabID int, expanded bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	current, ok := b.widgets[tabID]
	if !ok || current == WidgetHidden {
		return
	}
	if expanded {
		b.widgets[tabID] = WidgetExpanded
	} else {
		b.widgets[tabID] = WidgetCompact
	}
}

func (b *Bridge) connFor(tabID int) *pageConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conns[tabID]
}

func (b *Bridge) attachConn(tabID int, conn *pageConn) {
	b.mu.Lock()
	b.conns[tabID] = conn
	b.mu.Unlock()
}

// notifyPage pushes a recording event to the tab's page connection. Pages
// without a live connection just miss the event; the widget catches up on
// the next one.
func (b *Bridge) notifyPage(tabID int, eventType string) {
	conn := b.connFor(tabID)
	if conn == nil {
		return
	}
	if err := conn.send(pageEvent{Type: eventType, TabID: tabID}); err != nil {
		b.logger.Debug("page notification failed",
			logging.Int(logging.FieldTab, tabID),
			logging.String("event", eventType),
			logging.Error(err))
	}
}

// RequestCapture tells the tab's page to start pushing its audio feed for
// the minted handle. Pages without a live connection miss the request and
// the start fails at the tab feed wait, which is the correct outcome.
func (b *Bridge) RequestCapture(tabID int, streamID string) {
	conn := b.connFor(tabID)
	if conn == nil {
		b.logger.Debug("capture request with no page connection",
			logging.Int(logging.FieldTab, tabID))
		return
	}
	if err := conn.send(pageEvent{Type: eventCaptureRequested, TabID: tabID, StreamID: streamID}); err != nil {
		b.logger.Debug("capture request delivery failed",
			logging.Int(logging.FieldTab, tabID),
			logging.Error(err))
	}
}

// relayStop forwards a page-initiated stop or discard to the coordinator.
// The coordinator acks immediately and finishes asynchronously, so the
// relay deadline is the short command timeout.
func (b *Bridge) relayStop(ctx context.Context, tabID int, discard bool) {
	var msg any = protocol.StopRecordingRequest{TabID: tabID}
	if discard {
		msg = protocol.DiscardRecordingRequest{TabID: tabID}
	}
	_, err := b.bus.Request(ctx, protocol.ContextBridge, protocol.ContextCoordinator,
		msg, time.Duration(b.cfg.Timeouts.Command)*time.Second)
	if err != nil {
		b.logger.Warn("page stop relay failed",
			logging.Int(logging.FieldTab, tabID),
			logging.Bool("discard", discard),
			logging.Error(err))
	}
}

// Handler adapts the bridge to the message bus.
func (b *Bridge) Handler() msgbus.Handler {
	return func(ctx context.Context, from protocol.Context, msg any) (any, error) {
		switch m := msg.(type) {
		case protocol.GetMeetingInfo:
			return protocol.MeetingInfo{Meta: b.MeetingInfo(m.TabID)}, nil
		case protocol.RecordingStarted:
			b.setWidget(m.TabID, WidgetCompact)
			b.notifyPage(m.TabID, eventRecordingStarted)
			return protocol.Ack{}, nil
		case protocol.RecordingStopped:
			b.setWidget(m.TabID, WidgetHidden)
			b.notifyPage(m.TabID, eventRecordingStopped)
			return protocol.Ack{}, nil
		default:
			return protocol.Ack{}, nil
		}
	}
}
