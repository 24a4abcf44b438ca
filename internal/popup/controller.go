package popup

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
	"tabcap/internal/session"
)

// ViewState is what the popup UI should present for a tab.
type ViewState string

const (
	ViewNotInMeeting     ViewState = "not_in_meeting"
	ViewNotAuthenticated ViewState = "not_authenticated"
	ViewIdle             ViewState = "idle"
	ViewRecording        ViewState = "recording"
)

// View is one resolved popup snapshot for a tab.
type View struct {
	State    ViewState
	Meta     meeting.Metadata
	Session  *session.Session
	Level    int
	Duration time.Duration
}

// TabCapturer obtains the opaque capture handle for a tab's audio. The
// handle is single use: every start acquires a fresh one.
type TabCapturer interface {
	MediaStreamID(ctx context.Context, tabID int) (string, error)
}

// Recordings is the coordinator surface the popup needs. ForceStop and the
// read methods work even while a slow stop is in flight.
type Recordings interface {
	Recording(tabID int) bool
	Sessions() []session.Session
	ForceStop(tabID int)
}

// Authenticator reports whether an auth token is available for uploads.
type Authenticator interface {
	Authenticated() bool
}

// Controller drives the user-facing start/stop surface. Every user action
// has a bounded deadline; the controller never leaves the caller hanging on
// a wedged capture engine.
type Controller struct {
	cfg        *config.Config
	logger     *slog.Logger
	bus        *msgbus.Bus
	tabs       TabCapturer
	recordings Recordings
	auth       Authenticator
	now        func() time.Time

	mu     sync.Mutex
	levels map[int]int
}

// New constructs the popup controller.
func New(cfg *config.Config, bus *msgbus.Bus, tabs TabCapturer, recordings Recordings, auth Authenticator, logger *slog.Logger) *Controller {
	return &Controller{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "popup"),
		bus:        bus,
		tabs:       tabs,
		recordings: recordings,
		auth:       auth,
		now:        time.Now,
		levels:     make(map[int]int),
	}
}

func (c *Controller) startTimeout() time.Duration {
	return time.Duration(c.cfg.Timeouts.Start) * time.Second
}

func (c *Controller) stopTimeout() time.Duration {
	return time.Duration(c.cfg.Timeouts.Stop) * time.Second
}

// MeetingInfo fetches the tab's meeting metadata from the content bridge.
// An unreachable bridge degrades to URL-free fallback metadata instead of
// failing: the popup must always render something.
func (c *Controller) MeetingInfo(ctx context.Context, tabID int) meeting.Metadata {
	resp, err := c.bus.Request(ctx, protocol.ContextPopup, protocol.ContextBridge,
		protocol.GetMeetingInfo{TabID: tabID},
		time.Duration(c.cfg.Timeouts.Command)*time.Second)
	if err != nil {
		c.logger.Debug("meeting info unavailable",
			logging.Int(logging.FieldTab, tabID),
			logging.Error(err))
		return meeting.Fallback(meeting.PlatformUnknown, "", c.now())
	}
	info, ok := resp.(protocol.MeetingInfo)
	if !ok {
		return meeting.Fallback(meeting.PlatformUnknown, "", c.now())
	}
	return info.Meta
}

// Resolve computes the popup view for a tab. Precedence matches the UI:
// an active recording always renders as Recording, then non-meeting pages,
// then missing authentication, then Idle with a live start button.
func (c *Controller) Resolve(ctx context.Context, tabID int) View {
	if c.recordings.Recording(tabID) {
		view := View{State: ViewRecording, Level: c.level(tabID)}
		for _, s := range c.recordings.Sessions() {
			if s.TabID == tabID {
				sess := s
				view.Session = &sess
				view.Meta = s.Meta
				view.Duration = s.Duration(c.now())
				break
			}
		}
		return view
	}

	meta := c.MeetingInfo(ctx, tabID)
	if meta.Platform == meeting.PlatformUnknown {
		return View{State: ViewNotInMeeting, Meta: meta}
	}
	if !c.auth.Authenticated() {
		return View{State: ViewNotAuthenticated, Meta: meta}
	}
	return View{State: ViewIdle, Meta: meta}
}

// StartRecording runs the full user-initiated start: acquire a fresh
// capture handle, gather meeting metadata, and command the coordinator.
// The whole sequence shares one deadline so the button can never spin
// forever.
func (c *Controller) StartRecording(ctx context.Context, tabID int) error {
	if !c.auth.Authenticated() {
		return protocol.ErrNotAuthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, c.startTimeout())
	defer cancel()

	meta := c.MeetingInfo(ctx, tabID)
	if meta.Title == "" {
		meta.Title = meeting.TitleFromURL(meta.URL, c.now())
	}

	streamID, err := c.tabs.MediaStreamID(ctx, tabID)
	if err != nil {
		c.logger.Error("tab capture handle unavailable",
			logging.Int(logging.FieldTab, tabID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the tab may not be audible or may already be captured"))
		return protocol.Wrap("popup", "acquire stream", protocol.ErrTabAudioUnavailable)
	}

	_, err = c.bus.Request(ctx, protocol.ContextPopup, protocol.ContextCoordinator,
		protocol.StartRecording{TabID: tabID, StreamID: streamID, Meta: meta},
		c.startTimeout())
	if err != nil {
		return err
	}
	c.logger.Info("start requested",
		logging.Int(logging.FieldTab, tabID),
		logging.String("title", meta.Title))
	return nil
}

// StopRecording asks the coordinator to finish the tab's session. The stop
// deadline covers the upload, which is why it is longer than start.
func (c *Controller) StopRecording(ctx context.Context, tabID int) error {
	ctx, cancel := context.WithTimeout(ctx, c.stopTimeout())
	defer cancel()

	_, err := c.bus.Request(ctx, protocol.ContextPopup, protocol.ContextCoordinator,
		protocol.StopRecording{TabID: tabID}, c.stopTimeout())
	c.forgetLevel(tabID)
	if err != nil {
		return err
	}
	c.logger.Info("stop completed", logging.Int(logging.FieldTab, tabID))
	return nil
}

// ForceReset clears a tab's recording state unconditionally. It is the
// escape hatch for a session wedged by a crashed capture path and never
// fails.
func (c *Controller) ForceReset(tabID int) {
	c.recordings.ForceStop(tabID)
	c.forgetLevel(tabID)
}

// Handler adapts the controller to the message bus; it consumes the level
// notifications the coordinator relays.
func (c *Controller) Handler() msgbus.Handler {
	return func(ctx context.Context, from protocol.Context, msg any) (any, error) {
		switch m := msg.(type) {
		case protocol.AudioLevel:
			c.mu.Lock()
			c.levels[m.TabID] = m.Level
			c.mu.Unlock()
			return protocol.Ack{}, nil
		default:
			return protocol.Ack{}, nil
		}
	}
}

func (c *Controller) level(tabID int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.levels[tabID]
}

func (c *Controller) forgetLevel(tabID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.levels, tabID)
}
