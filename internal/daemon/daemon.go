package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"tabcap/internal/auth"
	"tabcap/internal/capture"
	"tabcap/internal/config"
	"tabcap/internal/contentbridge"
	"tabcap/internal/coordinator"
	"tabcap/internal/ingest"
	"tabcap/internal/journal"
	"tabcap/internal/logging"
	"tabcap/internal/meeting"
	"tabcap/internal/msgbus"
	"tabcap/internal/popup"
	"tabcap/internal/protocol"
	"tabcap/internal/session"
	"tabcap/internal/uploader"
)

// Daemon hosts the recording pipeline and enforces single-instance
// execution. All four contexts (coordinator, capture, popup, bridge) run
// inside it on the message bus; IPC clients reach them through the
// daemon's methods.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	journal *journal.Store
	logPath string

	lockPath string
	lock     *flock.Flock

	tokens  *auth.Provider
	broker  *ingest.Broker
	bus     *msgbus.Bus
	engine  *capture.Engine
	coord   *coordinator.Coordinator
	popup   *popup.Controller
	bridge  *contentbridge.Bridge
	channel *contentbridge.PageChannel
	devices *capture.DeviceMonitor

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	LockPath      string
	SocketPath    string
	JournalPath   string
	Authenticated bool
	DeviceMonitor bool
	Sessions      []session.Session
	JournalStats  map[journal.Outcome]int
}

// New constructs a daemon with initialized dependencies. The journal
// store may be nil; recordings then finish without local history.
func New(cfg *config.Config, store *journal.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		journal:  store,
		logPath:  filepath.Join(cfg.Paths.LogDir, "tabcap.log"),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}, nil
}

// tabCapturer mints a capture handle and asks the tab's page to start
// pushing audio for it.
type tabCapturer struct {
	broker *ingest.Broker
	bridge *contentbridge.Bridge
}

func (t tabCapturer) MediaStreamID(ctx context.Context, tabID int) (string, error) {
	id, err := t.broker.MediaStreamID(ctx, tabID)
	if err != nil {
		return "", err
	}
	t.bridge.RequestCapture(tabID, id)
	return id, nil
}

// Start acquires the daemon lock and brings up the bus, the four
// contexts, the page channel, and the watchers.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tabcap daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.bootstrap(); err != nil {
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("tabcap daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (d *Daemon) bootstrap() error {
	d.tokens = auth.NewProvider(d.cfg.Paths.TokenPath, d.logger)
	d.broker = ingest.NewBroker(d.logger)
	d.bus = msgbus.New(d.ctx, d.logger)

	d.engine = capture.NewEngine(d.cfg, d.broker, d.broker, d.logger,
		capture.WithLevelEmitter(func(level protocol.AudioLevel) {
			d.bus.Notify(protocol.ContextCapture, protocol.ContextCoordinator, level)
		}))

	uploads := uploader.NewService(d.cfg, d.tokens)
	d.coord = coordinator.New(d.cfg, d.bus, uploads, d.journal, d.logger)
	d.bridge = contentbridge.New(d.cfg, d.bus, d.logger)
	d.popup = popup.New(d.cfg, d.bus,
		tabCapturer{broker: d.broker, bridge: d.bridge},
		d.coord, d.tokens, d.logger)

	registrations := []struct {
		name    protocol.Context
		handler msgbus.Handler
	}{
		{protocol.ContextCapture, d.engine.Handler()},
		{protocol.ContextCoordinator, d.coord.Handler()},
		{protocol.ContextPopup, d.popup.Handler()},
		{protocol.ContextBridge, d.bridge.Handler()},
	}
	for _, reg := range registrations {
		if err := d.bus.Register(reg.name, reg.handler); err != nil {
			d.bus.Close()
			return fmt.Errorf("register %s: %w", reg.name, err)
		}
	}

	d.channel = contentbridge.NewPageChannel(d.bridge)
	d.channel.Mount("/ingest", d.broker.Handler(d.channel.Upgrader()))
	if err := d.channel.Start(d.ctx); err != nil {
		d.bus.Close()
		return fmt.Errorf("start page channel: %w", err)
	}

	if err := d.tokens.Watch(d.ctx); err != nil {
		return fmt.Errorf("watch token file: %w", err)
	}

	if d.cfg.Capture.DeviceMonitor {
		d.devices = capture.NewDeviceMonitor(d.logger)
		_ = d.devices.Start(d.ctx)
	}
	return nil
}

// Stop shuts everything down and releases the daemon lock. Active
// recordings are dropped, not finished; stopping the daemon is the big
// hammer, not a graceful stop-all.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	for _, sess := range d.coord.Sessions() {
		d.coord.ForceStop(sess.TabID)
	}
	if d.devices != nil {
		d.devices.Stop()
		d.devices = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.bus != nil {
		d.bus.Close()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("tabcap daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}

// StartRecording runs a user-initiated start for a tab through the popup
// controller.
func (d *Daemon) StartRecording(ctx context.Context, tabID int) error {
	if !d.running.Load() {
		return errors.New("daemon not running")
	}
	return d.popup.StartRecording(ctx, tabID)
}

// StopRecording runs a user-initiated stop for a tab.
func (d *Daemon) StopRecording(ctx context.Context, tabID int) error {
	if !d.running.Load() {
		return errors.New("daemon not running")
	}
	return d.popup.StopRecording(ctx, tabID)
}

// ForceStop clears a tab's recording state unconditionally.
func (d *Daemon) ForceStop(tabID int) {
	if !d.running.Load() {
		return
	}
	d.popup.ForceReset(tabID)
}

// Resolve computes the popup view for a tab.
func (d *Daemon) Resolve(ctx context.Context, tabID int) (popup.View, error) {
	if !d.running.Load() {
		return popup.View{}, errors.New("daemon not running")
	}
	return d.popup.Resolve(ctx, tabID), nil
}

// MeetingInfo fetches the tab's meeting metadata.
func (d *Daemon) MeetingInfo(ctx context.Context, tabID int) (meeting.Metadata, error) {
	if !d.running.Load() {
		return meeting.Metadata{}, errors.New("daemon not running")
	}
	return d.popup.MeetingInfo(ctx, tabID), nil
}

// JournalList returns the most recent journal entries, newest first.
func (d *Daemon) JournalList(ctx context.Context, limit int) ([]journal.Entry, error) {
	if d.journal == nil {
		return nil, errors.New("journal unavailable")
	}
	return d.journal.List(ctx, limit)
}

// JournalClear removes all journal entries.
func (d *Daemon) JournalClear(ctx context.Context) (int64, error) {
	if d.journal == nil {
		return 0, errors.New("journal unavailable")
	}
	return d.journal.Clear(ctx)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:     d.running.Load(),
		LockPath:    d.lockPath,
		SocketPath:  d.cfg.SocketPath(),
		JournalPath: d.cfg.JournalPath(),
	}
	if !status.Running {
		return status
	}
	status.PID = os.Getpid()
	status.Authenticated = d.tokens.Authenticated()
	status.DeviceMonitor = d.devices != nil && d.devices.Running()
	status.Sessions = d.coord.Sessions()
	if d.journal != nil {
		if stats, err := d.journal.Stats(ctx); err == nil {
			status.JournalStats = stats
		}
	}
	return status
}
