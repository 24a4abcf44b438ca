package capture

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"tabcap/internal/logging"
)

// DeviceMonitor listens for udev netlink events on the sound subsystem so
// microphone plug/unplug shows up in the logs. When a capture degrades to
// tab-only audio, these events explain why. Connect failure is non-fatal:
// recording works without the monitor, it is purely diagnostic.
type DeviceMonitor struct {
	logger *slog.Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewDeviceMonitor constructs the monitor. It does nothing until Start.
func NewDeviceMonitor(logger *slog.Logger) *DeviceMonitor {
	return &DeviceMonitor{
		logger: logging.NewComponentLogger(logger, "device-monitor"),
	}
}

// Start begins listening for sound-subsystem udev events.
func (m *DeviceMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; audio device events will not be logged",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "degraded captures will lack device context"))
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("audio device monitor started",
		logging.String(logging.FieldEventType, "device_monitor_started"))
	return nil
}

// Stop shuts the monitor down. Safe to call when never started.
func (m *DeviceMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("audio device monitor stopped",
		logging.String(logging.FieldEventType, "device_monitor_stopped"))
}

// Running reports whether the monitor is active.
func (m *DeviceMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *DeviceMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.logger.Info("audio device event",
				logging.String("action", string(uevent.Action)),
				logging.String("device", uevent.KObj),
				logging.String(logging.FieldEventType, "audio_device_"+string(uevent.Action)))
		case err := <-errs:
			m.logger.Warn("device monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "device_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "audio device events may be missed"))
		}
	}
}

// buildMatcher matches add/remove events on the sound subsystem.
func (m *DeviceMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "sound",
		},
	})
	return rules
}
