package session

import (
	"time"

	"tabcap/internal/meeting"
)

// State is the lifecycle position of a recording session. Starting and
// Stopping are transient: a failure in either returns the tab to Idle by
// removing the registry entry. There is no terminal error state that could
// block future attempts on the same tab.
type State string

const (
	StateStarting  State = "starting"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
)

// Session is the unit of work for one in-progress capture, keyed by tab.
type Session struct {
	TabID     int
	StreamID  string
	Meta      meeting.Metadata
	State     State
	StartedAt time.Time
}

// Duration reports elapsed capture time at the given instant.
func (s *Session) Duration(now time.Time) time.Duration {
	if s == nil || s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}
