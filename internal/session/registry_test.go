package session_test

import (
	"errors"
	"testing"
	"time"

	"tabcap/internal/meeting"
	"tabcap/internal/protocol"
	"tabcap/internal/session"
)

func newSession(tabID int) *session.Session {
	return &session.Session{
		TabID:     tabID,
		StreamID:  "stream",
		Meta:      meeting.Fallback(meeting.PlatformGoogleMeet, "https://meet.google.com/abc", time.Now()),
		State:     session.StateStarting,
		StartedAt: time.Now(),
	}
}

func TestRegisterRejectsSecondSession(t *testing.T) {
	reg := session.NewRegistry()
	if err := reg.Register(newSession(7)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	err := reg.Register(newSession(7))
	if !errors.Is(err, protocol.ErrAlreadyRecording) {
		t.Fatalf("expected ErrAlreadyRecording, got %v", err)
	}

	existing, err := reg.Get(7)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if existing.State != session.StateStarting {
		t.Fatalf("existing session mutated: %v", existing.State)
	}
}

func TestRegisterRejectsDuringAnyState(t *testing.T) {
	for _, state := range []session.State{session.StateStarting, session.StateRecording, session.StateStopping} {
		t.Run(string(state), func(t *testing.T) {
			reg := session.NewRegistry()
			s := newSession(1)
			s.State = state
			if err := reg.Register(s); err != nil {
				t.Fatalf("Register failed: %v", err)
			}
			if err := reg.Register(newSession(1)); !errors.Is(err, protocol.ErrAlreadyRecording) {
				t.Fatalf("expected ErrAlreadyRecording for state %s, got %v", state, err)
			}
		})
	}
}

func TestGetMissingTab(t *testing.T) {
	reg := session.NewRegistry()
	if _, err := reg.Get(42); !errors.Is(err, protocol.ErrNoActiveRecording) {
		t.Fatalf("expected ErrNoActiveRecording, got %v", err)
	}
}

func TestSetStateAfterForceRemove(t *testing.T) {
	reg := session.NewRegistry()
	if err := reg.Register(newSession(3)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	reg.ForceRemove(3)

	err := reg.SetState(3, session.StateRecording)
	if !errors.Is(err, protocol.ErrNoActiveRecording) {
		t.Fatalf("expected ErrNoActiveRecording after force remove, got %v", err)
	}
}

func TestMarkRecordingStampsStateAndStart(t *testing.T) {
	reg := session.NewRegistry()
	s := newSession(7)
	s.StartedAt = time.Time{}
	if err := reg.Register(s); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	startedAt := time.Now()
	if err := reg.MarkRecording(7, startedAt); err != nil {
		t.Fatalf("MarkRecording failed: %v", err)
	}

	active := reg.Active()
	if len(active) != 1 {
		t.Fatalf("active = %d sessions", len(active))
	}
	if active[0].State != session.StateRecording || !active[0].StartedAt.Equal(startedAt) {
		t.Fatalf("session = %+v", active[0])
	}

	if err := reg.MarkRecording(8, startedAt); !errors.Is(err, protocol.ErrNoActiveRecording) {
		t.Fatalf("missing tab err = %v", err)
	}
}

func TestMarkRecordingDuringSnapshots(t *testing.T) {
	reg := session.NewRegistry()
	if err := reg.Register(newSession(7)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = reg.MarkRecording(7, time.Now())
		}
	}()
	for {
		_ = reg.Active()
		select {
		case <-done:
			return
		default:
		}
	}
}

func TestForceRemoveIsIdempotent(t *testing.T) {
	reg := session.NewRegistry()
	reg.ForceRemove(99)
	reg.ForceRemove(99)
	if reg.Exists(99) {
		t.Fatal("tab should not exist")
	}
}

func TestRemoveReportsExistence(t *testing.T) {
	reg := session.NewRegistry()
	if reg.Remove(5) {
		t.Fatal("Remove on empty registry should report false")
	}
	if err := reg.Register(newSession(5)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !reg.Remove(5) {
		t.Fatal("Remove should report true for registered tab")
	}
}

func TestActiveOrdersByTab(t *testing.T) {
	reg := session.NewRegistry()
	for _, tabID := range []int{9, 2, 5} {
		if err := reg.Register(newSession(tabID)); err != nil {
			t.Fatalf("Register %d failed: %v", tabID, err)
		}
	}

	active := reg.Active()
	if len(active) != 3 {
		t.Fatalf("expected 3 active sessions, got %d", len(active))
	}
	for i, want := range []int{2, 5, 9} {
		if active[i].TabID != want {
			t.Fatalf("position %d: expected tab %d, got %d", i, want, active[i].TabID)
		}
	}
}

func TestDurationZeroForUnstartedSession(t *testing.T) {
	var s *session.Session
	if got := s.Duration(time.Now()); got != 0 {
		t.Fatalf("nil session duration = %v, want 0", got)
	}
	empty := &session.Session{}
	if got := empty.Duration(time.Now()); got != 0 {
		t.Fatalf("zero StartedAt duration = %v, want 0", got)
	}
}
