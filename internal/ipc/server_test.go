package ipc_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"tabcap/internal/daemon"
	"tabcap/internal/ipc"
	"tabcap/internal/journal"
	"tabcap/internal/logging"
	"tabcap/internal/meeting"
	"tabcap/internal/protocol"
	"tabcap/internal/testsupport"
)

type fixture struct {
	daemon  *daemon.Daemon
	journal *journal.Store
	client  *ipc.Client
}

func newFixture(t *testing.T, options ...testsupport.ConfigOption) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t, options...)
	store := testsupport.MustOpenJournal(t, cfg)
	logger := logging.NewNop()

	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return &fixture{daemon: d, journal: store, client: client}
}

// wireSentinel recovers the protocol sentinel from an RPC error string.
func wireSentinel(err error) error {
	if err == nil {
		return nil
	}
	return protocol.FromCode(err.Error())
}

func TestStatusRoundTrip(t *testing.T) {
	fx := newFixture(t)

	status, err := fx.client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("daemon should report running")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("pid = %d, want %d", status.PID, os.Getpid())
	}
	if status.Authenticated {
		t.Fatal("no token file, should not be authenticated")
	}
	if len(status.Sessions) != 0 {
		t.Fatalf("sessions = %+v", status.Sessions)
	}
}

func TestStatusReportsAuthentication(t *testing.T) {
	fx := newFixture(t, testsupport.WithToken("secret"))

	status, err := fx.client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Authenticated {
		t.Fatal("token present, should be authenticated")
	}
}

func TestRecordStartWithoutAuth(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.client.RecordStart(7)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(wireSentinel(err), protocol.ErrNotAuthenticated) {
		t.Fatalf("err = %v, want NotAuthenticated wire code", err)
	}
}

func TestRecordStopWithoutSession(t *testing.T) {
	fx := newFixture(t, testsupport.WithToken("secret"))

	_, err := fx.client.RecordStop(7)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(wireSentinel(err), protocol.ErrNoActiveRecording) {
		t.Fatalf("err = %v, want NoActiveRecording wire code", err)
	}
}

func TestRecordResetUnknownTab(t *testing.T) {
	fx := newFixture(t)

	resp, err := fx.client.RecordReset(42)
	if err != nil {
		t.Fatalf("RecordReset: %v", err)
	}
	if !resp.Reset {
		t.Fatal("reset should always report success")
	}
}

func TestMeetingInfoForUnknownTab(t *testing.T) {
	fx := newFixture(t)

	resp, err := fx.client.MeetingInfo(3)
	if err != nil {
		t.Fatalf("MeetingInfo: %v", err)
	}
	// No page registered for the tab, so the bridge falls back to an
	// unknown platform and the popup view lands on not_in_meeting.
	if resp.View != "not_in_meeting" {
		t.Fatalf("view = %q", resp.View)
	}
	if resp.Meta.Platform != meeting.PlatformUnknown {
		t.Fatalf("platform = %q", resp.Meta.Platform)
	}
}

func TestJournalRoundTrip(t *testing.T) {
	fx := newFixture(t)

	entry := journal.Entry{
		TabID:           5,
		Title:           "Weekly Sync",
		Platform:        meeting.PlatformZoom,
		DurationSeconds: 12.5,
		SizeBytes:       512,
		Outcome:         journal.OutcomeLocalOnly,
	}
	if _, err := fx.journal.Record(context.Background(), entry); err != nil {
		t.Fatalf("Record: %v", err)
	}

	list, err := fx.client.JournalList(10)
	if err != nil {
		t.Fatalf("JournalList: %v", err)
	}
	if len(list.Entries) != 1 {
		t.Fatalf("entries = %+v", list.Entries)
	}
	got := list.Entries[0]
	if got.Title != "Weekly Sync" || got.Platform != "ZOOM" || got.Outcome != "local_only" {
		t.Fatalf("entry = %+v", got)
	}

	cleared, err := fx.client.JournalClear()
	if err != nil {
		t.Fatalf("JournalClear: %v", err)
	}
	if cleared.Removed != 1 {
		t.Fatalf("removed = %d", cleared.Removed)
	}
}

func TestLogTailOverRPC(t *testing.T) {
	fx := newFixture(t)

	resp, err := fx.client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("LogTail: %v", err)
	}
	// Nothing has been written to the log file yet.
	if len(resp.Lines) != 0 {
		t.Fatalf("lines = %v", resp.Lines)
	}
}
