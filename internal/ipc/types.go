package ipc

import (
	"time"

	"tabcap/internal/meeting"
)

// StartDaemonRequest brings the recording pipeline up.
type StartDaemonRequest struct{}

// StartDaemonResponse indicates whether the pipeline was started.
type StartDaemonResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopDaemonRequest tears the recording pipeline down.
type StopDaemonRequest struct{}

// StopDaemonResponse indicates stop result.
type StopDaemonResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// SessionInfo describes one active recording session.
type SessionInfo struct {
	TabID     int       `json:"tab_id"`
	Title     string    `json:"title"`
	Platform  string    `json:"platform"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
	Duration  float64   `json:"duration_seconds"`
}

// StatusResponse represents daemon runtime information.
type StatusResponse struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	LockPath      string         `json:"lock_path"`
	JournalPath   string         `json:"journal_path"`
	Authenticated bool           `json:"authenticated"`
	DeviceMonitor bool           `json:"device_monitor"`
	Sessions      []SessionInfo  `json:"sessions"`
	JournalStats  map[string]int `json:"journal_stats"`
}

// RecordStartRequest starts recording a tab.
type RecordStartRequest struct {
	TabID int `json:"tab_id"`
}

// RecordStartResponse reports the started session's metadata.
type RecordStartResponse struct {
	Title    string `json:"title"`
	Platform string `json:"platform"`
}

// RecordStopRequest stops recording a tab.
type RecordStopRequest struct {
	TabID int `json:"tab_id"`
}

// RecordStopResponse indicates the stop finished, upload included.
type RecordStopResponse struct {
	Stopped bool `json:"stopped"`
}

// RecordResetRequest force-clears a tab's recording state.
type RecordResetRequest struct {
	TabID int `json:"tab_id"`
}

// RecordResetResponse indicates the reset ran; it always does.
type RecordResetResponse struct {
	Reset bool `json:"reset"`
}

// MeetingInfoRequest fetches meeting metadata and popup view for a tab.
type MeetingInfoRequest struct {
	TabID int `json:"tab_id"`
}

// MeetingInfoResponse carries the resolved popup view.
type MeetingInfoResponse struct {
	View     string           `json:"view"`
	Meta     meeting.Metadata `json:"meta"`
	Level    int              `json:"level"`
	Duration float64          `json:"duration_seconds"`
}

// JournalListRequest fetches recent journal entries.
type JournalListRequest struct {
	Limit int `json:"limit"`
}

// JournalEntry mirrors one journal row for IPC callers.
type JournalEntry struct {
	ID              string    `json:"id"`
	TabID           int       `json:"tab_id"`
	Title           string    `json:"title"`
	Platform        string    `json:"platform"`
	MeetingURL      string    `json:"meeting_url"`
	DurationSeconds float64   `json:"duration_seconds"`
	SizeBytes       int64     `json:"size_bytes"`
	Outcome         string    `json:"outcome"`
	UploadID        string    `json:"upload_id"`
	UploadError     string    `json:"upload_error"`
	CreatedAt       time.Time `json:"created_at"`
}

// JournalListResponse contains journal entries, newest first.
type JournalListResponse struct {
	Entries []JournalEntry `json:"entries"`
}

// JournalClearRequest removes all journal entries.
type JournalClearRequest struct{}

// JournalClearResponse reports number of removed entries.
type JournalClearResponse struct {
	Removed int64 `json:"removed"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
