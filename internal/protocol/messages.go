package protocol

import (
	"tabcap/internal/meeting"
)

// Context names the isolated execution contexts on the bus.
type Context string

const (
	ContextCoordinator Context = "coordinator"
	ContextCapture     Context = "capture"
	ContextPopup       Context = "popup"
	ContextBridge      Context = "bridge"
)

// StartRecording commands the capture engine to begin recording a tab.
// StreamID is the opaque tab-capture handle: obtained once, consumed once.
type StartRecording struct {
	TabID    int
	StreamID string
	Meta     meeting.Metadata
}

// Ack is the generic success response for commands without a payload.
type Ack struct{}

// StopRecording commands the capture engine to finish recording a tab.
// The reply is a RecordingComplete carrying the finished artifact.
type StopRecording struct {
	TabID int
}

// RecordingComplete hands the finished audio artifact from the capture
// engine to the coordinator. Ownership of the bytes transfers with the
// message; the coordinator delivers them to the upload API exactly once.
type RecordingComplete struct {
	TabID    int
	Audio    []byte
	MIMEType string
	Size     int64
}

// AudioLevel is the best-effort metering notification, emitted by the
// capture engine roughly ten times per second and relayed to the popup.
// Level is scaled 0..100.
type AudioLevel struct {
	TabID int
	Level int
}

// GetMeetingInfo asks the content bridge for the current page's meeting
// metadata. The reply is a MeetingInfo.
type GetMeetingInfo struct {
	TabID int
}

// MeetingInfo is the bridge's reply to GetMeetingInfo.
type MeetingInfo struct {
	Meta meeting.Metadata
}

// RecordingStarted tells the content bridge to show its widget. UI-only;
// a missed delivery never affects the actual recording.
type RecordingStarted struct {
	TabID int
}

// RecordingStopped tells the content bridge to hide its widget.
type RecordingStopped struct {
	TabID int
}

// StopRecordingRequest is a page-initiated stop, relayed by the bridge to
// the coordinator after the page channel's origin check passed.
type StopRecordingRequest struct {
	TabID int
}

// DiscardRecordingRequest is a page-initiated stop-without-upload, relayed
// like StopRecordingRequest.
type DiscardRecordingRequest struct {
	TabID int
}

// DropSession tells the capture engine to abandon any state for a tab
// without producing an artifact. Used by ForceStop recovery; always safe
// to send, even for tabs the engine never saw.
type DropSession struct {
	TabID int
}
