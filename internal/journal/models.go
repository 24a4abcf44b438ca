package journal

import (
	"time"

	"tabcap/internal/meeting"
)

// Outcome classifies how a finished recording left the daemon.
type Outcome string

const (
	OutcomeUploaded  Outcome = "uploaded"
	OutcomeFailed    Outcome = "upload_failed"
	OutcomeLocalOnly Outcome = "local_only"
	OutcomeDiscarded Outcome = "discarded"
)

// Entry is one finished recording. The journal is history, not a retry
// queue: failed uploads are recorded so the loss is visible, and nothing
// re-sends them.
type Entry struct {
	ID              string
	TabID           int
	Title           string
	Platform        meeting.Platform
	MeetingURL      string
	DurationSeconds float64
	SizeBytes       int64
	MIMEType        string
	Outcome         Outcome
	UploadID        string
	UploadError     string
	CreatedAt       time.Time
}
