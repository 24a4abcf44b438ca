package capture

import (
	"context"
)

// Track is one audio track inside a stream. Stop must be idempotent:
// teardown paths can overlap (normal stop racing a force-stop) and both
// must be able to run it.
type Track interface {
	ID() string
	Label() string
	Stop()
}

// Stream is an open media stream delivering fixed-size audio frames.
// ReadFrame blocks until a frame is available, the stream ends (io.EOF),
// or ctx is done. Close releases the stream and is idempotent.
type Stream interface {
	AudioTracks() []Track
	ReadFrame(ctx context.Context) ([]byte, error)
	Close()
}

// MicConstraints are the processing constraints requested when opening the
// microphone.
type MicConstraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// TabStreamOpener acquires a tab's outgoing audio via its capture stream
// handle. The handle is obtained once and consumed once; failure here is
// fatal for the session.
type TabStreamOpener interface {
	OpenTabStream(ctx context.Context, streamID string) (Stream, error)
}

// MicrophoneOpener acquires the user's microphone. Failure is non-fatal:
// the engine records tab audio only, preferring partial capture over no
// capture.
type MicrophoneOpener interface {
	OpenMicrophone(ctx context.Context, constraints MicConstraints) (Stream, error)
}
