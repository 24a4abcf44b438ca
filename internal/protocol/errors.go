package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for recording pipeline failures. These cross context
// boundaries as string codes, never as raised panics; Code and FromCode
// convert between the two representations.
var (
	ErrAlreadyRecording    = errors.New("AlreadyRecording")
	ErrNoActiveRecording   = errors.New("NoActiveRecording")
	ErrTabAudioUnavailable = errors.New("TabAudioUnavailable")
	ErrNoAudioTracks       = errors.New("NoAudioTracks")
	ErrRequestTimeout      = errors.New("RequestTimeout")
	ErrNoReceiver          = errors.New("NoReceiver")
	ErrNotAuthenticated    = errors.New("NotAuthenticated")
)

var sentinels = []error{
	ErrAlreadyRecording,
	ErrNoActiveRecording,
	ErrTabAudioUnavailable,
	ErrNoAudioTracks,
	ErrRequestTimeout,
	ErrNoReceiver,
	ErrNotAuthenticated,
}

// Code returns the wire representation of err. Unrecognized errors keep
// their message so the failure is still diagnosable on the far side.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// FromCode converts a wire error code back into a sentinel where one
// matches, or a plain error otherwise. Empty codes mean no error.
func FromCode(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}
	for _, sentinel := range sentinels {
		if code == sentinel.Error() {
			return sentinel
		}
	}
	return errors.New(code)
}

// Wrap tags err with component and operation context while preserving the
// sentinel for errors.Is classification.
func Wrap(component, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %s: %w", component, operation, err)
}
