// ABOUTME: Error taxonomy for playback devices and voices
// ABOUTME: Sentinel errors callers match with errors.Is
package voice

import "errors"

var (
	// ErrDeviceUnavailable means the device could not be opened or has no voices
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrExhausted means every voice is in use; the sound cannot play now
	ErrExhausted = errors.New("no free voices")

	// ErrUnsupportedFormat means the layout/sample type has no native format
	ErrUnsupportedFormat = errors.New("unsupported sound format")

	// ErrDecodeFailure means the decoder could not produce audio
	ErrDecodeFailure = errors.New("decode failure")

	// ErrHardware is returned by a device call that failed
	ErrHardware = errors.New("audio hardware error")

	// ErrNotInitialized means the output has no open device
	ErrNotInitialized = errors.New("audio output not initialized")
)
