// Package audio implements the AudioContext port: an opaque capture and
// release of whatever default-audio device bindings Windows would
// otherwise lose when a display is deactivated.
package audio

// Context is the AudioContext port. Capture is idempotent: calling it
// while already captured is a no-op success.
type Context interface {
	// Capture remembers the current default-audio bindings. Returns
	// false on failure; the caller treats that as a hard stop for the
	// stage requesting the capture.
	Capture() bool
	// IsCaptured reports whether Capture has succeeded and Release has
	// not yet been called.
	IsCaptured() bool
	// Release forgets the captured bindings. Safe to call when nothing
	// is captured.
	Release()
}

// Noop never captures anything; the default when no host-specific audio
// integration is wired in.
type Noop struct{}

func (Noop) Capture() bool    { return true }
func (Noop) IsCaptured() bool { return false }
func (Noop) Release()         {}
