// SPDX-License-Identifier: MIT

package handle

import "errors"

// Sentinel errors shared by every Handle implementation and by the pool,
// scheduler, and coordinator that consume them. Matching on these (via
// errors.Is) lets callers distinguish recoverable outcomes from programmer
// bugs and must never be swallowed by callers.
var (
	// ErrNotReady is returned by Play/Pause/Seek when called before
	// Initialize has completed successfully. Caller bug.
	ErrNotReady = errors.New("handle: not ready")

	// ErrUrlAbsent marks a descriptor with no playable URL. Never enters
	// the pool, never retried.
	ErrUrlAbsent = errors.New("handle: url absent")

	// ErrInitializationTimeout marks a bounded init timer that elapsed
	// before the decoder reported success or failure.
	ErrInitializationTimeout = errors.New("handle: initialization timeout")

	// ErrCancelled marks an initialization superseded by a higher
	// priority id or a window change.
	ErrCancelled = errors.New("handle: cancelled")

	// ErrDisposed is returned by any operation attempted on a handle
	// that has already been disposed.
	ErrDisposed = errors.New("handle: disposed")
)

// InitializationFailedError wraps the underlying decoder failure reported by
// Initialize().
type InitializationFailedError struct {
	Underlying error
}

func (e *InitializationFailedError) Error() string {
	if e.Underlying == nil {
		return "handle: initialization failed"
	}
	return "handle: initialization failed: " + e.Underlying.Error()
}

func (e *InitializationFailedError) Unwrap() error { return e.Underlying }

// HandleReportedError marks a handle that moved to an error status after
// reaching ready.
type HandleReportedError struct {
	Description string
}

func (e *HandleReportedError) Error() string {
	return "handle: reported error: " + e.Description
}
