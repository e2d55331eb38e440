package transfer

import "errors"

var (
	// ErrNetwork wraps transport failures: connection errors, non-2xx
	// responses and local write failures of the temporary file.
	ErrNetwork = errors.New("network error")

	// ErrResumeFailed means the resume data was invalid or stale. Callers
	// restart with a fresh Begin.
	ErrResumeFailed = errors.New("resume failed")

	// ErrCancelled is reported for transfers stopped by Pause, Cancel or
	// engine shutdown.
	ErrCancelled = errors.New("transfer cancelled")
)

// Sentinel causes used to tell apart why a transfer context was cancelled.
var (
	errPauseRequested  = errors.New("pause requested")
	errCancelRequested = errors.New("cancel requested")
	errShutdown        = errors.New("engine shut down")
)
