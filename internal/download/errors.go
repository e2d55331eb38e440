package download

import "errors"

var (
	// ErrUnmatchedCallback marks an engine event for which no record
	// exists, or whose record tracks another transfer. It is only logged.
	ErrUnmatchedCallback = errors.New("no download matches transfer")

	// ErrStorage means a completed file could not be placed at its final
	// path.
	ErrStorage = errors.New("storage error")
)
