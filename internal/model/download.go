package model

import "github.com/handiism/halftunes/internal/transfer"

// State is the lifecycle tag of a Download.
type State int

const (
	// StateDownloading means a transfer is in flight.
	StateDownloading State = iota

	// StatePaused means the transfer was stopped and may be resumed.
	StatePaused
)

// String returns the label used when rendering the state.
func (s State) String() string {
	switch s {
	case StateDownloading:
		return "Downloading..."
	case StatePaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// Download holds identity and transient state for one in-flight or paused
// transfer. A Download only exists while it is registered with the manager:
// completed and cancelled downloads have no record.
type Download struct {
	// ID is the source identifier (the media URL).
	ID string

	// State tags the record as downloading or paused.
	State State

	// Progress is the fraction received, in [0, 1].
	Progress float64

	// TotalBytes is the last reported expected size, -1 if unknown.
	TotalBytes int64

	// Handle is the transfer currently owned by this record. It stays set
	// while paused until the record is resumed or removed.
	Handle *transfer.Handle

	// ResumeData is the token captured by the last pause. Nil until the
	// first pause and after it has been consumed.
	ResumeData []byte
}

// NewDownload creates a record in the downloading state.
func NewDownload(id string, handle *transfer.Handle) *Download {
	return &Download{
		ID:         id,
		State:      StateDownloading,
		TotalBytes: -1,
		Handle:     handle,
	}
}

// IsDownloading reports whether a transfer is actively in flight.
func (d *Download) IsDownloading() bool {
	return d.State == StateDownloading
}

// Owns reports whether h is the transfer this record currently tracks.
func (d *Download) Owns(h *transfer.Handle) bool {
	return d.Handle != nil && h != nil && d.Handle.ID == h.ID
}
