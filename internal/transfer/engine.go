package transfer

import "github.com/google/uuid"

// Handle identifies one transfer. The ID is unique per transfer, the URL is
// the originating request URL.
type Handle struct {
	ID  string
	URL string
}

func newHandle(url string) *Handle {
	return &Handle{ID: uuid.NewString(), URL: url}
}

// EventType defines the set of events an Engine emits.
type EventType int

const (
	// EventProgress reports bytes received.
	EventProgress EventType = iota

	// EventResumeData carries the token produced by Pause. ResumeData is
	// nil when the transport could not produce one.
	EventResumeData

	// EventFinished is delivered exactly once per transfer.
	EventFinished
)

// String returns the name of the event type.
func (t EventType) String() string {
	switch t {
	case EventProgress:
		return "progress"
	case EventResumeData:
		return "resume-data"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Event is a progress, resume-data or completion notification for Handle.
type Event struct {
	Type   EventType
	Handle *Handle

	// Progress fields. TotalBytesExpected is -1 when the server did not
	// report a length.
	BytesWritten       int64
	TotalBytesWritten  int64
	TotalBytesExpected int64

	// ResumeData is set on EventResumeData.
	ResumeData []byte

	// Location is the temporary file of a successful transfer. The receiver
	// owns the file. Err is set when the transfer failed.
	Location string
	Err      error
}

// Engine performs transfers asynchronously. All methods return without
// waiting for network I/O.
type Engine interface {
	// Begin starts transferring url into a temporary file.
	Begin(url string) *Handle

	// BeginFromResumeData continues a paused transfer. Invalid data fails
	// the transfer with ErrResumeFailed; if the data cannot be decoded at
	// all, the returned handle has an empty URL.
	BeginFromResumeData(data []byte) *Handle

	// Pause stops the transfer and emits EventResumeData.
	Pause(h *Handle)

	// Cancel stops the transfer and discards partial data.
	Cancel(h *Handle)

	// Events returns the channel all events are delivered on.
	Events() <-chan Event
}
