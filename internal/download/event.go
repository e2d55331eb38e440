package download

// EventType identifies what an Event reports.
type EventType int

const (
	// EventProgress reports new progress for a download.
	EventProgress EventType = iota

	// EventCompleted reports that the file was placed at Path.
	EventCompleted

	// EventFailed reports that the download ended with Err.
	EventFailed
)

func (t EventType) String() string {
	switch t {
	case EventProgress:
		return "progress"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is delivered to the Manager's callback.
type Event struct {
	Type EventType
	ID   string

	// Progress is the fraction received, in [0, 1]. When Indeterminate is
	// set the expected size is unknown and Progress is the last known value.
	Progress      float64
	Indeterminate bool
	TotalBytes    int64

	// Path is the final location of a completed download.
	Path string

	Err error
}

// Snapshot is a copy of a download's observable state.
type Snapshot struct {
	IsDownloading bool
	Progress      float64
	Indeterminate bool
	TotalBytes    int64
}
