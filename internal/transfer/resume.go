package transfer

import (
	"encoding/json"
	"fmt"
	"os"
)

const resumeDataVersion = 1

// resumeData is the content of the opaque token handed out by Pause.
type resumeData struct {
	Version int    `json:"version"`
	URL     string `json:"url"`
	Path    string `json:"path"`
	Offset  int64  `json:"offset"`
	Size    int64  `json:"size"`
	ETag    string `json:"etag,omitempty"`
}

func (r *resumeData) encode() ([]byte, error) {
	return json.Marshal(r)
}

func decodeResumeData(data []byte) (*resumeData, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty resume data", ErrResumeFailed)
	}

	var r resumeData
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResumeFailed, err)
	}
	if r.Version != resumeDataVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrResumeFailed, r.Version)
	}
	if r.URL == "" || r.Path == "" || r.Offset <= 0 || r.Size <= r.Offset {
		return nil, fmt.Errorf("%w: incomplete resume data", ErrResumeFailed)
	}
	return &r, nil
}

// checkPartial verifies that the partial file still holds exactly the bytes
// the token refers to.
func (r *resumeData) checkPartial() error {
	info, err := os.Stat(r.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResumeFailed, err)
	}
	if info.Size() != r.Offset {
		return fmt.Errorf("%w: partial file has %d bytes, expected %d", ErrResumeFailed, info.Size(), r.Offset)
	}
	return nil
}
