package model

import (
	"net/url"
	"path"
	"strings"
)

// Track represents a single search result that can be downloaded.
//
// Track contains the metadata shown next to a download control:
//   - Name and Artist for display and ID3 tagging
//   - PreviewURL, the source identifier of the download
//   - ArtworkURL for embedding cover art (optional)
//
// Example:
//
//	track := &Track{
//	    Name:       "Come Together",
//	    Artist:     "The Beatles",
//	    PreviewURL: "https://audio.example.com/previews/come-together.mp3",
//	}
//	// track.ID() = "https://audio.example.com/previews/come-together.mp3"
type Track struct {
	// Name is the track title.
	Name string `json:"name" yaml:"name"`

	// Artist is the performing artist.
	Artist string `json:"artist" yaml:"artist"`

	// PreviewURL is the URL of the media resource. It doubles as the
	// download identifier.
	PreviewURL string `json:"url" yaml:"url"`

	// ArtworkURL is the URL of the cover art. Empty string means no artwork.
	ArtworkURL string `json:"artwork,omitempty" yaml:"artwork,omitempty"`
}

// ID returns the source identifier used by the download manager.
func (t *Track) ID() string {
	return t.PreviewURL
}

// HasArtwork returns true if the track has cover art available for download.
func (t *Track) HasArtwork() bool {
	return t.ArtworkURL != ""
}

// DisplayTitle returns "Artist - Name", the name alone, or the last URL
// segment in order of preference.
func (t *Track) DisplayTitle() string {
	switch {
	case t.Name != "" && t.Artist != "":
		return t.Artist + " - " + t.Name
	case t.Name != "":
		return t.Name
	}

	u, err := url.Parse(t.PreviewURL)
	if err != nil || u.Path == "" {
		return t.PreviewURL
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return t.PreviewURL
	}
	return strings.TrimSpace(base)
}
