package dto

import (
	"strings"

	"github.com/handiism/halftunes/internal/model"
)

// JSONResponse is the body returned by the search endpoint.
type JSONResponse struct {
	ResultCount int          `json:"resultCount"`
	Results     []JSONResult `json:"results"`
}

// JSONResult represents one search hit.
type JSONResult struct {
	Kind          string `json:"kind"`
	TrackName     string `json:"trackName"`
	ArtistName    string `json:"artistName"`
	PreviewURL    string `json:"previewUrl"`
	ArtworkURL100 string `json:"artworkUrl100"`
}

// ToTrack converts a result to a model.Track. Results without a preview
// cannot be downloaded and report false.
func (r *JSONResult) ToTrack() (*model.Track, bool) {
	preview := fixURL(r.PreviewURL)
	if preview == "" {
		return nil, false
	}
	return &model.Track{
		Name:       r.TrackName,
		Artist:     r.ArtistName,
		PreviewURL: preview,
		ArtworkURL: fixURL(r.ArtworkURL100),
	}, true
}

// fixURL turns protocol-relative URLs into absolute ones.
func fixURL(u string) string {
	u = strings.TrimSpace(u)
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}
