package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/handiism/halftunes/internal/model"
	"github.com/handiism/halftunes/internal/search/dto"
)

// DefaultBaseURL is the public music search endpoint.
const DefaultBaseURL = "https://itunes.apple.com/search"

// Fetcher performs GET requests. *http.Client from internal/http
// implements it.
type Fetcher interface {
	GetString(ctx context.Context, url string) (string, error)
}

// Client queries a music search endpoint for downloadable tracks.
//
// Example usage:
//
//	client := search.NewClient(httpClient, search.DefaultBaseURL)
//
//	tracks, err := client.Search(ctx, "abbey road")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, t := range tracks {
//	    fmt.Println(t.DisplayTitle(), t.PreviewURL)
//	}
type Client struct {
	fetcher Fetcher
	baseURL string
}

// NewClient creates a Client. An empty baseURL selects DefaultBaseURL.
func NewClient(fetcher Fetcher, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{fetcher: fetcher, baseURL: baseURL}
}

// Search returns the songs matching term.
func (c *Client) Search(ctx context.Context, term string) ([]*model.Track, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("empty search term")
	}

	u, err := c.queryURL(term)
	if err != nil {
		return nil, err
	}

	body, err := c.fetcher.GetString(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", term, err)
	}
	return ParseResults(body)
}

func (c *Client) queryURL(term string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid search URL: %w", err)
	}
	q := u.Query()
	q.Set("media", "music")
	q.Set("entity", "song")
	q.Set("term", term)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseResults decodes a search response. Results without a preview URL
// are skipped, as are duplicates.
func ParseResults(body string) ([]*model.Track, error) {
	var resp dto.JSONResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	seen := make(map[string]bool, len(resp.Results))
	var tracks []*model.Track
	for i := range resp.Results {
		track, ok := resp.Results[i].ToTrack()
		if !ok || seen[track.ID()] {
			continue
		}
		seen[track.ID()] = true
		tracks = append(tracks, track)
	}
	return tracks, nil
}
