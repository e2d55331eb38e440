package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/handiism/halftunes/internal/model"
	"gopkg.in/yaml.v3"
)

// TrackList is a named list of tracks, as stored in a track list file.
//
// Example (YAML):
//
//	name: Road trip
//	tracks:
//	  - name: Come Together
//	    artist: The Beatles
//	    url: https://audio.example.com/previews/come-together.m4a
//	    artwork: https://img.example.com/abbey-road.jpg
type TrackList struct {
	Name   string         `json:"name" yaml:"name"`
	Tracks []*model.Track `json:"tracks" yaml:"tracks"`
}

// LoadTrackList reads a track list from a YAML or JSON file, chosen by
// extension. Every track must carry a URL; duplicates are dropped.
func LoadTrackList(path string) (*TrackList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	list := &TrackList{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, list)
	default:
		err = json.Unmarshal(data, list)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	for i, track := range list.Tracks {
		if track == nil || !isURL(track.PreviewURL) {
			return nil, fmt.Errorf("%s: track %d has no http(s) url", path, i+1)
		}
	}
	list.Tracks = dedupe(list.Tracks)

	if list.Name == "" {
		list.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return list, nil
}

// SaveTrackList writes list to a YAML or JSON file, chosen by extension.
func SaveTrackList(path string, list *TrackList) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(list)
	default:
		data, err = json.MarshalIndent(list, "", "  ")
	}
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultName names track lists built from arguments.
const DefaultName = "HalfTunes"

// StdinArg is the argument that makes Collect read URLs from standard input.
const StdinArg = "-"

// Collect builds a track list from either a list file or URL arguments.
// A single "-" argument reads URLs from standard input, one per line.
func Collect(listFile string, args []string) (*TrackList, error) {
	return CollectFrom(os.Stdin, listFile, args)
}

// CollectFrom is Collect reading "-" from in.
func CollectFrom(in io.Reader, listFile string, args []string) (*TrackList, error) {
	if listFile != "" && len(args) > 0 {
		return nil, fmt.Errorf("cannot use URL arguments and a track list together")
	}

	list := &TrackList{Name: DefaultName, Tracks: ParseArgs(args)}
	if len(args) == 1 && args[0] == StdinArg {
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("reading standard input: %w", err)
		}
		list.Tracks = ParseInput(string(data))
	}
	if listFile != "" {
		var err error
		if list, err = LoadTrackList(listFile); err != nil {
			return nil, err
		}
	}

	if len(list.Tracks) == 0 {
		return nil, fmt.Errorf("no track URLs provided")
	}
	return list, nil
}

// ParseInput extracts tracks from free text, one URL per line. Lines that
// are not http(s) URLs are ignored.
func ParseInput(input string) []*model.Track {
	return ParseArgs(strings.Split(input, "\n"))
}

// ParseArgs turns URL arguments into tracks.
func ParseArgs(args []string) []*model.Track {
	var tracks []*model.Track
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if isURL(arg) {
			tracks = append(tracks, &model.Track{PreviewURL: arg})
		}
	}
	return dedupe(tracks)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func dedupe(tracks []*model.Track) []*model.Track {
	seen := make(map[string]bool, len(tracks))
	out := tracks[:0]
	for _, t := range tracks {
		if seen[t.ID()] {
			continue
		}
		seen[t.ID()] = true
		out = append(out, t)
	}
	return out
}
