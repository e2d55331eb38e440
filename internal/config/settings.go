package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/handiism/halftunes/internal/audio"
	apphttp "github.com/handiism/halftunes/internal/http"
	"github.com/handiism/halftunes/internal/search"
	"gopkg.in/yaml.v3"
)

// Settings holds all configuration options.
type Settings struct {
	// Download settings
	DownloadsPath      string `json:"downloads_path" yaml:"downloads_path"`
	TempPath           string `json:"temp_path" yaml:"temp_path"`
	ProgressIntervalMs int    `json:"progress_interval_ms" yaml:"progress_interval_ms"`

	// HTTP settings
	RequestTimeout int    `json:"request_timeout" yaml:"request_timeout"` // seconds, artwork and metadata requests only
	UserAgent      string `json:"user_agent" yaml:"user_agent"`
	SearchURL      string `json:"search_url" yaml:"search_url"`

	// Proxy settings
	ProxyType    string `json:"proxy_type" yaml:"proxy_type"` // none, system, manual
	ProxyAddress string `json:"proxy_address" yaml:"proxy_address"`
	ProxyPort    int    `json:"proxy_port" yaml:"proxy_port"`

	// Tag settings
	ModifyTags bool `json:"modify_tags" yaml:"modify_tags"`

	// Cover art settings
	SaveCoverArtInTags    bool `json:"save_cover_art_in_tags" yaml:"save_cover_art_in_tags"`
	CoverArtInTagsMaxSize int  `json:"cover_art_in_tags_max_size" yaml:"cover_art_in_tags_max_size"`

	// Playlist settings
	CreatePlaylist bool   `json:"create_playlist" yaml:"create_playlist"`
	PlaylistFormat string `json:"playlist_format" yaml:"playlist_format"` // m3u, pls, wpl, zpl
	PlaylistName   string `json:"playlist_name" yaml:"playlist_name"`
	M3UExtended    bool   `json:"m3u_extended" yaml:"m3u_extended"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		DownloadsPath:      filepath.Join(homeDir, "Music", "HalfTunes"),
		ProgressIntervalMs: 250,

		RequestTimeout: 60,
		UserAgent:      apphttp.DefaultUserAgent,
		SearchURL:      search.DefaultBaseURL,

		ProxyType: apphttp.ProxySystem,

		ModifyTags: true,

		SaveCoverArtInTags:    true,
		CoverArtInTagsMaxSize: 600,

		CreatePlaylist: false,
		PlaylistFormat: "m3u",
		PlaylistName:   "HalfTunes",
		M3UExtended:    true,
	}
}

// DefaultPath returns the location of the settings file in the user's
// configuration directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "halftunes.json"
	}
	return filepath.Join(dir, "halftunes", "settings.json")
}

// Load reads settings from a JSON or YAML file, chosen by extension.
// A missing file yields the defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if isYAML(path) {
		err = yaml.Unmarshal(data, settings)
	} else {
		err = json.Unmarshal(data, settings)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	return settings, nil
}

// Save writes settings to a JSON or YAML file, chosen by extension.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate reports the first setting that cannot be used.
func (s *Settings) Validate() error {
	if s.DownloadsPath == "" {
		return fmt.Errorf("downloads_path must not be empty")
	}
	if s.ProgressIntervalMs < 0 {
		return fmt.Errorf("progress_interval_ms must not be negative")
	}
	if s.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	if s.SearchURL != "" {
		if u, err := url.Parse(s.SearchURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("search_url must be an http(s) URL")
		}
	}
	switch s.ProxyType {
	case "", apphttp.ProxyNone, apphttp.ProxySystem:
	case apphttp.ProxyManual:
		if s.ProxyAddress == "" {
			return fmt.Errorf("proxy_address is required for a manual proxy")
		}
	default:
		return fmt.Errorf("unknown proxy_type %q", s.ProxyType)
	}
	if s.SaveCoverArtInTags && s.CoverArtInTagsMaxSize <= 0 {
		return fmt.Errorf("cover_art_in_tags_max_size must be positive")
	}
	if _, err := audio.ParsePlaylistFormat(s.PlaylistFormat); err != nil {
		return err
	}
	return nil
}

// HTTPConfig returns the configuration of the client used for artwork.
func (s *Settings) HTTPConfig() apphttp.Config {
	return apphttp.Config{
		Timeout:      time.Duration(s.RequestTimeout) * time.Second,
		UserAgent:    s.UserAgent,
		ProxyType:    s.ProxyType,
		ProxyAddress: s.ProxyAddress,
		ProxyPort:    s.ProxyPort,
	}
}

// TransferHTTPConfig is HTTPConfig without the overall timeout, for the
// client handed to the transfer engine.
func (s *Settings) TransferHTTPConfig() apphttp.Config {
	cfg := s.HTTPConfig()
	cfg.Timeout = 0
	return cfg
}

// ProgressInterval returns how often transfer progress is polled.
func (s *Settings) ProgressInterval() time.Duration {
	return time.Duration(s.ProgressIntervalMs) * time.Millisecond
}

// Playlist returns the playlist format, falling back to M3U.
func (s *Settings) Playlist() audio.PlaylistFormat {
	f, err := audio.ParsePlaylistFormat(s.PlaylistFormat)
	if err != nil {
		return audio.FormatM3U
	}
	return f
}

// FinishConfig converts settings to the post-processing configuration.
func (s *Settings) FinishConfig() audio.FinishConfig {
	return audio.FinishConfig{
		ModifyTags:      s.ModifyTags,
		SaveCoverArt:    s.SaveCoverArtInTags,
		CoverArtMaxSize: s.CoverArtInTagsMaxSize,
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
