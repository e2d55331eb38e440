// Package config provides configuration management for halftunes.
//
// This package handles:
//   - Loading and saving settings from JSON or YAML files
//   - Default configuration values
//   - Conversion to the HTTP client and post-processing configurations
//
// # Loading from File
//
//	settings, err := config.Load("/path/to/settings.yaml")
//	if err != nil {
//	    // The file exists but could not be parsed or validated
//	}
//
// A missing file is not an error: the defaults are returned. The format
// follows the extension, .yaml and .yml for YAML and anything else for JSON.
//
// # Saving Settings
//
//	settings.DownloadsPath = "/custom/path"
//	err := settings.Save("/path/to/settings.json")
package config
