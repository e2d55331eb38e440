// Package ioutils provides file system and image processing utilities.
//
// This package contains functions for:
//   - Replacing files atomically (used when placing completed downloads)
//   - Filename sanitization for cross-platform compatibility
//   - Directory creation
//   - Cover art resizing and format conversion
//
// # File Operations
//
//	// Move a finished download over an older copy
//	err := ioutils.ReplaceFile("/tmp/x.part", "/music/a.mp3")
//
//	// Ensure directory exists
//	err := ioutils.EnsureDir("/path/to/new/directory")
//
// # Image Processing
//
// The ImageService handles cover art manipulation:
//
//	svc := ioutils.NewImageService()
//
//	// Resize image to fit within 500x500
//	resized, _ := svc.ResizeImage(ctx, imageData, 500, 500)
//
//	// Convert to JPEG
//	jpeg, _ := svc.ConvertToJPEG(ctx, pngData)
package ioutils
