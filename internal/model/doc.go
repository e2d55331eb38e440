// Package model defines the core data structures used throughout
// halftunes.
//
// # Track
//
// Track is a downloadable search result. Its PreviewURL is the identifier
// every download operation is keyed by:
//
//	track := &model.Track{Name: "Song", Artist: "Artist", PreviewURL: url}
//	manager.StartDownload(track.ID())
//
// # Download
//
// Download is the record of one in-flight or paused transfer. Records are
// owned by the download manager and are only ever mutated on its goroutine:
//
//	d := model.NewDownload(id, handle)
//	d.State = model.StatePaused
//	fmt.Println(d.State) // "Paused"
package model
