// Package store decides where completed downloads live on disk.
//
// One file is kept per identifier, named after the final segment of the
// identifier's URL and stored directly under the downloads root. There is
// no index: whether a track is downloaded is answered by a direct lookup.
//
//	r := store.NewResolver(settings.DownloadsPath)
//	if r.Exists(track.ID()) {
//	    // play it
//	}
//	dst, err := r.Place(track.ID(), tempFile)
package store
