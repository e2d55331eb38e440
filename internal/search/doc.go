// Package search queries a music search endpoint and turns its results
// into downloadable tracks.
//
// The endpoint answers a query such as
//
//	https://itunes.apple.com/search?media=music&entity=song&term=abbey+road
//
// with a JSON document holding a "results" array. Every result carrying a
// previewUrl becomes a model.Track whose identifier is that URL.
package search
