// Package audio post-processes completed downloads: ID3 tag writing,
// cover art embedding and playlist generation.
//
// # ID3 Tagging
//
// Use the Tagger to write ID3 tags to MP3 files:
//
//	tagger := audio.NewTagger(audio.DefaultTagConfig())
//	err := tagger.SaveTags(path, track, artworkBytes)
//
// The Finisher combines the tagger with cover art download and resizing:
//
//	f := audio.NewFinisher(client, ioutils.NewImageService(), cfg)
//	err := f.Finish(ctx, track, path)
//
// # Playlist Generation
//
//	creator := audio.NewPlaylistCreator(audio.FormatM3U, true) // extended M3U
//	content := creator.CreatePlaylist("HalfTunes", entries)
//	os.WriteFile("HalfTunes.m3u", []byte(content), 0644)
//
// Supported formats:
//   - M3U (with optional extended info)
//   - PLS
//   - WPL (Windows Media Player)
//   - ZPL (Zune Media Player)
package audio
