// Package download manages concurrent, pausable, resumable downloads keyed
// by their source identifier.
//
// # Manager
//
// The Manager owns one record per identifier and drives a transfer.Engine.
// A record is either downloading or paused; it disappears once the download
// completes, fails or is cancelled.
//
//	engine, _ := transfer.NewHTTPEngine(transfer.Config{})
//	resolver := store.NewResolver("/home/user/Music/HalfTunes")
//
//	manager := download.NewManager(engine, resolver, func(ev download.Event) {
//	    switch ev.Type {
//	    case download.EventProgress:
//	        fmt.Printf("%s: %.1f%%\n", ev.ID, ev.Progress*100)
//	    case download.EventCompleted:
//	        fmt.Println("saved to", ev.Path)
//	    case download.EventFailed:
//	        fmt.Println("failed:", ev.Err)
//	    }
//	})
//	go manager.Run(ctx)
//
//	manager.StartDownload("https://audio.example.com/previews/a.mp3")
//
// # Intents
//
// StartDownload, PauseDownload, ResumeDownload and CancelDownload are
// fire-and-forget. Each is a no-op when the record it needs is missing or
// in the wrong state, so a UI can forward clicks without checking first.
//
// # Completion
//
// A completed transfer is moved to the path the Store resolves for its
// identifier, replacing any file already there. Identifiers sharing a final
// path segment share that file.
package download
