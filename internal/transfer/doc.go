// Package transfer issues, pauses, resumes and cancels single file
// transfers and reports their progress as events.
//
// # Engine
//
// Engine is the contract the download manager depends on. Every operation
// returns immediately; results arrive later on the Events channel:
//
//	engine, err := transfer.NewHTTPEngine(cfg)
//	h := engine.Begin("https://audio.example.com/a.mp3")
//	for ev := range engine.Events() {
//	    switch ev.Type {
//	    case transfer.EventProgress:
//	        // ev.TotalBytesWritten / ev.TotalBytesExpected
//	    case transfer.EventFinished:
//	        // ev.Location on success, ev.Err otherwise
//	    }
//	}
//
// # Pause and Resume
//
// Pause stops a transfer and asks the transport for resume data, which is
// delivered as an EventResumeData before the transfer's EventFinished:
//
//	engine.Pause(h)
//	// ... EventResumeData{ResumeData: token}
//	h = engine.BeginFromResumeData(token)
//
// # Errors
//
// Failures are always wrapped in one of ErrNetwork, ErrResumeFailed or
// ErrCancelled so callers can classify them with errors.Is.
package transfer
