// Package app is the composition root shared by the command line and the
// terminal UI.
//
//	a, err := app.New(settings, onEvent)
//	if err != nil {
//	    return err
//	}
//	a.Start(ctx)
//	defer a.Close(context.Background())
//
//	a.Manager.StartDownload(track.ID())
package app
