package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/handiism/halftunes/internal/app"
	"github.com/handiism/halftunes/internal/audio"
	"github.com/handiism/halftunes/internal/catalog"
	"github.com/handiism/halftunes/internal/config"
	"github.com/handiism/halftunes/internal/download"
	ioutils "github.com/handiism/halftunes/internal/io"
	"github.com/handiism/halftunes/internal/logging"
	"github.com/handiism/halftunes/internal/model"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newGetCmd() *cobra.Command {
	var (
		force    bool
		playlist bool
	)

	cmd := &cobra.Command{
		Use:   "get [URL... | -] [--list FILE]",
		Short: "Download tracks and wait for them to finish",
		Run: func(cmd *cobra.Command, args []string) {
			list, err := catalog.Collect(listFile, args)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			settings, err := loadSettings()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(1)
			}
			if playlist {
				settings.CreatePlaylist = true
			}

			if code := runGet(list, settings, force); code != 0 {
				os.Exit(code)
			}
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Download tracks even if the file already exists")
	cmd.Flags().BoolVarP(&playlist, "playlist", "p", false, "Create a playlist of the downloaded tracks")
	return cmd
}

type getResult struct {
	track *model.Track
	path  string
	fresh bool // downloaded by this run
}

func runGet(list *catalog.TrackList, settings *config.Settings, force bool) int {
	log := logging.Get("get")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracks := make(map[string]*model.Track, len(list.Tracks))
	for _, t := range list.Tracks {
		tracks[t.ID()] = t
	}

	events := make(chan download.Event, len(list.Tracks))
	a, err := app.New(settings, func(ev download.Event) {
		switch ev.Type {
		case download.EventProgress:
			if !ev.Indeterminate {
				log.Debug().Str("id", ev.ID).Msgf("%.1f%% of %s", ev.Progress*100, humanize.IBytes(uint64(ev.TotalBytes)))
			}
		default:
			events <- ev
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	a.Start(context.Background())
	defer closeApp(a)

	fmt.Printf("♪ HalfTunes: %s\n\n", list.Name)

	var results []getResult
	pending := 0
	for _, t := range list.Tracks {
		if !force && a.Manager.IsDownloaded(t.ID()) {
			path, _ := a.Manager.LocalPath(t.ID())
			fmt.Printf("  • %s (already downloaded)\n", t.DisplayTitle())
			results = append(results, getResult{track: t, path: path})
			continue
		}
		a.Manager.StartDownload(t.ID())
		pending++
	}

	failed := 0
	for pending > 0 {
		select {
		case <-ctx.Done():
			active := a.Manager.ActiveIDs()
			fmt.Printf("\nInterrupted, cancelling %d downloads...\n", len(active))
			for _, id := range active {
				log.Debug().Str("id", id).Msg("Cancelling")
			}
			a.Manager.CancelAll()
			return 130
		case ev := <-events:
			pending--
			t, ok := tracks[ev.ID]
			if !ok {
				t = &model.Track{PreviewURL: ev.ID}
			}
			if ev.Type == download.EventFailed {
				failed++
				fmt.Printf("  ✗ %s: %v\n", t.DisplayTitle(), ev.Err)
				continue
			}
			fmt.Printf("  ✓ %s (%s)\n", t.DisplayTitle(), sizeOf(ev.Path))
			results = append(results, getResult{track: t, path: ev.Path, fresh: true})
		}
	}

	finish(ctx, a, results)

	if settings.CreatePlaylist && len(results) > 0 {
		if err := writePlaylist(list.Name, settings.DownloadsPath, settings.Playlist(), settings.M3UExtended, orderResults(list, results)); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating playlist: %v\n", err)
		}
	}

	fmt.Printf("\n%d downloaded, %d failed\n", len(results), failed)
	if failed > 0 {
		return 1
	}
	return 0
}

// finish post-processes completed files in parallel. Failures only warn.
func finish(ctx context.Context, a *app.App, results []getResult) {
	log := logging.Get("get")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, r := range results {
		if !r.fresh {
			continue
		}
		r := r
		g.Go(func() error {
			if err := a.Finisher.Finish(ctx, r.track, r.path); err != nil {
				log.Warn().Err(err).Str("path", r.path).Msg("Post-processing failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}

func orderResults(list *catalog.TrackList, results []getResult) []audio.Entry {
	byID := make(map[string]getResult, len(results))
	for _, r := range results {
		byID[r.track.ID()] = r
	}
	var entries []audio.Entry
	for _, t := range list.Tracks {
		if r, ok := byID[t.ID()]; ok {
			entries = append(entries, audio.Entry{Track: t, Path: r.path})
		}
	}
	return entries
}

func writePlaylist(name, dir string, format audio.PlaylistFormat, extended bool, entries []audio.Entry) error {
	content := audio.NewPlaylistCreator(format, extended).CreatePlaylist(name, entries)
	path := filepath.Join(dir, ioutils.SanitizeFileName(name)+format.Extension())
	if err := ioutils.WriteFile(path, []byte(content)); err != nil {
		return err
	}
	fmt.Printf("  ♫ Playlist saved to %s\n", path)
	return nil
}

func sizeOf(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "?"
	}
	return humanize.IBytes(uint64(info.Size()))
}

func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		log := logging.Get("get")
		log.Warn().Err(err).Msg("Shutdown incomplete")
	}
}
