package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/handiism/halftunes/internal/catalog"
	apphttp "github.com/handiism/halftunes/internal/http"
	"github.com/handiism/halftunes/internal/logging"
	"github.com/handiism/halftunes/internal/model"
	"github.com/handiism/halftunes/internal/search"
	"github.com/handiism/halftunes/internal/store"
	"github.com/handiism/halftunes/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newSearchCmd() *cobra.Command {
	var (
		save        string
		interactive bool
		sizes       bool
	)

	cmd := &cobra.Command{
		Use:   "search TERM...",
		Short: "Search for tracks and list their previews",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			settings, err := loadSettings()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(1)
			}

			term := strings.Join(args, " ")
			httpClient := apphttp.NewClient(settings.HTTPConfig())
			client := search.NewClient(httpClient, settings.SearchURL)
			tracks, err := client.Search(context.Background(), term)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if len(tracks) == 0 {
				fmt.Printf("No results for %q\n", term)
				return
			}

			list := &catalog.TrackList{Name: term, Tracks: tracks}
			if save != "" {
				if err := catalog.SaveTrackList(save, list); err != nil {
					fmt.Fprintf(os.Stderr, "Error saving track list: %v\n", err)
					os.Exit(1)
				}
				fmt.Printf("Saved %d tracks to %s\n", len(tracks), save)
			}

			if interactive {
				if err := tui.Run(settings, list.Name, list.Tracks); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					os.Exit(1)
				}
				return
			}

			var remote []string
			if sizes {
				remote = remoteSizes(context.Background(), httpClient, tracks)
			}

			resolver := store.NewResolver(settings.DownloadsPath)
			for i, t := range tracks {
				mark := " "
				if resolver.Exists(t.ID()) {
					mark = "✓"
				}
				fmt.Printf("%s %2d. %s\n      %s", mark, i+1, t.DisplayTitle(), t.PreviewURL)
				if remote != nil {
					fmt.Printf("  (%s)", remote[i])
				}
				fmt.Println()
			}
		},
	}

	cmd.Flags().StringVarP(&save, "save", "s", "", "Write the results to a track list file (YAML or JSON)")
	cmd.Flags().BoolVarP(&interactive, "tui", "t", false, "Open the results in the interactive browser")
	cmd.Flags().BoolVar(&sizes, "sizes", false, "Ask the server for the size of each preview")
	return cmd
}

// remoteSizes looks up the preview sizes with HEAD requests. Lookups that
// fail are reported as "size unknown".
func remoteSizes(ctx context.Context, client *apphttp.Client, tracks []*model.Track) []string {
	log := logging.Get("search")
	out := make([]string, len(tracks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, t := range tracks {
		i, t := i, t
		g.Go(func() error {
			size, err := client.GetFileSize(ctx, t.PreviewURL)
			if err != nil {
				log.Debug().Err(err).Str("url", t.PreviewURL).Msg("Size lookup failed")
				out[i] = "size unknown"
				return nil
			}
			out[i] = humanize.IBytes(uint64(size))
			return nil
		})
	}
	_ = g.Wait()
	return out
}
