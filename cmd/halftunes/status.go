package main

import (
	"fmt"
	"os"

	"github.com/handiism/halftunes/internal/catalog"
	"github.com/handiism/halftunes/internal/store"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [URL... | -] [--list FILE]",
		Short: "Show which tracks are already downloaded",
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

			resolver := store.NewResolver(settings.DownloadsPath)
			for _, t := range list.Tracks {
				path, err := resolver.Resolve(t.ID())
				switch {
				case err != nil:
					fmt.Printf("✗ %s: %v\n", t.DisplayTitle(), err)
				case resolver.Exists(t.ID()):
					fmt.Printf("✓ %s  %s  %s\n", t.DisplayTitle(), sizeOf(path), path)
				default:
					fmt.Printf("  %s  not downloaded\n", t.DisplayTitle())
				}
			}
		},
	}
}
