package main

import (
	"fmt"
	"os"

	"github.com/handiism/halftunes/internal/store"
	"github.com/spf13/cobra"
)

func newPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path URL",
		Short: "Print the local path a track is stored at",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			settings, err := loadSettings()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(1)
			}

			resolver := store.NewResolver(settings.DownloadsPath)
			path, err := resolver.Resolve(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(path)
			if !resolver.Exists(args[0]) {
				os.Exit(2)
			}
		},
	}
}
