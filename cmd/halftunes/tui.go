package main

import (
	"fmt"
	"os"

	"github.com/handiism/halftunes/internal/catalog"
	"github.com/handiism/halftunes/internal/tui"
	"github.com/spf13/cobra"
)

func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui [URL...] [--list FILE]",
		Short: "Browse and download tracks interactively",
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

			if err := tui.Run(settings, list.Name, list.Tracks); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}
}
