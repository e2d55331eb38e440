package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/handiism/halftunes/internal/catalog"
	"github.com/handiism/halftunes/internal/config"
	"github.com/handiism/halftunes/internal/tui"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("HalfTunes - download track previews for offline listening")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  halftunes-tui <track-list.yaml>")
		fmt.Println("  halftunes-tui <URL> [URL...]")
		os.Exit(1)
	}

	var listFile string
	args := os.Args[1:]
	if len(args) == 1 && !strings.HasPrefix(args[0], "http://") && !strings.HasPrefix(args[0], "https://") {
		listFile, args = args[0], nil
	}

	list, err := catalog.Collect(listFile, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	settings, err := config.Load(config.DefaultPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := tui.Run(settings, list.Name, list.Tracks); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
