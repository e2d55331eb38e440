package main

import (
	"fmt"
	"os"

	"github.com/handiism/halftunes/internal/config"
	"github.com/handiism/halftunes/internal/logging"
	"github.com/spf13/cobra"
)

var (
	configPath string
	outputPath string
	listFile   string
	debug      bool
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "halftunes",
	Short:   "HalfTunes downloads track previews for offline listening",
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(debug)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Path to settings file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "Downloads directory (overrides settings)")
	rootCmd.PersistentFlags().StringVarP(&listFile, "list", "l", "", "Track list file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newPathCmd())
	rootCmd.AddCommand(newTUICmd())
	rootCmd.AddCommand(newSearchCmd())
}

// loadSettings reads the settings file and applies command-line overrides.
func loadSettings() (*config.Settings, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if outputPath != "" {
		settings.DownloadsPath = outputPath
	}
	return settings, nil
}
