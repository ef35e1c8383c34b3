// Package cmd holds the silx command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChannyClaus/silx/internal/config"
	"github.com/ChannyClaus/silx/spech5"
	"github.com/ChannyClaus/silx/specfile"
)

var (
	configPath string
	verbose    bool

	cfg = config.Default()
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to HCL config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

var rootCmd = &cobra.Command{
	Use:   "silx",
	Short: "Browse SPEC scan files as a virtual hierarchy",
	Long: `silx parses SPEC scan data files and exposes each scan as a
virtual tree of groups and datasets, addressable by slash-separated
paths like /1.1/measurement or /2.1/instrument/positioners/delta.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}

		level := slog.LevelInfo
		if verbose || cfg.Verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
		return nil
	},
}

// openFile opens a SPEC file with the configured parser options.
func openFile(path string) (*spech5.File, error) {
	f, err := spech5.Open(path, specfile.WithMCAMarker(cfg.MCAMarker))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	slog.Debug("opened scan file", "path", path, "scans", len(f.Keys()))
	return f, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
