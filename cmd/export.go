package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ChannyClaus/silx/internal/export"
)

func init() {
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [file] [output.db]",
	Short: "Write a SQLite snapshot of the virtual hierarchy",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openFile(args[0])
		if err != nil {
			return err
		}

		if err := export.Snapshot(args[1], f); err != nil {
			return fmt.Errorf("export to %s: %w", args[1], err)
		}
		slog.Info("snapshot written", "db", args[1], "scans", len(f.Keys()))
		return nil
	},
}
