package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ChannyClaus/silx/internal/scanfs"
)

var serveMountpoint string

func init() {
	serveCmd.Flags().StringVarP(&serveMountpoint, "mount", "m", "", "Mount the export at this directory (needs sudo)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [file]",
	Short: "Serve the virtual hierarchy over NFS",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openFile(args[0])
		if err != nil {
			return err
		}

		srv, err := scanfs.NewServer(scanfs.New(f), cfg.Listen)
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()
		slog.Info("nfs server listening", "port", srv.Port())

		if serveMountpoint != "" {
			if err := scanfs.Mount(srv.Port(), serveMountpoint); err != nil {
				return err
			}
			slog.Info("mounted", "mountpoint", serveMountpoint)
			defer func() {
				if err := scanfs.Unmount(serveMountpoint); err != nil {
					slog.Warn("unmount failed", "error", err)
				}
			}()
		} else {
			fmt.Fprintf(cmd.OutOrStdout(),
				"mount with: sudo mount -t nfs -o port=%d,mountport=%d,vers=3,tcp,ro localhost:/ <dir>\n",
				srv.Port(), srv.Port())
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		slog.Info("shutting down")
		return nil
	},
}
