package cmd

import (
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sherine-k/rmsim/pkg/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the simulation results over HTTP",
	Long: `Runs the simulation once and serves the results:

  /api/tasks     task catalog
  /api/trace     execution trace
  /api/segments  execution and idle intervals
  /api/stats     final statistics
  /ws            websocket replay of the trace (?delay=<ms> paces frames)
  /metrics       prometheus metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", ":8080", "Address to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	sim, err := loadSimulation()
	if err != nil {
		return err
	}

	srv, err := server.New(sim, log)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx, serveAddr)
}
