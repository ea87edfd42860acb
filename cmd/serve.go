package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Deskrelay/internal/config"
	"github.com/BioHazard786/Deskrelay/internal/logging"
	"github.com/BioHazard786/Deskrelay/internal/remote"
	"github.com/BioHazard786/Deskrelay/internal/server"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session broker",
	Long: `Run the broker that pairs hosts with guests and relays their connection
setup. It serves the websocket endpoint on /ws and a health check on /health.

Examples:
  deskrelay serve
  deskrelay serve --addr :9000
  PORT=9000 deskrelay serve`,
	Args: cobra.NoArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		// The broker has no TUI, so it logs at info unless LOG_LEVEL says otherwise.
		logging.InitWithDefault(os.Stderr, slog.LevelInfo)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{ListenAddr: flagAddr})
		if err != nil {
			return remote.NewError("load config", err)
		}
		if err := server.ListenAndRun(cmd.Context(), cfg.ListenAddr); err != nil {
			return remote.NewError("serve", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&flagAddr, "addr", "a", "", "Listen address (env DESKRELAY_ADDR or PORT)")
}
