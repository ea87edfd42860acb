package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Deskrelay/internal/config"
	"github.com/BioHazard786/Deskrelay/internal/remote"
	"github.com/BioHazard786/Deskrelay/internal/ui"
	"github.com/BioHazard786/Deskrelay/internal/version"
)

var (
	flagBroker   string
	flagSecure   bool
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "deskrelay",
	Short: "Share your screen and hand over keyboard and mouse to one remote peer",
	Long: `Deskrelay connects a host and a guest through a small session broker.
Once the two peers have exchanged their connection details, video and input
flow directly between them over WebRTC.`,
	Version: version.Version,
}

// Execute runs the root command. Interrupts cancel the command context so
// sessions can close cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

// loadConfig applies the shared connection flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		Broker:     flagBroker,
		Secure:     flagSecure,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
	})
	if err != nil {
		return nil, remote.NewError("load config", err)
	}
	return cfg, nil
}

func addConnectionFlags(c *cobra.Command) {
	c.Flags().StringVarP(&flagBroker, "broker", "b", "", "Broker host:port (env DESKRELAY_BROKER)")
	c.Flags().BoolVar(&flagSecure, "secure", false, "Use wss to reach the broker (env DESKRELAY_SECURE)")
	c.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Comma separated STUN servers (env STUN_SERVER)")
	c.Flags().StringVarP(&flagTURN, "turn", "t", "", "TURN server (env TURN_SERVER)")
	c.Flags().StringVar(&flagTURNUser, "turn-user", "", "TURN username (env TURN_USERNAME)")
	c.Flags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password (env TURN_PASSWORD)")
	c.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
}
