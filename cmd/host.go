package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Deskrelay/internal/input"
	"github.com/BioHazard786/Deskrelay/internal/peer"
	"github.com/BioHazard786/Deskrelay/internal/remote"
	"github.com/BioHazard786/Deskrelay/internal/session"
)

var (
	flagSource string
	flagAgent  string
)

var hostCmd = &cobra.Command{
	Use:     "host",
	Aliases: []string{"h"},
	Short:   "Share this screen and accept remote input",
	Long: `Create a session and wait for a guest. The video source is an IVF
recording (VP8, VP9 or AV1) streamed as a live track; without one only the
control channel is offered. Guest input is applied through the chosen agent.

Examples:
  deskrelay host --source screen.ivf
  deskrelay host --source screen.ivf --agent xdotool
  deskrelay host --broker relay.example.com --secure`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		agent, err := input.New(flagAgent)
		if err != nil {
			return remote.NewError("create input agent", err)
		}

		opts := session.Options{
			Role:   session.RoleHost,
			Config: cfg,
			Agent:  agent,
		}
		if flagSource != "" {
			path := flagSource
			opts.Source = func() (peer.Source, error) {
				src, err := peer.OpenIVF(path)
				if err != nil {
					return nil, err
				}
				w, h := src.Size()
				slog.Info("screen source", "path", path, "codec", src.Codec(), "width", w, "height", h)
				return src, nil
			}
		}

		return runSession(cmd, cfg, opts)
	},
}

func init() {
	rootCmd.AddCommand(hostCmd)

	addConnectionFlags(hostCmd)
	hostCmd.Flags().StringVar(&flagSource, "source", "", "IVF file streamed as the screen")
	hostCmd.Flags().StringVar(&flagAgent, "agent", input.AgentLog, "Input agent: log or xdotool")
}
