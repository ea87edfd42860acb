package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Deskrelay/internal/peer"
	"github.com/BioHazard786/Deskrelay/internal/remote"
	"github.com/BioHazard786/Deskrelay/internal/session"
)

var flagRecord string

var joinCmd = &cobra.Command{
	Use:     "join <session-id|url>",
	Aliases: []string{"j"},
	Short:   "Join a session and control the host",
	Long: `Join a host's session. Press ctrl+g to capture keyboard and mouse and
send them to the host. The host's video can be recorded to an IVF file.

Examples:
  deskrelay join session-k3j9x0a1b
  deskrelay join http://localhost:8080/s/session-k3j9x0a1b
  deskrelay join session-k3j9x0a1b --record host.ivf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := parseSessionInput(args[0])
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		return runSession(cmd, cfg, session.Options{
			Role:      session.RoleGuest,
			Config:    cfg,
			SessionID: sessionID,
			Sink:      peer.NewIVFSink(flagRecord),
		})
	},
}

// parseSessionInput accepts a bare session id or a session link.
func parseSessionInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("session ID cannot be empty")
	}

	if strings.Contains(input, "://") || strings.Contains(input, "/") {
		return extractSessionIDFromURL(input)
	}
	return input, nil
}

func extractSessionIDFromURL(urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", remote.NewError("parse URL", err)
	}

	path := strings.TrimSuffix(parsedURL.Path, "/")
	parts := strings.Split(path, "/")

	for i, part := range parts {
		if part == "s" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}

	return "", fmt.Errorf("could not extract session ID from URL: %s", urlStr)
}

func init() {
	rootCmd.AddCommand(joinCmd)

	addConnectionFlags(joinCmd)
	joinCmd.Flags().StringVar(&flagRecord, "record", "", "Record the host's video to this IVF file (VP8 or AV1)")
}
