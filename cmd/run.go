package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Deskrelay/internal/config"
	"github.com/BioHazard786/Deskrelay/internal/remote"
	"github.com/BioHazard786/Deskrelay/internal/session"
	"github.com/BioHazard786/Deskrelay/internal/ui"
)

// runSession drives a controller behind the status view and prints the
// summary once the user leaves.
func runSession(cmd *cobra.Command, cfg *config.Config, opts session.Options) error {
	ctl, err := session.New(opts)
	if err != nil {
		return remote.NewError("create session", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- ctl.Run(ctx)
	}()

	// The view quits on its own when the controller shuts down.
	go func() {
		<-ctx.Done()
		ctl.Close()
	}()

	uiErr := ui.NewStatusModel(ctl, cfg.SessionLink).Run()

	ctl.Close()
	cancel()
	<-runErr

	fmt.Println()
	ui.RenderSummary(ctl.Summary())

	if uiErr != nil {
		return remote.NewError("status view", uiErr)
	}
	return nil
}
