package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/labdesk/internal/config"
	dockerpkg "github.com/dyluth/labdesk/internal/docker"
	"github.com/dyluth/labdesk/internal/printer"
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop the workspace Redis",
	Long: `Stop and remove every container labelled with this workspace.

Section data held only in that Redis is lost. The command does not prompt
for confirmation and executes immediately.`,
	RunE: runDown,
}

func init() {
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	printer.Step("Removing containers for workspace '%s'...\n", cfg.Workspace)
	removed, err := dockerpkg.RemoveWorkspace(ctx, cli, cfg.Workspace)
	if errors.Is(err, dockerpkg.ErrNotRunning) {
		return printer.Error(
			fmt.Sprintf("workspace '%s' is not up", cfg.Workspace),
			"No labdesk containers found for this workspace.",
			[]string{"Start it with:\n  labdesk up"},
		)
	}
	for _, name := range removed {
		printer.Info("  • %s removed\n", name)
	}
	if err != nil {
		return err
	}

	printer.Success("Workspace '%s' stopped\n", cfg.Workspace)
	return nil
}
