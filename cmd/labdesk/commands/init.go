package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dyluth/labdesk/internal/scaffold"
)

var (
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new labdesk workspace",
	Long: `Initialize a new labdesk workspace in the directory holding --config.

Creates:
  • labdesk.yml - members, sections, store and presence settings
  • .env        - local overrides (LABDESK_USER, LABDESK_REDIS_URL)

Use --force to reinitialize an existing workspace (WARNING: overwrites existing configuration).`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing labdesk.yml and .env")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := scaffold.Initialize(filepath.Dir(configPath), forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess()
	return nil
}
