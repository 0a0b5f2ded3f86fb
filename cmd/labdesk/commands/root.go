package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/labdesk/internal/config"
)

var (
	version string
	commit  string
	date    string

	configPath string
	actAs      string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "labdesk",
	Short: "labdesk - shared boards and chat for a research group",
	Long: `labdesk keeps a research group's to-dos, analyses, experiments, papers
and patents on shared kanban boards, next to team, personal and PI chat
threads with mentions, reactions, typing indicators and read receipts.

State lives in Redis (or a local SQLite file) and every change is visible
to every member as soon as it is written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFileName, "Path to labdesk.yml")
	rootCmd.PersistentFlags().StringVar(&actAs, "as", "", "Member acting (defaults to $LABDESK_USER)")
}
