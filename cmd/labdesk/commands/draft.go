package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/labdesk/internal/printer"
	"github.com/dyluth/labdesk/pkg/chat"
	"github.com/dyluth/labdesk/pkg/draft"
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Manage locally saved drafts",
	Long: `Drafts hold unsent text per context and live only on this machine.

KEY is either a thread (team:alpha, chat:team:alpha) or a composite
context:id key such as item:papers/3.

Examples:
  labdesk draft save team:alpha "half-written reply"
  labdesk draft show team:alpha
  labdesk draft clear item:papers/3`,
}

var draftSaveCmd = &cobra.Command{
	Use:   "save KEY TEXT",
	Short: "Save a draft (empty TEXT clears it)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDrafts(args[0], func(c *draft.Cache, key draft.Key) error {
			if err := c.Save(key, args[1]); err != nil {
				return err
			}
			printer.Success("Saved draft %s\n", key)
			return nil
		})
	},
}

var draftShowCmd = &cobra.Command{
	Use:   "show KEY",
	Short: "Print a saved draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDrafts(args[0], func(c *draft.Cache, key draft.Key) error {
			text, ok, err := c.Load(key)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no draft saved for %s", key)
			}
			printer.Println(text)
			return nil
		})
	},
}

var draftClearCmd = &cobra.Command{
	Use:   "clear KEY",
	Short: "Delete a saved draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDrafts(args[0], func(c *draft.Cache, key draft.Key) error {
			if err := c.Clear(key); err != nil {
				return err
			}
			printer.Success("Cleared draft %s\n", key)
			return nil
		})
	},
}

func init() {
	draftCmd.AddCommand(draftSaveCmd, draftShowCmd, draftClearCmd)
	rootCmd.AddCommand(draftCmd)
}

func withDrafts(raw string, fn func(c *draft.Cache, key draft.Key) error) error {
	key, err := resolveDraftKey(raw)
	if err != nil {
		return err
	}

	s, err := openSession(context.Background())
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(s.drafts, key)
}

// resolveDraftKey accepts a thread reference or a composite context:id key.
func resolveDraftKey(raw string) (draft.Key, error) {
	if ref, err := chat.ParseThreadRef(raw); err == nil {
		return draft.ThreadKey(ref.Key()), nil
	}
	return draft.ParseKey(raw)
}
