package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/labdesk/internal/listing"
	"github.com/dyluth/labdesk/internal/printer"
	"github.com/dyluth/labdesk/pkg/chat"
	"github.com/dyluth/labdesk/pkg/draft"
)

var (
	chatOutputFormat string
	chatImageURL     string
	chatReplyTo      int64
	chatNoMark       bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Read and post in chat threads",
	Long: `Read and post in team, person and PI chat threads.

Threads are addressed as KIND:ID, for example team:alpha, person:ana or pi:lab.

Mentioning a member as @Name (e.g. "@Ben") sends them a notification once
the message is saved. If a send fails the text is kept as
the thread's draft; run 'labdesk chat send THREAD' with no text to retry it.

Examples:
  labdesk chat show team:alpha
  labdesk chat send team:alpha "@Ben gel is ready" --as Ana
  labdesk chat send team:alpha "agreed" --reply-to 1760611200000
  labdesk chat react team:alpha 1760611200000 👍`,
}

var chatShowCmd = &cobra.Command{
	Use:   "show THREAD",
	Short: "Print a thread and mark it read",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatShow,
}

var chatSendCmd = &cobra.Command{
	Use:   "send THREAD [TEXT]",
	Short: "Post a message (TEXT defaults to the saved draft)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runChatSend,
}

var chatEditCmd = &cobra.Command{
	Use:   "edit THREAD MESSAGE_ID TEXT",
	Short: "Edit one of your messages",
	Args:  cobra.ExactArgs(3),
	RunE:  runChatEdit,
}

var chatDeleteCmd = &cobra.Command{
	Use:   "delete THREAD MESSAGE_ID",
	Short: "Delete a message (yours, or anyone's as an admin)",
	Args:  cobra.ExactArgs(2),
	RunE:  runChatDelete,
}

var chatReactCmd = &cobra.Command{
	Use:   "react THREAD MESSAGE_ID EMOJI",
	Short: "Toggle your reaction on a message",
	Args:  cobra.ExactArgs(3),
	RunE:  runChatReact,
}

var chatTypingCmd = &cobra.Command{
	Use:   "typing THREAD",
	Short: "Signal that you are typing in a thread",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatTyping,
}

var chatReadCmd = &cobra.Command{
	Use:   "read THREAD",
	Short: "Mark a thread read up to its newest message",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatRead,
}

func init() {
	chatShowCmd.Flags().StringVarP(&chatOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	chatShowCmd.Flags().BoolVar(&chatNoMark, "no-mark", false, "Do not update your read receipt")

	chatSendCmd.Flags().StringVar(&chatImageURL, "image", "", "Attach an image URL")
	chatSendCmd.Flags().Int64Var(&chatReplyTo, "reply-to", 0, "Reply to a message ID")

	chatCmd.AddCommand(chatShowCmd, chatSendCmd, chatEditCmd, chatDeleteCmd, chatReactCmd, chatTypingCmd, chatReadCmd)
	rootCmd.AddCommand(chatCmd)
}

func runChatShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	format, err := listing.ParseOutputFormat(chatOutputFormat)
	if err != nil {
		return err
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	user, err := s.user()
	if err != nil {
		return err
	}
	th, err := s.thread(ctx, args[0])
	if err != nil {
		return err
	}
	key := th.Ref().Key()
	msgs := th.Messages()

	if format == listing.OutputFormatJSONL {
		return listing.FormatJSONL(os.Stdout, msgs)
	}

	view := listing.ThreadView{FirstUnread: -1}
	receipts := s.receipts()
	if receipts != nil {
		if lastRead, ok := receipts.LastRead(ctx, key, user); ok {
			view.FirstUnread = chat.FirstUnread(msgs, lastRead, user)
		}

		// Seen-by is shown under the viewer's newest message only.
		var ownLatest int64
		for _, m := range msgs {
			if m.Author == user && m.Persisted() {
				ownLatest = m.ID
			}
		}
		view.SeenBy = func(m chat.Message) []string {
			if m.ID != ownLatest {
				return nil
			}
			return receipts.SeenBy(ctx, key, m.ID, m.Author)
		}
	}
	if typing := s.typing(); typing != nil {
		view.Typing = typing.WhoIsTyping(ctx, key, user)
	}

	listing.FormatThread(os.Stdout, th.Ref().String(), msgs, view)

	if d, ok, err := s.drafts.Load(draft.ThreadKey(key)); err == nil && ok {
		printer.Info("\nDraft: %s\n", d)
	}

	if receipts != nil && !chatNoMark {
		if latest := chat.LatestPersisted(msgs); latest > 0 {
			if _, err := receipts.MarkRead(ctx, key, user, latest); err != nil {
				printer.Warning("Could not update read receipt: %v\n", err)
			}
		}
	}
	return nil
}

func runChatSend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	user, err := s.user()
	if err != nil {
		return err
	}
	th, err := s.thread(ctx, args[0])
	if err != nil {
		return err
	}
	draftKey := draft.ThreadKey(th.Ref().Key())

	var text string
	if len(args) == 2 {
		text = args[1]
	} else {
		saved, ok, err := s.drafts.Load(draftKey)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no text given and no draft saved for %s", th.Ref())
		}
		text = saved
	}

	out := chat.Outgoing{Author: user, Text: text, ImageURL: chatImageURL}
	var msg chat.Message
	if chatReplyTo != 0 {
		msg, err = th.Reply(ctx, chatReplyTo, out)
	} else {
		msg, err = th.Send(ctx, out)
	}

	switch {
	case err == nil:
		printer.Success("Sent %d to %s\n", msg.ID, th.Ref())
		return nil
	case msg.Failed:
		if saveErr := s.drafts.Save(draftKey, text); saveErr != nil {
			printer.Warning("Could not save draft: %v\n", saveErr)
		}
		return printer.ErrorWithContext(
			"message not sent",
			err.Error(),
			map[string]string{"Thread": th.Ref().String()},
			[]string{fmt.Sprintf("The text was saved as a draft. Retry with:\n  labdesk chat send %s", th.Ref())},
		)
	default:
		return err
	}
}

func runChatEdit(cmd *cobra.Command, args []string) error {
	return withMessage(args, func(ctx context.Context, th *chat.Thread, id int64, user string) error {
		if err := th.Edit(ctx, id, user, args[2]); err != nil {
			return err
		}
		printer.Success("Edited %d\n", id)
		return nil
	})
}

func runChatDelete(cmd *cobra.Command, args []string) error {
	return withMessage(args, func(ctx context.Context, th *chat.Thread, id int64, user string) error {
		if err := th.SoftDelete(ctx, id, user); err != nil {
			return err
		}
		printer.Success("Deleted %d\n", id)
		return nil
	})
}

func runChatReact(cmd *cobra.Command, args []string) error {
	return withMessage(args, func(ctx context.Context, th *chat.Thread, id int64, user string) error {
		if err := th.React(ctx, id, args[2], user); err != nil {
			return err
		}
		m, _ := th.Get(id)
		if m.ReactedBy(strings.TrimSpace(args[2]), user) {
			printer.Success("Reacted %s on %d\n", args[2], id)
		} else {
			printer.Success("Removed %s from %d\n", args[2], id)
		}
		return nil
	})
}

func runChatTyping(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := requireRedis(s, "typing"); err != nil {
		return err
	}
	user, err := s.user()
	if err != nil {
		return err
	}
	ref, err := chat.ParseThreadRef(args[0])
	if err != nil {
		return err
	}

	if s.typing().Report(ctx, ref.Key(), user) {
		printer.Info("Typing in %s for %s\n", ref, s.cfg.Presence.TypingTTL)
	}
	return nil
}

func runChatRead(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := requireRedis(s, "read receipts"); err != nil {
		return err
	}
	user, err := s.user()
	if err != nil {
		return err
	}
	th, err := s.thread(ctx, args[0])
	if err != nil {
		return err
	}

	latest := chat.LatestPersisted(th.Messages())
	if latest == 0 {
		printer.Info("%s has no messages\n", th.Ref())
		return nil
	}
	stored, err := s.receipts().MarkRead(ctx, th.Ref().Key(), user, latest)
	if err != nil {
		return err
	}
	printer.Success("Read %s up to %d\n", th.Ref(), stored)
	return nil
}

// withMessage opens the thread named by args[0] and calls fn with the
// message ID in args[1] and the acting member.
func withMessage(args []string, fn func(ctx context.Context, th *chat.Thread, id int64, user string) error) error {
	ctx := context.Background()

	id, err := parseMessageID(args[1])
	if err != nil {
		return err
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	user, err := s.user()
	if err != nil {
		return err
	}
	th, err := s.thread(ctx, args[0])
	if err != nil {
		return err
	}

	err = fn(ctx, th, id, user)
	if errors.Is(err, chat.ErrMessageNotFound) {
		return printer.Error(
			fmt.Sprintf("message %d not found", id),
			fmt.Sprintf("%s has no message with that ID.", th.Ref()),
			[]string{fmt.Sprintf("List message IDs with:\n  labdesk chat show %s --no-mark", th.Ref())},
		)
	}
	return err
}

func parseMessageID(s string) (int64, error) {
	id, err := parseItemID(s)
	if err != nil {
		return 0, fmt.Errorf("invalid message ID %q", s)
	}
	return id, nil
}
