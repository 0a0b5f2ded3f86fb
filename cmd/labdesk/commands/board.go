package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/labdesk/internal/listing"
	"github.com/dyluth/labdesk/internal/printer"
	"github.com/dyluth/labdesk/pkg/board"
	"github.com/dyluth/labdesk/pkg/pending"
)

const deadlineLayout = "2006-01-02"

var (
	boardOutputFormat string

	itemStatus    string
	itemTitle     string
	itemAssignees []string
	itemDeadline  string
	itemProgress  int
	itemTeam      string

	moveIndex int
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "List and edit section boards",
	Long: `Work with the column boards defined under sections in labdesk.yml.

Every section is one ordered list of items. The column an item sits in is its
status, and its position within the column is its order.

Examples:
  labdesk board list todos
  labdesk board add papers "Kinase review" --assignee Ana --deadline 2026-11-30
  labdesk board move papers 3 submitted --index 0
  labdesk board edit experiments 5 --progress 60`,
}

var boardListCmd = &cobra.Command{
	Use:   "list SECTION",
	Short: "Show a section as columns",
	Args:  cobra.ExactArgs(1),
	RunE:  runBoardList,
}

var boardAddCmd = &cobra.Command{
	Use:   "add SECTION TITLE",
	Short: "Create an item (in the first column unless --status is set)",
	Args:  cobra.ExactArgs(2),
	RunE:  runBoardAdd,
}

var boardEditCmd = &cobra.Command{
	Use:   "edit SECTION ID",
	Short: "Change an item's fields in place",
	Args:  cobra.ExactArgs(2),
	RunE:  runBoardEdit,
}

var boardMoveCmd = &cobra.Command{
	Use:   "move SECTION ID COLUMN",
	Short: "Move an item to a column and position",
	Long: `Move an item to COLUMN at --index (0 is the top). An index of -1, or one
past the end, appends. Moving an item onto its own position writes nothing.`,
	Args: cobra.ExactArgs(3),
	RunE: runBoardMove,
}

var boardRmCmd = &cobra.Command{
	Use:   "rm SECTION ID",
	Short: "Delete an item",
	Args:  cobra.ExactArgs(2),
	RunE:  runBoardRm,
}

func init() {
	boardListCmd.Flags().StringVarP(&boardOutputFormat, "output", "o", "default", "Output format: default or jsonl")

	boardAddCmd.Flags().StringVar(&itemStatus, "status", "", "Column to create the item in")
	boardAddCmd.Flags().StringSliceVar(&itemAssignees, "assignee", nil, "Assign a member (repeatable)")
	boardAddCmd.Flags().StringVar(&itemDeadline, "deadline", "", "Deadline as YYYY-MM-DD")
	boardAddCmd.Flags().StringVar(&itemTeam, "team", "", "Owning team")

	boardEditCmd.Flags().StringVar(&itemTitle, "title", "", "New title")
	boardEditCmd.Flags().StringSliceVar(&itemAssignees, "assignee", nil, "Replace assignees (repeatable)")
	boardEditCmd.Flags().StringVar(&itemDeadline, "deadline", "", "Deadline as YYYY-MM-DD, or 'none' to clear")
	boardEditCmd.Flags().IntVar(&itemProgress, "progress", -1, "Progress percent (0-100)")
	boardEditCmd.Flags().StringVar(&itemTeam, "team", "", "Owning team")

	boardMoveCmd.Flags().IntVar(&moveIndex, "index", -1, "Position within the column (-1 appends)")

	boardCmd.AddCommand(boardListCmd, boardAddCmd, boardEditCmd, boardMoveCmd, boardRmCmd)
	rootCmd.AddCommand(boardCmd)
}

func runBoardList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	format, err := listing.ParseOutputFormat(boardOutputFormat)
	if err != nil {
		return err
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	b, err := s.board(ctx, args[0])
	if err != nil {
		return err
	}

	if format == listing.OutputFormatJSONL {
		return listing.FormatJSONL(os.Stdout, b.Items())
	}

	isPending := func(id int64) bool {
		return b.Tracker().IsPending(pending.Key{Section: b.Section(), ID: id})
	}
	listing.FormatBoard(os.Stdout, b.Section(), b.Columns(), b.Items(), isPending)
	return nil
}

func runBoardAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	sc, err := s.cfg.Section(args[0])
	if err != nil {
		return err
	}
	b, err := s.board(ctx, args[0])
	if err != nil {
		return err
	}

	it, err := board.NewItem(board.Kind(sc.Kind), strings.TrimSpace(args[1]), itemStatus)
	if err != nil {
		return err
	}
	base, _ := board.BaseOf(it)
	if err := applyItemFlags(cmd, s, &base); err != nil {
		return err
	}
	it = board.WithBase(it, base)

	created, err := b.Create(ctx, it)
	if err != nil {
		return writeFailed(err, args[0])
	}

	printer.Success("Created %s #%d in %s\n", args[0], created.ItemID(), created.ItemStatus())
	return nil
}

func runBoardEdit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	id, err := parseItemID(args[1])
	if err != nil {
		return err
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	b, err := s.board(ctx, args[0])
	if err != nil {
		return err
	}

	it, ok := b.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", board.ErrItemNotFound, id)
	}
	base, ok := board.BaseOf(it)
	if !ok {
		return fmt.Errorf("item %d has an unsupported kind %s", id, it.Kind())
	}

	if cmd.Flags().Changed("title") {
		base.Title = strings.TrimSpace(itemTitle)
		if base.Title == "" {
			return fmt.Errorf("title cannot be empty")
		}
	}
	if cmd.Flags().Changed("progress") {
		if itemProgress < 0 || itemProgress > 100 {
			return fmt.Errorf("progress must be between 0 and 100, got %d", itemProgress)
		}
		base.Progress = itemProgress
	}
	if err := applyItemFlags(cmd, s, &base); err != nil {
		return err
	}

	if err := b.Update(ctx, board.WithBase(it, base)); err != nil {
		return writeFailed(err, args[0])
	}

	printer.Success("Updated %s #%d\n", args[0], id)
	return nil
}

func runBoardMove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	id, err := parseItemID(args[1])
	if err != nil {
		return err
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	b, err := s.board(ctx, args[0])
	if err != nil {
		return err
	}

	column := args[2]
	index := moveIndex
	if size := len(b.Column(column)); index < 0 || index > size {
		index = size
	}

	moved, err := b.Move(ctx, id, board.Drop{Column: column, Index: index})
	if err != nil {
		return writeFailed(err, args[0])
	}
	at, _ := board.Locate(b.Items(), id, board.ItemAccessor)
	if !moved {
		printer.Info("#%d is already at %s[%d]\n", id, at.Column, at.Index)
		return nil
	}

	printer.Success("Moved %s #%d to %s[%d]\n", args[0], id, at.Column, at.Index)
	return nil
}

func runBoardRm(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	id, err := parseItemID(args[1])
	if err != nil {
		return err
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	b, err := s.board(ctx, args[0])
	if err != nil {
		return err
	}
	if err := b.Delete(ctx, id); err != nil {
		return writeFailed(err, args[0])
	}

	printer.Success("Deleted %s #%d\n", args[0], id)
	return nil
}

// applyItemFlags copies the assignee, deadline and team flags onto base.
func applyItemFlags(cmd *cobra.Command, s *session, base *board.Base) error {
	if cmd.Flags().Changed("assignee") {
		for _, a := range itemAssignees {
			if !s.roster.Contains(a) {
				return fmt.Errorf("assignee '%s' is not a member", a)
			}
		}
		base.Assignees = itemAssignees
	}

	if cmd.Flags().Changed("deadline") {
		if itemDeadline == "none" {
			base.Deadline = nil
		} else {
			d, err := time.ParseInLocation(deadlineLayout, itemDeadline, time.Local)
			if err != nil {
				return fmt.Errorf("invalid deadline %q (expected YYYY-MM-DD)", itemDeadline)
			}
			base.Deadline = &d
		}
	}

	if cmd.Flags().Changed("team") {
		base.Team = itemTeam
	}
	return nil
}

func parseItemID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item ID %q", s)
	}
	return id, nil
}

// writeFailed turns a persist failure into a user-facing error. Other
// errors pass through.
func writeFailed(err error, section string) error {
	if !board.IsPersistError(err) {
		return err
	}
	return printer.ErrorWithContext(
		"change not saved",
		err.Error(),
		map[string]string{"Section": section},
		[]string{
			"The local change was kept only for this command; the stored board is unchanged",
			fmt.Sprintf("Check the store and retry:\n  labdesk board list %s", section),
		},
	)
}
