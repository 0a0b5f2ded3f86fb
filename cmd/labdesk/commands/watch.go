package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyluth/labdesk/internal/metrics"
	"github.com/dyluth/labdesk/internal/printer"
	"github.com/dyluth/labdesk/internal/watch"
)

var (
	watchOutputFormat string
	watchInbox        bool
	watchSection      string
	watchMetricsAddr  string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream section changes and mentions",
	Long: `Stream section changes as other members write them, and optionally the
mention notifications addressed to you.

With the redis backend every section change is pushed as it happens. With the
sqlite backend a single --section is polled for new revisions.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch every section
  labdesk watch

  # Also show mentions for Ana
  labdesk watch --inbox --as Ana

  # Export events as JSON and expose Prometheus metrics
  labdesk watch --output=json --metrics-addr=:9102 > events.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().BoolVar(&watchInbox, "inbox", false, "Also stream mentions addressed to you")
	watchCmd.Flags().StringVar(&watchSection, "section", "", "Section to poll (sqlite backend only)")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	outputFormat, err := watch.ParseOutputFormat(watchOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if watchMetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, watchMetricsAddr); err != nil {
				printer.Warning("%v\n", err)
			}
		}()
	}

	// Polling fallback for stores without change events.
	if s.redisStore == nil {
		if watchInbox {
			return requireRedis(s, "--inbox")
		}
		if watchSection == "" {
			return printer.Error(
				"no section to watch",
				"The sqlite backend has no change events, so one section is polled.",
				[]string{fmt.Sprintf("Pick one of %v:\n  labdesk watch --section todos", s.cfg.SectionNames())},
			)
		}
		return watch.PollChanges(ctx, s.store, watchSection, outputFormat, os.Stdout)
	}

	sub, err := s.redisStore.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to section changes: %w", err)
	}
	defer sub.Close()

	if !watchInbox {
		return watch.StreamChanges(ctx, sub, outputFormat, os.Stdout)
	}

	user, err := s.user()
	if err != nil {
		return err
	}
	inbox, err := s.notifier.SubscribeInbox(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to subscribe to notifications: %w", err)
	}
	defer inbox.Close()

	errCh := make(chan error, 2)
	go func() { errCh <- watch.StreamChanges(ctx, sub, outputFormat, os.Stdout) }()
	go func() { errCh <- watch.StreamInbox(ctx, inbox, outputFormat, os.Stdout) }()

	// Either stream ending stops both.
	err = <-errCh
	stop()
	if err2 := <-errCh; err == nil {
		err = err2
	}
	return err
}
