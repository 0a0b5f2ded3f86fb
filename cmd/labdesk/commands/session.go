package commands

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/dyluth/labdesk/internal/config"
	"github.com/dyluth/labdesk/internal/printer"
	"github.com/dyluth/labdesk/pkg/board"
	"github.com/dyluth/labdesk/pkg/chat"
	"github.com/dyluth/labdesk/pkg/draft"
	"github.com/dyluth/labdesk/pkg/mention"
	"github.com/dyluth/labdesk/pkg/notify"
	"github.com/dyluth/labdesk/pkg/pending"
	"github.com/dyluth/labdesk/pkg/presence"
	"github.com/dyluth/labdesk/pkg/roster"
	"github.com/dyluth/labdesk/pkg/section"
)

// session holds everything a command needs, opened from labdesk.yml.
type session struct {
	cfg       *config.Config
	store     section.Store
	redisOpts *redis.Options // nil for the sqlite backend
	roster    *roster.Roster
	drafts    *draft.Cache
	tracker   *pending.Tracker

	redisStore *section.RedisStore
	notifier   *notify.RedisNotifier
	presence   *presence.RedisService
	dispatcher *mention.Dispatcher

	closers []io.Closer
}

// openSession loads the configuration and connects to the configured store.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, printer.Error(
			fmt.Sprintf("%s not found or invalid", configPath),
			fmt.Sprintf("Error details: %v", err),
			[]string{"Initialize a workspace first:\n  labdesk init"},
		)
	}

	r, err := cfg.Roster()
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, roster: r, tracker: pending.NewTracker()}

	switch cfg.Store.Backend {
	case config.BackendSQLite:
		store, err := section.OpenSQLiteStore(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.store = store
		s.closers = append(s.closers, store)

	default:
		opts, err := cfg.Store.RedisOptions()
		if err != nil {
			return nil, err
		}
		store, err := section.NewRedisStore(opts, cfg.Workspace)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store)
		if err := store.Ping(ctx); err != nil {
			s.Close()
			return nil, printer.ErrorWithContext(
				"Redis connection failed",
				fmt.Sprintf("Could not connect to Redis at %s", cfg.Store.RedisURL),
				map[string]string{"Workspace": cfg.Workspace},
				[]string{
					"Start a local Redis:\n  labdesk up",
					fmt.Sprintf("Or point %s at a running server", config.EnvRedisURL),
				},
			)
		}
		s.store = store
		s.redisStore = store
		s.redisOpts = opts

		s.notifier, err = notify.NewRedisNotifier(opts, cfg.Workspace)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, s.notifier)
		s.dispatcher = mention.NewDispatcher(s.notifier, r)

		s.presence = presence.NewRedisService(opts)
		s.closers = append(s.closers, s.presence)
	}

	backend, err := draft.OpenPebble(cfg.Drafts.Path, nil)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.drafts = draft.New(backend)
	s.closers = append(s.closers, s.drafts)

	return s, nil
}

// Close waits for background notifications and releases every connection.
func (s *session) Close() {
	if s.dispatcher != nil {
		s.dispatcher.Wait()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			log.Printf("[CLI] Failed to close resource: %v", err)
		}
	}
}

// user resolves the acting member and checks the roster.
func (s *session) user() (string, error) {
	name, err := config.CurrentUser(actAs)
	if err != nil {
		return "", printer.Error("no acting member", err.Error(),
			[]string{"Pass --as <name>", fmt.Sprintf("Set %s in .env", config.EnvUser)})
	}
	if !s.roster.Contains(name) {
		return "", printer.Error(
			fmt.Sprintf("'%s' is not a member", name),
			fmt.Sprintf("Members: %v", s.roster.Names()),
			[]string{"Add them to members in labdesk.yml"},
		)
	}
	return name, nil
}

// board opens and loads the named section.
func (s *session) board(ctx context.Context, name string) (*board.Board, error) {
	sc, err := s.cfg.Section(name)
	if err != nil {
		return nil, err
	}
	b, err := board.New(s.store, name, board.Kind(sc.Kind), board.Columns(sc.Columns),
		board.WithTracker(s.tracker), board.WithDrafts(s.drafts))
	if err != nil {
		return nil, err
	}
	if err := b.Load(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// thread opens and loads a chat thread.
func (s *session) thread(ctx context.Context, raw string) (*chat.Thread, error) {
	ref, err := chat.ParseThreadRef(raw)
	if err != nil {
		return nil, err
	}
	opts := []chat.Option{chat.WithTracker(s.tracker), chat.WithDrafts(s.drafts)}
	if s.dispatcher != nil {
		opts = append(opts, chat.WithMentions(s.dispatcher))
	}
	th, err := chat.NewThread(s.store, ref, s.roster, opts...)
	if err != nil {
		return nil, err
	}
	if err := th.Load(ctx); err != nil {
		return nil, err
	}
	return th, nil
}

// typing returns the typing client, or nil when the backend has no
// presence service.
func (s *session) typing() *presence.Typing {
	if s.presence == nil {
		return nil
	}
	return presence.NewTyping(s.presence, s.cfg.Workspace, s.cfg.Presence.TypingTTL, s.cfg.Presence.TypingDebounce)
}

// receipts returns the read-receipt client, or nil when the backend has no
// presence service.
func (s *session) receipts() *presence.Receipts {
	if s.presence == nil {
		return nil
	}
	return presence.NewReceipts(s.presence, s.cfg.Workspace)
}

func requireRedis(s *session, what string) error {
	if s.redisOpts != nil {
		return nil
	}
	return printer.Error(
		fmt.Sprintf("%s needs the redis backend", what),
		fmt.Sprintf("store.backend is %q in %s.", s.cfg.Store.Backend, configPath),
		[]string{"Set store.backend: redis and run 'labdesk up'"},
	)
}
