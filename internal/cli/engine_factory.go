package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/funnel"
	"github.com/aretw0/funnel/internal/config"
	"github.com/aretw0/funnel/pkg/adapters/file"
	"github.com/aretw0/funnel/pkg/adapters/memory"
	"github.com/aretw0/funnel/pkg/adapters/redis"
	"github.com/aretw0/funnel/pkg/adapters/sqlstore"
	"github.com/aretw0/funnel/pkg/observability"
	"github.com/aretw0/funnel/pkg/persistence/middleware"
	"github.com/aretw0/funnel/pkg/ports"
)

// Stack is the storage selected by the configuration.
type Stack struct {
	Definitions ports.DefinitionStore
	Sessions    ports.SessionRepository
	Timers      ports.TimerStore
	Locker      ports.DistributedLocker

	// Loader is set when definitions are read from a directory.
	Loader *file.Loader
	// SQL is the funnel catalog of the sqlite and postgres backends.
	SQL *sqlstore.DefinitionStore

	closers []func() error
}

// OpenStack opens the session, timer and definition stores named by cfg.
// The file backend keeps pending timers in memory.
func OpenStack(cfg config.Config) (*Stack, error) {
	st := &Stack{}

	switch cfg.Storage.Backend {
	case config.StorageMemory:
		st.Sessions = memory.NewStore()
		st.Timers = memory.NewTimerStore()
	case config.StorageFile:
		st.Sessions = file.New(cfg.SessionDir())
		st.Timers = memory.NewTimerStore()
	case config.StorageSQLite, config.StoragePostgres:
		db, err := sqlstore.Open(cfg.Storage.Backend, cfg.SQLDSN())
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() error { return sqlstore.Close(db) })
		st.Sessions = sqlstore.NewSessionStore(db)
		st.Timers = sqlstore.NewTimerStore(db)
		st.SQL = sqlstore.NewDefinitionStore(db)
		if cfg.Definitions.Source == config.DefinitionsSQL {
			st.Definitions = st.SQL
		}
	case config.StorageRedis:
		store := redis.New(cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB)
		st.closers = append(st.closers, store.Close)
		st.Sessions = store
		st.Timers = redis.NewTimerStore(store.Client())
		st.Locker = redis.NewLocker(store.Client(), "funnel:")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if st.Definitions == nil {
		loader, err := file.NewLoader(cfg.Definitions.Dir)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		st.Loader = loader
		st.Definitions = loader
	}
	return st, nil
}

// Close releases database and redis connections.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// NewEngine builds an engine on top of st with the CLI conventions:
// lifecycle events are logged at debug level and the lock TTL, pacing and
// bot username come from cfg.
func NewEngine(cfg config.Config, st *Stack, logger *slog.Logger, extra ...funnel.Option) (*funnel.Engine, error) {
	opts := []funnel.Option{
		funnel.WithLogger(logger),
		funnel.WithLifecycleHooks(observability.LogHooks(logger)),
		funnel.WithSessionRepository(st.Sessions),
		funnel.WithSessionMiddleware(middleware.NewLogging(logger)),
		funnel.WithTimerStore(st.Timers),
		funnel.WithMessagePacing(cfg.MessagePacing),
		funnel.WithBotUsername(cfg.BotUsername),
	}
	if cfg.BotLinkFormat != "" {
		opts = append(opts, funnel.WithLinkFormat(cfg.BotLinkFormat))
	}
	if st.Locker != nil {
		opts = append(opts, funnel.WithDistributedLocker(st.Locker, cfg.LockTTL))
	}
	opts = append(opts, extra...)

	engine, err := funnel.New(st.Definitions, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, nil
}

// ImportDefinitions copies every funnel the directory loader knows into the
// SQL catalog. It returns the imported IDs.
func ImportDefinitions(ctx context.Context, from ports.DefinitionStore, to *sqlstore.DefinitionStore) ([]string, error) {
	ids, err := from.ListFunnels(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		def, err := from.GetFunnel(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := to.Import(ctx, *def); err != nil {
			return nil, fmt.Errorf("import %q: %w", id, err)
		}
	}
	return ids, nil
}
