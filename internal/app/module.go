package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/MR-JLTC/tutorchat/internal/api"
	"github.com/MR-JLTC/tutorchat/internal/bus"
	"github.com/MR-JLTC/tutorchat/internal/chat"
	"github.com/MR-JLTC/tutorchat/internal/config"
	"github.com/MR-JLTC/tutorchat/internal/lock"
	"github.com/MR-JLTC/tutorchat/internal/logging"
	"github.com/MR-JLTC/tutorchat/internal/notify"
	"github.com/MR-JLTC/tutorchat/internal/session"
	"github.com/MR-JLTC/tutorchat/internal/status"
	"github.com/MR-JLTC/tutorchat/internal/store"
	"github.com/MR-JLTC/tutorchat/internal/tui"
	"github.com/MR-JLTC/tutorchat/internal/ws"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module composes the client: providers for every component and the
// lifecycle hooks that start and stop them around the TUI.
func Module(p Params) fx.Option {
	return fx.Module("tutorchat",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideSession,
			provideStore,
			provideAPI,
			provideConn,
			provideEngine,
			provideNotifier,
			provideTUI,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		return config.Default()
	}
	return cfg
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideSession(p Params, b *bus.Bus) *session.Manager {
	return session.NewManager(session.CredentialsPath(p.SessionName), b)
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.CacheDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideAPI(cfg *config.Config, sess *session.Manager) *api.Client {
	return api.New(cfg.ServerURL, sess)
}

func provideConn(cfg *config.Config, sess *session.Manager, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *ws.Manager {
	return ws.NewManager(cfg.ServerURL, sess, b, machine, logger)
}

func provideEngine(apiClient *api.Client, conn *ws.Manager, db *store.DB, sess *session.Manager, b *bus.Bus, logger *zap.Logger) *chat.Engine {
	return chat.NewEngine(apiClient, conn, db, sess, b, logger)
}

func provideNotifier(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *notify.Notifier {
	return notify.New(cfg, b, logger)
}

func provideTUI(p Params, engine *chat.Engine, apiClient *api.Client, sess *session.Manager, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *tui.App {
	return tui.NewApp(engine, apiClient, sess, b, machine, logger, p.SessionName)
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, app *tui.App, conn *ws.Manager, engine *chat.Engine, notifier *notify.Notifier, lk *lock.Lock, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			engine.Start(context.Background())
			notifier.Start(context.Background())
			conn.Start(context.Background())

			go func() {
				if err := app.Run(); err != nil {
					logger.Error("tui error", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			app.Stop()
			conn.Stop()
			notifier.Stop()
			engine.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}
