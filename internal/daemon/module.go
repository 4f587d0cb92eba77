// Package daemon composes the messaging daemon from its parts and manages
// startup and shutdown ordering.
package daemon

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mudassir044/aupair-messaging/internal/api"
	"github.com/mudassir044/aupair-messaging/internal/bus"
	"github.com/mudassir044/aupair-messaging/internal/chat"
	"github.com/mudassir044/aupair-messaging/internal/config"
	"github.com/mudassir044/aupair-messaging/internal/lock"
	"github.com/mudassir044/aupair-messaging/internal/logging"
	"github.com/mudassir044/aupair-messaging/internal/relay"
	"github.com/mudassir044/aupair-messaging/internal/status"
	"github.com/mudassir044/aupair-messaging/internal/store"
	"github.com/mudassir044/aupair-messaging/internal/store/postgres"
	"github.com/mudassir044/aupair-messaging/internal/store/sqlite"
	"github.com/mudassir044/aupair-messaging/internal/token"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved configuration passed to the fx module.
type Params struct {
	Config *config.Config
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideChatService,
			provideVerifier,
			provideHub,
			provideEngine,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := p.Config.EnsureDirs(); err != nil {
		return nil, err
	}
	return logging.New(p.Config.LogPath())
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring daemon lock", zap.String("dir", p.Config.DataDir))
	l, err := lock.Acquire(p.Config.DataDir)
	if err != nil {
		return nil, err
	}
	logger.Info("daemon lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (store.Store, error) {
	switch p.Config.DBDriver {
	case "sqlite":
		db, err := sqlite.Open(p.Config.DBPath())
		if err != nil {
			return nil, err
		}
		result, err := db.Migrate()
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		logMigration(logger, result.Changed, result.Version)
		logger.Info("store initialized",
			zap.String("driver", "sqlite"), zap.String("path", p.Config.DBPath()))
		return db, nil
	case "postgres":
		db, err := postgres.Open(context.Background(), p.Config.DBURL)
		if err != nil {
			return nil, err
		}
		result, err := db.Migrate()
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		logMigration(logger, result.Changed, result.Version)
		logger.Info("store initialized", zap.String("driver", "postgres"))
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", p.Config.DBDriver)
	}
}

func logMigration(logger *zap.Logger, changed bool, version uint) {
	if changed {
		logger.Info("migrations applied", zap.Uint("version", version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", version))
	}
}

func provideChatService(st store.Store, b *bus.Bus, logger *zap.Logger) *chat.Service {
	return chat.NewService(st, b, logger)
}

func provideVerifier(p Params) *token.Verifier {
	return token.NewVerifier(p.Config.JWTSecret)
}

func provideHub(b *bus.Bus, logger *zap.Logger) *relay.Hub {
	return relay.NewHub(b, logger)
}

func provideEngine(p Params, svc *chat.Service, hub *relay.Hub, verifier *token.Verifier, st store.Store, machine *status.Machine, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	wsHandler := relay.NewHandler(hub, svc, verifier, st, logger, originChecker(p.Config.AllowedOrigins))
	api.NewServer(svc, machine, logger).Register(engine, verifier, st, wsHandler.Handle())
	return engine
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin header.
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, hub *relay.Hub, st store.Store, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			hub.Start()
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
					_ = machine.Transition(status.Error)
				}
			}()
			_ = machine.Transition(status.Ready)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			_ = machine.Transition(status.Draining)
			srv.Stop(ctx)
			hub.Stop()
			if err := st.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			_ = machine.Transition(status.Stopped)
			logger.Info("daemon stopped")
			return nil
		},
	})
}
