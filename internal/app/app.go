package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/auth"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/config"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/core"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/presence"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/store"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/store/sqlite"
	transporthttp "github.com/drgusroqa-netizen/Naser-Chat/internal/transport/http"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/voice"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	typing          *core.TypingTracker
	store           store.Store
	redis           *redis.Client
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	router := core.NewRouter(logger)

	var redisClient *redis.Client
	presenceStore := core.NewMemoryPresence()
	if cfg.RedisAddr != "" {
		redisClient, err = presence.Dial(context.Background(), cfg.RedisAddr)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("init presence: %w", err)
		}
		presenceStore = presence.NewRedis(redisClient)
		logger.Info().Str("redis_addr", cfg.RedisAddr).Msg("using redis presence store")
	}
	presenceTracker := core.NewPresenceTracker(presenceStore, router, logger)

	resolver := core.NewResolver(st, st)
	gate := core.NewSlowmodeGate(st)
	reactions := core.NewReactionAggregator(st)
	pipeline := core.NewPipeline(st, resolver, gate, reactions, router, cfg.OpTimeout, logger)
	membership := core.NewMembership(st, resolver, presenceTracker, router, cfg.OpTimeout, logger)
	typing := core.NewTypingTracker(router, cfg.TypingTTL, cfg.TypingSweepInterval, logger)

	voiceProvider := voice.NewProvider(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.URL)

	wsHandler := transporthttp.NewWSHandler(
		authService, router, resolver, pipeline, typing, presenceTracker, cfg.SendBuffer, logger)

	server := transporthttp.NewServer(transporthttp.Deps{
		AuthService: authService,
		API:         transporthttp.NewAPIHandlers(authService, logger),
		Servers:     transporthttp.NewServerHandlers(membership, logger),
		Channels:    transporthttp.NewChannelHandlers(membership, resolver, voiceProvider, logger),
		Messages:    transporthttp.NewMessageHandlers(pipeline, logger),
		WS:          wsHandler,
	}, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		typing:          typing,
		store:           st,
		redis:           redisClient,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.typing.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
