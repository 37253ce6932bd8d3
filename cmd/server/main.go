package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dispute-arena/internal/audit"
	"dispute-arena/internal/auth"
	"dispute-arena/internal/config"
	"dispute-arena/internal/db"
	"dispute-arena/internal/handlers"
	"dispute-arena/internal/logging"
	"dispute-arena/internal/middleware"
	"dispute-arena/internal/services"
	outcome "dispute-arena/internal/signal"
	"dispute-arena/internal/store"
	"dispute-arena/internal/verification"
)

func main() {
	// Load configuration
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting dispute server", zap.String("environment", cfg.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	mongodb, err := db.NewMongoDB(connectCtx, cfg.MongoDB.URI, cfg.MongoDB.Database, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("connect to MongoDB: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mongodb.Close(ctx)
	}()

	logger.Info("connected to MongoDB", zap.String("database", cfg.MongoDB.Database))

	st := store.NewMongoStore(mongodb)

	// Outcome signals go to the truth indexer, or only to the log when disabled.
	var emitter outcome.Emitter = outcome.LogEmitter{Logger: logger}
	if cfg.Signal.Enabled && cfg.Signal.IndexerURL != "" {
		emitter = outcome.NewHTTPEmitter(cfg.Signal.IndexerURL, cfg.Signal.Timeout())
	}
	dispatcher := outcome.NewDispatcher(emitter, cfg.Signal.QueueSize, cfg.Signal.Timeout(), logger)

	projector := services.NewLeaderboardProjector(st, logger)
	disputes := services.NewDisputeService(services.DisputeDeps{
		Store:     st,
		Users:     st,
		Verifier:  verification.NewEngine(),
		Projector: projector,
		Signals:   dispatcher,
		Payouts:   services.LogPayoutGateway{Logger: logger},
		Audit:     audit.NewMongoRecorder(mongodb, logger),
		Logger:    logger,
	})
	standings := services.NewStandings(st, logger)
	replayer := services.NewProjectionReplayer(
		st,
		projector,
		store.NewMongoLocker(mongodb),
		cfg.Projection.ReplayInterval(),
		cfg.Projection.StaleAfter(),
		cfg.Projection.BatchSize,
		logger,
	)

	// HTTP transport
	jwtService := auth.NewJWTService(cfg.JWT.AccessSecret, time.Duration(cfg.JWT.AccessTTL)*time.Minute)
	limiter := middleware.NewRateLimiter()
	defer limiter.Stop()

	router := handlers.NewRouter(handlers.RouterDeps{
		Disputes:    handlers.NewDisputeHandler(disputes, cfg.Payments.CallbackToken, logger),
		Leaderboard: handlers.NewLeaderboardHandler(standings, logger),
		Auth:        middleware.NewAuthMiddleware(jwtService),
		Limiter:     limiter,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.Frontend.URL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Pick up projections left pending by a previous process before serving.
	if n := replayer.RunOnce(ctx); n > 0 {
		logger.Info("replayed pending projections at startup", zap.Int("count", n))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		return replayer.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
