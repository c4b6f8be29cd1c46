package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-io-rooms/internal/cache"
	"github.com/weiawesome/wes-io-rooms/internal/config"
	"github.com/weiawesome/wes-io-rooms/internal/domain"
	"github.com/weiawesome/wes-io-rooms/internal/events"
	"github.com/weiawesome/wes-io-rooms/internal/handler"
	"github.com/weiawesome/wes-io-rooms/internal/janitor"
	"github.com/weiawesome/wes-io-rooms/internal/repository"
	"github.com/weiawesome/wes-io-rooms/internal/service"
	"github.com/weiawesome/wes-io-rooms/internal/store"
	"github.com/weiawesome/wes-io-rooms/internal/stream"
	"github.com/weiawesome/wes-io-rooms/pkg/database"
	"github.com/weiawesome/wes-io-rooms/pkg/idgen"
	"github.com/weiawesome/wes-io-rooms/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-rooms/pkg/log"
	"github.com/weiawesome/wes-io-rooms/pkg/middleware"
	"github.com/weiawesome/wes-io-rooms/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "room-coordinator",
	})
	logger := pkglog.L()

	// Connect to database using GORM
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		BusyTimeoutMs:   cfg.Database.BusyTimeoutMs,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	retry := repository.RetryPolicy{Attempts: cfg.Storage.RetryAttempts, Backoff: cfg.Storage.RetryBackoff}
	roomRepo := repository.NewGormRoomRepository(db, retry)
	reactionRepo := repository.NewGormReactionRepository(db, retry)
	banRepo := repository.NewGormBanRepository(db, retry)

	// Redis backs the room cache and, optionally, presence
	var redisClient *redis.Client
	if cfg.Cache.Enabled || cfg.Presence.Driver == config.PresenceDriverRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.Redis.Address).Msg("failed to connect to redis")
		}
		logger.Info().Msg("redis connected")
	}

	var presenceRepo repository.PresenceRepository = repository.NewGormPresenceRepository(db, retry)
	if cfg.Presence.Driver == config.PresenceDriverRedis {
		presenceRepo = store.NewRedisPresenceStore(redisClient, store.DefaultPrefix)
	}

	var roomCache cache.RoomCache
	if cfg.Cache.Enabled {
		roomCache = cache.NewRedisRoomCache(redisClient, cfg.Cache.Prefix)
	}

	// Room events are best effort; a broken bus must not block startup
	publisher, err := pubsub.NewPublisher(cfg.PubSub)
	if err != nil {
		logger.Warn().Err(err).Str("driver", cfg.PubSub.Driver).Msg("failed to create event publisher, room events disabled")
		publisher = pubsub.NopPublisher{}
	}
	defer publisher.Close()
	emitter := events.NewEmitter(publisher, nil)

	signer := jwt.NewSigner(cfg.Token.APIKey, cfg.Token.APISecret, cfg.Token.TTL, cfg.Token.NotBeforeSkew)
	if !signer.Configured() {
		logger.Warn().Msg("media provider credentials missing, token requests will fail")
	}
	if cfg.Auth.SessionSecret == "" {
		logger.Warn().Msg("session secret missing, authenticated routes will reject every request")
	}
	authMiddleware := middleware.NewAuthMiddleware(jwt.NewVerifier(cfg.Auth.SessionSecret))

	// Initialize services
	lookup := service.NewRoomLookup(roomRepo, roomCache, cfg.Cache.TTL)
	viewers := service.NewViewerService(lookup, presenceRepo, service.WindowPolicy{
		Default: cfg.Presence.DefaultWindow,
		Min:     cfg.Presence.MinWindow,
		Max:     cfg.Presence.MaxWindow,
	}, nil)
	streamer := stream.NewStreamer(viewers, stream.IntervalPolicy{
		Default: cfg.Stream.DefaultInterval,
		Min:     cfg.Stream.MinInterval,
		Max:     cfg.Stream.MaxInterval,
	})

	services := handler.Services{
		Tokens:     service.NewTokenService(lookup, roomRepo, banRepo, presenceRepo, reactionRepo, signer, emitter, cfg.Presence.FreshnessWindow, nil),
		Presence:   service.NewPresenceService(presenceRepo, nil),
		Viewers:    viewers,
		Reactions:  service.NewReactionService(lookup, reactionRepo, idgen.NewULIDGenerator(), emitter, nil),
		Moderation: service.NewModerationService(lookup, banRepo, emitter, nil),
		Rooms:      service.NewRoomService(lookup, roomRepo, viewers, idgen.NewRoomSlugGenerator(), emitter, streamer, cfg.Presence.HeartbeatInterval, nil),
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst, 10*time.Minute)
	}

	httpHandler := handler.NewHandler(services, streamer, authMiddleware, limiter, handler.StreamOptions{
		PingInterval: cfg.Stream.PingInterval,
		PongWait:     cfg.Stream.PongWait,
		WriteWait:    cfg.Stream.WriteWait,
	})

	// Setup Gin router
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	httpHandler.RegisterRoutes(r)

	// Start presence sweeper
	ctx, cancel := context.WithCancel(context.Background())
	sweeper := janitor.New(presenceRepo, janitor.Config{
		Interval:  cfg.Presence.SweepInterval,
		Retention: cfg.Presence.Retention,
	}, nil)
	sweeper.Start(ctx)

	// Streams are long-lived, so there is no write timeout. Shutdown never
	// waits on them: open streams are closed as soon as it starts, and other
	// requests are drained.
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	server.RegisterOnShutdown(httpHandler.CloseStreams)

	go func() {
		logger.Info().
			Str("addr", addr).
			Str("presence_driver", cfg.Presence.Driver).
			Str("pubsub_driver", cfg.PubSub.Driver).
			Bool("cache", cfg.Cache.Enabled).
			Msg("room-coordinator listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down room-coordinator")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sweeper.Stop() // 1. stop presence sweeps
		<-sweeper.Done()

		// 2. close streams, drain in-flight requests
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}

		cancel() // 3. release background context
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("room-coordinator stopped")
	case <-time.After(cfg.Server.ShutdownTimeout + 5*time.Second):
		logger.Warn().Dur("timeout", cfg.Server.ShutdownTimeout).Msg("shutdown timed out")
	}
}
