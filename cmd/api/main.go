// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Slade66/hourglass/internal/api"
	"github.com/Slade66/hourglass/internal/config"
	"github.com/Slade66/hourglass/internal/logger"
	"github.com/Slade66/hourglass/internal/queue"
	"github.com/Slade66/hourglass/internal/status"
)

func initRedis(cfg config.RedisConfig, log *zerolog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Addr).Msg("cannot connect to redis")
	}
	log.Info().Str("addr", cfg.Addr).Msg("connected to redis")
	return client
}

func main() {
	configPath := flag.String("config", "hourglass.yaml", "config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.GetLogger().Fatal().Err(err).Msg("cannot load config")
	}
	level := logger.ParseLevel(cfg.Log.Level)
	log := logger.GetLoggerConfigured(level)
	if level > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	rdb := initRedis(cfg.Redis, log)
	defer rdb.Close()

	server := api.NewServer(
		queue.NewPublisher(rdb, cfg.Stream.Name),
		status.NewManager(rdb, cfg.Status.Retention),
		*log,
	)
	httpServer := &http.Server{
		Addr:    cfg.API.Listen,
		Handler: server.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("listen", cfg.API.Listen).Msg("api server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("api server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api server did not shut down cleanly")
	}
}
