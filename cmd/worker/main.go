// cmd/worker/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Slade66/hourglass/internal/config"
	"github.com/Slade66/hourglass/internal/hourglass"
	"github.com/Slade66/hourglass/internal/logger"
	"github.com/Slade66/hourglass/internal/queue"
	"github.com/Slade66/hourglass/internal/registry"
	"github.com/Slade66/hourglass/internal/status"
	"github.com/Slade66/hourglass/internal/uploader"
	"github.com/Slade66/hourglass/internal/worker"
)

// archivePrefix is the OBS folder run records are written to.
const archivePrefix = "runs"

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

func consumerName(log *zerolog.Logger) string {
	name, err := os.Hostname()
	if err != nil {
		name = fmt.Sprintf("worker-%d", time.Now().Unix())
		log.Warn().Err(err).Str("consumer", name).Msg("cannot read hostname, using fallback consumer name")
	}
	return name
}

func main() {
	configPath := flag.String("config", "hourglass.yaml", "config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.GetLogger().Fatal().Err(err).Msg("cannot load config")
	}
	log := logger.GetLoggerConfigured(logger.ParseLevel(cfg.Log.Level))

	rdb := initRedis(cfg.Redis, log)
	defer rdb.Close()

	// A nil Archiver disables archiving.
	var archiver registry.Archiver
	if cfg.OBS.Enabled() {
		obsUploader, err := uploader.NewObsUploader(cfg.OBS.Endpoint, cfg.OBS.AK, cfg.OBS.SK, cfg.OBS.Bucket, archivePrefix)
		if err != nil {
			log.Fatal().Err(err).Msg("cannot create obs uploader")
		}
		defer obsUploader.Close()
		archiver = obsUploader
		log.Info().Str("bucket", cfg.OBS.Bucket).Msg("archiving finished runs to obs")
	} else {
		log.Info().Msg("obs not configured, runs will not be archived")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The consumer name doubles as the owner recorded on every hourglass this
	// worker creates; follow-up commands arrive on its owner stream.
	consumer := queue.NewConsumer(rdb, cfg.Stream.Name, cfg.Stream.Group, consumerName(log), cfg.Stream.Block)

	statusManager := status.NewManager(rdb, cfg.Status.Retention)
	// Status writes from listeners must outlive ctx so Shutdown can publish
	// the cancelled states.
	reg := registry.New(context.Background(), consumer.Name(), statusManager, archiver, *log,
		hourglass.WithLogger(log.With().Str("component", "hourglass").Logger()))

	created, err := consumer.EnsureGroup(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create consumer group")
	}
	log.Info().
		Str("stream", cfg.Stream.Name).
		Str("group", cfg.Stream.Group).
		Str("consumer", consumer.Name()).
		Bool("created", created).
		Msg("consumer group ready")

	worker.New(consumer, reg, statusManager, *log).Run(ctx)

	log.Info().Int("live", reg.Len()).Msg("worker stopping, cancelling live hourglasses")
	reg.Shutdown()
}
