package main

import (
	"context"
	"os/signal"
	"syscall"

	"curriculab/internal/changelog"
	"curriculab/internal/config"
	"curriculab/internal/logging"
	"curriculab/internal/queue"
	"curriculab/internal/store"
)

// Worker consumes attendance events from Redis and writes change-log entries.
func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat).WithField("component", "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		log.Fatal("QUEUE_BACKEND=memory runs the recorder inside the api process, worker not needed")
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Warn("redis not reachable, will keep polling")
	}

	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	rec := changelog.NewRecorder(changelog.NewRepository(db.Client), log)
	if err := rec.Run(ctx, q); err != nil {
		log.WithError(err).Fatal("queue consume init failed")
	}
}
