// cmd/historian/main.go runs the historian: it drains the Redis action queue into PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/database"
	"github.com/jason-s-yu/uno/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cache.ConnectRedis(); err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer cache.Rdb.Close()
	if err := database.ConnectDB(ctx); err != nil {
		logger.Fatalf("postgres: %v", err)
	}
	defer database.DB.Close()
	if err := database.Migrate(ctx); err != nil {
		logger.Fatalf("migrate: %v", err)
	}

	cfg := historian.DefaultConfig()
	cfg.BatchSize = getEnvInt("HISTORIAN_BATCH_SIZE", cfg.BatchSize)
	cfg.FlushDelay = time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond
	cfg.Inactivity = time.Duration(getEnvInt("GAME_INACTIVITY_TIMEOUT_SEC", 600)) * time.Second

	logger.Infof("historian reading %s (batch %d, flush %s)", cache.QueueName(), cfg.BatchSize, cfg.FlushDelay)
	source := historian.RedisSource{Client: cache.Rdb, Queue: cache.QueueName()}
	historian.New(source, historian.PostgresSink{}, cfg, logger).Run(ctx)
}

func getEnvInt(key string, def int) int {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return def
}
