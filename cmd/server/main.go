// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/uno/internal/auth"
	"github.com/jason-s-yu/uno/internal/bot"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/database"
	"github.com/jason-s-yu/uno/internal/handlers"
	"github.com/jason-s-yu/uno/internal/middleware"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}

	if priv, pub := os.Getenv("JWT_PRIVATE_KEY_PATH"), os.Getenv("JWT_PUBLIC_KEY_PATH"); priv != "" && pub != "" {
		if err := auth.InitFromPath(priv, pub); err != nil {
			logger.Fatalf("auth: %v", err)
		}
	} else if err := auth.Init(); err != nil {
		logger.Fatalf("auth: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis and Postgres are optional; without them games live in memory only.
	if os.Getenv("REDIS_ADDR") != "" {
		if err := cache.ConnectRedis(); err != nil {
			logger.Warnf("redis unavailable, action log and snapshot cache disabled: %v", err)
		} else {
			defer cache.Rdb.Close()
		}
	}
	if os.Getenv("PG_HOST") != "" {
		if err := database.ConnectDB(ctx); err != nil {
			logger.Warnf("postgres unavailable, persistence disabled: %v", err)
		} else {
			defer database.DB.Close()
			if err := database.Migrate(ctx); err != nil {
				logger.Fatalf("migrate: %v", err)
			}
		}
	}

	srv := handlers.NewGameServer(logger, bot.NewBuiltinPolicy)
	if os.Getenv("UNO_ENV") == "production" {
		srv.OriginPatterns = originHosts(allowedOrigins())
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.LogMiddleware(logger))
	r.Route("/game", srv.Routes)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		for _, g := range srv.GameStore.List() {
			g.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Infof("Running on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
}

// allowedOrigins limits CORS to ALLOWED_ORIGINS in production and allows any origin otherwise.
func allowedOrigins() []string {
	if os.Getenv("UNO_ENV") == "production" {
		return strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",")
	}
	return []string{"https://*", "http://*"}
}

// originHosts strips the scheme, since websocket origin patterns match hosts.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(o), "https://"), "http://")
		if o != "" {
			hosts = append(hosts, o)
		}
	}
	return hosts
}
