// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/trainwreck-game/trainwreck/internal/cache"
	"github.com/trainwreck-game/trainwreck/internal/catalog"
	"github.com/trainwreck-game/trainwreck/internal/config"
	"github.com/trainwreck-game/trainwreck/internal/game"
	"github.com/trainwreck-game/trainwreck/internal/handlers"
	"github.com/trainwreck-game/trainwreck/internal/middleware"
	"github.com/trainwreck-game/trainwreck/internal/store"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("loading config")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(cfg.CardsDir, logger)
	if err != nil {
		logger.WithError(err).Fatal("loading card catalog")
	}

	st, err := store.Connect(ctx, cfg.DatabaseURL, cat)
	if err != nil {
		logger.WithError(err).Fatal("connecting to database")
	}
	defer st.Close()

	var recorder *cache.Recorder
	if cfg.RedisAddr != "" {
		recorder, err = cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB, logger)
		if err != nil {
			logger.WithError(err).Fatal("connecting to redis")
		}
		defer recorder.Close()
	}

	hub := handlers.NewHub(logger)
	ctrl := game.NewController(st, cat, hub, recorder, logger)
	router := handlers.NewRouter(ctrl, hub, logger)

	mux := http.NewServeMux()
	mux.Handle("/chat/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ChatWSHandler(logger, hub, router),
	)))

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("chat gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}
