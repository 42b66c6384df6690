package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Meet/internal/adapters/http"
	"github.com/dkeye/Meet/internal/adapters/store"
	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Logger first so config.Load can report problems.
	logging.Init("info", true)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.LogLevel, cfg.Mode != "release")

	st, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open store")
	}
	defer st.Close()

	manager := app.NewRoomManager(core.RoomOptions{
		ReadmitWindow:        cfg.ReadmitWindow,
		AllowRejoinAfterKick: cfg.Policy.AllowRejoinAfterKick,
		HistoryLimit:         cfg.ChatHistoryLimit,
	})
	o := &orch.Orchestrator{
		Registry:  app.NewRegistry(),
		Rooms:     manager,
		Policy:    &app.SimplePolicy{Tolerance: cfg.Policy.BackpressureTolerance},
		Directory: st,
		Archive:   st,
		Opts: orch.Options{
			MaxChatLength: cfg.MaxChatLength,
			HistoryLimit:  cfg.ChatHistoryLimit,
			RoomGrace:     cfg.RoomGracePeriod,
		},
	}
	go o.RunJanitor(ctx, janitorEvery(cfg.RoomGracePeriod))

	r := router.SetupRouter(ctx, cfg, o, st)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("store", cfg.Store.Driver).Msg("Meet server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

func janitorEvery(grace time.Duration) time.Duration {
	if every := grace / 4; every > time.Second {
		return every
	}
	return time.Second
}
