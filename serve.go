package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"secretsanta/handlers"
	"secretsanta/hub"
	"secretsanta/results"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the room server",
	RunE:  runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.StringVar(&cfg.ServerAddr, "addr", cfg.ServerAddr, "listen address")
	flags.StringVar(&cfg.DataPath, "data-path", cfg.DataPath, "directory to persist draws via PebbleDB (empty keeps them in memory)")
	flags.IntVar(&cfg.ResultCacheSize, "result-cache", cfg.ResultCacheSize, "number of rooms kept in the draw cache")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := results.Open(cfg.DataPath, cfg.ResultCacheSize)
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	if cfg.DataPath == "" {
		log.Info().Msg("[santa] no data path; draws kept in memory only")
	}

	h := hub.NewHub(store)
	go h.Run()

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handlers.NewServer(h, cfg).Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("[santa] serving at %s", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		h.Stop()
		_ = store.Close()
		return fmt.Errorf("listen: %w", err)
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("[santa] http server shutdown error")
	}
	h.Stop()
	if err := store.Close(); err != nil {
		log.Warn().Err(err).Msg("[santa] store close error")
	}
	log.Info().Msg("[santa] shutdown complete")
	return nil
}
