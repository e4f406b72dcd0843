package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	// Packages
	citysense "github.com/lizzyg/citysense"
	server "github.com/lizzyg/citysense/internal/server"
	errgroup "golang.org/x/sync/errgroup"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type ServeCmd struct {
	Addr string `name:"addr" help:"Listen address (overrides config)" optional:""`
}

const shutdownTimeout = 10 * time.Second

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *ServeCmd) Run(g *Globals) error {
	shutdownTracing, err := initTracing(g.ctx, g.cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			g.logger.Warn("tracer shutdown", slog.Any("error", err))
		}
	}()

	// Fail before listening if credentials are missing
	agent, err := citysense.NewAgent(g.cfg, g.agentOptions()...)
	if err != nil {
		return err
	}
	store := citysense.NewSessionStore(citysense.ConfigRunnerFactory(g.cfg, g.agentOptions()...), g.metrics)

	addr := g.cfg.Server.Addr
	if cmd.Addr != "" {
		addr = cmd.Addr
	}
	srv := &http.Server{
		Addr: addr,
		Handler: server.NewRouter(server.Config{
			Store:          store,
			Tools:          agent.Registry().Definitions(),
			Metrics:        g.metrics,
			Logger:         g.logger,
			AllowedOrigins: g.cfg.Server.AllowedOrigins,
			RequestTimeout: g.cfg.Server.RequestTimeout,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, ctx := errgroup.WithContext(g.ctx)
	group.Go(func() error {
		g.logger.Info("listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		g.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
