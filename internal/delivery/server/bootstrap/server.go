// Package bootstrap assembles and runs the agent team server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	serverHTTP "agentteam/internal/delivery/server/http"
	"agentteam/internal/infra/tools/builtin/orchestration"
	"agentteam/internal/infra/tools/builtin/shared"
	"agentteam/internal/shared/async"
	"agentteam/internal/shared/logging"
)

// Version is stamped at build time.
var Version = "dev"

const defaultShutdownTimeout = 10 * time.Second

// RunServer starts the HTTP API server and blocks until SIGINT or SIGTERM.
func RunServer(configPath string) error {
	logger := logging.NewComponentLogger("Main")

	f, err := BootstrapFoundation(configPath, logger)
	if err != nil {
		return err
	}
	cfg := f.Config

	router := serverHTTP.NewRouter(
		serverHTTP.RouterDeps{
			Runtime:  f.Runtime,
			Bus:      f.Bus,
			Obs:      f.Obs,
			Gatherer: f.Registry,
			Tools:    []shared.Tool{orchestration.NewSpawnAgent(f.Runtime)},
		},
		serverHTTP.RouterConfig{
			Environment:    cfg.Server.Deployment,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Version:        Version,
			Degraded:       f.Degraded.Map,
		},
	)
	if !f.Degraded.IsEmpty() {
		logger.Warn("[Bootstrap] Server starting in degraded mode: %v", f.Degraded.Map())
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	// Cancelling the base context ends open event streams on shutdown.
	baseCtx, stopStreams := context.WithCancel(context.Background())
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	server.RegisterOnShutdown(stopStreams)
	serveErr := serveUntilSignal(server, shutdownTimeout, logger)
	stopStreams()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	f.Cleanup(ctx, logger)
	return serveErr
}

func serveUntilSignal(server *http.Server, shutdownTimeout time.Duration, logger logging.Logger) error {
	logger = logging.OrNop(logger)

	errCh := make(chan error, 1)
	async.Go(logger, "server.listen", func() {
		logger.Info("Server listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-quit:
		logger.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr := server.Shutdown(ctx)

		serveErr := <-errCh
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
		if shutdownErr != nil {
			return fmt.Errorf("shutdown: %w", shutdownErr)
		}
		if serveErr != nil {
			return fmt.Errorf("server error: %w", serveErr)
		}
		logger.Info("Server stopped")
		return nil
	}
}
