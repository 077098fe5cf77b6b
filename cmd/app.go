package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"

	"github.com/calbridge/calbridge/internal/calendar"
	"github.com/calbridge/calbridge/internal/credentials"
	"github.com/calbridge/calbridge/internal/google"
	"github.com/calbridge/calbridge/internal/instrumentation"
	"github.com/calbridge/calbridge/internal/logging"
	"github.com/calbridge/calbridge/internal/server"
)

// appOptions are the root-level settings shared by every subcommand.
type appOptions struct {
	dbPath      string
	logLevel    string
	metricsAddr string
}

// app wires the credential store, OAuth configuration, calendar service and
// instrumentation together for one command invocation.
type app struct {
	logger   *slog.Logger
	store    *credentials.SQLiteStore
	oauth    *oauth2.Config
	service  *calendar.Service
	provider *instrumentation.Provider
	metrics  *server.MetricsServer
}

// resolveDBPath picks the credential database location: flag, then
// CALBRIDGE_DB, then a per-user default.
func resolveDBPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("CALBRIDGE_DB"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "calbridge.db"
	}
	return filepath.Join(home, ".calbridge", "calbridge.db")
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	logger := logging.New(opts.logLevel)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	dbPath := resolveDBPath(opts.dbPath)
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := credentials.NewSQLiteStore(dbPath)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	oauthConfig, err := google.OAuthConfigFromEnv()
	if err != nil {
		store.Close()
		_ = provider.Shutdown(ctx)
		return nil, err
	}

	resolver := calendar.NewResolver(store, oauthConfig, logger)
	service := calendar.NewService(resolver, logger, provider.Metrics())

	a := &app{
		logger:   logger,
		store:    store,
		oauth:    oauthConfig,
		service:  service,
		provider: provider,
	}

	if opts.metricsAddr != "" && provider.Enabled() {
		if err := a.startMetricsServer(opts.metricsAddr); err != nil {
			a.Close(ctx)
			return nil, err
		}
	}

	return a, nil
}

// startMetricsServer starts the Prometheus listener and waits until it is
// bound, so a bad address fails the command instead of being silently lost.
func (a *app) startMetricsServer(addr string) error {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: a.provider,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics server: %w", err)
	}

	ready := make(chan struct{})
	serverErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(ready); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ready:
		a.logger.Info("metrics server listening", "addr", metricsServer.Addr())
	case err := <-serverErr:
		return fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(5 * time.Second):
		return fmt.Errorf("metrics server startup timed out")
	}

	a.metrics = metricsServer
	return nil
}

// Close releases everything the app holds. Shutdown failures are logged,
// not returned; the command's own outcome takes precedence.
func (a *app) Close(ctx context.Context) {
	if a.metrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.metrics.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("error during metrics server shutdown", logging.Err(err))
		}
		cancel()
	}

	if err := a.store.Close(); err != nil {
		a.logger.Warn("error closing credential store", logging.Err(err))
	}

	if err := a.provider.Shutdown(ctx); err != nil {
		a.logger.Warn("error during instrumentation shutdown", logging.Err(err))
	}
}
