package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/telemyapp/instance-launcher/internal/api"
	"github.com/telemyapp/instance-launcher/internal/config"
	"github.com/telemyapp/instance-launcher/internal/launch"
	"github.com/telemyapp/instance-launcher/internal/logger"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if err := newRootCmd(serve).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(run func(context.Context, config.Config) error) *cobra.Command {
	v := config.NewViper()
	cmd := &cobra.Command{
		Use:           "launcher-api",
		Short:         "HTTP service that launches one cloud instance per request",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}
	if err := config.BindFlags(cmd.Flags(), v); err != nil {
		panic(err)
	}
	return cmd
}

func serve(parent context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.New(cfg.LogVerbose)
	launcher, err := launch.FromConfig(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init %s launcher: %w", cfg.Provider, err)
	}

	srv := newHTTPServer(cfg, api.NewRouter(cfg, launcher, log))
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}

	log.Info("instance launcher listening",
		"event", "server_start",
		"addr", ln.Addr().String(),
		"provider", launcher.Provider(),
		"response_mode", string(cfg.ResponseMode),
		"allow_any_origin", cfg.AllowAnyOrigin(),
	)
	return runServer(ctx, srv, ln, cfg.ProviderTimeout+5*time.Second, log)
}

// runServer serves on ln until ctx is done, then drains in-flight requests for up to
// drainTimeout. It returns only after the drain finishes.
func runServer(ctx context.Context, srv *http.Server, ln net.Listener, drainTimeout time.Duration, log *slog.Logger) error {
	shutdownDone := make(chan error, 1)
	go func() {
		<-ctx.Done()
		log.Info("draining in-flight requests", "event", "server_drain", "timeout_ms", drainTimeout.Milliseconds())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		shutdownDone <- srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	if err := <-shutdownDone; err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("instance launcher stopped", "event", "server_stop")
	return nil
}

func newHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// The handler holds the response until the provider answers or provider_timeout fires.
		WriteTimeout: cfg.ProviderTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
