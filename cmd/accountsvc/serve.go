package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkrupp/homecase-accounts/internal/infra/logging"
	http_ "github.com/mkrupp/homecase-accounts/internal/infra/transport/http"
	"github.com/mkrupp/homecase-accounts/internal/svc/authsvc"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP account service",
		Long: `Run the HTTP account service until SIGINT or SIGTERM is received.
In-flight requests are drained before the process exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg ServeConfig
			if err := loadConfig(cmd.Context(), &cfg, &cfg.Log); err != nil {
				return err
			}

			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg ServeConfig) (err error) {
	log := logging.GetLogger(loggerName)

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "service failed", "error", err)
		} else {
			log.InfoContext(ctx, "service stopped")
		}
	}()

	userRepoFactory, err := cfg.Store.factory()
	if err != nil {
		return err
	}

	blobRepoFactory, err := cfg.Blob.factory()
	if err != nil {
		return err
	}

	registry := http_.NewRegistry()

	authSvc, err := authsvc.NewAuthService(
		ctx,
		userRepoFactory,
		blobRepoFactory,
		authsvc.NewAuthMetrics(registry),
		cfg.Auth,
	)
	if err != nil {
		return fmt.Errorf("new auth service: %w", err)
	}

	defer func() {
		if closeErr := authSvc.Close(); closeErr != nil {
			log.WarnContext(ctx, "close auth service", "error", closeErr)
		}
	}()

	transport := authsvc.NewHTTPTransport(authSvc, cfg.HTTP)

	if err := http_.ListenAndServe(ctx, transport, registry, cfg.HTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
