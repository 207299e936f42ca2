package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/syncreset/internal/auth"
	"github.com/MarcoPoloResearchLab/syncreset/internal/config"
	"github.com/MarcoPoloResearchLab/syncreset/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(configViper *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), configViper)
		},
	}

	defaults := config.NewViper()
	cmd.Flags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.Flags().StringSlice("allowed-origins", defaults.GetStringSlice("cors.allowed_origins"), "CORS allowed origins")
	bindFlag(configViper, cmd.Flags().Lookup("http-address"), "http.address")
	bindFlag(configViper, cmd.Flags().Lookup("allowed-origins"), "cors.allowed_origins")
	return cmd
}

func runServer(ctx context.Context, configViper *viper.Viper) error {
	if ctx == nil {
		ctx = context.Background()
	}
	dispatcher := server.NewRealtimeDispatcher()
	rt, closeRuntime, err := openRuntime(ctx, configViper, dispatcher)
	if err != nil {
		return err
	}
	defer closeRuntime()

	if err := rt.config.RequireSigningSecret(); err != nil {
		return err
	}
	validator, err := auth.NewTokenValidator(tokenConfig(rt.config))
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Resets:         rt.service,
		Tokens:         validator,
		Realtime:       dispatcher,
		AllowedOrigins: rt.config.AllowedOrigins,
		Logger:         rt.logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              rt.config.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("server starting", zap.String("address", rt.config.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		rt.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func tokenConfig(appConfig config.AppConfig) auth.TokenConfig {
	return auth.TokenConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.TokenIssuer,
		Audience:      appConfig.TokenAudience,
		TokenTTL:      appConfig.TokenTTL,
	}
}
