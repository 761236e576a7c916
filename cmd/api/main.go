package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"albumpress/internal/bootstrap"
	"albumpress/internal/http/handlers"
	"albumpress/internal/http/httpapi"
	"albumpress/internal/infra"
	"albumpress/internal/service"
)

func main() {
	infra.LoadEnvFiles()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise dependencies")
	}
	defer deps.Close()

	app := handlers.NewApp(service.NewAlbumJobService(deps.Store, logger), deps.Runner, logger)
	app.Ping = deps.Ping
	router := httpapi.NewRouter(app, logger, httpapi.Options{
		RunRatePerMinute: cfg.RunRatePerMinute,
		TrustProxy:       cfg.TrustProxy,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPWriteTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
