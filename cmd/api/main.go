package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"brainsim/internal/bootstrap"
	"brainsim/internal/http/handlers"
	httpapi "brainsim/internal/http/httpapi"
	"brainsim/internal/infra"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	db, err := bootstrap.OpenDatabase(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer db.Close()

	providers, err := bootstrap.NewProviders(cfg, httpapi.VideoDir(cfg.StaticDir), &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure providers")
	}
	checks := []handlers.CredentialCheck{providers.Text, providers.Veo, providers.Flux}
	for _, c := range checks {
		if err := c.CheckCredentials(); err != nil {
			logger.Warn().Err(err).Msg("credential not configured; the matching endpoint will report it")
		}
	}

	app := &handlers.App{
		Config:      cfg,
		Logger:      &logger,
		Prompts:     providers.Prompts,
		Images:      providers.Timeline,
		Videos:      providers.Videos,
		Credentials: checks,
	}
	if db != nil {
		app.Cases = db.Cases
	}

	router := httpapi.NewRouter(app, cfg)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Str("gemini_model", providers.Text.Model()).
			Str("veo_model", providers.Veo.Model()).
			Str("flux_model", providers.Flux.Model()).
			Bool("cases", app.Cases != nil).
			Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
