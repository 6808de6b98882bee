package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"proprofile/internal/http/handlers"
	httpapi "proprofile/internal/http/httpapi"
	"proprofile/internal/imagegen"
	"proprofile/internal/infra"
	imageprovider "proprofile/internal/providers/image"
	"proprofile/internal/studio"
)

// syntheticDelay keeps the Running state visible when no service is configured.
const syntheticDelay = 1200 * time.Millisecond

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	provider := imageprovider.NormalizeProvider(cfg.PortraitProvider, cfg.GeminiAPIKey)
	transformer, err := imageprovider.NewTransformer(ctx, imageprovider.Options{
		Provider:       provider,
		APIKey:         cfg.GeminiAPIKey,
		BaseURL:        cfg.GeminiBaseURL,
		Model:          cfg.GeminiModel,
		Timeout:        cfg.GeminiTimeout,
		Logger:         &logger,
		SyntheticDelay: syntheticDelay,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("provider", provider).Msg("failed to configure portrait provider")
	}
	client, err := imagegen.NewClient(imagegen.Options{
		Transformer: transformer,
		Provider:    provider,
		Model:       cfg.GeminiModel,
		Logger:      &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build generation client")
	}

	app := &handlers.App{
		Config: cfg,
		Logger: logger,
		Store:  studio.NewStore(cfg.SessionMax, cfg.SessionTTL),
		Runner: studio.NewRunner(client, cfg.GenerationConcurrency, logger),
		Client: client,
	}
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("provider", provider).
			Str("model", client.Model()).
			Msgf("API listening on %s", server.Addr())
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
	if err := app.Runner.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("generations still running at exit")
	}
	logger.Info().Msg("server stopped")
}
