// tremord is the clinical decision-support daemon. It serves window
// classification, batch session classification, LLM-backed clinical
// interpretation and session history over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spaxe-dev/Tremor-Pro/internal/api"
	"github.com/spaxe-dev/Tremor-Pro/internal/cfg"
	"github.com/spaxe-dev/Tremor-Pro/internal/interpret"
	"github.com/spaxe-dev/Tremor-Pro/internal/metrics"
	"github.com/spaxe-dev/Tremor-Pro/internal/ml"
	"github.com/spaxe-dev/Tremor-Pro/internal/storage"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	settings, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}

	setupLogging(settings.LogLevel)

	m := metrics.New()

	store := initializeStorage(settings.DataPath)
	if store != nil {
		defer store.Close()
	}

	classifier := ml.NewService(settings.ModelPath, metrics.NewMLAdapter(m))
	if classifier.ModelAvailable() {
		log.Info().Str("model_path", settings.ModelPath).Msg("serving trained model")
	} else {
		log.Warn().Str("model_path", settings.ModelPath).
			Msg("no trained model, serving rule-based fallback; run cmd/train to produce an artifact")
	}

	interp := interpret.NewClient(interpret.Config{
		TunnelURL: settings.TunnelURL,
		HFToken:   settings.HFToken,
		HFModel:   settings.HFModel,
		Timeout:   settings.LLMTimeout,
	}, metrics.NewInterpretAdapter(m))

	server := api.New(settings.APIPort, classifier, store, interp, m)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	waitForShutdown(server, errCh)
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// initializeStorage opens the session store. Persistence is optional:
// an empty data path or an open failure degrades to in-memory-only
// operation rather than refusing to start.
func initializeStorage(dataPath string) *storage.Store {
	if dataPath == "" {
		log.Info().Msg("DATA_PATH not set, session persistence disabled")
		return nil
	}
	store, err := storage.New(dataPath)
	if err != nil {
		log.Warn().Err(err).Str("data_path", dataPath).
			Msg("failed to open session store, continuing without persistence")
		return nil
	}
	log.Info().Str("data_path", dataPath).Msg("session store opened")
	return store
}

func waitForShutdown(server *api.Server, errCh <-chan error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server stopped")
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
