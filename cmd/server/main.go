package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/kdimtricp/anilights/internal/api"
	"github.com/kdimtricp/anilights/internal/config"
	"github.com/kdimtricp/anilights/internal/database"
	"github.com/kdimtricp/anilights/internal/logging"
	"github.com/kdimtricp/anilights/internal/onboarding"
	"github.com/kdimtricp/anilights/internal/recommend"
	"github.com/kdimtricp/anilights/internal/sampling"
	"github.com/kdimtricp/anilights/internal/setup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setup.Logging(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := setup.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to initialize database")
	}
	defer db.Close()

	source, err := setup.CatalogSource(cfg.Catalog, db)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to configure catalog source")
	}
	classifier, err := setup.Classifier(cfg.Taste)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build classifier")
	}
	classification, _, err := setup.Classify(ctx, source, classifier)
	if err != nil {
		logging.Fatal().Err(err).Str("source", cfg.Catalog.Source).Msg("Failed to load catalog")
	}

	manager := onboarding.NewManager(classification, sampling.NewSampler(nil), onboarding.Config{
		DisplaySize: cfg.Taste.DisplaySize,
		SessionTTL:  cfg.Session.TTL,
	})
	go manager.RunSweeper(ctx, cfg.Session.SweepInterval)

	app := &api.App{
		Sessions: manager,
		Recommender: recommend.NewClient(recommend.Config{
			BaseURL: cfg.Recommend.URL,
			Timeout: cfg.Recommend.Timeout,
		}),
		Submissions: database.NewSubmissionRepository(db),
		CORSOrigins: cfg.Server.CORSOrigins,
	}

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info().
			Int("port", cfg.Server.Port).
			Str("catalog_source", cfg.Catalog.Source).
			Str("recommend_url", cfg.Recommend.URL).
			Int("display_size", cfg.Taste.DisplaySize).
			Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
