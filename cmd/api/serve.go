package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"eon-server/internal/classifier"
	"eon-server/internal/database"
	"eon-server/internal/geminiservice"
	"eon-server/internal/healthdata"
	"eon-server/internal/recommendation"
	"eon-server/internal/risk"
	"eon-server/internal/server"
	"eon-server/internal/utility"
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		dbService, err := database.NewService(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer dbService.Close()

		if autoMigrate {
			if err := database.Migrate(ctx, dbService.Pool()); err != nil {
				return err
			}
			log.Info().Msg("Database schema applied")
		}

		remote, err := classifier.NewRemoteLookup(cfg.ICD9LookupURL, nil)
		if err != nil {
			return err
		}
		cls := classifier.NewService(
			classifier.HTTPLoader(cfg.ClassifierURL, cfg.ClassifierToken, cfg.ICD9CodesPath, nil),
			remote,
			cfg.ClassifierThreshold,
		)
		// Loads in the background; risk analysis answers 503 until it is ready.
		cls.Start(ctx)

		gemini := geminiservice.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiRequestsPerMinute)
		if cfg.GeminiAPIKey == "" {
			log.Warn().Msg("GEMINI_API_KEY is not set, risk analysis and recommendations will fail")
		} else {
			log.Info().Str("model", gemini.Model()).Int("rpm", cfg.GeminiRequestsPerMinute).Msg("Gemini client configured")
		}

		queries := dbService.Queries()
		healthSvc := healthdata.NewService(queries, nil)
		riskSvc := risk.NewService(queries, healthSvc, cls, gemini, nil)
		recSvc := recommendation.NewService(queries, healthSvc, riskSvc, gemini)

		apiServer := server.NewServer(cfg.Port, server.Deps{
			DB:              dbService,
			HealthData:      healthSvc,
			Risk:            riskSvc,
			Recommendations: recSvc,
			Classifier:      cls,
			Hub:             utility.NewHub(),
		})

		done := make(chan struct{})
		go gracefulShutdown(ctx, apiServer, done)

		log.Info().Str("addr", apiServer.Addr).Str("env", cfg.AppEnv).Msg("HTTP server listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}

		<-done
		log.Info().Msg("Graceful shutdown complete.")
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "apply the database schema before serving")
}

func gracefulShutdown(ctx context.Context, apiServer *http.Server, done chan<- struct{}) {
	<-ctx.Done()

	log.Info().Msg("shutting down gracefully, press Ctrl+C again to force")

	// The server has 5 seconds to finish in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
	close(done)
}
