package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/ofertascauca/senabot/internal/adapters/cache"
	"github.com/ofertascauca/senabot/internal/adapters/database"
	"github.com/ofertascauca/senabot/internal/api/handlers"
	"github.com/ofertascauca/senabot/internal/api/routes"
	"github.com/ofertascauca/senabot/internal/application/services"
	"github.com/ofertascauca/senabot/internal/catalog"
	"github.com/ofertascauca/senabot/internal/domain/providers"
	"github.com/ofertascauca/senabot/internal/domain/repositories"
	"github.com/ofertascauca/senabot/internal/infrastructure/clients/postgres"
	"github.com/ofertascauca/senabot/internal/infrastructure/clients/redis"
	"github.com/ofertascauca/senabot/internal/infrastructure/notifications"
	"github.com/ofertascauca/senabot/internal/infrastructure/observability"
	"github.com/ofertascauca/senabot/pkg/config"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// alias tables are hand-maintained config; a broken file is fatal
	aliases, err := services.NewAliasService(cfg.Catalog.LocationAliasPath, cfg.Catalog.TopicSynonymPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load alias tables")
	}

	// a missing catalog degrades to the unavailable answer, never a crash
	cat := catalog.Load(cfg.Catalog.Paths)
	if cat.Len() == 0 {
		log.Warn().Strs("paths", cfg.Catalog.Paths).Msg("no catalog loaded, running degraded")
	} else {
		log.Info().Int("programs", cat.Len()).Str("source", cat.Source()).Msg("catalog loaded")
	}
	index := catalog.BuildIndex(cat, aliases.Locations)

	// Postgres is optional: without it the bot skips consent and logging
	var userRepo repositories.UserRepository
	var interactionRepo repositories.InteractionRepository
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Warn().Err(err).Msg("postgres unavailable, consent and logging disabled")
	} else {
		defer pgClient.Close()
		userRepo = database.NewUserAdapter(pgClient)
		interactionRepo = database.NewInteractionAdapter(pgClient)
	}

	var cursors providers.CursorStore = cache.NewMemoryCursorStore(cfg.Cursor.TTLSeconds)
	if cfg.Cursor.Backend == "redis" {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, falling back to in-memory cursors")
		} else {
			defer redisClient.Close()
			cursors = cache.NewRedisCursorStore(redisClient, cfg.Cursor.TTLSeconds)
			log.Info().Msg("cursor store backed by redis")
		}
	}

	responder := services.NewResponseService()
	parser := services.NewQueryUnderstandingService(index, aliases)
	ranker := services.NewSearchRankingService(index)
	conversations := services.NewConversationService(index, parser, ranker, responder, cursors, metrics, *observability.GetLogger())
	onboarding := services.NewOnboardingService(userRepo, responder, *observability.GetLogger())

	var sender handlers.MessageSender
	waSender, err := notifications.NewWhatsAppCloudSender(&cfg.WhatsApp)
	if err != nil {
		log.Warn().Err(err).Msg("whatsapp sender not configured, replies will be dropped")
	} else {
		sender = waSender
	}

	webhookHandler := handlers.NewWebhookHandler(
		cfg.WhatsApp.VerifyToken,
		conversations,
		onboarding,
		sender,
		interactionRepo,
		metrics,
		*observability.GetLogger(),
	)

	router := routes.NewRouter(webhookHandler, metrics)
	server := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("webhook server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
