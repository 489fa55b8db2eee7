package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/parceldesk/core/internal/catalog"
	"github.com/parceldesk/core/internal/core"
	"github.com/parceldesk/core/internal/engine/graph"
	"github.com/parceldesk/core/internal/engine/knowledge"
	"github.com/parceldesk/core/internal/engine/model"
	"github.com/parceldesk/core/internal/engine/repo"
	"github.com/parceldesk/core/internal/engine/tracking"
	"github.com/parceldesk/core/internal/runlog"
	"github.com/parceldesk/core/internal/server"
	logx "github.com/parceldesk/core/pkg/logger"
	pkgredis "github.com/parceldesk/core/pkg/redis"
)

// AppConfig defines all configurable parameters for the reply engine, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	OrgID       string `envconfig:"ORG_ID" default:"default"`

	// Infrastructure
	Redis pkgredis.Config

	// Generation provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Embedding provider; retrieval is disabled when unset
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	// Engine configs
	Router       model.RouterConfig
	Classifier   model.ClassifierModelConfig
	Summarizer   model.SummarizerModelConfig
	Response     model.ResponseModelConfig
	Retrieval    model.RetrievalConfig
	Tracking     model.TrackingConfig
	Conversation model.ConversationConfig
	Persona      model.PersonaConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	rdb, err := cfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
	}
	defer rdb.Close()

	ttl, err := time.ParseDuration(cfg.Conversation.TTL)
	if err != nil {
		logx.Fatal().Err(err).Str("ttl", cfg.Conversation.TTL).Msg("Invalid CONVERSATION_TTL")
	}

	engineCfg := graph.Config{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		OrgID:           cfg.OrgID,
		Router:          cfg.Router,
		ClassifierModel: cfg.Classifier,
		SummarizerModel: cfg.Summarizer,
		ResponseModel:   cfg.Response,
		Retrieval:       cfg.Retrieval,
		Tracking:        cfg.Tracking,
		Conversation:    cfg.Conversation,
		Persona:         cfg.Persona,
		CatalogProvider: catalog.NewRedisProvider(rdb),
		Recorder:        runlog.NewRedisRecorder(rdb, ttl),
	}

	if cfg.OpenAIAPIKey != "" {
		embedder, err := knowledge.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.Retrieval.EmbeddingModel)
		if err != nil {
			logx.Fatal().Err(err).Msg("Failed to initialise embedder")
		}
		engineCfg.KnowledgeStore = knowledge.NewRedisStore(rdb, embedder, cfg.OrgID, cfg.Retrieval)
	} else {
		logx.Warn().Msg("OPENAI_API_KEY not set; knowledge retrieval disabled")
	}

	if cfg.Tracking.Configured() {
		engineCfg.TrackingProvider = tracking.NewHTTPProvider(cfg.Tracking)
	} else {
		logx.Warn().Msg("tracking provider not configured; shipment enrichment disabled")
	}

	runner, err := graph.BuildReplyGraph(ctx, engineCfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build reply graph")
	}

	conversations := repo.NewRedisConversationRepository(rdb, ttl)
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(runner, conversations),
	}

	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logx.Info().Str("addr", cfg.ListenAddr).Msg("reply engine listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-shutdownCtx.Done()
	logx.Info().Msg("shutting down")

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(closeCtx); err != nil {
		logx.Error().Err(err).Msg("graceful shutdown failed")
	}
}
