package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/wolfman30/clinic-concierge/cmd/mainconfig"
	"github.com/wolfman30/clinic-concierge/internal/agent"
	"github.com/wolfman30/clinic-concierge/internal/api/handlers"
	"github.com/wolfman30/clinic-concierge/internal/api/router"
	appconfig "github.com/wolfman30/clinic-concierge/internal/config"
	"github.com/wolfman30/clinic-concierge/internal/notify"
	"github.com/wolfman30/clinic-concierge/internal/observability/metrics"
	"github.com/wolfman30/clinic-concierge/internal/schedstore"
	"github.com/wolfman30/clinic-concierge/internal/webchat"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-concierge API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize appointment store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	sessions, memSessions := buildSessions(cfg)

	var awsCfg aws.Config
	needsAWS := cfg.LLMProvider == "bedrock" || cfg.BedrockModelID != "" || cfg.EmailFromAddress != ""
	if needsAWS {
		awsCfg, err = mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
	}

	llm, model, err := buildLLMClient(cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to initialize LLM client", "error", err)
		os.Exit(1)
	}
	extractor := agent.NewLLMExtractor(llm, model, cfg.ExtractorTimeout, logger)

	var emailSender notify.EmailSender
	if cfg.EmailFromAddress != "" {
		emailSender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
	} else {
		emailSender = notify.NewStubEmailSender(logger)
	}
	notifier := notify.NewService(emailSender, cfg.EmailFromName, logger)

	convMetrics := metrics.NewConversationMetrics(prometheus.DefaultRegisterer)

	dispatcher := agent.NewDispatcher(agent.DispatcherConfig{
		Extractor: extractor,
		Sessions:  sessions,
		Store:     store,
		Notifier:  notifier,
		Metrics:   convMetrics,
		Logger:    logger,
	})

	go runSweeper(ctx, cfg, store, sessions, memSessions, convMetrics, logger)

	r := router.New(&router.Config{
		Logger:         logger,
		ChatHandler:    handlers.NewChatHandler(dispatcher, logger),
		ClinicHandler:  handlers.NewClinicHandler(store, logger),
		WebChatHandler: webchat.NewHandler(dispatcher, logger),
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// buildStore picks Postgres when DATABASE_URL is set, the JSON file store
// otherwise.
func buildStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (schedstore.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store, err := schedstore.NewPostgresStore(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("using postgres appointment store")
		return store, pool.Close, nil
	}

	store, err := schedstore.NewFileStore(cfg.DataFile, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using file appointment store", "path", cfg.DataFile)
	return store, func() {}, nil
}

// buildSessions picks Redis when REDIS_ADDR is set, in-process memory
// otherwise. The memory store is returned separately so the sweeper can
// evict idle sessions; Redis handles that with key TTLs.
func buildSessions(cfg *appconfig.Config) (agent.SessionStore, *agent.MemorySessionStore) {
	if cfg.RedisAddr != "" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		return agent.NewRedisSessionStore(redis.NewClient(opts), cfg.SessionTTL), nil
	}
	mem := agent.NewMemorySessionStore()
	return mem, mem
}

// buildLLMClient selects the extraction model provider. With both providers
// configured, OpenAI is primary and Bedrock the fallback.
func buildLLMClient(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (agent.LLMClient, string, error) {
	var (
		openaiClient  agent.LLMClient
		bedrockClient agent.LLMClient
	)
	if cfg.OpenAIAPIKey != "" {
		openaiClient = agent.NewOpenAILLMClient(openai.NewClient(cfg.OpenAIAPIKey))
	}
	if cfg.BedrockModelID != "" {
		bedrockClient = agent.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
	}

	switch cfg.LLMProvider {
	case "openai":
		if openaiClient == nil {
			return nil, "", errors.New("LLM_PROVIDER=openai requires OPENAI_API_KEY")
		}
		return openaiClient, cfg.OpenAIModel, nil
	case "bedrock":
		if bedrockClient == nil {
			return nil, "", errors.New("LLM_PROVIDER=bedrock requires BEDROCK_MODEL_ID")
		}
		return bedrockClient, cfg.BedrockModelID, nil
	default:
		switch {
		case openaiClient != nil && bedrockClient != nil:
			logger.Info("using openai with bedrock fallback")
			return agent.NewFallbackLLMClient(openaiClient, bedrockClient, cfg.BedrockModelID, logger), cfg.OpenAIModel, nil
		case openaiClient != nil:
			return openaiClient, cfg.OpenAIModel, nil
		case bedrockClient != nil:
			return bedrockClient, cfg.BedrockModelID, nil
		}
		return nil, "", errors.New("no LLM provider configured: set OPENAI_API_KEY or BEDROCK_MODEL_ID")
	}
}

// runSweeper removes expired appointments on a timer and, for in-memory
// sessions, evicts conversations idle past the session TTL.
func runSweeper(ctx context.Context, cfg *appconfig.Config, store schedstore.Store, sessions agent.SessionStore, memSessions *agent.MemorySessionStore, convMetrics *metrics.ConversationMetrics, logger *logging.Logger) {
	sweep := func() {
		removed, err := store.CleanupExpired(ctx, time.Now())
		if err != nil {
			logger.Error("expired appointment sweep failed", "error", err)
		} else if removed > 0 {
			logger.Info("removed expired appointments", "count", removed)
		}
		if memSessions != nil {
			if evicted := memSessions.EvictIdle(cfg.SessionTTL); evicted > 0 {
				logger.Info("evicted idle sessions", "count", evicted)
			}
		}
		if n, err := sessions.ActiveSessions(ctx); err == nil {
			convMetrics.SetActiveSessions(n)
		}
	}

	sweep()
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
