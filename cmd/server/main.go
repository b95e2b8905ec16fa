// Command server wires every component of the orchestration service
// together and serves the REST API described in spec.md §6, plus the
// Temporal worker that hosts thread-awakening, greeting, conversation
// preservation and asynchronous chat dispatch.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/digitalemployee/orchestrator/internal/agentrt"
	"github.com/digitalemployee/orchestrator/internal/api"
	"github.com/digitalemployee/orchestrator/internal/cache"
	"github.com/digitalemployee/orchestrator/internal/config"
	"github.com/digitalemployee/orchestrator/internal/gateway"
	"github.com/digitalemployee/orchestrator/internal/gateway/anthropic"
	"github.com/digitalemployee/orchestrator/internal/gateway/bedrock"
	"github.com/digitalemployee/orchestrator/internal/gateway/openai"
	"github.com/digitalemployee/orchestrator/internal/memory"
	"github.com/digitalemployee/orchestrator/internal/memory/mongostore"
	"github.com/digitalemployee/orchestrator/internal/orchestrator"
	orchtemporal "github.com/digitalemployee/orchestrator/internal/orchestrator/temporal"
	"github.com/digitalemployee/orchestrator/internal/store/postgres"
	"github.com/digitalemployee/orchestrator/internal/telemetry"
	"github.com/digitalemployee/orchestrator/internal/workflow"

	awssdk "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("server: connect postgres: %w", err)
	}
	defer store.Close()
	if err := store.InitSchema(ctx); err != nil {
		return fmt.Errorf("server: init postgres schema: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	redisCache := cache.New(rdb)

	mongoClient, err := mongodriver.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("server: connect mongo: %w", err)
	}
	defer mongoClient.Disconnect()

	memBackend, err := mongostore.New(ctx, mongostore.Options{
		Client:   mongoClient,
		Database: cfg.MongoDatabase,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("server: init memory backend: %w", err)
	}

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("server: build LLM provider: %w", err)
	}

	tools := gateway.NewToolRegistry()
	gw := gateway.New(gateway.Options{
		Providers:       map[string]gateway.Provider{cfg.LLMProvider: provider},
		DefaultProvider: cfg.LLMProvider,
		Tools:           tools,
		Logger:          logger,
		Metrics:         metrics,
	})

	summarizer := &gateway.Summarizer{Gateway: gw, ProviderName: cfg.LLMProvider, Model: cfg.LLMModel}
	memStore := memory.New(memory.Options{
		Backend:     memBackend,
		Summarizer:  summarizer,
		NShort:      cfg.NShort,
		NSummary:    cfg.NSummary,
		LongTermTTL: cfg.LongTermTTL,
		Logger:      logger,
		Metrics:     metrics,
	})
	gateway.RegisterMemoryTools(tools, memStore)

	var assetsService agentrt.AssetsService = agentrt.NewHTTPAssetsService(cfg.AssetsServiceURL)
	cachedAssets := cache.NewCachedAssetsService(redisCache, assetsService)

	promptLoader := agentrt.NewMatrixPromptLoader(agentrt.NewStaticPromptMatrix(nil), nil, nil)

	sentimentAgent := &agentrt.SentimentAgent{
		Classifier: agentrt.NewGatewayClassifier(gw, cfg.LLMProvider, cfg.LLMModel),
		Prompts:    promptLoader,
		Memory:     memStore,
	}
	intentAgent := &agentrt.IntentAgent{
		Extractor: agentrt.NewGatewayIntentExtractor(gw, cfg.LLMProvider, cfg.LLMModel),
		Assets:    cachedAssets,
		Config:    cfg,
	}
	salesAgent := &agentrt.SalesAgent{
		Gateway:  gw,
		Memory:   memStore,
		Prompts:  promptLoader,
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel,
	}

	graph := workflow.NewChatGraph(sentimentAgent.Run, intentAgent.Run, salesAgent.Run, cfg.EnableParallelExecution)
	engine := workflow.NewEngine(logger, metrics)

	callback := orchestrator.NewHTTPCallbackSender(cfg.CallbackURL)

	dispatcher := &orchestrator.ChatDispatcher{
		Engine:          engine,
		Graph:           graph,
		Callback:        callback,
		Endpoint:        "/callbacks/workflow",
		CallbackTimeout: 10 * time.Second,
		CallbackRetries: 3,
		Logger:          logger,
	}

	greeter := &orchestrator.Awakener{
		Threads:         store,
		Memory:          memStore,
		Prompts:         promptLoader,
		Gateway:         gw,
		Callback:        callback,
		Provider:        cfg.LLMProvider,
		Model:           cfg.LLMModel,
		Endpoint:        "/callbacks/awakening",
		CallbackTimeout: 10 * time.Second,
		CallbackRetries: 3,
		InactiveAfter:   cfg.AwakeningRetryInterval,
		BatchSize:       cfg.AwakeningBatchSize,
		Logger:          logger,
		Metrics:         metrics,
	}

	preserver := &orchestrator.Preserver{
		Memory:                memStore,
		MinMessagesToPreserve: cfg.MinMessagesToPreserve,
		LongTermTTL:           cfg.LongTermTTL,
	}

	if cfg.JWTSecret == "" {
		return errors.New("server: JWT_SECRET is required")
	}
	auth := api.NewJWTAuthenticator(cfg.JWTSecret)

	deps := api.Deps{
		Store:      store,
		Cache:      redisCache,
		Memory:     memStore,
		Dispatcher: dispatcher,
		Greeter:    greeter,
		Graph:      graph,
		Auth:       auth,
		Runs:       api.NewRunStore(),
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics,
	}
	router := api.NewRouter(deps)

	temporalClient, err := client.Dial(client.Options{HostPort: cfg.TemporalHostPort})
	if err != nil {
		return fmt.Errorf("server: dial temporal: %w", err)
	}
	defer temporalClient.Close()

	activities := &orchtemporal.Activities{
		Awakener:   greeter,
		Preserver:  preserver,
		Dispatcher: dispatcher,
		Summarizer: summarizer.Summarize,
	}
	worker, err := orchtemporal.New(orchtemporal.Options{
		Client:     temporalClient,
		TaskQueue:  cfg.TaskQueue,
		Activities: activities,
	})
	if err != nil {
		return fmt.Errorf("server: build temporal worker: %w", err)
	}
	if err := orchtemporal.EnsureAwakeningSchedule(ctx, temporalClient, cfg.TaskQueue, cfg.AwakeningScanInterval); err != nil {
		return fmt.Errorf("server: ensure awakening schedule: %w", err)
	}

	workerErrs := make(chan error, 1)
	go func() { workerErrs <- worker.Run() }()

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	serveErrs := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrs <- err
			return
		}
		serveErrs <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErrs:
		if err != nil {
			return fmt.Errorf("server: http server: %w", err)
		}
	case err := <-workerErrs:
		if err != nil {
			return fmt.Errorf("server: temporal worker: %w", err)
		}
	}

	worker.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// buildProvider constructs the configured gateway.Provider from
// cfg.LLMProvider. Exactly one provider is wired at a time; the gateway's
// Providers map supports more, but this process only ever needs its own
// default.
func buildProvider(ctx context.Context, cfg config.Config) (gateway.Provider, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		return anthropic.NewFromAPIKey(cfg.AnthropicAPIKey, cfg.LLMModel)
	case "openai":
		return openai.NewFromAPIKey(cfg.OpenAIAPIKey, cfg.LLMModel)
	case "bedrock":
		awsCfg, err := awssdk.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return bedrock.New(bedrock.Options{
			Runtime:      bedrockruntime.NewFromConfig(awsCfg),
			DefaultModel: cfg.LLMModel,
		})
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}
