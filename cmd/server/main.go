package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nyumbani/smartsearch/internal/config"
	"github.com/nyumbani/smartsearch/internal/embcache"
	"github.com/nyumbani/smartsearch/internal/handler"
	"github.com/nyumbani/smartsearch/internal/location"
	"github.com/nyumbani/smartsearch/internal/logger"
	"github.com/nyumbani/smartsearch/internal/metrics"
	"github.com/nyumbani/smartsearch/internal/repository"
	"github.com/nyumbani/smartsearch/internal/service"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Format, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("smart search starting",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)
	for _, w := range cfg.Warnings {
		log.Warn("configuration", zap.String("warning", w))
	}

	if err := run(cfg, log); err != nil {
		os.Exit(exitCode(log, err))
	}
}

// exitCode logs err and flushes the logger before the process exits,
// since os.Exit skips deferred calls.
func exitCode(log *zap.Logger, err error) int {
	log.Error("server stopped", zap.Error(err))
	_ = log.Sync()
	return 1
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Register()
	gin.SetMode(cfg.Server.GinMode)

	repo, err := repository.NewPostgresRepository(
		cfg.GetPostgreSQLDSN(),
		cfg.PostgreSQL.MaxConnections,
		cfg.PostgreSQL.MaxIdleConnections,
	)
	if err != nil {
		return err
	}
	defer repo.Close()
	log.Info("connected to PostgreSQL", zap.String("database", cfg.PostgreSQL.Database))

	gazetteer, err := location.LoadGazetteer(cfg.Location.GazetteerPath)
	if err != nil {
		return err
	}
	resolver := location.NewResolver(gazetteer, location.Options{
		FuzzyTolerance: cfg.Location.FuzzyTolerance,
		MinTokenLength: cfg.Location.MinTokenLength,
		RegionalScore:  cfg.Location.RegionalScore,
		AcceptScore:    cfg.Location.AcceptScore,
	}, metrics.LocationMatchesTotal, log.Named("location"))
	log.Info("gazetteer loaded",
		zap.String("version", gazetteer.Version()),
		zap.Int("entries", len(gazetteer.Entries())),
	)

	ai, err := newAIClient(ctx, cfg, log)
	if err != nil {
		return err
	}

	cache := embcache.New(ai, embcache.Config{
		TTL:        cfg.Cache.TTL,
		KeyChars:   cfg.Cache.KeyChars,
		CacheTotal: metrics.EmbeddingCacheTotal,
		Logger:     log.Named("embcache"),
	})
	matcher := service.NewMatcher(
		cache,
		service.NewIntentExtractor(ai, ai.Name(), log.Named("intent")),
		resolver,
		service.NewRanker(service.DefaultHighRelevance),
		service.MatcherConfig{
			SimilarityFloor:  cfg.Matcher.SimilarityFloor,
			RankTopK:         cfg.Matcher.RankTopK,
			MaxResults:       cfg.Matcher.MaxResults,
			EmbedConcurrency: cfg.Matcher.EmbedConcurrency,
		},
		log.Named("matcher"),
	)
	searchService := service.NewSearchService(repo, matcher, cfg.Search, log.Named("search"))

	router := newRouter(routerDeps{
		cfg:       cfg,
		logger:    log,
		db:        repo,
		search:    handler.NewSearchHandler(searchService),
		locations: handler.NewLocationHandler(resolver),
		gazetteer: gazetteer.Version(),
		provider:  ai.Name(),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// newAIClient selects the configured provider. Without credentials it returns
// a client whose calls fail as unavailable, so semantic search degrades instead of crashing.
func newAIClient(ctx context.Context, cfg *config.Config, log *zap.Logger) (service.AIClient, error) {
	if !cfg.AIEnabled() {
		log.Warn("AI provider has no credentials; semantic search is disabled",
			zap.String("provider", cfg.AI.Provider))
		return service.NewOpenAIClient(&config.OpenAIConfig{}, log.Named("openai")), nil
	}

	var client service.AIClient
	switch cfg.AI.Provider {
	case "gemini":
		gemini, err := service.NewGeminiClient(ctx, &cfg.Gemini, log.Named("gemini"))
		if err != nil {
			return nil, err
		}
		client = gemini
		log.Info("Gemini client initialized",
			zap.String("chat_model", cfg.Gemini.ChatModel),
			zap.String("embedding_model", cfg.Gemini.EmbeddingModel),
		)
	default:
		client = service.NewOpenAIClient(&cfg.OpenAI, log.Named("openai"))
		log.Info("OpenAI client initialized",
			zap.String("api_base", cfg.OpenAI.APIBase),
			zap.String("chat_model", cfg.OpenAI.ChatModel),
			zap.String("embedding_model", cfg.OpenAI.EmbeddingModel),
		)
	}
	return service.WithTimeout(client, cfg.AI.Timeout), nil
}
