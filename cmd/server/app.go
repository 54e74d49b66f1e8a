package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/quillwiki/growthtasks/internal/config"
	"github.com/quillwiki/growthtasks/internal/platform/linkserver"
	"github.com/quillwiki/growthtasks/internal/platform/postgres"
	"github.com/quillwiki/growthtasks/internal/platform/redis"
	"github.com/quillwiki/growthtasks/internal/platform/searchapi"
	"github.com/quillwiki/growthtasks/internal/platform/wikiapi"
	"github.com/quillwiki/growthtasks/internal/service"
	"github.com/quillwiki/growthtasks/internal/store"
	"github.com/quillwiki/growthtasks/internal/suggester"
	"github.com/quillwiki/growthtasks/internal/task"
	"github.com/quillwiki/growthtasks/internal/taskconfig"
)

// application holds the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	primaryDB   *sql.DB
	replicaDB   *sql.DB
	redisClient *goredis.Client

	wikiClient *wikiapi.Client
	recStore   store.LinkRecommendationStore

	configLoader  *taskconfig.Loader
	taskSuggester suggester.TaskSuggester

	recService *service.LinkRecommendationService
	subService *service.SubmissionService

	taskRunner *task.Runner
}

// newApplication creates an application instance with all dependencies
// initialized, runs pending database migrations and pre-warms the wiki
// configuration so a broken config page fails startup instead of the
// first request.
func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger) (*application, error) {
	primaryDB, replicaDB, err := setupDatabases(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	if err := postgres.RunMigrations(primaryDB); err != nil {
		_ = primaryDB.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	redisClient, err := redis.NewClient(ctx, cfg.Cache)
	if err != nil {
		_ = primaryDB.Close()
		return nil, fmt.Errorf("failed to connect to cache: %w", err)
	}

	wikiClient := wikiapi.NewClient(cfg.Wiki.BaseURL, cfg.Wiki.Timeout, log)

	registry := taskconfig.NewHandlerRegistry()
	registry.Register(taskconfig.NewTemplateBasedHandler(wikiClient))
	registry.Register(taskconfig.NewLinkRecommendationHandler())

	configLoader := taskconfig.NewLoader(
		wikiClient,
		registry,
		cfg.Suggester.TaskTypeConfigTitle,
		cfg.Suggester.TopicConfigTitle,
		log,
	)
	if _, err := configLoader.LoadTaskTypes(ctx); err != nil {
		log.Warn("task type configuration unavailable at startup",
			slog.String("error", err.Error()))
	}
	if _, err := configLoader.LoadTopics(ctx); err != nil {
		log.Warn("topic configuration unavailable at startup",
			slog.String("error", err.Error()))
	}

	searchClient := searchapi.NewClient(cfg.Search.BaseURL, cfg.Search.Timeout, log)
	linkClient := linkserver.NewClient(cfg.LinkServer.BaseURL, cfg.LinkServer.Timeout, log)

	recStore := postgres.NewPostgresLinkRecommendationStore(
		primaryDB, replicaDB, wikiClient, wikiClient, log)

	// Each suggester layer gets its own rand.Rand: the instances are
	// guarded by per-component locks, so sharing one would race.
	searchSuggester := suggester.NewSearchTaskSuggester(searchClient, configLoader, wikiClient,
		rand.New(rand.NewSource(time.Now().UnixNano())), log)
	cachedSuggester := suggester.NewCacheDecorator(
		searchSuggester,
		redis.NewSuggestionCache(redisClient, log),
		cfg.Cache.TTL,
		cfg.Suggester.DefaultLimit,
		rand.New(rand.NewSource(time.Now().UnixNano()+1)),
		log,
	)
	taskSuggester := suggester.NewQualityGateDecorator(cachedSuggester, configLoader, recStore, log)

	taskRunner := task.NewRunner(task.DefaultRunnerConfig(), log)
	taskRunner.Start()

	app := &application{
		config:        cfg,
		logger:        log,
		primaryDB:     primaryDB,
		replicaDB:     replicaDB,
		redisClient:   redisClient,
		wikiClient:    wikiClient,
		recStore:      recStore,
		configLoader:  configLoader,
		taskSuggester: taskSuggester,
		recService: service.NewLinkRecommendationService(
			configLoader, recStore, wikiClient, linkClient, log),
		subService: service.NewSubmissionService(
			configLoader, recStore, wikiClient, wikiClient, wikiClient, taskRunner, log),
		taskRunner: taskRunner,
	}

	return app, nil
}

// cleanup releases application resources in reverse initialization order.
func (app *application) cleanup() {
	app.taskRunner.Stop()

	if err := app.redisClient.Close(); err != nil {
		app.logger.Warn("failed to close cache connection", slog.String("error", err.Error()))
	}
	if app.replicaDB != app.primaryDB {
		if err := app.replicaDB.Close(); err != nil {
			app.logger.Warn("failed to close replica connection", slog.String("error", err.Error()))
		}
	}
	if err := app.primaryDB.Close(); err != nil {
		app.logger.Warn("failed to close database connection", slog.String("error", err.Error()))
	}
}
