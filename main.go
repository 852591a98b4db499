package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/scopeline-ai/scopeline-engine/pkg/audit"
	"github.com/scopeline-ai/scopeline-engine/pkg/config"
	"github.com/scopeline-ai/scopeline-engine/pkg/database"
	"github.com/scopeline-ai/scopeline-engine/pkg/handlers"
	"github.com/scopeline-ai/scopeline-engine/pkg/llm"
	"github.com/scopeline-ai/scopeline-engine/pkg/logging"
	"github.com/scopeline-ai/scopeline-engine/pkg/middleware"
	"github.com/scopeline-ai/scopeline-engine/pkg/repositories"
	"github.com/scopeline-ai/scopeline-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("llm_model", cfg.AI.LLMModel))

	ctx := context.Background()

	// Migrations run over database/sql; the pool below is pgx-native.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		ConnString:     cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	factory := llm.NewClientFactory(cfg.AI, logger)
	chatClient, err := factory.CreateChatClient()
	if err != nil {
		logger.Fatal("Failed to create chat client", zap.Error(err))
	}
	embeddingClient, err := factory.CreateEmbeddingClient()
	if err != nil {
		logger.Fatal("Failed to create embedding client", zap.Error(err))
	}

	projectRepo := repositories.NewProjectRepository(db)
	entityRepo := repositories.NewEntityRepository(db)
	signalRepo := repositories.NewSignalRepository(db)
	beliefRepo := repositories.NewBeliefRepository(db)
	revisionRepo := repositories.NewRevisionRepository(db)
	escalationRepo := repositories.NewEscalationRepository(db)

	pool := llm.NewWorkerPool(llm.WorkerPoolConfig{
		MaxConcurrent: cfg.Pipeline.MaxConcurrentExtractions,
	}, logger)

	contextBuilder := services.NewContextBuilder(projectRepo, entityRepo, beliefRepo, logger)
	extractor := services.NewExtractor(chatClient, pool, cfg.Pipeline.MaxEvidencePerPatch, logger)
	deduplicator := services.NewDeduplicator(entityRepo, embeddingClient, services.DefaultDedupConfig(), logger)
	scorer := services.NewScorer(chatClient, cfg.Pipeline.MentionBumpThreshold, logger)
	applicator := services.NewApplicator(entityRepo, projectRepo, escalationRepo, revisionRepo, cfg.Pipeline.AutoApplyTiers, logger)
	auditSink := audit.NewSink("", logger)

	processor := services.NewSignalProcessor(
		signalRepo, beliefRepo, contextBuilder, extractor, deduplicator,
		scorer, applicator, auditSink, cfg.Pipeline.ChunkSizeChars, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewSignalHandler(signalRepo, processor, logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting scopeline-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
