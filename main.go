package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pharmaflow/pharmaflow-engine/pkg/config"
	"github.com/pharmaflow/pharmaflow-engine/pkg/database"
	"github.com/pharmaflow/pharmaflow-engine/pkg/handlers"
	"github.com/pharmaflow/pharmaflow-engine/pkg/llm"
	"github.com/pharmaflow/pharmaflow-engine/pkg/logging"
	"github.com/pharmaflow/pharmaflow-engine/pkg/middleware"
	"github.com/pharmaflow/pharmaflow-engine/pkg/objectstore"
	"github.com/pharmaflow/pharmaflow-engine/pkg/repositories"
	"github.com/pharmaflow/pharmaflow-engine/pkg/search"
	"github.com/pharmaflow/pharmaflow-engine/pkg/services"
	"go.uber.org/zap"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Log startup configuration
	log.Printf("Configuration loaded:")
	log.Printf("  Environment: %s", cfg.Env)
	log.Printf("  Database: %s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	log.Printf("  Redis: %s:%d", cfg.Redis.Host, cfg.Redis.Port)
	log.Printf("  LLM provider: %s (%s)", cfg.LLM.Provider, cfg.LLM.Model)

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	// Run database migrations
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to open migration connection: %v", err)
	}
	if err := database.RunMigrations(migrationDB, "migrations", logger); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	_ = migrationDB.Close()

	// Connect to PostgreSQL
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
		MinConnections: cfg.Database.MinConnections,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Classification cache is optional: without Redis the pipeline just
	// classifies every batch from scratch.
	redisClient, err := database.NewRedisClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, classification cache disabled", zap.Error(err))
		redisClient = nil
	}
	cache := services.NewClassificationCache(redisClient,
		time.Duration(cfg.Redis.CacheTTLMinutes)*time.Minute, logger)

	// The oracle is optional: without an API key classification runs on
	// the heuristic alone.
	var oracleClient llm.LLMClient
	if cfg.LLM.APIKey != "" {
		oracleClient, err = llm.NewFromConfig(&llm.Config{
			Provider:          cfg.LLM.Provider,
			Endpoint:          cfg.LLM.BaseURL,
			Model:             cfg.LLM.Model,
			APIKey:            cfg.LLM.APIKey,
			RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		}, logger)
		if err != nil {
			log.Fatalf("Failed to create LLM client: %v", err)
		}
	} else {
		logger.Warn("LLM_API_KEY not set, classification oracle disabled")
	}

	store, err := objectstore.NewS3Store(ctx, objectstore.Config{
		Endpoint:     cfg.ObjectStore.Endpoint,
		Region:       cfg.ObjectStore.Region,
		Bucket:       cfg.ObjectStore.Bucket,
		AccessKey:    cfg.ObjectStore.AccessKey,
		SecretKey:    cfg.ObjectStore.SecretKey,
		UsePathStyle: cfg.ObjectStore.UsePathStyle,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}

	indexer, err := search.NewIndexer(search.Config{
		Addresses:   cfg.Search.Addresses,
		Username:    cfg.Search.Username,
		Password:    cfg.Search.Password,
		IndexPrefix: cfg.Search.IndexPrefix,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create search indexer: %v", err)
	}

	// Repositories
	employeeRepo := repositories.NewEmployeeRepository()
	customerRepo := repositories.NewCustomerRepository()
	productRepo := repositories.NewProductRepository()
	salesRepo := repositories.NewSalesRepository()
	documentRepo := repositories.NewDocumentRepository()

	// Services
	resolver := services.NewEntityResolver(employeeRepo, customerRepo, productRepo, logger)
	upserter := services.NewUpsertEngine(db, resolver, employeeRepo, customerRepo, productRepo, salesRepo, logger)

	var oracle services.TableClassifier
	if oracleClient != nil {
		oracle = services.NewOracleClassifier(oracleClient, logger)
	}
	heuristic := services.NewHeuristicClassifier(logger)

	ingestService := services.NewIngestService(
		oracle,
		heuristic,
		cache,
		services.NewCompositeSplitter(logger),
		services.NewMonthlyPivotExpander(logger),
		upserter,
		logger,
	)

	analyzer := services.NewDocumentAnalyzer(oracleClient, logger)
	documentService := services.NewDocumentService(db, documentRepo, store, indexer, analyzer, logger)

	if cfg.Cleanup.Enabled {
		cleanup := services.NewCleanupService(db, documentRepo, store, indexer,
			cfg.Cleanup.Schedule,
			time.Duration(cfg.Cleanup.OrphanRetentionDays)*24*time.Hour,
			logger)
		stopCleanup, err := cleanup.Start()
		if err != nil {
			log.Fatalf("Failed to start cleanup scheduler: %v", err)
		}
		defer stopCleanup()
	}

	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewIngestHandler(ingestService, logger).RegisterRoutes(mux)
	handlers.NewDocumentHandler(documentService, logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	log.Printf("Starting pharmaflow-engine on %s (version: %s)", addr, cfg.Version)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
