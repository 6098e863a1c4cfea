package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Minerva/internal/api"
	"Minerva/internal/chunker"
	"Minerva/internal/config"
	kafkadb "Minerva/internal/database/kafka"
	milvusdb "Minerva/internal/database/milvus"
	miniodb "Minerva/internal/database/minio"
	mongodb "Minerva/internal/database/mongo"
	redisdb "Minerva/internal/database/redis"
	"Minerva/internal/docstore"
	"Minerva/internal/embedding"
	"Minerva/internal/ingestion"
	"Minerva/internal/llm"
	"Minerva/internal/objectstore"
	"Minerva/internal/retrieval"
	"Minerva/internal/source"
	"Minerva/internal/source/confluence"
	"Minerva/internal/source/document"
	"Minerva/internal/source/github"
	"Minerva/internal/vectorstore"
	"Minerva/pkg/logger"
	"Minerva/pkg/ratelimiter"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Init("info")
		logger.New("rag_service", "").WithError(err).Fatal("failed to load configuration")
	}

	logger.Init(cfg.Logger.Level)
	log := logger.New("rag_service", "")
	log.WithFields(map[string]interface{}{
		"app":     cfg.App.Name,
		"version": cfg.App.Version,
	}).Info("starting rag service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Vector store backend.
	vectors, err := buildVectorStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect vector store")
	}
	defer vectors.Close()

	// Document store: Redis when configured, in-memory otherwise.
	checks := map[string]api.HealthCheck{"vectorstore": vectors.HealthCheck}
	var docs docstore.DocStore = docstore.NewInMemoryDocStore()
	if cfg.Databases.Redis.Address != "" {
		redisClient, err := redisdb.Connect(ctx, &cfg.Databases.Redis)
		if err != nil {
			log.WithError(err).Fatal("failed to connect redis")
		}
		defer redisClient.Close()
		docs = docstore.NewRedisDocStore(redisClient)
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
		log.Info("using redis document store")
	} else {
		log.Warn("no redis configured, document store is in-memory only")
	}

	// Ingestion history in MongoDB, when configured.
	var history ingestion.History
	if cfg.Databases.MongoDB.Address != "" {
		mongoClient, err := mongodb.Connect(ctx, &cfg.Databases.MongoDB)
		if err != nil {
			log.WithError(err).Fatal("failed to connect mongodb")
		}
		defer mongoClient.Disconnect(context.Background())
		history = ingestion.NewMongoHistory(mongoClient.Database(cfg.Databases.MongoDB.Database))
		checks["mongodb"] = func(ctx context.Context) error {
			return mongoClient.Ping(ctx, nil)
		}
	}

	// Raw upload mirror in MinIO, when configured.
	var objects *objectstore.Store
	if cfg.Databases.MinIO.Endpoint != "" {
		minioClient, err := miniodb.Connect(ctx, &cfg.Databases.MinIO)
		if err != nil {
			log.WithError(err).Fatal("failed to connect minio")
		}
		objects, err = objectstore.New(ctx, minioClient, cfg.Databases.MinIO.Bucket)
		if err != nil {
			log.WithError(err).Fatal("failed to prepare upload bucket")
		}
		checks["minio"] = objects.HealthCheck
	}

	// Ingestion events on Kafka, when configured.
	var events ingestion.Events
	if len(cfg.Databases.Kafka.Brokers) > 0 {
		writer, err := kafkadb.NewWriter(&cfg.Databases.Kafka)
		if err != nil {
			log.WithError(err).Fatal("failed to connect kafka")
		}
		publisher := kafkadb.NewPublisher(writer)
		defer publisher.Close()
		events = publisher
	}

	embedder, err := embedding.NewModel(cfg.Embedding.Provider, cfg.Embedding.Model,
		cfg.Embedding.APIKey, cfg.Embedding.BaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to create embedding model")
	}
	model, err := llm.NewClient(cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.APIKey)
	if err != nil {
		log.WithError(err).Fatal("failed to create llm client")
	}

	ch, err := chunker.New(cfg.Chunking.TokenLimit)
	if err != nil {
		log.WithError(err).Fatal("failed to create chunker")
	}

	registry := source.NewRegistry(log)
	for sourceType, ctor := range map[string]source.Constructor{
		confluence.SourceType: confluence.Constructor(log),
		github.SourceType:     github.Constructor(log),
		document.SourceType:   document.Constructor(log),
	} {
		if err := registry.Register(sourceType, ctor); err != nil {
			log.WithError(err).Fatal("failed to register source adapter")
		}
	}
	defer registry.CleanupAll()

	ingestor := ingestion.New(ingestion.Deps{
		Registry: registry,
		Chunker:  ch,
		Embedder: embedder,
		Vectors:  vectors,
		Docs:     docs,
		History:  history,
		Events:   events,
		Log:      log,
	})
	answerer := retrieval.New(embedder, vectors, docs, model, cfg.Retrieval.TopK, log)

	server := api.NewServer(api.Deps{
		Config:   cfg,
		Registry: registry,
		Ingestor: ingestor,
		Answerer: answerer,
		History:  history,
		Objects:  objects,
		Checks:   checks,
		Log:      log,
	})

	var limiter ratelimiter.RateLimiter
	if cfg.Middleware.RateLimiter.Enabled {
		limiter = ratelimiter.NewTokenBucket(
			cfg.Middleware.RateLimiter.Rate,
			cfg.Middleware.RateLimiter.Capacity,
		)
	}
	router := api.NewRouter(server, limiter)

	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	go func() {
		log.WithFields(map[string]interface{}{"address": cfg.Server.Address}).
			Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
	log.Info("server stopped")
}

// buildVectorStore connects the configured backend.
func buildVectorStore(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (vectorstore.Store, error) {
	switch cfg.VectorStore.Backend {
	case "milvus":
		db, err := milvusdb.Connect(ctx, &cfg.Databases.Milvus)
		if err != nil {
			return nil, err
		}
		return vectorstore.NewMilvusStore(ctx, db, cfg.VectorStore.Collection, cfg.Embedding.Dim, log)
	default:
		return vectorstore.NewQdrantStore(ctx, &cfg.Databases.Qdrant, cfg.VectorStore.Collection, cfg.Embedding.Dim, log)
	}
}
