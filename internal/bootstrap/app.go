// Package bootstrap wires configuration, storage, the model client, and the
// background worker into one App the transport layer runs on.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	qdrantgo "github.com/qdrant/go-client/qdrant"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cortex-rag/internal/ai"
	appsvc "cortex-rag/internal/app"
	"cortex-rag/internal/config"
	"cortex-rag/internal/model"
	"cortex-rag/internal/pkg/logger"
	"cortex-rag/internal/pkg/secretbox"
	"cortex-rag/internal/pkg/textsplit"
	"cortex-rag/internal/pkg/webpage"
	mysqlClient "cortex-rag/internal/platform/mysql"
	qdrantClient "cortex-rag/internal/platform/qdrant"
	rabbitmqClient "cortex-rag/internal/platform/rabbitmq"
	redisClient "cortex-rag/internal/platform/redis"
	"cortex-rag/internal/ratelimit"
	"cortex-rag/internal/repository"
	"cortex-rag/internal/vectorindex"
	"cortex-rag/internal/worker"
)

type App struct {
	Config *config.Config
	Log    *logger.Logger
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection
	Qdrant *qdrantgo.Client

	Keyring   *appsvc.KeyringService
	Notebooks *appsvc.NotebookService
	Ingest    *appsvc.IngestService
	Chat      *appsvc.ChatService
	Limiter   *ratelimit.Limiter
	Publisher *rabbitmqClient.IngestPublisher

	IngestWorker *worker.IngestWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.Notebook{},
		&model.File{},
		&model.Message{},
		&model.UserKey{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	var redisCli *redis.Client
	var limitStore ratelimit.Store
	if cfg.RateLimit.Store == "redis" {
		redisCli, err = redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		limitStore = ratelimit.NewRedisStore(redisCli)
	} else {
		limitStore = ratelimit.NewMemoryStore()
	}
	limiter := ratelimit.NewLimiter(limitStore, cfg.RateLimit.PerMinute, cfg.RateLimit.PerDay, log)

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	qdrantCli, err := qdrantClient.New(ctx, cfg.Qdrant.Host, cfg.Qdrant.Port)
	if err != nil {
		return nil, err
	}
	index := vectorindex.NewQdrantIndex(qdrantCli, cfg.Qdrant.CollectionPrefix, cfg.Gemini.EmbeddingDim)

	box, err := secretbox.New(cfg.Security.EncryptionSecret)
	if err != nil {
		return nil, fmt.Errorf("init encryption failed: %w", err)
	}
	if !box.Configured() {
		log.Warn("encryption secret not set, storing user credentials will fail")
	}

	gemini := ai.NewGemini(ai.Config{
		ChatModel:      cfg.Gemini.ChatModel,
		VisionModel:    cfg.Gemini.VisionModel,
		EmbeddingModel: cfg.Gemini.EmbeddingModel,
		EmbeddingDim:   cfg.Gemini.EmbeddingDim,
	})

	notebookRepo := repository.NewNotebookRepository(mysqlDB)
	fileRepo := repository.NewFileRepository(mysqlDB)
	messageRepo := repository.NewMessageRepository(mysqlDB)
	userKeyRepo := repository.NewUserKeyRepository(mysqlDB)

	keyring := appsvc.NewKeyringService(userKeyRepo, box, cfg.Auth.AdminEmail, cfg.Gemini.APIKey, log)
	notebooks := appsvc.NewNotebookService(notebookRepo, fileRepo, messageRepo, userKeyRepo, index, log)

	splitter := textsplit.New(textsplit.DefaultChunkSize, textsplit.DefaultOverlap)
	ingestSvc := appsvc.NewIngestService(notebookRepo, fileRepo, splitter, gemini, gemini, webpage.NewFetcher(), index, log)
	chatSvc := appsvc.NewChatService(notebookRepo, messageRepo, gemini, gemini, gemini, index, log)

	publisher := rabbitmqClient.NewIngestPublisher(mqConn, cfg.RabbitMQ.IngestQueue)
	ingestWorker := worker.NewIngestWorker(mqConn, ingestSvc, keyring, cfg.RabbitMQ.IngestQueue, log)
	if err := ingestWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start ingest worker failed: %w", err)
	}

	return &App{
		Config:       cfg,
		Log:          log,
		MySQL:        mysqlDB,
		Redis:        redisCli,
		MQConn:       mqConn,
		Qdrant:       qdrantCli,
		Keyring:      keyring,
		Notebooks:    notebooks,
		Ingest:       ingestSvc,
		Chat:         chatSvc,
		Limiter:      limiter,
		Publisher:    publisher,
		IngestWorker: ingestWorker,
		StartedAt:    time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Qdrant != nil {
		if err := a.Qdrant.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
	return closeErr
}
