package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"docchat/internal/ai"
	appsvc "docchat/internal/app"
	"docchat/internal/cache"
	"docchat/internal/config"
	"docchat/internal/model"
	mysqlClient "docchat/internal/platform/mysql"
	rabbitmqClient "docchat/internal/platform/rabbitmq"
	redisClient "docchat/internal/platform/redis"
	"docchat/internal/pkg/logger"
	"docchat/internal/pkg/pdfextract"
	"docchat/internal/repository"
	"docchat/internal/storage"
	"docchat/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *logger.ZapLogger

	// Optional infrastructure; nil when not configured.
	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Documents     *appsvc.DocumentService
	Threads       *appsvc.ThreadService
	Chat          *appsvc.ChatService
	Conversations *appsvc.ConversationRegistry

	// Consumer is set by StartWorkers when RabbitMQ is configured.
	Consumer *worker.EventConsumer

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	log := logger.New(logger.Options{
		FilePath:   cfg.Log.File,
		Level:      cfg.Log.Level,
		Production: cfg.App.Env == "prod",
	})
	return NewWithConfig(ctx, cfg, log)
}

// NewWithConfig wires every service from cfg. Redis, RabbitMQ and MySQL are
// only dialed when configured.
func NewWithConfig(ctx context.Context, cfg *config.Config, log *logger.ZapLogger) (*App, error) {
	a := &App{Config: cfg, Logger: log, StartedAt: time.Now()}

	threadStore, err := a.threadStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	fileRepo, err := repository.NewFileRepository(cfg.Storage.DataDir, blobs)
	if err != nil {
		a.Close()
		return nil, err
	}

	var historyCache appsvc.HistoryCache
	if cfg.Redis.Addr != "" {
		if a.Redis, err = redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
			a.Close()
			return nil, err
		}
		historyCache = cache.NewHistoryCache(a.Redis, time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second)
	}

	var publisher appsvc.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		if a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL); err != nil {
			a.Close()
			return nil, err
		}
		publisher = rabbitmqClient.NewEventPublisher(a.MQConn, cfg.RabbitMQ.Exchange)
	}

	generator := ai.NewOpenAICompatibleClient(ai.ChatConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	if cfg.LLM.APIKey == "" {
		log.Warn("bootstrap", "llm api key is empty, answers will carry a generation error", nil)
	}

	a.Threads = appsvc.NewThreadService(threadStore, historyCache, publisher, log)
	a.Documents = appsvc.NewDocumentService(fileRepo, a.Threads, pdfextract.Extractor{}, publisher, log, appsvc.DocumentServiceConfig{
		MaxUploadBytes: cfg.Upload.MaxSizeBytes,
		ChunkSize:      cfg.Retrieval.ChunkSize,
	})
	a.Chat = appsvc.NewChatService(a.Documents, a.Threads, generator, log, cfg.Retrieval.TopK)
	a.Conversations = appsvc.NewConversationRegistry(time.Duration(cfg.App.ConversationTTLMinute) * time.Minute)

	log.Info("bootstrap", "application ready", map[string]interface{}{
		"thread_backend": cfg.Storage.ThreadBackend,
		"blob_backend":   cfg.Storage.BlobBackend,
		"redis":          a.Redis != nil,
		"rabbitmq":       a.MQConn != nil,
	})
	return a, nil
}

func (a *App) threadStore(ctx context.Context) (appsvc.ThreadStore, error) {
	cfg := a.Config
	if cfg.Storage.ThreadBackend != config.ThreadBackendMySQL {
		repo, err := repository.NewJSONThreadRepository(filepath.Join(cfg.Storage.DataDir, "threads"))
		if err != nil {
			return nil, err
		}
		return repo.WithLogger(a.Logger), nil
	}

	db, err := mysqlClient.New(ctx, mysqlClient.Options{DSN: cfg.MySQLDSN(), Verbose: cfg.App.Env == "dev"})
	if err != nil {
		return nil, err
	}
	a.MySQL = db
	repo := repository.NewGormThreadRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		return nil, err
	}
	return repo, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	if cfg.Storage.BlobBackend == config.BlobBackendS3 {
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			UseSSL:          cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := storage.NewLocalStore(cfg.Upload.Dir)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// StartWorkers subscribes to deletions published by any process so live
// conversations drop threads and documents that no longer exist. It is a
// no-op without RabbitMQ.
func (a *App) StartWorkers(ctx context.Context) error {
	if a.MQConn == nil || a.Consumer != nil {
		return nil
	}
	consumer := worker.NewEventConsumer(a.MQConn, a.Config.RabbitMQ.Exchange, func(_ context.Context, event model.Event) error {
		if n := a.Conversations.Detach(event); n > 0 {
			a.Logger.Info("worker", "conversations detached", map[string]interface{}{
				"type":          string(event.Type),
				"conversations": n,
			})
		}
		return nil
	}, a.Logger, model.EventThreadDeleted, model.EventDocumentDeleted)
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	a.Consumer = consumer
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.Consumer != nil {
		a.Consumer.Close()
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		errs = append(errs, a.MQConn.Close())
	}
	if a.MySQL != nil {
		if sqlDB, err := a.MySQL.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if a.Logger != nil {
		// stderr sync fails on some terminals; nothing to do about it
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
