package backend

import (
	"context"
	"fmt"

	"depositos/internal/amqp"
	"depositos/internal/core"
	applog "depositos/internal/log"
	"depositos/internal/services"
	"depositos/internal/storage"
	"depositos/internal/store"
	"depositos/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Wrap(nil, applog.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config, opts ...services.Option) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	// Caller options come last so they can still override the policy.
	resolver, _ := core.ResolverByName(config.MovePolicy)
	opts = append([]services.Option{services.WithMoveResolver(resolver)}, opts...)

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config, opts)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config, opts)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config, opts []services.Option) (*BackendResult, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, storage.WithLogger(f.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// Initialize AMQP client (optional)
	if config.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, amqp.WithLogger(f.logger))
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without mirror events",
				applog.FieldError, err,
				applog.FieldErrorType, applog.ErrorTypeNetwork)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			opts = append(opts, services.WithPublisher(amqpClient))
		}
	}

	result, err := f.build(ctx, sqliteRepo, sqliteRepo, opts)
	if err != nil {
		_ = sqliteRepo.Close()
		return nil, err
	}
	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"move_policy", movePolicyName(config.MovePolicy))
	return result, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config, opts []services.Option) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data" // Default directory
	}
	st := memory.NewFromFiles(dataDir)

	result, err := f.build(ctx, st, st, opts)
	if err != nil {
		return nil, err
	}
	f.logger.InfoContext(ctx, "Initialized memory backend",
		"data_directory", dataDir,
		"move_policy", movePolicyName(config.MovePolicy))
	return result, nil
}

func (f *DefaultFactory) build(ctx context.Context, st store.Store, passwords store.PasswordStore, opts []services.Option) (*BackendResult, error) {
	svc, err := services.NewDepositService(ctx, st, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize deposit service: %w", err)
	}
	return &BackendResult{
		Service:   svc,
		Passwords: passwords,
		Cleanup:   svc.Close,
	}, nil
}

func movePolicyName(p string) string {
	if p == "" {
		return core.MovePolicyDestination
	}
	return p
}
