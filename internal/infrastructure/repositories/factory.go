package repositories

import (
	"context"

	"stagecast/internal/core/ports"
	presencememory "stagecast/internal/infrastructure/presence/memory"
	presenceredis "stagecast/internal/infrastructure/presence/redis"
	"stagecast/internal/infrastructure/repositories/memory"
	redisrepo "stagecast/internal/infrastructure/repositories/redis"
	"stagecast/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	// Try to connect to Redis if enabled
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory, nil
}

// CreateStreamRepository creates a stream repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateStreamRepository() ports.StreamRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisStreamRepository(f.redisClient)
	}
	return memory.NewMemoryStreamRepository()
}

// CreatePeekInRepository creates a peek-in repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreatePeekInRepository() ports.PeekInRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisPeekInRepository(f.redisClient)
	}
	return memory.NewMemoryPeekInRepository()
}

// CreatePresenceDirectory creates the room presence directory. Multi-node
// gateway deployments need the Redis directory so every node sees the same
// rosters; single-node setups fall back to the in-process one.
func (f *RepositoryFactory) CreatePresenceDirectory() ports.PresenceDirectory {
	if f.useRedis && f.redisClient != nil {
		return presenceredis.NewDirectory(f.redisClient)
	}
	return presencememory.NewDirectory()
}

// RedisClient exposes the shared client for components that need raw
// pub/sub access, such as the cross-node room event bus. Nil when running
// on memory repositories.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	if f.useRedis {
		return f.redisClient
	}
	return nil
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
