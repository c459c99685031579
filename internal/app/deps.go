package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/vidfriends/friends/internal/auth"
	"github.com/vidfriends/friends/internal/config"
	"github.com/vidfriends/friends/internal/db"
	"github.com/vidfriends/friends/internal/events"
	"github.com/vidfriends/friends/internal/exports"
	"github.com/vidfriends/friends/internal/friends"
	"github.com/vidfriends/friends/internal/handlers"
	"github.com/vidfriends/friends/internal/middleware"
	"github.com/vidfriends/friends/internal/profiles"
	"github.com/vidfriends/friends/internal/repositories"
	"github.com/vidfriends/friends/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
// The returned cleanup releases clients opened here; the pool belongs to the caller.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	verifier, err := auth.NewVerifier(cfg.TokenSecret)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure token verifier: %w", err)
	}

	accounts := repositories.NewPostgresAccountRepository(pool)
	store := repositories.NewPostgresRelationshipStore(pool)

	var redisClient *redis.Client
	var publisher friends.EventPublisher = events.NopPublisher{}
	if cfg.Redis.Addr != "" {
		redisClient, err = events.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			return handlers.Dependencies{}, nil, err
		}
		publisher = events.NewRedisPublisher(redisClient, cfg.Redis.Queue)
		logger.Info("publishing relationship events", "redis", cfg.Redis.Addr, "queue", cfg.Redis.Queue)
	}

	cleanup := func(context.Context) error {
		if redisClient != nil {
			return redisClient.Close()
		}
		return nil
	}

	query := friends.Query{
		Relationships: store,
		Profiles:      profiles.NewCachingLookup(accounts, cfg.ProfileCacheTTL),
	}

	deps := handlers.Dependencies{
		Resolver: friends.Resolver{Accounts: accounts},
		Engine:   friends.Engine{Store: store, Events: publisher},
		Query:    query,
		Limiter:  middleware.NewAccountLimiter(cfg.RequestLimit),
		Verifier: verifier,
	}

	if checker, ok := pool.(handlers.HealthChecker); ok {
		deps.Database = checker
	}

	if cfg.Export.Bucket != "" {
		objects, err := storage.NewS3Storage(ctx, cfg.Export)
		if err != nil {
			_ = cleanup(ctx)
			return handlers.Dependencies{}, nil, fmt.Errorf("configure export storage: %w", err)
		}
		deps.Exporter = exports.Exporter{Friends: query, Storage: objects}
		logger.Info("friend list exports enabled", "bucket", cfg.Export.Bucket)
	}

	return deps, cleanup, nil
}
