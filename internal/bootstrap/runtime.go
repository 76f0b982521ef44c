// Package bootstrap wires the runtime dependencies shared by the commands.
package bootstrap

import (
	"context"
	"fmt"

	"postapp/internal/cache"
	"postapp/internal/config"
	"postapp/internal/database"
	"postapp/internal/middleware"
	"postapp/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemoData fills an empty database with generated demo content.
	SeedDemoData bool
}

// InitRuntime connects to DB and Redis and optionally seeds demo data. The
// Redis client is nil when Redis is unreachable; callers degrade without it.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	rdb := cache.GetClient()

	if opts.SeedDemoData {
		if err := seedIfEmpty(context.Background(), db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, rdb, nil
}

func seedIfEmpty(ctx context.Context, db *gorm.DB) error {
	has, err := seed.HasUsers(ctx, db)
	if err != nil {
		return err
	}
	if has {
		middleware.Logger.Info("database already has users, skipping demo seed")
		return nil
	}
	_, err = seed.Demo(ctx, db, seed.DefaultOptions())
	return err
}
