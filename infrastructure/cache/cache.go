package cache

import (
	"context"
	"fmt"
	"time"

	"shabbat-mode/infrastructure/configuration"

	"github.com/redis/go-redis/v9"
)

// NewCache connects to the configured redis. It returns nil, nil when redis is not configured.
func NewCache(ctx context.Context) (*redis.Client, error) {
	cfg := configuration.C.RedisClient
	if cfg.Host == "" {
		return nil, nil
	}
	port := cfg.Port
	if port == "" {
		port = "6379"
	}
	db := 0
	if cfg.DatabaseName != "" {
		if _, err := fmt.Sscanf(cfg.DatabaseName, "%d", &db); err != nil {
			return nil, fmt.Errorf("redis database must be numeric: %w", err)
		}
	}
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, port),
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
