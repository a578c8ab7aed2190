package cache

import (
	"context"
	"fmt"
	"time"

	"muselib/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the shared redis client.
var RedisClient *redis.Client

// ConnectRedis initializes the redis connection and verifies it with a ping.
func ConnectRedis(cfg *config.Config) error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := RedisClient.Ping(ctx).Result(); err != nil {
		// Leave the client nil so optional consumers fall back cleanly.
		RedisClient.Close()
		RedisClient = nil
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	return nil
}

// CloseRedis closes the redis connection.
func CloseRedis() error {
	if RedisClient != nil {
		return RedisClient.Close()
	}
	return nil
}
