package infra

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/fystack/payment-gateway/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

// RedisClient abstracts the redis operations the gateway needs.
type RedisClient interface {
	GetClient() *redis.Client
	LPush(ctx context.Context, key string, values ...any) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	Close() error
}

type RedisWrapper struct {
	client *redis.Client
}

func NewRedisClient(ctx context.Context, addr string, password string) (RedisClient, error) {
	cpus := runtime.GOMAXPROCS(0)

	opts := &redis.Options{
		Addr:            addr,
		Password:        password,
		DB:              0,
		PoolSize:        cpus * 10,
		MinIdleConns:    cpus * 2,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pong, err := client.Ping(pingCtx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Connected to Redis", "pong", pong)

	return &RedisWrapper{client: client}, nil
}

func (rw *RedisWrapper) GetClient() *redis.Client {
	return rw.client
}

func (rw *RedisWrapper) LPush(ctx context.Context, key string, values ...any) error {
	return rw.client.LPush(ctx, key, values...).Err()
}

func (rw *RedisWrapper) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return rw.client.LRange(ctx, key, start, stop).Result()
}

func (rw *RedisWrapper) Close() error {
	return rw.client.Close()
}
