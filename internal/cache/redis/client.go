package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/abbasKakoolvand/OKR-analyze/internal/metrics"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/config"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
)

const analysisPrefix = "analysis:"

type Client struct {
	client *redis.Client
}

func NewClient(cfg config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", cfg.Addr()))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) SetAnalysis(ctx context.Context, key string, result interface{}, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	if err := c.client.Set(ctx, analysisPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set analysis cache: %w", err)
	}

	logger.Debug("Analysis cached", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

// GetAnalysis decodes a cached analysis into result and reports whether it was found.
func (c *Client) GetAnalysis(ctx context.Context, key string, result interface{}) (bool, error) {
	data, err := c.client.Get(ctx, analysisPrefix+key).Bytes()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues("analysis").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get analysis cache: %w", err)
	}

	if err := json.Unmarshal(data, result); err != nil {
		return false, fmt.Errorf("failed to unmarshal analysis: %w", err)
	}

	metrics.CacheHits.WithLabelValues("analysis").Inc()
	logger.Debug("Analysis cache hit", zap.String("key", key))
	return true, nil
}

// InvalidateAnalyses drops every cached analysis. Called after new tasks land.
func (c *Client) InvalidateAnalyses(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, analysisPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Analysis cache invalidated")
	return nil
}
