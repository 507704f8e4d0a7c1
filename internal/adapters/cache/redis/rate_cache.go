// Package redis は為替レートを Redis に共有キャッシュします。
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ogurasousui/codex-expense-approval/internal/core/currency"
)

const keyPrefix = "expense:rates:"

// RateCache は currency.RateCache の Redis 実装です。値は基準通貨ごとの JSON です。
type RateCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ currency.RateCache = (*RateCache)(nil)

// Dial は Redis に接続し、疎通を確認します。
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return client, nil
}

// NewRateCache は既存のクライアントから RateCache を生成します。ttl が 0 以下の場合は既定値を使います。
func NewRateCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RateCache {
	if ttl <= 0 {
		ttl = currency.DefaultRateTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateCache{client: client, ttl: ttl, logger: logger.Named("rate_cache")}
}

// Get はキャッシュ済みのレート表を返します。Redis の障害はキャッシュミスとして扱います。
func (c *RateCache) Get(ctx context.Context, base string) (currency.Rates, bool) {
	data, err := c.client.Get(ctx, key(base)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("redis get failed", zap.String("base", base), zap.Error(err))
		return nil, false
	}

	var rates currency.Rates
	if err := json.Unmarshal(data, &rates); err != nil {
		c.logger.Warn("discarding corrupt cache entry", zap.String("base", base), zap.Error(err))
		return nil, false
	}
	return rates, true
}

// Set はレート表を TTL 付きで保存します。
func (c *RateCache) Set(ctx context.Context, base string, rates currency.Rates) {
	data, err := json.Marshal(rates)
	if err != nil {
		c.logger.Warn("encode rates", zap.String("base", base), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key(base), data, c.ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", zap.String("base", base), zap.Error(err))
	}
}

func key(base string) string {
	return keyPrefix + strings.ToUpper(base)
}
