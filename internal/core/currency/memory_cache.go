package currency

import (
	"context"
	"sync"
	"time"
)

// DefaultRateTTL はレート表の既定の有効期限です。
const DefaultRateTTL = 10 * time.Minute

type rateEntry struct {
	rates     Rates
	fetchedAt time.Time
}

// MemoryRateCache はプロセス内のレートキャッシュです。
type MemoryRateCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]rateEntry
}

// NewMemoryRateCache は MemoryRateCache を生成します。ttl が 0 以下の場合は DefaultRateTTL を使います。
func NewMemoryRateCache(ttl time.Duration, now func() time.Time) *MemoryRateCache {
	if ttl <= 0 {
		ttl = DefaultRateTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryRateCache{ttl: ttl, now: now, entries: make(map[string]rateEntry)}
}

// Get は有効期限内のレート表を返します。
func (c *MemoryRateCache) Get(_ context.Context, base string) (Rates, bool) {
	c.mu.RLock()
	entry, ok := c.entries[base]
	c.mu.RUnlock()
	if !ok || c.now().Sub(entry.fetchedAt) >= c.ttl {
		return nil, false
	}
	return entry.rates, true
}

// Set はレート表を保存します。同じ基準通貨への同時書き込みは後勝ちです。
func (c *MemoryRateCache) Set(_ context.Context, base string, rates Rates) {
	c.mu.Lock()
	c.entries[base] = rateEntry{rates: rates, fetchedAt: c.now()}
	c.mu.Unlock()
}
