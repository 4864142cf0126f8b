package cache

import (
	"sync"
	"time"
)

// TokenTTL 是 token 在最近一次 Add 之后保留的时长。
const TokenTTL = 15 * time.Minute

// TokenCache 记录在成功捕获元数据时出现过的访问 token。
//
// 过期清理只在 Add 时同步发生，没有后台定时器；因此 Contains 可能在 TTL
// 之后仍然返回 true，直到下一次 Add 触发清理。
type TokenCache struct {
	mu     sync.RWMutex
	tokens map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCache 创建使用固定 TokenTTL 的空集合。
func NewTokenCache() *TokenCache {
	return &TokenCache{
		tokens: make(map[string]time.Time),
		ttl:    TokenTTL,
		now:    time.Now,
	}
}

// Add 插入或刷新 token 的时间戳，然后移除所有超过 TTL 的条目。
func (c *TokenCache) Add(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.tokens[token] = now
	for key, seen := range c.tokens {
		if now.Sub(seen) > c.ttl {
			delete(c.tokens, key)
		}
	}
}

// Contains reports whether token is currently retained. It never evicts.
func (c *TokenCache) Contains(token string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tokens[token]
	return ok
}

// Len 返回当前保留的 token 数量，供指标采集使用。
func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tokens)
}
