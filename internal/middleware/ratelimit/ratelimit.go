package ratelimit

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type bucket struct {
	tokens     int
	lastRefill time.Time
	mu         sync.Mutex
}

// RateLimiter is a per-client token bucket guarding the endpoints that spend
// completion quota.
type RateLimiter struct {
	buckets    map[string]*bucket
	mu         sync.Mutex
	maxTokens  int
	refillRate time.Duration
	keyFunc    func(c *fiber.Ctx) string
	logger     *zap.Logger
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

type Config struct {
	MaxRequestsPerMinute int
	WindowDuration       time.Duration
	// KeyFunc identifies the client. Defaults to the remote IP.
	KeyFunc func(c *fiber.Ctx) string
	Logger  *zap.Logger
}

func New(cfg Config) *RateLimiter {
	if cfg.MaxRequestsPerMinute <= 0 {
		cfg.MaxRequestsPerMinute = 30
	}
	if cfg.WindowDuration == 0 {
		cfg.WindowDuration = time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *fiber.Ctx) string { return c.IP() }
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	rl := &RateLimiter{
		buckets:    make(map[string]*bucket),
		maxTokens:  cfg.MaxRequestsPerMinute,
		refillRate: cfg.WindowDuration / time.Duration(cfg.MaxRequestsPerMinute),
		keyFunc:    cfg.KeyFunc,
		logger:     cfg.Logger,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	go rl.cleanup(5 * time.Minute)

	return rl
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := rl.keyFunc(c)

		if wait, ok := rl.allow(key); !ok {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.String("path", c.Path()),
			)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(wait.Seconds())+1))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}

		return c.Next()
	}
}

// allow takes one token for key. When none is left it reports how long until
// the next refill.
func (rl *RateLimiter) allow(key string) (time.Duration, bool) {
	now := rl.now()

	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.maxTokens, lastRefill: now}
		rl.buckets[key] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	if refill := int(now.Sub(b.lastRefill) / rl.refillRate); refill > 0 {
		b.tokens = min(rl.maxTokens, b.tokens+refill)
		b.lastRefill = b.lastRefill.Add(time.Duration(refill) * rl.refillRate)
	}

	if b.tokens > 0 {
		b.tokens--
		return 0, true
	}
	return rl.refillRate - now.Sub(b.lastRefill), false
}

func (rl *RateLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictIdle(2 * every)
		}
	}
}

func (rl *RateLimiter) evictIdle(idle time.Duration) {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.lastRefill) > idle {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}
