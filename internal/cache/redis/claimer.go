package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/abbasKakoolvand/OKR-analyze/internal/scoring"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/utils"
)

// releaseScript deletes the claim only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Claimer hands out (kr, person) cells across processes sharing one Redis.
// A claim expires after ttl so a crashed worker cannot hold a cell forever.
type Claimer struct {
	client *Client
	ttl    time.Duration
}

func (c *Client) Claimer(ttl time.Duration) *Claimer {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Claimer{client: c, ttl: ttl}
}

func claimKey(krCode, person string) string {
	return "claim:" + utils.ShortHash(krCode, person)
}

func (cl *Claimer) Claim(ctx context.Context, krCode, person string) (func(), error) {
	key := claimKey(krCode, person)
	token := uuid.NewString()

	ok, err := cl.client.client.SetNX(ctx, key, token, cl.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim cell: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: kr=%s person=%s", scoring.ErrClaimHeld, krCode, person)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, cl.client.client, []string{key}, token).Err(); err != nil {
			logger.Warn("Failed to release claim",
				zap.String("kr_code", krCode),
				zap.String("person", person),
				zap.Error(err),
			)
		}
	}, nil
}
