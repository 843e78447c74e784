package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisRevokedPrefix = "revoked:"

// RedisRepository keeps the revocation set in Redis. Entries carry a TTL of
// retention, which must be at least the access-token lifetime: once a token
// has expired on its own the revocation marker no longer matters.
type RedisRepository struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisRepository(client *redis.Client, retention time.Duration) (*RedisRepository, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("revocation retention must be positive, got %v", retention)
	}
	return &RedisRepository{client: client, retention: retention}, nil
}

func (r *RedisRepository) Add(ctx context.Context, token string, revokedAt time.Time) error {
	// SET is naturally idempotent; re-revoking just refreshes the TTL.
	if err := r.client.Set(ctx, redisRevokedPrefix+token, revokedAt.Unix(), r.retention).Err(); err != nil {
		return fmt.Errorf("error writing revocation marker: %v", err)
	}
	return nil
}

func (r *RedisRepository) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, redisRevokedPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("error checking revocation marker: %v", err)
	}
	return n > 0, nil
}
