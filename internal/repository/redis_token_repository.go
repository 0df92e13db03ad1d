package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/notes-auth/internal/model"
)

// DefaultRefreshKeyPrefix namespaces refresh records in Redis.
const DefaultRefreshKeyPrefix = "refresh"

// rotateScript deletes KEYS[1] and, only if it existed, stores ARGV[1] at
// KEYS[2] expiring at ARGV[2] (unix ms). Both keys share a hash tag so the
// script is valid on a cluster.
var rotateScript = redis.NewScript(`
if redis.call('DEL', KEYS[1]) == 1 then
  redis.call('SET', KEYS[2], ARGV[1])
  redis.call('PEXPIREAT', KEYS[2], ARGV[2])
  return 1
end
return 0
`)

// RedisTokenRepo stores refresh records as JSON values whose native expiry
// matches the record's, so expired records disappear without a sweeper.
// Find therefore never returns an expired record: a refresh token presented
// after its record's expiry reads as unknown, and the auth service reports
// ErrInvalidRefreshToken rather than ErrExpiredRefreshToken. Use the MySQL
// store when clients must be told a session expired.
type RedisTokenRepo struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisTokenRepo(client redis.UniversalClient, prefix string) *RedisTokenRepo {
	if prefix == "" {
		prefix = DefaultRefreshKeyPrefix
	}
	return &RedisTokenRepo{client: client, prefix: prefix}
}

type redisTokenValue struct {
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *RedisTokenRepo) key(userID, tokenHash string) string {
	return fmt.Sprintf("%s:{%s}:%s", r.prefix, userID, tokenHash)
}

func encodeTokenValue(rec model.RefreshToken) ([]byte, error) {
	return json.Marshal(redisTokenValue{ExpiresAt: rec.ExpiresAt.UTC(), CreatedAt: rec.CreatedAt.UTC()})
}

func (r *RedisTokenRepo) Save(ctx context.Context, rec model.RefreshToken) error {
	b, err := encodeTokenValue(rec)
	if err != nil {
		return err
	}
	k := r.key(rec.UserID, rec.TokenHash)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, k, b, 0)
		p.PExpireAt(ctx, k, rec.ExpiresAt)
		return nil
	})
	return err
}

func (r *RedisTokenRepo) Find(ctx context.Context, userID, tokenHash string) (model.RefreshToken, bool, error) {
	b, err := r.client.Get(ctx, r.key(userID, tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.RefreshToken{}, false, nil
	}
	if err != nil {
		return model.RefreshToken{}, false, err
	}
	var v redisTokenValue
	if err := json.Unmarshal(b, &v); err != nil {
		return model.RefreshToken{}, false, fmt.Errorf("decode refresh record: %w", err)
	}
	return model.RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: v.ExpiresAt,
		CreatedAt: v.CreatedAt,
	}, true, nil
}

func (r *RedisTokenRepo) Delete(ctx context.Context, userID, tokenHash string) error {
	return r.client.Del(ctx, r.key(userID, tokenHash)).Err()
}

// Rotate swaps the record in a single Lua script, so of two concurrent
// rotations of the same record exactly one observes DEL == 1.
func (r *RedisTokenRepo) Rotate(ctx context.Context, userID, oldHash string, next model.RefreshToken) (bool, error) {
	b, err := encodeTokenValue(next)
	if err != nil {
		return false, err
	}
	keys := []string{r.key(userID, oldHash), r.key(next.UserID, next.TokenHash)}
	n, err := rotateScript.Run(ctx, r.client, keys, b, next.ExpiresAt.UnixMilli()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
