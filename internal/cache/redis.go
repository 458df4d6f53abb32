package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldValue     = "v"
	fieldClaimedAt = "claimed_at"
)

// claimScript atomically reads the value and stamps the claim marker. Running
// as a Lua script makes check-and-mark a single step, so concurrent claimers
// racing on the same key get exactly one winner.
var claimScript = redis.NewScript(`
local v = redis.call('HGET', KEYS[1], 'v')
if not v then
    return {'NOTFOUND'}
end
if redis.call('HEXISTS', KEYS[1], 'claimed_at') == 1 then
    return {'CLAIMED'}
end
redis.call('HSET', KEYS[1], 'claimed_at', ARGV[1])
return {'OK', v}
`)

// RedisStore keeps each entry as a redis hash with a native TTL. Key expiry is
// redis's job; Sweep is a no-op.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fieldValue, value)
	pipe.PExpire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	pipe := s.client.Pipeline()
	fields := pipe.HGetAll(ctx, key)
	pttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	data := fields.Val()
	raw, ok := data[fieldValue]
	if !ok {
		return nil, ErrNotFound
	}

	entry := &Entry{Value: []byte(raw)}
	if ttl := pttl.Val(); ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}
	if ms, ok := data[fieldClaimedAt]; ok {
		if parsed, err := strconv.ParseInt(ms, 10, 64); err == nil {
			t := time.UnixMilli(parsed)
			entry.ClaimedAt = &t
		}
	}
	return entry, nil
}

func (s *RedisStore) Claim(ctx context.Context, key string) ([]byte, error) {
	result, err := claimScript.Run(ctx, s.client, []string{key}, time.Now().UnixMilli()).Slice()
	if err != nil {
		return nil, fmt.Errorf("cache claim: %w", err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("cache claim: empty script result")
	}

	status, _ := result[0].(string)
	switch status {
	case "OK":
		if len(result) < 2 {
			return nil, fmt.Errorf("cache claim: missing value in script result")
		}
		raw, _ := result[1].(string)
		return []byte(raw), nil
	case "CLAIMED":
		return nil, ErrAlreadyClaimed
	case "NOTFOUND":
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("cache claim: unexpected script status %q", status)
	}
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Sweep satisfies Sweeper; redis expires keys on its own.
func (s *RedisStore) Sweep(context.Context) (int64, error) {
	return 0, nil
}
