package otp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// expiryGrace keeps an entry in Redis a little past its logical expiry so
// Verify can still report ErrCodeExpired instead of ErrNoCode.
const expiryGrace = 10 * time.Minute

// incrementScript bumps the attempt counter only if the hash exists, so a
// verification for an unknown number never creates an orphan key.
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
redis.call('HINCRBY', KEYS[1], 'attempts', 1)
return redis.call('HMGET', KEYS[1], 'code', 'expires_at', 'attempts')
`)

// RedisStore is the production CodeStore. Each phone maps to one hash:
//
//	otp:<phone> → {code, expires_at (unix ms), attempts}
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns a CodeStore backed by client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "otp:"}
}

func (s *RedisStore) key(phone string) string {
	return s.prefix + phone
}

func (s *RedisStore) Put(ctx context.Context, phone string, e Entry) error {
	key := s.key(phone)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"code", e.Code,
			"expires_at", e.ExpiresAt.UnixMilli(),
			"attempts", e.Attempts,
		)
		pipe.PExpireAt(ctx, key, e.ExpiresAt.Add(expiryGrace))
		return nil
	})
	if err != nil {
		return fmt.Errorf("otp: redis put: %w", err)
	}
	return nil
}

func (s *RedisStore) IncrementAttempts(ctx context.Context, phone string) (Entry, error) {
	res, err := incrementScript.Run(ctx, s.client, []string{s.key(phone)}).Slice()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNoCode
	}
	if err != nil {
		return Entry{}, fmt.Errorf("otp: redis increment: %w", err)
	}
	return parseEntry(res)
}

func (s *RedisStore) Delete(ctx context.Context, phone string) error {
	if err := s.client.Del(ctx, s.key(phone)).Err(); err != nil {
		return fmt.Errorf("otp: redis delete: %w", err)
	}
	return nil
}

// parseEntry decodes the HMGET reply [code, expires_at, attempts].
func parseEntry(fields []interface{}) (Entry, error) {
	if len(fields) != 3 {
		return Entry{}, fmt.Errorf("otp: unexpected reply length %d", len(fields))
	}
	str := make([]string, 3)
	for i, f := range fields {
		s, ok := f.(string)
		if !ok {
			// A hash missing its code is as good as no code.
			return Entry{}, ErrNoCode
		}
		str[i] = s
	}

	expiresMs, err := strconv.ParseInt(str[1], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("otp: parse expires_at: %w", err)
	}
	attempts, err := strconv.Atoi(str[2])
	if err != nil {
		return Entry{}, fmt.Errorf("otp: parse attempts: %w", err)
	}
	return Entry{
		Code:      str[0],
		ExpiresAt: time.UnixMilli(expiresMs),
		Attempts:  attempts,
	}, nil
}
