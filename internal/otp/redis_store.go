package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/models"
)

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func challengeKey(handle string) string { return fmt.Sprintf("otp:challenge:%s", handle) }
func attemptsKey(handle string) string  { return fmt.Sprintf("otp:attempts:%s", handle) }
func usedKey(handle string) string      { return fmt.Sprintf("otp:used:%s", handle) }
func rateKey(actorID string) string     { return fmt.Sprintf("otp:ratelimit:%s", actorID) }

func unavailable(err error) error {
	return errs.E(errs.KindTransient, "otp store", fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err))
}

func (s *RedisStore) Save(ctx context.Context, c *models.Challenge, retention time.Duration) error {
	data, err := json.Marshal(toRecord(c))
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, challengeKey(c.Handle), data, retention).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, handle string) (*models.Challenge, error) {
	data, err := s.rdb.Get(ctx, challengeKey(handle)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errs.ErrOTPNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}

	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode challenge %s: %w", handle, err)
	}
	c := r.challenge()

	attempts, err := s.rdb.Get(ctx, attemptsKey(handle)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable(err)
	}
	c.Attempts = attempts
	return c, nil
}

func (s *RedisStore) Delete(ctx context.Context, handle string) error {
	if err := s.rdb.Del(ctx, challengeKey(handle), attemptsKey(handle)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) IncrementAttempts(ctx context.Context, handle string, retention time.Duration) (int, error) {
	pipe := s.rdb.Pipeline()
	incr := pipe.Incr(ctx, attemptsKey(handle))
	pipe.Expire(ctx, attemptsKey(handle), retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, unavailable(err)
	}
	return int(incr.Val()), nil
}

func (s *RedisStore) ResetAttempts(ctx context.Context, handle string) error {
	if err := s.rdb.Del(ctx, attemptsKey(handle)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RedisStore) MarkUsed(ctx context.Context, handle string, retention time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, usedKey(handle), 1, retention).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

func (s *RedisStore) IsUsed(ctx context.Context, handle string) (bool, error) {
	n, err := s.rdb.Exists(ctx, usedKey(handle)).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

func (s *RedisStore) Hit(ctx context.Context, actorID string, window time.Duration) (int64, error) {
	key := rateKey(actorID)
	count, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	if count == 1 {
		if err := s.rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, unavailable(err)
		}
	}
	return count, nil
}
