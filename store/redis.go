package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// swapAttempts bounds how often SwapPair retries after a concurrent write
// aborted its transaction.
const swapAttempts = 3

// DefaultRedisPrefix is used when NewRedisStore receives an empty prefix.
const DefaultRedisPrefix = "courseauth"

// RedisStore keeps the token pair of one origin in Redis. Mutations publish a
// Change on the origin's channel inside the same MULTI/EXEC, so every
// RedisStore handle for that origin observes them.
type RedisStore struct {
	redis  *redis.Client
	prefix string
	origin string
}

// NewRedisStore returns a RedisStore for origin under prefix.
func NewRedisStore(rdb *redis.Client, prefix, origin string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		redis:  rdb,
		prefix: prefix,
		origin: origin,
	}
}

func (s *RedisStore) accessKey() string {
	return s.prefix + ":" + s.origin + ":access"
}

func (s *RedisStore) refreshKey() string {
	return s.prefix + ":" + s.origin + ":refresh"
}

func (s *RedisStore) channel() string {
	return s.prefix + ":" + s.origin + ":changes"
}

func (s *RedisStore) get(ctx context.Context, key string) (string, error) {
	v, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, nil
}

func (s *RedisStore) Access(ctx context.Context) (string, error) {
	return s.get(ctx, s.accessKey())
}

func (s *RedisStore) Refresh(ctx context.Context) (string, error) {
	return s.get(ctx, s.refreshKey())
}

func (s *RedisStore) SetAccess(ctx context.Context, token string) error {
	return s.write(ctx, SlotAccess, func(pipe redis.Pipeliner) {
		setOrDel(ctx, pipe, s.accessKey(), token)
	})
}

func (s *RedisStore) SetRefresh(ctx context.Context, token string) error {
	return s.write(ctx, SlotRefresh, func(pipe redis.Pipeliner) {
		setOrDel(ctx, pipe, s.refreshKey(), token)
	})
}

func (s *RedisStore) SetPair(ctx context.Context, access, refresh string) error {
	return s.write(ctx, SlotPair, func(pipe redis.Pipeliner) {
		setOrDel(ctx, pipe, s.accessKey(), access)
		setOrDel(ctx, pipe, s.refreshKey(), refresh)
	})
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.write(ctx, SlotClear, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, s.accessKey(), s.refreshKey())
	})
}

// SwapPair runs the comparison and the write under WATCH on the refresh key.
// A transaction aborted by a concurrent write is retried; if the key keeps
// moving the swap reports false.
func (s *RedisStore) SwapPair(ctx context.Context, expect, access, refresh string) (bool, error) {
	slot := swapSlot(access, refresh)

	var swapped bool
	txf := func(tx *redis.Tx) error {
		swapped = false
		cur, err := tx.Get(ctx, s.refreshKey()).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != expect {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			setOrDel(ctx, pipe, s.accessKey(), access)
			setOrDel(ctx, pipe, s.refreshKey(), refresh)
			pipe.Publish(ctx, s.channel(), string(slot))
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}

	for i := 0; i < swapAttempts; i++ {
		err := s.redis.Watch(ctx, txf, s.refreshKey())
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return swapped, nil
	}
	return false, nil
}

func (s *RedisStore) write(ctx context.Context, slot Slot, fn func(redis.Pipeliner)) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fn(pipe)
		pipe.Publish(ctx, s.channel(), string(slot))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func setOrDel(ctx context.Context, pipe redis.Pipeliner, key, value string) {
	if value == "" {
		pipe.Del(ctx, key)
		return
	}
	pipe.Set(ctx, key, value, 0)
}

// Watch subscribes to the origin's change channel. It returns once the
// subscription is confirmed; fn then runs on a dedicated goroutine until stop
// is called. A message already in flight may still be delivered after stop.
func (s *RedisStore) Watch(ctx context.Context, fn func(Change)) (func(), error) {
	ps := s.redis.Subscribe(ctx, s.channel())
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ch := ps.Channel()
	go func() {
		for msg := range ch {
			fn(Change{Slot: Slot(msg.Payload)})
		}
	}()

	// stop does not wait for the delivery goroutine, so fn may call it.
	var once sync.Once
	return func() {
		once.Do(func() { _ = ps.Close() })
	}, nil
}
