package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/support-bot/internal/domain"
)

// Sessions carry no TTL: an in-flight dialogue must survive restarts.
const pairRetries = 3

// RedisStore keeps sessions in Redis under one key per identity.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps the given client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("session:%d", chatID)
}

func (s *RedisStore) Get(ctx context.Context, chatID int64) (*domain.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeSession(raw)
}

func (s *RedisStore) Put(ctx context.Context, session *domain.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(session.ChatID), raw, 0).Err()
}

func (s *RedisStore) Clear(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, sessionKey(chatID)).Err()
}

func (s *RedisStore) PutGuarded(ctx context.Context, session *domain.Session, guard domain.Flow) (bool, error) {
	raw, err := json.Marshal(session)
	if err != nil {
		return false, err
	}
	key := sessionKey(session.ChatID)

	applied := false
	txf := func(tx *redis.Tx) error {
		applied = false
		stored, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			current, err := decodeSession(stored)
			if err != nil {
				return err
			}
			if current.Flow != guard {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			return nil
		})
		if err == nil {
			applied = true
		}
		return err
	}
	if err := s.watchWithRetry(ctx, txf, key); err != nil {
		return false, err
	}
	return applied, nil
}

// Pair writes both sessions inside one MULTI/EXEC guarded by WATCH on
// both keys, so a concurrent close between the two writes aborts and
// retries instead of leaving a half-updated pairing.
func (s *RedisStore) Pair(ctx context.Context, a, b *domain.Session) error {
	rawA, err := json.Marshal(a)
	if err != nil {
		return err
	}
	rawB, err := json.Marshal(b)
	if err != nil {
		return err
	}
	keyA, keyB := sessionKey(a.ChatID), sessionKey(b.ChatID)

	txf := func(tx *redis.Tx) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, keyA, rawA, 0)
			pipe.Set(ctx, keyB, rawB, 0)
			return nil
		})
		return err
	}
	return s.watchWithRetry(ctx, txf, keyA, keyB)
}

func (s *RedisStore) BreakPair(ctx context.Context, closerID, counterpartID, requestID int64) (bool, error) {
	closerKey := sessionKey(closerID)
	counterpartKey := sessionKey(counterpartID)

	counterpartCleared := false
	txf := func(tx *redis.Tx) error {
		counterpartCleared = false
		raw, err := tx.Get(ctx, counterpartKey).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		clearCounterpart := false
		if err == nil {
			counterpart, err := decodeSession(raw)
			if err != nil {
				return err
			}
			// The other side may have closed first and moved on; its
			// session is only torn down while it still points here.
			clearCounterpart = counterpart.LinkedTo(requestID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, closerKey)
			if clearCounterpart {
				pipe.Del(ctx, counterpartKey)
			}
			return nil
		})
		if err == nil {
			counterpartCleared = clearCounterpart
		}
		return err
	}
	if err := s.watchWithRetry(ctx, txf, closerKey, counterpartKey); err != nil {
		return false, err
	}
	return counterpartCleared, nil
}

func (s *RedisStore) watchWithRetry(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < pairRetries; i++ {
		err = s.client.Watch(ctx, txf, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func decodeSession(raw []byte) (*domain.Session, error) {
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}
