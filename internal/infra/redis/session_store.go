package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"exam-reward-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	sessionPrefix = "attempt:session:"
	deadlineIndex = "attempt:session:deadlines"
	maxCASRetries = 8
)

// SessionStore keeps attempt sessions in Redis so every instance sees the same clock.
// Each session is a JSON value under attempt:session:{key}; started sessions are
// indexed by deadline in a sorted set for the sweeper. Writes are optimistic
// WATCH/MULTI transactions on the session key.
type SessionStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewSessionStore keeps session values for retention after their last write.
// A zero retention keeps them forever.
func NewSessionStore(client *redis.Client, retention time.Duration) *SessionStore {
	return &SessionStore{client: client, retention: retention}
}

func (s *SessionStore) StartOrResume(ctx context.Context, candidate domain.AttemptSession) (domain.AttemptSession, bool, error) {
	candidate.Legacy = false
	key := candidate.Key()
	var (
		out     domain.AttemptSession
		created bool
	)
	err := s.cas(ctx, key, func(tx *redis.Tx) error {
		existing, err := s.read(ctx, tx, key)
		if err == nil && existing.Status == domain.SessionStarted {
			out, created = existing, false
			return nil
		}
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return err
		}
		raw, err := json.Marshal(candidate)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key(key), raw, s.retention)
			pipe.ZAdd(ctx, deadlineIndex, redis.Z{Score: deadlineScore(candidate.Deadline), Member: key.String()})
			return nil
		})
		out, created = candidate, true
		return err
	})
	if err != nil {
		return domain.AttemptSession{}, false, err
	}
	return out, created, nil
}

func (s *SessionStore) Get(ctx context.Context, studentID, examID string) (domain.AttemptSession, error) {
	session, err := s.read(ctx, s.client, domain.CanonicalKey(studentID, examID))
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return session, err
	}
	session, err = s.read(ctx, s.client, domain.LegacyKey(examID))
	if err != nil {
		return domain.AttemptSession{}, err
	}
	session.Legacy = true
	return session, nil
}

func (s *SessionStore) SaveDraft(ctx context.Context, key domain.SessionKey, answers []int) error {
	return s.cas(ctx, key, func(tx *redis.Tx) error {
		session, err := s.read(ctx, tx, key)
		if err != nil {
			return err
		}
		if session.Status != domain.SessionStarted {
			return domain.ErrAlreadyCompleted
		}
		session.Draft = append([]int(nil), answers...)
		raw, err := json.Marshal(session)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key(key), raw, s.expiry())
			return nil
		})
		return err
	})
}

func (s *SessionStore) Complete(ctx context.Context, key domain.SessionKey, at time.Time) (domain.AttemptSession, error) {
	var out domain.AttemptSession
	err := s.cas(ctx, key, func(tx *redis.Tx) error {
		session, err := s.read(ctx, tx, key)
		if err != nil {
			return err
		}
		if session.Status != domain.SessionStarted {
			return domain.ErrAlreadyCompleted
		}
		session.Status = domain.SessionCompleted
		session.CompletedAt = &at
		raw, err := json.Marshal(session)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key(key), raw, s.retention)
			pipe.ZRem(ctx, deadlineIndex, key.String())
			return nil
		})
		out = session
		return err
	})
	if err != nil {
		return domain.AttemptSession{}, err
	}
	return out, nil
}

func (s *SessionStore) ListExpired(ctx context.Context, before time.Time) ([]domain.AttemptSession, error) {
	members, err := s.client.ZRangeByScore(ctx, deadlineIndex, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range deadlines: %w", err)
	}
	out := make([]domain.AttemptSession, 0, len(members))
	for _, member := range members {
		key := domain.ParseSessionKey(member)
		session, err := s.read(ctx, s.client, key)
		if errors.Is(err, domain.ErrSessionNotFound) {
			// expired by retention
			s.client.ZRem(ctx, deadlineIndex, member)
			continue
		}
		if err != nil {
			return nil, err
		}
		if session.Status == domain.SessionStarted {
			out = append(out, session)
		}
	}
	return out, nil
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// cas runs fn under WATCH on the session key and retries when another writer wins.
func (s *SessionStore) cas(ctx context.Context, key domain.SessionKey, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxCASRetries; i++ {
		err := s.client.Watch(ctx, fn, s.key(key))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("session %s: too much contention", key)
}

func (s *SessionStore) read(ctx context.Context, c getter, key domain.SessionKey) (domain.AttemptSession, error) {
	raw, err := c.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AttemptSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.AttemptSession{}, fmt.Errorf("get session %s: %w", key, err)
	}
	var session domain.AttemptSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.AttemptSession{}, fmt.Errorf("decode session %s: %w", key, err)
	}
	return session, nil
}

func (s *SessionStore) expiry() time.Duration {
	if s.retention <= 0 {
		return 0
	}
	return redis.KeepTTL
}

func (s *SessionStore) key(key domain.SessionKey) string {
	return sessionPrefix + key.String()
}

func deadlineScore(t time.Time) float64 {
	return float64(t.UnixMilli())
}
