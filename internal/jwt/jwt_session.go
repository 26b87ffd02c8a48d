package jwt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const sessionKeyPrefix = "agent_session:"

// SessionStore keeps live sessions. Touch slides the expiry forward.
type SessionStore interface {
	Save(ctx context.Context, session Session, ttl time.Duration) error
	Touch(ctx context.Context, sessionID string, ttl time.Duration) (Session, error)
	Delete(ctx context.Context, sessionID string) error
}

type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Save(ctx context.Context, session Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+session.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Touch(ctx context.Context, sessionID string, ttl time.Duration) (Session, error) {
	key := sessionKeyPrefix + sessionID

	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return Session{}, ErrSessionNotFound
	} else if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return Session{}, fmt.Errorf("invalid session data: %w", err)
	}

	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("failed to update session expiration: %w", err)
	}
	return session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

// MemorySessionStore is the single-process store used in development and tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	now      func() time.Time
}

type memorySession struct {
	session   Session
	expiresAt time.Time
}

func NewMemorySessionStore(now func() time.Time) *MemorySessionStore {
	if now == nil {
		now = time.Now
	}
	return &MemorySessionStore{
		sessions: make(map[string]memorySession),
		now:      now,
	}
}

func (s *MemorySessionStore) Save(ctx context.Context, session Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = memorySession{session: session, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemorySessionStore) Touch(ctx context.Context, sessionID string, ttl time.Duration) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	now := s.now()
	if !now.Before(entry.expiresAt) {
		delete(s.sessions, sessionID)
		return Session{}, ErrSessionNotFound
	}
	entry.expiresAt = now.Add(ttl)
	s.sessions[sessionID] = entry
	return entry.session, nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
