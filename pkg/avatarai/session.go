package avatarai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Session is the generation state the OpenAI backend keeps per response.
type Session struct {
	Prompt      string            `json:"prompt"`
	Ratings     []json.RawMessage `json:"ratings"`
	FinalPrompt string            `json:"finalPrompt"`
	Size        int               `json:"size"`
}

// SessionStore persists generation sessions between rounds.
type SessionStore interface {
	Load(ctx context.Context, responseID string) (Session, bool, error)
	Save(ctx context.Context, responseID string, session Session) error
}

// RedisSessionStore keeps sessions as JSON values with a sliding TTL.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSessionStore wraps a Redis client. A zero ttl keeps sessions for a day.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSessionStore{client: client, prefix: "avatair:session:", ttl: ttl}
}

func (s *RedisSessionStore) Load(ctx context.Context, responseID string) (Session, bool, error) {
	payload, err := s.client.Get(ctx, s.prefix+responseID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return session, true, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, responseID string, session Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+responseID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
