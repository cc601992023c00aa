package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/auth"

	"github.com/redis/go-redis/v9"
)

// Store keeps login sessions and revoked token ids in redis with a TTL.
type Store struct {
	Client *redis.Client
}

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

func NewStore(client *redis.Client) *Store {
	return &Store{Client: client}
}

func (s *Store) Close() error {
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func revokedKey(tokenID string) string {
	return fmt.Sprintf("revoked_token:%s", tokenID)
}

func (s *Store) CreateSession(ctx context.Context, session auth.Session, ttl time.Duration) (string, error) {
	id, err := auth.NewSessionID()
	if err != nil {
		return "", err
	}

	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.Client.Set(ctx, sessionKey(id), sessionJSON, ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to set session in redis: %w", err)
	}
	return id, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (auth.Session, error) {
	val, err := s.Client.Get(ctx, sessionKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var session auth.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return auth.Session{}, fmt.Errorf("failed to unmarshal session from redis: %w", err)
	}
	return session, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := s.Client.Del(ctx, sessionKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

func (s *Store) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.Client.Set(ctx, revokedKey(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token in redis: %w", err)
	}
	return nil
}

func (s *Store) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.Client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token in redis: %w", err)
	}
	return n > 0, nil
}

var _ auth.SessionStore = (*Store)(nil)
