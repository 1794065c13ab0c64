package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rewards-terminal/internal/config"
	"rewards-terminal/internal/models"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session not found")

// RedisService keeps the ephemeral state that must survive across gin
// workers: authenticated terminal sessions and rate-limit counters. Player
// snapshots never go here.
type RedisService struct {
	client *redis.Client
}

func NewRedisService(ctx context.Context, cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisService{client: client}, nil
}

func (s *RedisService) StoreUserSession(ctx context.Context, session *models.UserSession, expiry time.Duration) error {
	key := fmt.Sprintf(KeyUserSession, session.Identity, session.SessionID)

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return s.client.Set(ctx, key, data, expiry).Err()
}

// GetUserSession loads a session and refreshes its last-accessed time
// without extending the expiry.
func (s *RedisService) GetUserSession(ctx context.Context, identity models.Identity, sessionID string) (*models.UserSession, error) {
	key := fmt.Sprintf(KeyUserSession, identity, sessionID)

	data, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.UserSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	session.LastAccessed = time.Now()
	if updated, err := json.Marshal(session); err == nil {
		s.client.SetArgs(ctx, key, updated, redis.SetArgs{KeepTTL: true})
	}

	return &session, nil
}

func (s *RedisService) DeleteUserSession(ctx context.Context, identity models.Identity, sessionID string) error {
	key := fmt.Sprintf(KeyUserSession, identity, sessionID)
	return s.client.Del(ctx, key).Err()
}

// CheckRateLimit counts one action for identity in a fixed window and reports
// whether it is still within limit.
func (s *RedisService) CheckRateLimit(ctx context.Context, identity models.Identity, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, identity, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) ClearRateLimit(ctx context.Context, identity models.Identity, action string) error {
	key := fmt.Sprintf(KeyRateLimit, identity, action)
	return s.client.Del(ctx, key).Err()
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
