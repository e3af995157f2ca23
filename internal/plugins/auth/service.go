package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FarkasZalan/Novo-sub000/internal/apperror"
)

// sessionKeyPrefix is the Redis key prefix for session data.
const sessionKeyPrefix = "session:"

// AuthService validates session tokens against the shared session store.
type AuthService interface {
	ValidateSession(ctx context.Context, token string) (*Session, error)
}

// authService implements AuthService with Redis-backed sessions.
type authService struct {
	redis      *redis.Client
	sessionTTL time.Duration
}

// NewAuthService creates a new auth service. sessionTTL is used to slide the
// expiry of sessions that are still in use.
func NewAuthService(rdb *redis.Client, sessionTTL time.Duration) AuthService {
	return &authService{redis: rdb, sessionTTL: sessionTTL}
}

// ValidateSession looks up a session token in Redis and returns the session
// data if it exists and hasn't expired. A session without a user id is
// treated as invalid.
func (s *authService) ValidateSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, apperror.NewUnauthorized("session token is required")
	}

	key := sessionKeyPrefix + token
	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.NewUnauthorized("session expired or invalid")
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("reading session from Redis: %w", err))
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("unmarshaling session: %w", err))
	}
	if session.UserID == "" {
		return nil, apperror.NewUnauthorized("session expired or invalid")
	}

	if s.sessionTTL > 0 {
		// Best effort; a failed refresh only shortens the session.
		_ = s.redis.Expire(ctx, key, s.sessionTTL).Err()
	}

	return &session, nil
}
