package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound is returned for unknown, expired or already used tokens.
var ErrTokenNotFound = errors.New("verification token not found")

// TokenStore keeps short-lived one-time tokens mapped to a user id.
type TokenStore interface {
	Put(ctx context.Context, token, userID string, ttl time.Duration) error
	// Consume returns the user id and deletes the token.
	Consume(ctx context.Context, token string) (string, error)
}

// RedisTokenStore stores tokens as expiring keys.
type RedisTokenStore struct {
	client *redis.Client
	prefix string
}

// NewRedisTokenStore builds the store; prefix namespaces the keys.
func NewRedisTokenStore(client *redis.Client, prefix string) *RedisTokenStore {
	return &RedisTokenStore{client: client, prefix: prefix}
}

func (s *RedisTokenStore) Put(ctx context.Context, token, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+token, userID, ttl).Err()
}

// Consume uses GETDEL so a token can be redeemed only once.
func (s *RedisTokenStore) Consume(ctx context.Context, token string) (string, error) {
	userID, err := s.client.GetDel(ctx, s.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	return userID, err
}

// MemoryTokenStore is the in-process TokenStore used without Redis.
type MemoryTokenStore struct {
	mu     sync.Mutex
	now    func() time.Time
	tokens map[string]storedToken
}

type storedToken struct {
	userID    string
	expiresAt time.Time
}

// NewMemoryTokenStore builds the store. A nil now uses time.Now.
func NewMemoryTokenStore(now func() time.Time) *MemoryTokenStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryTokenStore{now: now, tokens: make(map[string]storedToken)}
}

func (s *MemoryTokenStore) Put(_ context.Context, token, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = storedToken{userID: userID, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryTokenStore) Consume(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tokens[token]
	delete(s.tokens, token)
	if !ok || !s.now().Before(stored.expiresAt) {
		return "", ErrTokenNotFound
	}
	return stored.userID, nil
}

// PostgresTokenStore keeps tokens in email_verification_tokens. It is used
// when Redis is unavailable; used and expired rows stay for auditing.
type PostgresTokenStore struct {
	pool *pgxpool.Pool
}

// NewPostgresTokenStore builds the store.
func NewPostgresTokenStore(pool *pgxpool.Pool) *PostgresTokenStore {
	return &PostgresTokenStore{pool: pool}
}

func (s *PostgresTokenStore) Put(ctx context.Context, token, userID string, ttl time.Duration) error {
	const query = `
        INSERT INTO email_verification_tokens (user_id, token, expires_at)
        VALUES ($1, $2, $3)`
	_, err := s.pool.Exec(ctx, query, userID, token, time.Now().UTC().Add(ttl))
	return err
}

// Consume marks the token used in the same statement that reads it.
func (s *PostgresTokenStore) Consume(ctx context.Context, token string) (string, error) {
	const query = `
        UPDATE email_verification_tokens SET used_at = NOW()
        WHERE token = $1 AND used_at IS NULL AND expires_at > NOW()
        RETURNING user_id::text`
	var userID string
	if err := s.pool.QueryRow(ctx, query, token).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrTokenNotFound
		}
		return "", err
	}
	return userID, nil
}
