package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Refresh markers live exactly as long as the refresh tokens they validate.
const refreshMarkerTTL = 7 * 24 * time.Hour

// RedisRevocationRepo implements domain.RevocationStore using Redis.
//
// Two key families, both independent single keys so Redis's native per-key
// atomicity is all the synchronization needed:
//
//	refresh_token:<userId> -> currently valid refresh token, 7-day TTL
//	blacklist:<token>      -> "1", TTL = the token's remaining lifetime
type RedisRevocationRepo struct {
	client *redis.Client
}

// NewRedisRevocationRepo creates a new repository instance.
func NewRedisRevocationRepo(client *redis.Client) *RedisRevocationRepo {
	return &RedisRevocationRepo{client: client}
}

func refreshKey(userID string) string {
	return fmt.Sprintf("refresh_token:%s", userID)
}

func blacklistKey(token string) string {
	return fmt.Sprintf("blacklist:%s", token)
}

// SetRefreshValid records token as the single valid refresh token for the
// user, replacing whatever was there before. Last writer wins.
func (r *RedisRevocationRepo) SetRefreshValid(ctx context.Context, userID, token string) error {
	if err := r.client.Set(ctx, refreshKey(userID), token, refreshMarkerTTL).Err(); err != nil {
		return fmt.Errorf("failed to store refresh marker: %w", err)
	}
	return nil
}

// IsRefreshValid reports whether token exactly matches the stored marker.
// A missing marker is an ordinary mismatch, not an error.
func (r *RedisRevocationRepo) IsRefreshValid(ctx context.Context, userID, token string) (bool, error) {
	stored, err := r.client.Get(ctx, refreshKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis error: %w", err)
	}
	return stored == token, nil
}

// InvalidateRefresh deletes the user's refresh marker. Deleting a marker
// that does not exist is a no-op.
func (r *RedisRevocationRepo) InvalidateRefresh(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, refreshKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate refresh marker: %w", err)
	}
	return nil
}

// BlacklistAccessToken stores a revocation entry that expires together with
// the token itself. Callers only invoke this with ttl > 0; an entry must
// never outlive the token it blacklists.
func (r *RedisRevocationRepo) BlacklistAccessToken(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("blacklist ttl must be positive, got %s", ttl)
	}
	if err := r.client.Set(ctx, blacklistKey(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	return nil
}

// IsBlacklisted reports whether the access token has been revoked.
func (r *RedisRevocationRepo) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return n == 1, nil
}
