package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/identity-service/internal/core/ports"
)

// TokenStore tracks issued token ids per account and keeps a denylist of
// revoked ids until the tokens would have expired anyway.
//
// Keys:
//
//	identity:tokens:<account_id>  set of "<jti>|<exp_unix>"
//	identity:revoked:<jti>        "1", TTL = remaining token lifetime
type TokenStore struct {
	client *redis.Client
	maxTTL time.Duration
	now    func() time.Time
}

// NewTokenStore creates a TokenStore. maxTTL bounds how long the per-account
// set lives and should match the token lifetime.
func NewTokenStore(client *redis.Client, maxTTL time.Duration) *TokenStore {
	return &TokenStore{client: client, maxTTL: maxTTL, now: time.Now}
}

var _ ports.TokenStore = (*TokenStore)(nil)

func (s *TokenStore) Track(ctx context.Context, accountID string, t *ports.IssuedToken) error {
	key := s.accountKey(accountID)
	member := fmt.Sprintf("%s|%d", t.ID, t.ExpiresAt.Unix())

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, key, member)
	pipe.Expire(ctx, key, s.setTTL(t.ExpiresAt))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("track token: %w", err)
	}
	return nil
}

// revokeScript denylists every tracked token and drops the account set in one
// step, so a token tracked concurrently either lands in this batch or in a
// fresh set for the next revocation.
//
//	KEYS[1]  account set
//	ARGV[1]  now, unix seconds
//	ARGV[2]  TTL in seconds for members without an expiry
//	ARGV[3]  denylist key prefix
var revokeScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local fallback = tonumber(ARGV[2])
local revoked = 0
for _, m in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  local id, exp = string.match(m, '^(.*)|(-?%d+)$')
  local ttl = fallback
  if not id then
    id = m
  elseif tonumber(exp) ~= 0 then
    ttl = tonumber(exp) - now
  end
  if ttl > 0 then
    redis.call('SET', ARGV[3] .. id, '1', 'EX', ttl)
    revoked = revoked + 1
  end
end
redis.call('DEL', KEYS[1])
return revoked
`)

func (s *TokenStore) RevokeAll(ctx context.Context, accountID string) error {
	fallback := int64(s.maxTTL / time.Second)
	if fallback <= 0 {
		fallback = int64(time.Minute / time.Second)
	}
	keys := []string{s.accountKey(accountID)}
	if err := revokeScript.Run(ctx, s.client, keys, s.now().Unix(), fallback, revokedPrefix).Err(); err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	return nil
}

func (s *TokenStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("revocation check: %w", err)
	}
	return n > 0, nil
}

func (s *TokenStore) setTTL(exp time.Time) time.Duration {
	ttl := exp.Sub(s.now())
	if ttl < s.maxTTL {
		ttl = s.maxTTL
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return ttl
}

const (
	accountPrefix = "identity:tokens:"
	revokedPrefix = "identity:revoked:"
)

func (s *TokenStore) accountKey(accountID string) string {
	return accountPrefix + accountID
}

func (s *TokenStore) revokedKey(tokenID string) string {
	return revokedPrefix + tokenID
}
