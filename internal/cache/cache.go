package cache

import (
	"context"
	"time"
)

// CachedToken is what the credential manager keeps per payee between refresh
// calls. ExpiresAt is the provider-side token expiry; the cache TTL is set
// below it so a cache hit is always a usable token.
type CachedToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenCache is a per-payee access-token cache with TTL semantics. The
// in-memory implementation serves single-instance deployments and tests; the
// redis implementation shares tokens between instances.
type TokenCache interface {
	Get(ctx context.Context, payeeCode string) (*CachedToken, bool, error)
	Set(ctx context.Context, payeeCode string, token *CachedToken, ttl time.Duration) error
	Delete(ctx context.Context, payeeCode string) error
}
