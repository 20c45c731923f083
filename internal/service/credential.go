package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gatepass-backend/internal/cache"
	"gatepass-backend/internal/client"
	"gatepass-backend/internal/model"
	"gatepass-backend/internal/repository"
)

// PlatformPayee selects the platform-wide credential instead of a connected
// organizer's token set.
const PlatformPayee = ""

// platformCacheKey keeps the platform token addressable in the shared cache.
const platformCacheKey = "__platform__"

// CredentialError means no usable access token could be produced for the
// payee: the refresh token is revoked, expired, or missing. The caller decides
// whether to fall back to the platform credential.
type CredentialError struct {
	PayeeCode string
	Err       error
}

func (e *CredentialError) Error() string {
	if e.PayeeCode == PlatformPayee {
		return fmt.Sprintf("platform credential unavailable: %v", e.Err)
	}
	return fmt.Sprintf("credential unavailable for payee %s: %v", e.PayeeCode, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// CredentialManager returns currently valid provider access tokens, refreshing
// transparently when a cached or stored token is inside the safety margin of
// its expiry.
type CredentialManager interface {
	GetToken(ctx context.Context, payeeCode string) (string, error)
	Invalidate(ctx context.Context, payeeCode string) error
}

type credentialManagerImpl struct {
	oauthClient    client.OAuthClient
	credentialRepo repository.CredentialRepository
	tokenCache     cache.TokenCache
	safetyMargin   time.Duration
	logger         *zap.Logger
	now            func() time.Time

	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

func NewCredentialManager(
	oauthClient client.OAuthClient,
	credentialRepo repository.CredentialRepository,
	tokenCache cache.TokenCache,
	safetyMargin time.Duration,
	logger *zap.Logger,
) CredentialManager {
	return &credentialManagerImpl{
		oauthClient:    oauthClient,
		credentialRepo: credentialRepo,
		tokenCache:     tokenCache,
		safetyMargin:   safetyMargin,
		logger:         logger,
		now:            time.Now,
		inflight:       make(map[string]*sync.Mutex),
	}
}

func cacheKeyFor(payeeCode string) string {
	if payeeCode == PlatformPayee {
		return platformCacheKey
	}
	return payeeCode
}

// payeeLock returns the per-payee refresh mutex, so concurrent GetToken calls
// for one payee trigger at most one refresh request.
func (m *credentialManagerImpl) payeeLock(payeeCode string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.inflight[payeeCode]
	if !ok {
		lock = &sync.Mutex{}
		m.inflight[payeeCode] = lock
	}
	return lock
}

func (m *credentialManagerImpl) GetToken(ctx context.Context, payeeCode string) (string, error) {
	key := cacheKeyFor(payeeCode)

	if token, ok := m.cachedToken(ctx, key); ok {
		return token, nil
	}

	lock := m.payeeLock(key)
	lock.Lock()
	defer lock.Unlock()

	// Another caller may have refreshed while this one waited on the lock.
	if token, ok := m.cachedToken(ctx, key); ok {
		return token, nil
	}

	if payeeCode == PlatformPayee {
		return m.platformToken(ctx)
	}
	return m.payeeToken(ctx, payeeCode)
}

func (m *credentialManagerImpl) cachedToken(ctx context.Context, key string) (string, bool) {
	cached, ok, err := m.tokenCache.Get(ctx, key)
	if err != nil {
		// A broken cache degrades to a refresh, never to a failure.
		m.logger.Warn("token cache read failed", zap.String("payee", key), zap.Error(err))
		return "", false
	}
	if !ok || m.now().After(cached.ExpiresAt.Add(-m.safetyMargin)) {
		return "", false
	}
	return cached.AccessToken, true
}

func (m *credentialManagerImpl) platformToken(ctx context.Context) (string, error) {
	token, err := m.oauthClient.ClientCredentialsToken(ctx)
	if err != nil {
		return "", &CredentialError{PayeeCode: PlatformPayee, Err: err}
	}

	m.storeInCache(ctx, platformCacheKey, token)
	return token.AccessToken, nil
}

func (m *credentialManagerImpl) payeeToken(ctx context.Context, payeeCode string) (string, error) {
	credential, err := m.credentialRepo.Get(ctx, payeeCode)
	if err != nil {
		return "", &CredentialError{PayeeCode: payeeCode, Err: fmt.Errorf("load credential: %w", err)}
	}
	if !credential.Connected() {
		return "", &CredentialError{PayeeCode: payeeCode, Err: fmt.Errorf("payee disconnected")}
	}

	// The stored access token is reused while it stays outside the safety
	// margin; otherwise it is refreshed with the stored refresh token.
	if credential.TokenExpiresAt != nil &&
		m.now().Before(credential.TokenExpiresAt.Add(-m.safetyMargin)) &&
		credential.AccessToken != "" {
		m.cacheStored(ctx, payeeCode, credential)
		return credential.AccessToken, nil
	}

	token, err := m.oauthClient.RefreshToken(ctx, credential.RefreshToken)
	if err != nil {
		return "", &CredentialError{PayeeCode: payeeCode, Err: fmt.Errorf("refresh: %w", err)}
	}

	expiresAt := m.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	refreshToken := token.RefreshToken
	if refreshToken == "" {
		// Providers may rotate refresh tokens or keep the old one valid.
		refreshToken = credential.RefreshToken
	}

	if err := m.credentialRepo.Upsert(ctx, &model.PayeeCredential{
		PayeeCode:      payeeCode,
		AccessToken:    token.AccessToken,
		RefreshToken:   refreshToken,
		TokenExpiresAt: &expiresAt,
		Scope:          token.Scope,
	}); err != nil {
		// The refreshed token is still valid for this cycle even if
		// persisting it failed.
		m.logger.Error("persist refreshed credential failed",
			zap.String("payee", payeeCode),
			zap.Error(err))
	}

	m.storeInCache(ctx, payeeCode, token)
	return token.AccessToken, nil
}

func (m *credentialManagerImpl) storeInCache(ctx context.Context, key string, token *model.SumUpToken) {
	expiresAt := m.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	ttl := time.Until(expiresAt.Add(-m.safetyMargin))
	if ttl <= 0 {
		return
	}

	err := m.tokenCache.Set(ctx, key, &cache.CachedToken{
		AccessToken: token.AccessToken,
		ExpiresAt:   expiresAt,
	}, ttl)
	if err != nil {
		m.logger.Warn("token cache write failed", zap.String("payee", key), zap.Error(err))
	}
}

func (m *credentialManagerImpl) cacheStored(ctx context.Context, payeeCode string, credential *model.PayeeCredential) {
	ttl := time.Until(credential.TokenExpiresAt.Add(-m.safetyMargin))
	if ttl <= 0 {
		return
	}

	err := m.tokenCache.Set(ctx, payeeCode, &cache.CachedToken{
		AccessToken: credential.AccessToken,
		ExpiresAt:   *credential.TokenExpiresAt,
	}, ttl)
	if err != nil {
		m.logger.Warn("token cache write failed", zap.String("payee", payeeCode), zap.Error(err))
	}
}

func (m *credentialManagerImpl) Invalidate(ctx context.Context, payeeCode string) error {
	return m.tokenCache.Delete(ctx, cacheKeyFor(payeeCode))
}
