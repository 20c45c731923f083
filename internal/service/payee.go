package service

import (
	"context"
	"time"

	"gatepass-backend/internal/model"
	"gatepass-backend/internal/repository"
)

// PayeeService manages organizer credential lifecycles: storing the token set
// after an OAuth connect, reporting connection state, and explicit disconnect.
type PayeeService interface {
	ConnectPayee(ctx context.Context, payeeCode string, token *model.SumUpToken) error
	IsConnected(ctx context.Context, payeeCode string) (bool, error)
	Disconnect(ctx context.Context, payeeCode string) error
}

type payeeServiceImpl struct {
	credentialRepo repository.CredentialRepository
	credentials    CredentialManager
}

func NewPayeeService(
	credentialRepo repository.CredentialRepository,
	credentials CredentialManager,
) PayeeService {
	return &payeeServiceImpl{
		credentialRepo: credentialRepo,
		credentials:    credentials,
	}
}

func (s *payeeServiceImpl) ConnectPayee(ctx context.Context, payeeCode string, token *model.SumUpToken) error {
	expiresAt := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return s.credentialRepo.Upsert(ctx, &model.PayeeCredential{
		PayeeCode:      payeeCode,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		TokenExpiresAt: &expiresAt,
		Scope:          token.Scope,
	})
}

func (s *payeeServiceImpl) IsConnected(ctx context.Context, payeeCode string) (bool, error) {
	credential, err := s.credentialRepo.Get(ctx, payeeCode)
	if err != nil {
		return false, err
	}
	return credential.Connected(), nil
}

func (s *payeeServiceImpl) Disconnect(ctx context.Context, payeeCode string) error {
	if err := s.credentialRepo.ClearTokens(ctx, payeeCode); err != nil {
		return err
	}
	// Drop any still-cached access token so it cannot outlive the disconnect.
	return s.credentials.Invalidate(ctx, payeeCode)
}
