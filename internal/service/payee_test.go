package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gatepass-backend/internal/cache"
	"gatepass-backend/internal/model"
	"gatepass-backend/internal/repository"
	"gatepass-backend/internal/service"
)

func TestPayeeLifecycle_ConnectStatusDisconnect(t *testing.T) {
	db := setupTestDB(t)
	credentialRepo := repository.NewCredentialRepository(db)
	manager := service.NewCredentialManager(
		&fakeOAuth{},
		credentialRepo,
		cache.NewMemoryCache(),
		5*time.Minute,
		zap.NewNop(),
	)
	svc := service.NewPayeeService(credentialRepo, manager)

	require.NoError(t, svc.ConnectPayee(context.Background(), "organizer-7", &model.SumUpToken{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresIn:    3600,
		Scope:        "payments",
	}))

	connected, err := svc.IsConnected(context.Background(), "organizer-7")
	require.NoError(t, err)
	require.True(t, connected)

	require.NoError(t, svc.Disconnect(context.Background(), "organizer-7"))

	connected, err = svc.IsConnected(context.Background(), "organizer-7")
	require.NoError(t, err)
	require.False(t, connected)

	// Tokens are cleared, the row itself stays for audit.
	var credential model.PayeeCredential
	require.NoError(t, db.First(&credential, "payee_code = ?", "organizer-7").Error)
	require.Empty(t, credential.AccessToken)
	require.Empty(t, credential.RefreshToken)
}
