package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gatepass-backend/internal/model"
)

type CredentialRepository interface {
	Upsert(ctx context.Context, credential *model.PayeeCredential) error
	Get(ctx context.Context, payeeCode string) (*model.PayeeCredential, error)
	ClearTokens(ctx context.Context, payeeCode string) error
}

type credentialRepoImpl struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepoImpl{
		db: db,
	}
}

func (r *credentialRepoImpl) Upsert(ctx context.Context, credential *model.PayeeCredential) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoUpdates: clause.Assignments(map[string]interface{}{
			"access_token":     credential.AccessToken,
			"refresh_token":    credential.RefreshToken,
			"token_expires_at": credential.TokenExpiresAt,
			"scope":            credential.Scope,
			"updated_at":       time.Now(),
		}),
	}).Create(&credential).Error
}

func (r *credentialRepoImpl) Get(ctx context.Context, payeeCode string) (*model.PayeeCredential, error) {
	var credential model.PayeeCredential
	err := r.db.WithContext(ctx).
		Where("payee_code = ?", payeeCode).
		First(&credential).Error
	if err != nil {
		return nil, err
	}

	return &credential, nil
}

// ClearTokens is the explicit disconnect path; the row itself stays for audit.
func (r *credentialRepoImpl) ClearTokens(ctx context.Context, payeeCode string) error {
	result := r.db.
		WithContext(ctx).
		Model(&model.PayeeCredential{}).
		Where("payee_code = ?", payeeCode).
		Updates(map[string]interface{}{
			"access_token":     "",
			"refresh_token":    "",
			"token_expires_at": nil,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
