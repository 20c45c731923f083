package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"gatepass-backend/internal/model"
)

type CheckoutRepository interface {
	Create(ctx context.Context, tx *gorm.DB, checkout *model.PaymentCheckout) error
	FindByID(ctx context.Context, id string) (*model.PaymentCheckout, error)
	FindByOrderID(ctx context.Context, orderID string) (*model.PaymentCheckout, error)
	FindPollable(ctx context.Context, now time.Time, limit int) ([]*model.PaymentCheckout, error)
	FindAbandoned(ctx context.Context, now time.Time, limit int) ([]*model.PaymentCheckout, error)
	RecordPollAttempt(ctx context.Context, id string, polledAt time.Time) error
	MarkTerminal(ctx context.Context, tx *gorm.DB, id string, status string) error
	StopPolling(ctx context.Context, tx *gorm.DB, id string) error
	CountStuckPending(ctx context.Context, pendingSince time.Time) (int64, error)
}

type checkoutRepoImpl struct {
	db *gorm.DB
}

func NewCheckoutRepository(db *gorm.DB) CheckoutRepository {
	return &checkoutRepoImpl{
		db: db,
	}
}

func (r *checkoutRepoImpl) Create(ctx context.Context, tx *gorm.DB, checkout *model.PaymentCheckout) error {
	return tx.WithContext(ctx).Create(checkout).Error
}

func (r *checkoutRepoImpl) FindByID(ctx context.Context, id string) (*model.PaymentCheckout, error) {
	var checkout model.PaymentCheckout
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&checkout).Error

	if err != nil {
		return nil, err
	}

	return &checkout, nil
}

func (r *checkoutRepoImpl) FindByOrderID(ctx context.Context, orderID string) (*model.PaymentCheckout, error) {
	var checkout model.PaymentCheckout
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&checkout).Error

	if err != nil {
		return nil, err
	}

	return &checkout, nil
}

// FindPollable selects the per-cycle batch: pollable, non-terminal checkouts
// still inside their poll window, oldest first, capped at limit. Checkouts
// beyond the cap are left untouched for the next cycle. The read is lock-free;
// staleness is corrected by the terminal-order guard during finalization.
func (r *checkoutRepoImpl) FindPollable(ctx context.Context, now time.Time, limit int) ([]*model.PaymentCheckout, error) {
	var checkouts []*model.PaymentCheckout
	err := r.db.WithContext(ctx).
		Where("should_poll = ?", true).
		Where("status IN ?", []string{model.CheckoutStatusCreated, model.CheckoutStatusPending}).
		Where("polling_started_at > ?", now.Add(-maxConceivablePollWindow)).
		Order("polling_started_at ASC").
		Limit(limit).
		Find(&checkouts).Error

	if err != nil {
		return nil, err
	}

	// The per-row poll window is deliberately not part of the WHERE clause:
	// checkouts past their window must be selected one more time so the
	// engine can expire them.
	return checkouts, nil
}

// maxConceivablePollWindow bounds the DB scan; rows older than this are dead
// weight that a previous cycle already expired or flagged.
const maxConceivablePollWindow = 14 * 24 * time.Hour

// FindAbandoned returns non-terminal checkouts that aged out of the pollable
// scan bound, typically because the provider stayed unreachable for the whole
// window. They never reappear in FindPollable, so the cycle must expire them
// explicitly or they would sit in the stuck digest forever.
func (r *checkoutRepoImpl) FindAbandoned(ctx context.Context, now time.Time, limit int) ([]*model.PaymentCheckout, error) {
	var checkouts []*model.PaymentCheckout
	err := r.db.WithContext(ctx).
		Where("should_poll = ?", true).
		Where("status IN ?", []string{model.CheckoutStatusCreated, model.CheckoutStatusPending}).
		Where("polling_started_at <= ?", now.Add(-maxConceivablePollWindow)).
		Order("polling_started_at ASC").
		Limit(limit).
		Find(&checkouts).Error

	if err != nil {
		return nil, err
	}

	return checkouts, nil
}

func (r *checkoutRepoImpl) RecordPollAttempt(ctx context.Context, id string, polledAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.PaymentCheckout{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         model.CheckoutStatusPending,
			"poll_count":     gorm.Expr("poll_count + 1"),
			"last_polled_at": polledAt,
			"updated_at":     time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// MarkTerminal stops polling and records the checkout's final status. Amount
// is deliberately not touched; it stays the authoritative expected value.
func (r *checkoutRepoImpl) MarkTerminal(ctx context.Context, tx *gorm.DB, id string, status string) error {
	return tx.WithContext(ctx).Model(&model.PaymentCheckout{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"should_poll": false,
			"updated_at":  time.Now(),
		}).Error
}

// StopPolling halts polling without claiming a provider-side status; used when
// the order goes to manual review and the true provider state is in question.
func (r *checkoutRepoImpl) StopPolling(ctx context.Context, tx *gorm.DB, id string) error {
	return tx.WithContext(ctx).Model(&model.PaymentCheckout{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"should_poll": false,
			"updated_at":  time.Now(),
		}).Error
}

func (r *checkoutRepoImpl) CountStuckPending(ctx context.Context, pendingSince time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.PaymentCheckout{}).
		Where("should_poll = ?", true).
		Where("status IN ?", []string{model.CheckoutStatusCreated, model.CheckoutStatusPending}).
		Where("polling_started_at < ?", pendingSince).
		Count(&count).Error

	return count, err
}
