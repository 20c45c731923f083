package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gatepass-backend/internal/model"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	FindByID(ctx context.Context, id string) (*model.Order, error)
	LockForUpdate(ctx context.Context, tx *gorm.DB, id string) (*model.Order, error)
	SetTerminalStatus(ctx context.Context, tx *gorm.DB, id string, status string, isPaid bool, paidAt *time.Time) error
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

// LockForUpdate reads the order under an exclusive row lock. Two concurrent
// finalizations of the same order serialize here; the loser re-reads a
// terminal status and backs off. SQLite has no FOR UPDATE; there the
// transaction-level write lock provides the exclusivity.
func (r *orderRepoImpl) LockForUpdate(ctx context.Context, tx *gorm.DB, id string) (*model.Order, error) {
	q := tx.WithContext(ctx)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var order model.Order
	err := q.
		Where("id = ?", id).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

// SetTerminalStatus writes the one allowed transition out of
// PENDING_VERIFICATION. The status guard in the WHERE clause is a second
// line of defense behind the lock-and-recheck in the finalizer.
func (r *orderRepoImpl) SetTerminalStatus(ctx context.Context, tx *gorm.DB, id string, status string, isPaid bool, paidAt *time.Time) error {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", id).
		Where("status = ?", model.OrderStatusPendingVerification).
		Updates(map[string]interface{}{
			"status":     status,
			"is_paid":    isPaid,
			"paid_at":    paidAt,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
