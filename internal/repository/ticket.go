package repository

import (
	"context"

	"gorm.io/gorm"

	"gatepass-backend/internal/model"
)

type TicketRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, tickets []*model.Ticket) error
	CountByOrderID(ctx context.Context, orderID string) (int64, error)
	FindByOrderID(ctx context.Context, orderID string) ([]*model.Ticket, error)
}

type ticketRepoImpl struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepoImpl{
		db: db,
	}
}

func (r *ticketRepoImpl) CreateBatch(ctx context.Context, tx *gorm.DB, tickets []*model.Ticket) error {
	return tx.WithContext(ctx).Create(&tickets).Error
}

func (r *ticketRepoImpl) CountByOrderID(ctx context.Context, orderID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Ticket{}).
		Where("order_id = ?", orderID).
		Count(&count).Error

	return count, err
}

func (r *ticketRepoImpl) FindByOrderID(ctx context.Context, orderID string) ([]*model.Ticket, error) {
	var tickets []*model.Ticket
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Find(&tickets).Error

	if err != nil {
		return nil, err
	}

	return tickets, nil
}
