package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gatepass-backend/internal/model"
	"gatepass-backend/internal/repository"
)

// TicketIssuer produces the ticket records for a completed order. It runs
// inside the finalize transaction, so issuance commits or rolls back together
// with the order's terminal transition.
type TicketIssuer interface {
	IssueForOrder(ctx context.Context, tx *gorm.DB, order *model.Order) ([]*model.Ticket, error)
}

type ticketIssuerImpl struct {
	ticketRepo repository.TicketRepository
}

func NewTicketIssuer(ticketRepo repository.TicketRepository) TicketIssuer {
	return &ticketIssuerImpl{
		ticketRepo: ticketRepo,
	}
}

func (s *ticketIssuerImpl) IssueForOrder(ctx context.Context, tx *gorm.DB, order *model.Order) ([]*model.Ticket, error) {
	count := order.TicketCount
	if count <= 0 {
		return nil, fmt.Errorf("order %s has no tickets to issue", order.OrderNumber)
	}

	now := time.Now()
	tickets := make([]*model.Ticket, count)
	for i := range tickets {
		tickets[i] = &model.Ticket{
			ID:       uuid.NewString(),
			OrderID:  order.ID,
			EventID:  order.EventID,
			Code:     uuid.NewString(),
			IssuedAt: now,
		}
	}

	if err := s.ticketRepo.CreateBatch(ctx, tx, tickets); err != nil {
		return nil, fmt.Errorf("store tickets: %w", err)
	}

	return tickets, nil
}
