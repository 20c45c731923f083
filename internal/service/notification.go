package service

import (
	"context"

	"go.uber.org/zap"

	"gatepass-backend/internal/model"
)

// NotificationService sends customer-facing messages about an order's outcome.
// It is called after the finalize transaction commits, off the lock; failures
// are logged only.
type NotificationService interface {
	NotifyPaymentSucceeded(ctx context.Context, order *model.Order)
	NotifyPaymentFailed(ctx context.Context, order *model.Order)
}

// logNotificationService stands in for the real mail delivery pipeline, which
// runs as a separate system. It records what would have been sent.
type logNotificationService struct {
	logger *zap.Logger
}

func NewLogNotificationService(logger *zap.Logger) NotificationService {
	return &logNotificationService{
		logger: logger,
	}
}

func (s *logNotificationService) NotifyPaymentSucceeded(_ context.Context, order *model.Order) {
	s.logger.Info("payment success notification",
		zap.String("order_number", order.OrderNumber),
		zap.String("customer", order.CustomerEmail))
}

func (s *logNotificationService) NotifyPaymentFailed(_ context.Context, order *model.Order) {
	s.logger.Info("payment failure notification",
		zap.String("order_number", order.OrderNumber),
		zap.String("customer", order.CustomerEmail))
}
