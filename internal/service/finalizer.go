package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gatepass-backend/internal/model"
	"gatepass-backend/internal/repository"
)

type OutcomeKind string

const (
	OutcomeCompleted      OutcomeKind = "completed"
	OutcomeFailed         OutcomeKind = "failed"
	OutcomeExpired        OutcomeKind = "expired"
	OutcomeRequiresReview OutcomeKind = "requires_manual_review"
)

// Outcome is the terminal result a code path wants to commit for an order.
// Every path that can terminate an order builds one of these and goes through
// Finalize, so the lock-and-idempotency guard is never bypassed.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

func CompletedOutcome() Outcome {
	return Outcome{Kind: OutcomeCompleted}
}

func FailedOutcome(reason string) Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: reason}
}

func ExpiredOutcome(reason string) Outcome {
	return Outcome{Kind: OutcomeExpired, Reason: reason}
}

func ReviewOutcome(reason string) Outcome {
	return Outcome{Kind: OutcomeRequiresReview, Reason: reason}
}

// OrderFinalizer commits a terminal outcome for an order exactly once.
type OrderFinalizer interface {
	Finalize(ctx context.Context, orderID string, outcome Outcome) error
}

type orderFinalizerImpl struct {
	db           *gorm.DB
	orderRepo    repository.OrderRepository
	checkoutRepo repository.CheckoutRepository
	ticketIssuer TicketIssuer
	notifier     NotificationService
	alerter      Alerter
	logger       *zap.Logger
	now          func() time.Time
}

func NewOrderFinalizer(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	checkoutRepo repository.CheckoutRepository,
	ticketIssuer TicketIssuer,
	notifier NotificationService,
	alerter Alerter,
	logger *zap.Logger,
) OrderFinalizer {
	return &orderFinalizerImpl{
		db:           db,
		orderRepo:    orderRepo,
		checkoutRepo: checkoutRepo,
		ticketIssuer: ticketIssuer,
		notifier:     notifier,
		alerter:      alerter,
		logger:       logger,
		now:          time.Now,
	}
}

// Finalize runs one transaction that locks the order row, re-checks that the
// order is still non-terminal, writes the terminal state, and, for completed
// orders, issues tickets while still holding the lock. Notifications and
// alerts happen after commit, so the lock is never held across slow I/O. If
// anything inside the transaction fails, the order stays non-terminal and the
// next cycle retries cleanly.
func (f *orderFinalizerImpl) Finalize(ctx context.Context, orderID string, outcome Outcome) error {
	var finalized *model.Order

	err := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := f.orderRepo.LockForUpdate(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}

		// Idempotency guard: a previous cycle, a concurrent worker, or a
		// manual admin action may have finished this order already. The
		// existing terminal status is authoritative.
		if order.IsTerminal() {
			return nil
		}

		checkout, err := f.checkoutRepo.FindByOrderID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load checkout: %w", err)
		}

		if err := f.applyOutcome(ctx, tx, order, checkout, outcome); err != nil {
			return err
		}

		finalized = order
		return nil
	})
	if err != nil {
		return fmt.Errorf("finalize order %s: %w", orderID, err)
	}

	// nil finalized means the idempotent no-op path: no side effects.
	if finalized == nil {
		return nil
	}

	f.afterCommit(finalized, outcome)
	return nil
}

func (f *orderFinalizerImpl) applyOutcome(ctx context.Context, tx *gorm.DB, order *model.Order, checkout *model.PaymentCheckout, outcome Outcome) error {
	switch outcome.Kind {
	case OutcomeCompleted:
		paidAt := f.now()
		if err := f.orderRepo.SetTerminalStatus(ctx, tx, order.ID, model.OrderStatusCompleted, true, &paidAt); err != nil {
			return fmt.Errorf("mark order completed: %w", err)
		}
		if err := f.checkoutRepo.MarkTerminal(ctx, tx, checkout.ID, model.CheckoutStatusPaid); err != nil {
			return fmt.Errorf("mark checkout paid: %w", err)
		}
		if _, err := f.ticketIssuer.IssueForOrder(ctx, tx, order); err != nil {
			return fmt.Errorf("issue tickets: %w", err)
		}
		order.Status = model.OrderStatusCompleted
		order.IsPaid = true
		order.PaidAt = &paidAt

	case OutcomeFailed:
		if err := f.orderRepo.SetTerminalStatus(ctx, tx, order.ID, model.OrderStatusFailed, false, nil); err != nil {
			return fmt.Errorf("mark order failed: %w", err)
		}
		if err := f.checkoutRepo.MarkTerminal(ctx, tx, checkout.ID, model.CheckoutStatusFailed); err != nil {
			return fmt.Errorf("mark checkout failed: %w", err)
		}
		order.Status = model.OrderStatusFailed

	case OutcomeExpired:
		if err := f.orderRepo.SetTerminalStatus(ctx, tx, order.ID, model.OrderStatusExpired, false, nil); err != nil {
			return fmt.Errorf("mark order expired: %w", err)
		}
		if err := f.checkoutRepo.MarkTerminal(ctx, tx, checkout.ID, model.CheckoutStatusExpired); err != nil {
			return fmt.Errorf("mark checkout expired: %w", err)
		}
		order.Status = model.OrderStatusExpired

	case OutcomeRequiresReview:
		if err := f.orderRepo.SetTerminalStatus(ctx, tx, order.ID, model.OrderStatusManualReview, false, nil); err != nil {
			return fmt.Errorf("mark order for review: %w", err)
		}
		// The checkout's provider-side state is exactly what is in question,
		// so only polling stops; no status is claimed.
		if err := f.checkoutRepo.StopPolling(ctx, tx, checkout.ID); err != nil {
			return fmt.Errorf("stop polling checkout: %w", err)
		}
		order.Status = model.OrderStatusManualReview

	default:
		return fmt.Errorf("unknown outcome %q", outcome.Kind)
	}

	return nil
}

// afterCommit runs the slow, best-effort side effects once the terminal state
// is durable. Notifications go out asynchronously; alert delivery already
// swallows its own failures.
func (f *orderFinalizerImpl) afterCommit(order *model.Order, outcome Outcome) {
	f.logger.Info("order finalized",
		zap.String("order_number", order.OrderNumber),
		zap.String("outcome", string(outcome.Kind)),
		zap.String("reason", outcome.Reason))

	switch outcome.Kind {
	case OutcomeCompleted:
		go f.notifier.NotifyPaymentSucceeded(context.Background(), order)

	case OutcomeFailed:
		go f.notifier.NotifyPaymentFailed(context.Background(), order)

	case OutcomeExpired:
		f.alerter.Alert(context.Background(), SeverityWarning,
			"order expired without payment",
			fmt.Sprintf("order %s, amount %d %s, age %s",
				order.OrderNumber, order.TotalAmount, order.Currency,
				f.now().Sub(order.CreatedAt).Round(time.Second)))

	case OutcomeRequiresReview:
		// No ticket issuance, no customer success mail, loud operator alert.
		f.alerter.Alert(context.Background(), SeverityCritical,
			"order flagged for manual review",
			fmt.Sprintf("order %s: %s", order.OrderNumber, outcome.Reason))
	}
}
