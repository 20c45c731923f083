package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gatepass-backend/internal/model"
	"gatepass-backend/internal/repository"
	"gatepass-backend/internal/service"
)

func TestFinalize_Completed_IssuesTicketsAndNotifiesOnce(t *testing.T) {
	db := setupTestDB(t)
	notifier := &fakeNotifier{}
	alerter := &fakeAlerter{}
	finalizer := newTestFinalizer(t, db, notifier, alerter)

	order, checkout := seedOrderWithCheckout(t, db, 2500, "EUR", func(o *model.Order, _ *model.PaymentCheckout) {
		o.TicketCount = 3
	})

	require.NoError(t, finalizer.Finalize(context.Background(), order.ID, service.CompletedOutcome()))

	var got model.Order
	require.NoError(t, db.First(&got, "id = ?", order.ID).Error)
	require.Equal(t, model.OrderStatusCompleted, got.Status)
	require.True(t, got.IsPaid)
	require.NotNil(t, got.PaidAt)

	var gotCheckout model.PaymentCheckout
	require.NoError(t, db.First(&gotCheckout, "id = ?", checkout.ID).Error)
	require.Equal(t, model.CheckoutStatusPaid, gotCheckout.Status)
	require.False(t, gotCheckout.ShouldPoll)

	tickets, err := repository.NewTicketRepository(db).FindByOrderID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, tickets, 3)

	require.Eventually(t, func() bool {
		return notifier.succeeded.Load() == 1
	}, time.Second, 10*time.Millisecond)
	require.Empty(t, alerter.recorded())
}

func TestFinalize_SecondCallIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	notifier := &fakeNotifier{}
	alerter := &fakeAlerter{}
	finalizer := newTestFinalizer(t, db, notifier, alerter)

	order, _ := seedOrderWithCheckout(t, db, 2500, "EUR", nil)

	require.NoError(t, finalizer.Finalize(context.Background(), order.ID, service.CompletedOutcome()))
	require.NoError(t, finalizer.Finalize(context.Background(), order.ID, service.CompletedOutcome()))

	ticketCount, err := repository.NewTicketRepository(db).CountByOrderID(context.Background(), order.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, ticketCount)

	require.Eventually(t, func() bool {
		return notifier.succeeded.Load() == 1
	}, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 1, notifier.succeeded.Load())
}

func TestFinalize_TerminalStatusIsNeverOverwritten(t *testing.T) {
	db := setupTestDB(t)
	notifier := &fakeNotifier{}
	alerter := &fakeAlerter{}
	finalizer := newTestFinalizer(t, db, notifier, alerter)

	order, _ := seedOrderWithCheckout(t, db, 2500, "EUR", nil)

	require.NoError(t, finalizer.Finalize(context.Background(), order.ID, service.FailedOutcome("declined")))
	// A later, conflicting outcome must not win.
	require.NoError(t, finalizer.Finalize(context.Background(), order.ID, service.CompletedOutcome()))

	var got model.Order
	require.NoError(t, db.First(&got, "id = ?", order.ID).Error)
	require.Equal(t, model.OrderStatusFailed, got.Status)
	require.False(t, got.IsPaid)

	ticketCount, err := repository.NewTicketRepository(db).CountByOrderID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Zero(t, ticketCount)
}

func TestFinalize_ConcurrentCallsIssueTicketsOnce(t *testing.T) {
	db := setupTestDB(t)
	notifier := &fakeNotifier{}
	alerter := &fakeAlerter{}
	finalizer := newTestFinalizer(t, db, notifier, alerter)

	order, _ := seedOrderWithCheckout(t, db, 2500, "EUR", func(o *model.Order, _ *model.PaymentCheckout) {
		o.TicketCount = 2
	})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// One of the two may lose the race and no-op; neither may
			// produce a second transition.
			_ = finalizer.Finalize(context.Background(), order.ID, service.CompletedOutcome())
		}()
	}
	wg.Wait()

	var got model.Order
	require.NoError(t, db.First(&got, "id = ?", order.ID).Error)
	require.Equal(t, model.OrderStatusCompleted, got.Status)

	ticketCount, err := repository.NewTicketRepository(db).CountByOrderID(context.Background(), order.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, ticketCount)

	require.Eventually(t, func() bool {
		return notifier.succeeded.Load() >= 1
	}, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 1, notifier.succeeded.Load())
}

func TestFinalize_FailedOutcome(t *testing.T) {
	db := setupTestDB(t)
	notifier := &fakeNotifier{}
	alerter := &fakeAlerter{}
	finalizer := newTestFinalizer(t, db, notifier, alerter)

	order, checkout := seedOrderWithCheckout(t, db, 2500, "EUR", nil)

	require.NoError(t, finalizer.Finalize(context.Background(), order.ID, service.FailedOutcome("provider reported payment failed")))

	var got model.Order
	require.NoError(t, db.First(&got, "id = ?", order.ID).Error)
	require.Equal(t, model.OrderStatusFailed, got.Status)

	var gotCheckout model.PaymentCheckout
	require.NoError(t, db.First(&gotCheckout, "id = ?", checkout.ID).Error)
	require.Equal(t, model.CheckoutStatusFailed, gotCheckout.Status)
	require.False(t, gotCheckout.ShouldPoll)

	require.Eventually(t, func() bool {
		return notifier.failed.Load() == 1
	}, time.Second, 10*time.Millisecond)
	require.Zero(t, notifier.succeeded.Load())
}

func TestFinalize_ExpiredOutcomeAlertsOperator(t *testing.T) {
	db := setupTestDB(t)
	notifier := &fakeNotifier{}
	alerter := &fakeAlerter{}
	finalizer := newTestFinalizer(t, db, notifier, alerter)

	order, checkout := seedOrderWithCheckout(t, db, 2500, "EUR", nil)

	require.NoError(t, finalizer.Finalize(context.Background(), order.ID, service.ExpiredOutcome("pending for 125m")))

	var got model.Order
	require.NoError(t, db.First(&got, "id = ?", order.ID).Error)
	require.Equal(t, model.OrderStatusExpired, got.Status)

	var gotCheckout model.PaymentCheckout
	require.NoError(t, db.First(&gotCheckout, "id = ?", checkout.ID).Error)
	require.Equal(t, model.CheckoutStatusExpired, gotCheckout.Status)
	require.False(t, gotCheckout.ShouldPoll)

	alerts := alerter.recorded()
	require.Len(t, alerts, 1)
	require.Equal(t, service.SeverityWarning, alerts[0].Severity)
	require.Contains(t, alerts[0].Detail, order.OrderNumber)
	require.Zero(t, notifier.succeeded.Load())
	require.Zero(t, notifier.failed.Load())
}

func TestFinalize_ReviewOutcomeSkipsTicketsAndCustomerMail(t *testing.T) {
	db := setupTestDB(t)
	notifier := &fakeNotifier{}
	alerter := &fakeAlerter{}
	finalizer := newTestFinalizer(t, db, notifier, alerter)

	order, checkout := seedOrderWithCheckout(t, db, 2500, "EUR", nil)

	require.NoError(t, finalizer.Finalize(context.Background(), order.ID,
		service.ReviewOutcome("paid amount mismatch: expected 2500 EUR, provider reports 2000 EUR")))

	var got model.Order
	require.NoError(t, db.First(&got, "id = ?", order.ID).Error)
	require.Equal(t, model.OrderStatusManualReview, got.Status)
	require.False(t, got.IsPaid)

	// The checkout's provider-side status stays unresolved; only polling stops.
	var gotCheckout model.PaymentCheckout
	require.NoError(t, db.First(&gotCheckout, "id = ?", checkout.ID).Error)
	require.False(t, gotCheckout.ShouldPoll)
	require.Equal(t, model.CheckoutStatusCreated, gotCheckout.Status)

	ticketCount, err := repository.NewTicketRepository(db).CountByOrderID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Zero(t, ticketCount)

	alerts := alerter.recorded()
	require.Len(t, alerts, 1)
	require.Equal(t, service.SeverityCritical, alerts[0].Severity)
	require.Zero(t, notifier.succeeded.Load())
	require.Zero(t, notifier.failed.Load())
}
