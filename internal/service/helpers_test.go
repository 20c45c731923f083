package service_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"gatepass-backend/internal/client"
	"gatepass-backend/internal/metrics"
	"gatepass-backend/internal/model"
	"gatepass-backend/internal/repository"
	"gatepass-backend/internal/service"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// _txlock=immediate makes concurrent transactions serialize at BEGIN,
	// which is the closest SQLite gets to row-level FOR UPDATE semantics.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000&_txlock=immediate",
		uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Event{},
		&model.Order{},
		&model.PaymentCheckout{},
		&model.PayeeCredential{},
		&model.Ticket{},
	))

	return db
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

// seedOrderWithCheckout creates a pending order/checkout pair the way the
// checkout creation flow would.
func seedOrderWithCheckout(t *testing.T, db *gorm.DB, amount int64, currency string, mutate func(*model.Order, *model.PaymentCheckout)) (*model.Order, *model.PaymentCheckout) {
	t.Helper()

	order := &model.Order{
		ID:            uuid.NewString(),
		OrderNumber:   "GP-" + uuid.NewString()[:8],
		EventID:       "evt-1",
		Status:        model.OrderStatusPendingVerification,
		TotalAmount:   amount,
		Currency:      currency,
		TicketCount:   1,
		CustomerEmail: "customer@example.com",
		CreatedAt:     time.Now(),
	}
	checkout := &model.PaymentCheckout{
		ID:                 uuid.NewString(),
		OrderID:            order.ID,
		Amount:             amount,
		Currency:           currency,
		ProviderCheckoutID: "prov-" + uuid.NewString()[:8],
		Status:             model.CheckoutStatusCreated,
		ShouldPoll:         true,
		PollingStartedAt:   time.Now(),
		MaxPollDuration:    7200,
	}
	if mutate != nil {
		mutate(order, checkout)
	}

	require.NoError(t, db.Create(order).Error)
	require.NoError(t, db.Create(checkout).Error)

	return order, checkout
}

type fakeProvider struct {
	mu       sync.Mutex
	statusFn func(providerCheckoutID string) (*client.CheckoutStatus, error)
	calls    int
}

func (f *fakeProvider) CreateCheckout(_ context.Context, _ string, params client.CreateCheckoutParams) (*client.CreateCheckoutResult, error) {
	if params.Amount != params.ExpectedAmount {
		return nil, &client.AmountMismatchError{
			Expected: params.ExpectedAmount,
			Actual:   params.Amount,
			Currency: params.Currency,
		}
	}
	return &client.CreateCheckoutResult{
		ProviderCheckoutID: "prov-" + params.Reference,
		Status:             client.StatusPending,
	}, nil
}

func (f *fakeProvider) GetCheckoutStatus(_ context.Context, _ string, providerCheckoutID string) (*client.CheckoutStatus, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.statusFn(providerCheckoutID)
}

func (f *fakeProvider) statusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func paidStatus(amount int64, currency string) func(string) (*client.CheckoutStatus, error) {
	return func(string) (*client.CheckoutStatus, error) {
		now := time.Now()
		return &client.CheckoutStatus{
			Status:     client.StatusPaid,
			PaidAmount: amount,
			Currency:   currency,
			PaidAt:     &now,
		}, nil
	}
}

func pendingStatus() func(string) (*client.CheckoutStatus, error) {
	return func(string) (*client.CheckoutStatus, error) {
		return &client.CheckoutStatus{Status: client.StatusPending}, nil
	}
}

type fakeCredentials struct {
	tokenFn func(payeeCode string) (string, error)
}

func (f *fakeCredentials) GetToken(_ context.Context, payeeCode string) (string, error) {
	if f.tokenFn != nil {
		return f.tokenFn(payeeCode)
	}
	return "test-token", nil
}

func (f *fakeCredentials) Invalidate(context.Context, string) error {
	return nil
}

type recordedAlert struct {
	Severity service.Severity
	Subject  string
	Detail   string
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []recordedAlert
}

func (f *fakeAlerter) Alert(_ context.Context, severity service.Severity, subject string, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, recordedAlert{Severity: severity, Subject: subject, Detail: detail})
}

func (f *fakeAlerter) recorded() []recordedAlert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedAlert(nil), f.alerts...)
}

type fakeNotifier struct {
	succeeded atomic.Int64
	failed    atomic.Int64
}

func (f *fakeNotifier) NotifyPaymentSucceeded(context.Context, *model.Order) {
	f.succeeded.Add(1)
}

func (f *fakeNotifier) NotifyPaymentFailed(context.Context, *model.Order) {
	f.failed.Add(1)
}

func newTestFinalizer(t *testing.T, db *gorm.DB, notifier service.NotificationService, alerter service.Alerter) service.OrderFinalizer {
	t.Helper()

	return service.NewOrderFinalizer(
		db,
		repository.NewOrderRepository(db),
		repository.NewCheckoutRepository(db),
		service.NewTicketIssuer(repository.NewTicketRepository(db)),
		notifier,
		alerter,
		zap.NewNop(),
	)
}
