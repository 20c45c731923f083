package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"gatepass-backend/internal/client"
	"gatepass-backend/internal/dto"
	"gatepass-backend/internal/model"
	"gatepass-backend/internal/repository"
	"gatepass-backend/internal/service"
)

func seedEvent(t *testing.T, db *gorm.DB, payeeCode string) *model.Event {
	t.Helper()

	event := &model.Event{
		ID:          "evt-1",
		Name:        "Midnight Concert",
		PayeeCode:   payeeCode,
		TicketPrice: 1250,
		StartsAt:    time.Now().Add(30 * 24 * time.Hour),
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

func newTestCheckoutService(t *testing.T, db *gorm.DB, provider *fakeProvider) service.CheckoutService {
	t.Helper()

	return service.NewCheckoutService(
		db,
		provider,
		&fakeCredentials{},
		repository.NewOrderRepository(db),
		repository.NewCheckoutRepository(db),
		"https://shop.example.com",
		2*time.Hour,
		zap.NewNop(),
	)
}

func TestCreateCheckout_PersistsOrderAndCheckoutPair(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProvider{}
	svc := newTestCheckoutService(t, db, provider)

	event := seedEvent(t, db, "organizer-7")

	resp, err := svc.CreateCheckout(context.Background(), &dto.CreateCheckoutRequest{
		EventID:       event.ID,
		CustomerEmail: "customer@example.com",
		TicketCount:   2,
		Amount:        2500,
		Currency:      "EUR",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.OrderID)
	require.NotEmpty(t, resp.ProviderCheckoutID)

	var order model.Order
	require.NoError(t, db.First(&order, "id = ?", resp.OrderID).Error)
	require.Equal(t, model.OrderStatusPendingVerification, order.Status)
	require.EqualValues(t, 2500, order.TotalAmount)
	require.Equal(t, 2, order.TicketCount)
	require.False(t, order.IsPaid)

	var checkout model.PaymentCheckout
	require.NoError(t, db.First(&checkout, "order_id = ?", resp.OrderID).Error)
	require.Equal(t, model.CheckoutStatusCreated, checkout.Status)
	require.EqualValues(t, 2500, checkout.Amount)
	require.Equal(t, "organizer-7", checkout.PayeeCode)
	require.True(t, checkout.ShouldPoll)
	require.EqualValues(t, 7200, checkout.MaxPollDuration)
}

func TestCreateCheckout_TamperedAmountIsRejectedBeforeProviderCall(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestCheckoutService(t, db, &fakeProvider{})

	event := seedEvent(t, db, "organizer-7")

	// 2 tickets at 1250 make 2500; the client claims 100.
	_, err := svc.CreateCheckout(context.Background(), &dto.CreateCheckoutRequest{
		EventID:       event.ID,
		CustomerEmail: "customer@example.com",
		TicketCount:   2,
		Amount:        100,
		Currency:      "EUR",
	})

	var mismatch *client.AmountMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.EqualValues(t, 2500, mismatch.Expected)
	require.EqualValues(t, 100, mismatch.Actual)

	// Nothing may be persisted for a rejected request.
	var orders int64
	require.NoError(t, db.Model(&model.Order{}).Count(&orders).Error)
	require.Zero(t, orders)
}

func TestCreateCheckout_RejectsNonPositiveInput(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestCheckoutService(t, db, &fakeProvider{})

	seedEvent(t, db, "")

	_, err := svc.CreateCheckout(context.Background(), &dto.CreateCheckoutRequest{
		EventID: "evt-1", TicketCount: 0, Amount: 2500, Currency: "EUR",
	})
	require.Error(t, err)

	_, err = svc.CreateCheckout(context.Background(), &dto.CreateCheckoutRequest{
		EventID: "evt-1", TicketCount: 1, Amount: 0, Currency: "EUR",
	})
	require.Error(t, err)
}

func TestCreateCheckout_UnknownEventFails(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestCheckoutService(t, db, &fakeProvider{})

	_, err := svc.CreateCheckout(context.Background(), &dto.CreateCheckoutRequest{
		EventID: "missing", TicketCount: 1, Amount: 2500, Currency: "EUR",
	})
	require.Error(t, err)
}
