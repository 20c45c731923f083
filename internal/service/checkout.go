package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"gatepass-backend/internal/client"
	"gatepass-backend/internal/dto"
	"gatepass-backend/internal/model"
	"gatepass-backend/internal/repository"
)

// CheckoutService is the upstream creation flow: it opens a provider checkout
// and persists the Order/PaymentCheckout pair the polling engine will later
// verify. Amount and currency written here are final; nothing downstream may
// change them.
type CheckoutService interface {
	CreateCheckout(ctx context.Context, req *dto.CreateCheckoutRequest) (*dto.CreateCheckoutResponse, error)
}

type checkoutServiceImpl struct {
	db           *gorm.DB
	provider     client.ProviderClient
	credentials  CredentialManager
	orderRepo    repository.OrderRepository
	checkoutRepo repository.CheckoutRepository
	baseURL      string
	maxPollWait  time.Duration
	logger       *zap.Logger
}

func NewCheckoutService(
	db *gorm.DB,
	provider client.ProviderClient,
	credentials CredentialManager,
	orderRepo repository.OrderRepository,
	checkoutRepo repository.CheckoutRepository,
	baseURL string,
	maxPollWait time.Duration,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutServiceImpl{
		db:           db,
		provider:     provider,
		credentials:  credentials,
		orderRepo:    orderRepo,
		checkoutRepo: checkoutRepo,
		baseURL:      baseURL,
		maxPollWait:  maxPollWait,
		logger:       logger,
	}
}

func (s *checkoutServiceImpl) findEvent(ctx context.Context, eventID string) (*model.Event, error) {
	var event model.Event
	err := s.db.WithContext(ctx).Where("id = ?", eventID).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func newOrderNumber() string {
	return "GP-" + strings.ToUpper(uuid.NewString()[:8])
}

func (s *checkoutServiceImpl) CreateCheckout(ctx context.Context, req *dto.CreateCheckoutRequest) (*dto.CreateCheckoutResponse, error) {
	if req.TicketCount <= 0 {
		return nil, fmt.Errorf("ticket count must be positive")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	event, err := s.findEvent(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if event.TicketPrice <= 0 {
		return nil, fmt.Errorf("event %s has no ticket price", event.ID)
	}

	// The total is derived from the catalog price, never taken from the
	// request. The request amount is what the client claims it is paying;
	// divergence is caught before any provider call.
	expectedTotal := event.TicketPrice * int64(req.TicketCount)

	token, err := s.credentials.GetToken(ctx, event.PayeeCode)
	if err != nil {
		return nil, fmt.Errorf("resolve credentials: %w", err)
	}

	orderID := uuid.NewString()
	checkoutID := uuid.NewString()
	orderNumber := newOrderNumber()

	result, err := s.provider.CreateCheckout(ctx, token, client.CreateCheckoutParams{
		Amount:         req.Amount,
		Currency:       req.Currency,
		Reference:      checkoutID,
		Description:    fmt.Sprintf("Tickets for %s (%s)", event.Name, orderNumber),
		ReturnURL:      fmt.Sprintf("%s/api/checkouts/%s/return", s.baseURL, checkoutID),
		PayeeCode:      event.PayeeCode,
		ExpectedAmount: expectedTotal,
	})
	if err != nil {
		return nil, fmt.Errorf("provider create checkout: %w", err)
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, &model.Order{
			ID:            orderID,
			OrderNumber:   orderNumber,
			EventID:       event.ID,
			Status:        model.OrderStatusPendingVerification,
			TotalAmount:   expectedTotal,
			Currency:      req.Currency,
			TicketCount:   req.TicketCount,
			CustomerEmail: req.CustomerEmail,
		}); err != nil {
			return fmt.Errorf("store order: %w", err)
		}

		if err := s.checkoutRepo.Create(ctx, tx, &model.PaymentCheckout{
			ID:                 checkoutID,
			OrderID:            orderID,
			PayeeCode:          event.PayeeCode,
			Amount:             expectedTotal,
			Currency:           req.Currency,
			ProviderCheckoutID: result.ProviderCheckoutID,
			Status:             model.CheckoutStatusCreated,
			ShouldPoll:         true,
			PollingStartedAt:   now,
			MaxPollDuration:    int64(s.maxPollWait.Seconds()),
		}); err != nil {
			return fmt.Errorf("store checkout: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("checkout created",
		zap.String("order_number", orderNumber),
		zap.String("provider_checkout_id", result.ProviderCheckoutID))

	return &dto.CreateCheckoutResponse{
		OrderID:            orderID,
		OrderNumber:        orderNumber,
		ProviderCheckoutID: result.ProviderCheckoutID,
	}, nil
}
