package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gatepass-backend/internal/client"
	"gatepass-backend/internal/dto"
	"gatepass-backend/internal/metrics"
	"gatepass-backend/internal/model"
	"gatepass-backend/internal/repository"
)

// checkoutResult is what processing one checkout contributed to the cycle.
type checkoutResult int

const (
	resultSkipped checkoutResult = iota
	resultVerified
	resultFailed
	resultStillPending
	resultError
)

// PollingService is the scheduler entry point: one RunCycle call selects a
// bounded batch of outstanding checkouts, queries the provider, and routes
// terminal outcomes through the finalizer. The ticker loop and the manual
// admin trigger both call it with identical semantics.
type PollingService interface {
	RunCycle(ctx context.Context) dto.CycleStats
}

type PollingConfig struct {
	BatchSize        int
	Workers          int
	StuckThreshold   time.Duration
	PlatformFallback bool
}

type pollingServiceImpl struct {
	checkoutRepo repository.CheckoutRepository
	orderRepo    repository.OrderRepository
	credentials  CredentialManager
	provider     client.ProviderClient
	finalizer    OrderFinalizer
	alerter      Alerter
	logger       *zap.Logger
	metrics      *metrics.Metrics
	cfg          PollingConfig
	now          func() time.Time

	// cycleMu serializes cycles: the scheduler loop is sequential by
	// construction, but a manual trigger must not overlap it either.
	cycleMu sync.Mutex
}

func NewPollingService(
	checkoutRepo repository.CheckoutRepository,
	orderRepo repository.OrderRepository,
	credentials CredentialManager,
	provider client.ProviderClient,
	finalizer OrderFinalizer,
	alerter Alerter,
	logger *zap.Logger,
	m *metrics.Metrics,
	cfg PollingConfig,
) PollingService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	return &pollingServiceImpl{
		checkoutRepo: checkoutRepo,
		orderRepo:    orderRepo,
		credentials:  credentials,
		provider:     provider,
		finalizer:    finalizer,
		alerter:      alerter,
		logger:       logger,
		metrics:      m,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (s *pollingServiceImpl) RunCycle(ctx context.Context) dto.CycleStats {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	s.metrics.CyclesTotal.Inc()

	var stats dto.CycleStats
	now := s.now()

	s.expireAbandoned(ctx, now, &stats)

	checkouts, err := s.checkoutRepo.FindPollable(ctx, now, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("select pollable checkouts failed", zap.Error(err))
		stats.Errors++
		return stats
	}
	if len(checkouts) == 0 {
		s.reportStuckCheckouts(ctx, now)
		return stats
	}

	s.logger.Info("polling cycle started", zap.Int("batch", len(checkouts)))

	workers := s.cfg.Workers
	if workers > len(checkouts) {
		workers = len(checkouts)
	}

	jobs := make(chan *model.PaymentCheckout)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for checkout := range jobs {
				result := s.processCheckout(ctx, checkout, now)

				mu.Lock()
				switch result {
				case resultVerified:
					stats.Verified++
					s.metrics.CheckoutsProcessed.WithLabelValues("verified").Inc()
				case resultFailed:
					stats.Failed++
					s.metrics.CheckoutsProcessed.WithLabelValues("failed").Inc()
				case resultStillPending:
					stats.StillPending++
					s.metrics.CheckoutsProcessed.WithLabelValues("pending").Inc()
				case resultError:
					stats.Errors++
					s.metrics.CheckoutsProcessed.WithLabelValues("error").Inc()
				case resultSkipped:
					s.metrics.CheckoutsProcessed.WithLabelValues("skipped").Inc()
				}
				mu.Unlock()
			}
		}()
	}

	for _, checkout := range checkouts {
		jobs <- checkout
	}
	close(jobs)
	wg.Wait()

	s.reportStuckCheckouts(ctx, now)

	s.logger.Info("polling cycle finished",
		zap.Int("verified", stats.Verified),
		zap.Int("failed", stats.Failed),
		zap.Int("still_pending", stats.StillPending),
		zap.Int("errors", stats.Errors))

	return stats
}

// processCheckout applies the verification state machine to one checkout. A
// failure here never aborts the rest of the cycle; panics are contained the
// same way.
func (s *pollingServiceImpl) processCheckout(ctx context.Context, checkout *model.PaymentCheckout, now time.Time) (result checkoutResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while processing checkout",
				zap.String("checkout_id", checkout.ID),
				zap.Any("panic", r))
			result = resultError
		}
	}()

	order, err := s.orderRepo.FindByID(ctx, checkout.OrderID)
	if err != nil {
		s.logger.Error("load order failed",
			zap.String("checkout_id", checkout.ID),
			zap.Error(err))
		return resultError
	}

	// The order's terminal status is authoritative over anything the
	// checkout says; a previous cycle or a manual admin action already
	// settled it. Silent no-op.
	if order.IsTerminal() {
		return resultSkipped
	}

	token, err := s.resolveToken(ctx, checkout)
	if err != nil {
		var credErr *CredentialError
		if errors.As(err, &credErr) {
			// Fail closed: without a usable credential the payment state
			// cannot be verified, and only a human can settle it.
			return s.finalizeOutcome(checkout, ReviewOutcome(
				fmt.Sprintf("credentials unavailable: %v", credErr)), resultFailed)
		}
		s.logger.Error("resolve credentials failed",
			zap.String("checkout_id", checkout.ID),
			zap.Error(err))
		return resultError
	}

	// Poll bookkeeping is recorded per attempt, before the provider call, so
	// poll_count reflects attempts even across unreachable cycles.
	if err := s.checkoutRepo.RecordPollAttempt(ctx, checkout.ID, now); err != nil {
		s.logger.Error("record poll attempt failed",
			zap.String("checkout_id", checkout.ID),
			zap.Error(err))
		return resultError
	}

	status, err := s.provider.GetCheckoutStatus(ctx, token, checkout.ProviderCheckoutID)
	if err != nil {
		var unavailable *client.ProviderUnavailableError
		if errors.As(err, &unavailable) {
			// Transient: no status change, no expiry routing, no alert.
			// The checkout is simply picked up again next cycle.
			s.metrics.ProviderErrors.Inc()
			s.logger.Warn("provider unavailable",
				zap.String("checkout_id", checkout.ID),
				zap.Error(err))
			return resultStillPending
		}
		s.logger.Error("status query failed",
			zap.String("checkout_id", checkout.ID),
			zap.Error(err))
		return resultError
	}

	switch status.Status {
	case client.StatusPaid:
		// Exact equality, no epsilon: the stored checkout amount is the
		// authoritative expected value.
		if status.PaidAmount == checkout.Amount && status.Currency == checkout.Currency {
			return s.finalizeOutcome(checkout, CompletedOutcome(), resultVerified)
		}
		s.metrics.AmountMismatches.Inc()
		return s.finalizeOutcome(checkout, ReviewOutcome(
			fmt.Sprintf("paid amount mismatch: expected %d %s, provider reports %d %s",
				checkout.Amount, checkout.Currency, status.PaidAmount, status.Currency)),
			resultFailed)

	case client.StatusFailed:
		return s.finalizeOutcome(checkout, FailedOutcome("provider reported payment failed"), resultFailed)

	default: // still pending at the provider
		if now.Sub(checkout.PollingStartedAt) > checkout.MaxPollWindow() {
			return s.finalizeOutcome(checkout, ExpiredOutcome(
				fmt.Sprintf("pending for %s, window %s",
					now.Sub(checkout.PollingStartedAt).Round(time.Second),
					checkout.MaxPollWindow())),
				resultFailed)
		}
		return resultStillPending
	}
}

// resolveToken picks the payee-specific credential when the organizer is
// connected and falls back to the platform credential when policy allows.
func (s *pollingServiceImpl) resolveToken(ctx context.Context, checkout *model.PaymentCheckout) (string, error) {
	if checkout.PayeeCode == PlatformPayee {
		return s.credentials.GetToken(ctx, PlatformPayee)
	}

	token, err := s.credentials.GetToken(ctx, checkout.PayeeCode)
	if err == nil {
		return token, nil
	}

	var credErr *CredentialError
	if errors.As(err, &credErr) && s.cfg.PlatformFallback {
		s.logger.Warn("falling back to platform credential",
			zap.String("payee", checkout.PayeeCode),
			zap.Error(err))
		return s.credentials.GetToken(ctx, PlatformPayee)
	}

	return "", err
}

func (s *pollingServiceImpl) finalizeOutcome(checkout *model.PaymentCheckout, outcome Outcome, onSuccess checkoutResult) checkoutResult {
	// Finalization must complete even when the cycle's context is being torn
	// down; the transaction is short and the order must not be left half-done.
	if err := s.finalizer.Finalize(context.Background(), checkout.OrderID, outcome); err != nil {
		s.logger.Error("finalize failed",
			zap.String("order_id", checkout.OrderID),
			zap.String("outcome", string(outcome.Kind)),
			zap.Error(err))
		return resultError
	}
	return onSuccess
}

// expireAbandoned finalizes checkouts that aged out of the pollable scan
// bound. Without this they would never be selected again and would count
// toward the stuck digest on every cycle.
func (s *pollingServiceImpl) expireAbandoned(ctx context.Context, now time.Time, stats *dto.CycleStats) {
	abandoned, err := s.checkoutRepo.FindAbandoned(ctx, now, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("select abandoned checkouts failed", zap.Error(err))
		return
	}

	for _, checkout := range abandoned {
		result := s.finalizeOutcome(checkout, ExpiredOutcome(
			fmt.Sprintf("unresolved for %s, window was %s",
				now.Sub(checkout.PollingStartedAt).Round(time.Hour),
				checkout.MaxPollWindow())),
			resultFailed)
		if result == resultFailed {
			stats.Failed++
			s.metrics.CheckoutsProcessed.WithLabelValues("failed").Inc()
		} else {
			stats.Errors++
			s.metrics.CheckoutsProcessed.WithLabelValues("error").Inc()
		}
	}
}

// reportStuckCheckouts raises one digest alert per cycle for checkouts pending
// beyond the soft threshold, instead of one alert per order.
func (s *pollingServiceImpl) reportStuckCheckouts(ctx context.Context, now time.Time) {
	if s.cfg.StuckThreshold <= 0 {
		return
	}

	count, err := s.checkoutRepo.CountStuckPending(ctx, now.Add(-s.cfg.StuckThreshold))
	if err != nil {
		s.logger.Error("count stuck checkouts failed", zap.Error(err))
		return
	}
	if count == 0 {
		return
	}

	s.alerter.Alert(ctx, SeverityWarning,
		"stuck pending checkouts",
		fmt.Sprintf("%d checkouts pending longer than %s", count, s.cfg.StuckThreshold))
}
