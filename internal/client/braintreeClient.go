package client

import (
	"context"
	"fmt"

	"github.com/braintree-go/braintree-go"

	"gatepass-backend/internal/config"
)

// braintreeClientImpl adapts the Braintree gateway to the ProviderClient
// surface so deployments without a SumUp contract can still run the polling
// engine. Braintree authenticates with static gateway keys, so the access
// token argument is ignored.
type braintreeClientImpl struct {
	gateway *braintree.Braintree
}

func NewBraintreeClient(cfg *config.Braintree) ProviderClient {
	env := braintree.Sandbox
	if cfg.Environment == "production" {
		env = braintree.Production
	}

	gateway := braintree.New(
		env,
		cfg.MerchantID,
		cfg.PublicKey,
		cfg.PrivateKey,
	)

	return &braintreeClientImpl{
		gateway: gateway,
	}
}

func (c *braintreeClientImpl) CreateCheckout(ctx context.Context, _ string, params CreateCheckoutParams) (*CreateCheckoutResult, error) {
	if params.Amount != params.ExpectedAmount {
		return nil, &AmountMismatchError{
			Expected: params.ExpectedAmount,
			Actual:   params.Amount,
			Currency: params.Currency,
		}
	}

	req := &braintree.TransactionRequest{
		Type:    "sale",
		Amount:  braintree.NewDecimal(params.Amount, 2),
		OrderId: params.Reference,
	}

	tx, err := c.gateway.Transaction().Create(ctx, req)
	if err != nil {
		return nil, &ProviderUnavailableError{Op: "create checkout", Err: err}
	}

	return &CreateCheckoutResult{
		ProviderCheckoutID: tx.Id,
		Status:             mapBraintreeStatus(string(tx.Status)),
	}, nil
}

func (c *braintreeClientImpl) GetCheckoutStatus(ctx context.Context, _ string, providerCheckoutID string) (*CheckoutStatus, error) {
	tx, err := c.gateway.Transaction().Find(ctx, providerCheckoutID)
	if err != nil {
		return nil, &ProviderUnavailableError{Op: "get checkout status", Err: err}
	}

	status := mapBraintreeStatus(string(tx.Status))
	if status == "" {
		return nil, &ProviderUnavailableError{
			Op:  "get checkout status",
			Err: fmt.Errorf("unexpected transaction status %q", tx.Status),
		}
	}

	result := &CheckoutStatus{Status: status}
	if status == StatusPaid {
		if tx.Amount == nil {
			return nil, &ProviderUnavailableError{
				Op:  "get checkout status",
				Err: fmt.Errorf("settled transaction missing amount"),
			}
		}
		paidAmount, err := braintreeDecimalToMinorUnits(tx.Amount)
		if err != nil {
			return nil, &ProviderUnavailableError{
				Op:  "get checkout status",
				Err: fmt.Errorf("settled transaction amount: %w", err),
			}
		}
		result.PaidAmount = paidAmount
		result.Currency = tx.CurrencyISOCode
		if tx.UpdatedAt != nil {
			result.PaidAt = tx.UpdatedAt
		}
	}

	return result, nil
}

func mapBraintreeStatus(status string) string {
	switch status {
	case "authorized", "authorizing", "submitted_for_settlement", "settling", "settlement_pending":
		return StatusPending
	case "settled":
		return StatusPaid
	case "processor_declined", "gateway_rejected", "failed", "voided", "authorization_expired", "settlement_declined":
		return StatusFailed
	default:
		return ""
	}
}

// braintreeDecimalToMinorUnits converts a gateway decimal to minor units.
// Sub-cent precision fails closed; truncating it would let a paid amount that
// differs from the order total slip through the exact-equality check.
func braintreeDecimalToMinorUnits(d *braintree.Decimal) (int64, error) {
	v := d.Unscaled
	scale := d.Scale
	for scale < 2 {
		v *= 10
		scale++
	}
	for scale > 2 {
		if v%10 != 0 {
			return 0, fmt.Errorf("amount %d at scale %d has sub-cent precision", d.Unscaled, d.Scale)
		}
		v /= 10
		scale--
	}
	return v, nil
}
