package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"gatepass-backend/internal/model"
)

// Normalized checkout statuses returned by any provider client.
const (
	StatusPending = "PENDING"
	StatusPaid    = "PAID"
	StatusFailed  = "FAILED"
)

type CreateCheckoutParams struct {
	Amount      int64 // minor units
	Currency    string
	Reference   string // our checkout id, becomes the provider-side reference
	Description string
	ReturnURL   string
	PayeeCode   string // provider merchant to be paid

	// ExpectedAmount is the order total as computed by the order flow.
	// CreateCheckout refuses to call the provider when it differs from Amount.
	ExpectedAmount int64
}

type CreateCheckoutResult struct {
	ProviderCheckoutID string
	Status             string
}

// CheckoutStatus is the strict response contract for a status query. Anything
// the provider returns that cannot be mapped onto it fails closed as
// ProviderUnavailableError.
type CheckoutStatus struct {
	Status     string
	PaidAmount int64 // minor units, meaningful only when Status == StatusPaid
	Currency   string
	PaidAt     *time.Time
}

// ProviderClient is the read/write surface of the payment provider used by
// checkout creation and the polling engine. GetCheckoutStatus is idempotent
// and safe to retry; CreateCheckout is never retried automatically.
type ProviderClient interface {
	CreateCheckout(ctx context.Context, accessToken string, params CreateCheckoutParams) (*CreateCheckoutResult, error)
	GetCheckoutStatus(ctx context.Context, accessToken string, providerCheckoutID string) (*CheckoutStatus, error)
}

// OAuthClient covers the provider's token endpoint, used by the credential
// manager for per-payee refresh and the platform-wide fallback credential.
type OAuthClient interface {
	RefreshToken(ctx context.Context, refreshToken string) (*model.SumUpToken, error)
	ClientCredentialsToken(ctx context.Context) (*model.SumUpToken, error)
}

// amountToMinorUnits parses a provider decimal amount ("25.00") into minor
// units without going through a float. Sub-cent precision is rejected.
func amountToMinorUnits(n json.Number) (int64, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", n.String(), err)
	}
	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, fmt.Errorf("amount %q has sub-cent precision", n.String())
	}
	return cents.IntPart(), nil
}

// minorUnitsToAmount renders minor units as the two-decimal string the
// provider API expects.
func minorUnitsToAmount(v int64) string {
	return decimal.New(v, -2).StringFixed(2)
}
