package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gatepass-backend/internal/config"
	"gatepass-backend/internal/model"
)

// SumupClient talks to the SumUp REST API. It implements both ProviderClient
// and OAuthClient.
type SumupClient interface {
	ProviderClient
	OAuthClient
}

type sumupClientImpl struct {
	httpClient     *http.Client
	baseApiURL     string
	clientID       string
	clientSecret   string
	requestTimeout time.Duration
}

const statusRetryAttempts = 2

func NewSumupClient(sumupCfg *config.SumUp, requestTimeout time.Duration) SumupClient {
	return &sumupClientImpl{
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		baseApiURL:     sumupCfg.BaseApiURL,
		clientID:       sumupCfg.ClientID,
		clientSecret:   sumupCfg.ClientSecret,
		requestTimeout: requestTimeout,
	}
}

func (c *sumupClientImpl) tokenRequest(ctx context.Context, form url.Values) (*model.SumUpToken, error) {
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sumup token error %d: %s", resp.StatusCode, string(b))
	}

	var token model.SumUpToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	return &token, nil
}

func (c *sumupClientImpl) RefreshToken(ctx context.Context, refreshToken string) (*model.SumUpToken, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	token, err := c.tokenRequest(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("refresh token grant: %w", err)
	}
	return token, nil
}

func (c *sumupClientImpl) ClientCredentialsToken(ctx context.Context) (*model.SumUpToken, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	token, err := c.tokenRequest(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("client credentials grant: %w", err)
	}
	return token, nil
}

func (c *sumupClientImpl) CreateCheckout(ctx context.Context, accessToken string, params CreateCheckoutParams) (*CreateCheckoutResult, error) {
	// Tamper guard at the trust boundary: the amount sent to the provider
	// must equal the order total computed by the order flow.
	if params.Amount != params.ExpectedAmount {
		return nil, &AmountMismatchError{
			Expected: params.ExpectedAmount,
			Actual:   params.Amount,
			Currency: params.Currency,
		}
	}

	payload := map[string]interface{}{
		"checkout_reference": params.Reference,
		"amount":             minorUnitsToAmount(params.Amount),
		"currency":           params.Currency,
		"merchant_code":      params.PayeeCode,
		"description":        params.Description,
		"return_url":         params.ReturnURL,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/v0.1/checkouts",
		bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	// Creation is never retried: a duplicate request would open a second
	// provider-side checkout for the same order.
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderUnavailableError{Op: "create checkout", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sumup create checkout error %d: %s", resp.StatusCode, string(b))
	}

	var result model.SumUpCheckout
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode create checkout response: %w", err)
	}
	if result.ID == "" {
		return nil, fmt.Errorf("create checkout response missing id")
	}

	return &CreateCheckoutResult{
		ProviderCheckoutID: result.ID,
		Status:             result.Status,
	}, nil
}

func (c *sumupClientImpl) GetCheckoutStatus(ctx context.Context, accessToken string, providerCheckoutID string) (*CheckoutStatus, error) {
	var lastErr error

	for attempt := 1; attempt <= statusRetryAttempts; attempt++ {
		status, err := c.getCheckoutOnce(ctx, accessToken, providerCheckoutID)
		if err == nil {
			return status, nil
		}
		lastErr = err

		if attempt < statusRetryAttempts {
			select {
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			case <-ctx.Done():
				return nil, &ProviderUnavailableError{Op: "get checkout status", Err: ctx.Err()}
			}
		}
	}

	return nil, &ProviderUnavailableError{Op: "get checkout status", Err: lastErr}
}

func (c *sumupClientImpl) getCheckoutOnce(ctx context.Context, accessToken string, providerCheckoutID string) (*CheckoutStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v0.1/checkouts/%s", c.baseApiURL, providerCheckoutID),
		nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sumup get checkout error %d: %s", resp.StatusCode, string(b))
	}

	var checkout model.SumUpCheckout
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&checkout); err != nil {
		return nil, fmt.Errorf("decode checkout response: %w", err)
	}

	return validateCheckout(&checkout)
}

// validateCheckout maps the provider resource onto the strict contract.
// Unknown statuses and unparseable amounts fail closed so they are retried
// next cycle instead of being mistaken for an outcome.
func validateCheckout(checkout *model.SumUpCheckout) (*CheckoutStatus, error) {
	var status string
	switch checkout.Status {
	case model.SumUpStatusPending:
		status = StatusPending
	case model.SumUpStatusPaid:
		status = StatusPaid
	case model.SumUpStatusFailed:
		status = StatusFailed
	default:
		return nil, fmt.Errorf("unexpected checkout status %q", checkout.Status)
	}

	result := &CheckoutStatus{Status: status}

	if status != StatusPaid {
		return result, nil
	}

	if checkout.Currency == "" {
		return nil, fmt.Errorf("paid checkout missing currency")
	}
	paidAmount, err := amountToMinorUnits(checkout.Amount)
	if err != nil {
		return nil, fmt.Errorf("paid checkout amount: %w", err)
	}

	result.PaidAmount = paidAmount
	result.Currency = checkout.Currency
	result.PaidAt = latestSuccessfulTransaction(checkout.Transactions)

	return result, nil
}

func latestSuccessfulTransaction(transactions []model.SumUpTransaction) *time.Time {
	var latest *time.Time
	for _, tx := range transactions {
		if tx.Status != "SUCCESSFUL" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, tx.Timestamp)
		if err != nil {
			continue
		}
		if latest == nil || ts.After(*latest) {
			latest = &ts
		}
	}
	return latest
}
