package model

import "encoding/json"

type SumUpToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

type SumUpTransaction struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// SumUpCheckout is the provider's checkout resource. Amount arrives as a JSON
// number; keep it as json.Number so it can be parsed exactly, without a float
// round trip.
type SumUpCheckout struct {
	ID                string             `json:"id"`
	CheckoutReference string             `json:"checkout_reference"`
	Amount            json.Number        `json:"amount"`
	Currency          string             `json:"currency"`
	MerchantCode      string             `json:"merchant_code"`
	Description       string             `json:"description"`
	ReturnURL         string             `json:"return_url"`
	Status            string             `json:"status"`
	Date              string             `json:"date"`
	Transactions      []SumUpTransaction `json:"transactions"`
}

// Provider-side checkout statuses.
const (
	SumUpStatusPending = "PENDING"
	SumUpStatusPaid    = "PAID"
	SumUpStatusFailed  = "FAILED"
)
