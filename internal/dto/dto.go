package dto

// CycleStats summarizes one polling cycle.
type CycleStats struct {
	Verified     int `json:"verified"`
	Failed       int `json:"failed"`
	StillPending int `json:"still_pending"`
	Errors       int `json:"errors"`
}

type CreateCheckoutRequest struct {
	EventID       string `json:"event_id"`
	CustomerEmail string `json:"customer_email"`
	TicketCount   int    `json:"ticket_count"`
	Amount        int64  `json:"amount"` // minor units
	Currency      string `json:"currency"`
}

type CreateCheckoutResponse struct {
	OrderID            string `json:"order_id"`
	OrderNumber        string `json:"order_number"`
	ProviderCheckoutID string `json:"provider_checkout_id"`
}

type ConnectPayeeRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}
