package model

import "time"

// Order statuses. An order leaves PENDING_VERIFICATION exactly once and the
// terminal value is never overwritten afterwards.
const (
	OrderStatusPendingVerification = "PENDING_VERIFICATION"
	OrderStatusCompleted           = "COMPLETED"
	OrderStatusFailed              = "FAILED"
	OrderStatusExpired             = "EXPIRED"
	OrderStatusManualReview        = "REQUIRES_MANUAL_REVIEW"
)

// Checkout statuses as tracked locally. The provider reports its own status
// strings; the polling engine maps them onto these.
const (
	CheckoutStatusCreated = "CREATED"
	CheckoutStatusPending = "PENDING"
	CheckoutStatusPaid    = "PAID"
	CheckoutStatusFailed  = "FAILED"
	CheckoutStatusExpired = "EXPIRED"
)

type Event struct {
	ID          string `gorm:"primaryKey;size:64;not null"`
	Name        string `gorm:"size:255;not null"`
	PayeeCode   string `gorm:"size:64;index"` // organizer's provider merchant code, empty = platform
	TicketPrice int64  `gorm:"not null"`      // minor units per ticket
	StartsAt    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Order struct {
	ID            string `gorm:"primaryKey;size:64;not null"`
	OrderNumber   string `gorm:"size:32;uniqueIndex;not null"`
	EventID       string `gorm:"size:64;index;not null"`
	Status        string `gorm:"size:32;index;not null"`
	TotalAmount   int64  `gorm:"not null"` // minor units
	Currency      string `gorm:"size:8;not null"`
	TicketCount   int    `gorm:"not null;default:1"`
	CustomerEmail string `gorm:"size:255;index"`
	IsPaid        bool   `gorm:"not null;default:false"`
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsTerminal reports whether the order already reached a final state.
func (o *Order) IsTerminal() bool {
	return o.Status != OrderStatusPendingVerification
}

// PaymentCheckout is one payment attempt at the provider, 1:1 with an Order.
// Amount is fixed at creation and is the authoritative expected amount for
// tamper checks; only the polling bookkeeping fields and Status are mutated.
type PaymentCheckout struct {
	ID                 string `gorm:"primaryKey;size:64;not null"`
	OrderID            string `gorm:"size:64;uniqueIndex;not null"`
	PayeeCode          string `gorm:"size:64;index"` // empty = platform credential
	Amount             int64  `gorm:"not null"`      // minor units, never mutated
	Currency           string `gorm:"size:8;not null"`
	ProviderCheckoutID string `gorm:"size:128;index;not null"`
	Status             string `gorm:"size:32;index;not null"`
	ShouldPoll         bool   `gorm:"index;not null;default:true"`
	PollCount          int    `gorm:"not null;default:0"`
	LastPolledAt       *time.Time
	PollingStartedAt   time.Time `gorm:"not null"`
	MaxPollDuration    int64     `gorm:"not null"` // seconds
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// MaxPollWindow returns the poll duration as a time.Duration.
func (c *PaymentCheckout) MaxPollWindow() time.Duration {
	return time.Duration(c.MaxPollDuration) * time.Second
}

// PayeeCredential holds the OAuth token set for one connected organizer.
// Disconnection clears the tokens explicitly; rows are never removed.
type PayeeCredential struct {
	PayeeCode      string `gorm:"primaryKey;size:64;not null"`
	AccessToken    string `gorm:"size:2048"`
	RefreshToken   string `gorm:"size:2048"`
	TokenExpiresAt *time.Time
	Scope          string `gorm:"size:255"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Connected reports whether the payee currently has a usable token set.
func (c *PayeeCredential) Connected() bool {
	return c.RefreshToken != ""
}

type Ticket struct {
	ID       string `gorm:"primaryKey;size:64;not null"`
	OrderID  string `gorm:"size:64;index;not null"`
	EventID  string `gorm:"size:64;index;not null"`
	Code     string `gorm:"size:64;uniqueIndex;not null"` // QR payload printed on the ticket
	IssuedAt time.Time
}
