package client

import "fmt"

// ProviderUnavailableError marks a transient provider failure: network error,
// timeout, 5xx, or a response that failed validation. The caller retries on a
// later cycle; it is never collapsed into an "assume failed" outcome.
type ProviderUnavailableError struct {
	Op  string
	Err error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider unavailable during %s: %v", e.Op, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}

// AmountMismatchError is security-critical: the amount seen at a trust
// boundary does not match the expected order total.
type AmountMismatchError struct {
	Expected int64
	Actual   int64
	Currency string
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch: expected %d %s, got %d", e.Expected, e.Currency, e.Actual)
}
