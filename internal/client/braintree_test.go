package client

import (
	"testing"

	"github.com/braintree-go/braintree-go"
	"github.com/stretchr/testify/require"
)

func TestBraintreeDecimalToMinorUnits(t *testing.T) {
	cases := []struct {
		name     string
		unscaled int64
		scale    int
		want     int64
	}{
		{"two decimal places", 2500, 2, 2500},
		{"whole units", 25, 0, 2500},
		{"one decimal place", 250, 1, 2500},
		{"trailing sub-cent zeros", 25000, 3, 2500},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := braintreeDecimalToMinorUnits(&braintree.Decimal{Unscaled: tc.unscaled, Scale: tc.scale})
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestBraintreeDecimalToMinorUnits_SubCentPrecisionFailsClosed(t *testing.T) {
	// 25.001 must never collapse to 2500 minor units; a truncated amount would
	// pass the exact-equality check against a 25.00 order.
	_, err := braintreeDecimalToMinorUnits(&braintree.Decimal{Unscaled: 25001, Scale: 3})
	require.Error(t, err)
	require.Contains(t, err.Error(), "sub-cent")

	_, err = braintreeDecimalToMinorUnits(&braintree.Decimal{Unscaled: 250015, Scale: 4})
	require.Error(t, err)
}

func TestMapBraintreeStatus(t *testing.T) {
	require.Equal(t, StatusPaid, mapBraintreeStatus("settled"))

	for _, s := range []string{"authorized", "submitted_for_settlement", "settling", "settlement_pending"} {
		require.Equal(t, StatusPending, mapBraintreeStatus(s), s)
	}
	for _, s := range []string{"processor_declined", "gateway_rejected", "failed", "voided"} {
		require.Equal(t, StatusFailed, mapBraintreeStatus(s), s)
	}

	// Unknown statuses map to empty so the caller fails closed.
	require.Empty(t, mapBraintreeStatus("disputed"))
}
