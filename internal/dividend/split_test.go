package dividend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookledger-io/equity-ledger/internal/types"
)

func TestCalculateSplit(t *testing.T) {
	holders := []Holder{
		{UserID: "a", Balance: 750, PayoutHandle: "a@pay"},
		{UserID: "b", Balance: 250, PayoutHandle: "b@pay"},
	}

	result, err := CalculateSplit(SplitInput{
		TokenID:     "tok",
		Currency:    "USD",
		TotalAmount: 100000,
		MinPayment:  1,
		Splits: []Split{
			{Name: "holders", Percentage: 70, Holders: holders},
			{Name: "treasury", Percentage: 30, FixedAddress: "treasury-addr"},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Distributions, 1)
	assert.Equal(t, int64(70000), result.Distributions[0].TotalAmount)
	assert.Equal(t, int64(52500), result.Distributions[0].Payments[0].Amount)
	assert.Equal(t, int64(17500), result.Distributions[0].Payments[1].Amount)

	require.Len(t, result.FixedPayments, 1)
	assert.Equal(t, "treasury-addr", result.FixedPayments[0].Address)
	assert.Equal(t, int64(30000), result.FixedPayments[0].Amount)
}

func TestCalculateSplitValidation(t *testing.T) {
	holders := []Holder{{UserID: "a", Balance: 100, PayoutHandle: "a@pay"}}

	t.Run("sum must be 100", func(t *testing.T) {
		_, err := CalculateSplit(SplitInput{
			TokenID:     "tok",
			Currency:    "USD",
			TotalAmount: 10000,
			Splits: []Split{
				{Name: "holders", Percentage: 50, Holders: holders},
				{Name: "treasury", Percentage: 40, FixedAddress: "addr"},
			},
		})
		assert.True(t, types.IsTierSumError(err))
	})

	t.Run("split needs a destination", func(t *testing.T) {
		_, err := CalculateSplit(SplitInput{
			TokenID:     "tok",
			Currency:    "USD",
			TotalAmount: 10000,
			Splits:      []Split{{Name: "empty", Percentage: 100}},
		})
		assert.True(t, types.IsValidationError(err))
	})
}

func TestSimulate(t *testing.T) {
	sim, err := Simulate(DistributionInput{
		TokenID:     "tok",
		Currency:    "USD",
		TotalAmount: 100000,
		MinPayment:  1,
		Holders: []Holder{
			{UserID: "a", Balance: 500, PayoutHandle: "a@pay"},
			{UserID: "b", Balance: 300, PayoutHandle: "b@pay"},
			{UserID: "c", Balance: 200, PayoutHandle: "c@pay"},
			{UserID: "unlinked", Balance: 100},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, sim.Summary.HolderCount)
	assert.Equal(t, 3, sim.Summary.PaymentCount)
	assert.Equal(t, 1, sim.Summary.ExcludedCount)

	// 1100 eligible tokens; per-token 90.909090...
	assert.Equal(t, int64(18182), sim.Summary.MinPayment)
	assert.Equal(t, int64(45455), sim.Summary.MaxPayment)
	assert.Equal(t, int64(27273), sim.Summary.MedianPayment)
}
