package dividend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookledger-io/equity-ledger/internal/types"
)

func TestCalculateWaterfall(t *testing.T) {
	seniors := []Holder{
		{UserID: "senior-a", Balance: 600, PayoutHandle: "sa@pay"},
		{UserID: "senior-b", Balance: 400, PayoutHandle: "sb@pay"},
	}
	juniors := []Holder{
		{UserID: "junior-a", Balance: 100, PayoutHandle: "ja@pay"},
	}

	dists, err := CalculateWaterfall(WaterfallInput{
		TokenID:     "tok",
		Currency:    "USD",
		TotalAmount: 100000,
		MinPayment:  1,
		Tiers: []Tier{
			{Name: "senior", Percentage: 70, Holders: seniors},
			{Name: "junior", Percentage: 30, Holders: juniors},
		},
	})
	require.NoError(t, err)
	require.Len(t, dists, 2)

	assert.Equal(t, "senior", dists[0].Tier)
	assert.Equal(t, int64(70000), dists[0].TotalAmount)
	require.Len(t, dists[0].Payments, 2)
	assert.Equal(t, int64(42000), dists[0].Payments[0].Amount)
	assert.Equal(t, int64(28000), dists[0].Payments[1].Amount)

	assert.Equal(t, "junior", dists[1].Tier)
	assert.Equal(t, int64(30000), dists[1].TotalAmount)
	require.Len(t, dists[1].Payments, 1)
	assert.Equal(t, int64(30000), dists[1].Payments[0].Amount)
}

func TestCalculateWaterfallTierSum(t *testing.T) {
	holders := []Holder{{UserID: "a", Balance: 100, PayoutHandle: "a@pay"}}

	testCases := []struct {
		name        string
		percentages []float64
		wantErr     bool
	}{
		{name: "exactly 100", percentages: []float64{60, 40}, wantErr: false},
		{name: "within tolerance", percentages: []float64{60.004, 40}, wantErr: false},
		{name: "sums to 99", percentages: []float64{60, 39}, wantErr: true},
		{name: "sums to 101", percentages: []float64{60, 41}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tiers := make([]Tier, len(tc.percentages))
			for i, pct := range tc.percentages {
				tiers[i] = Tier{Name: "tier", Percentage: pct, Holders: holders}
			}

			_, err := CalculateWaterfall(WaterfallInput{
				TokenID:     "tok",
				Currency:    "USD",
				TotalAmount: 10000,
				Tiers:       tiers,
			})
			if tc.wantErr {
				assert.True(t, types.IsTierSumError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCalculateWaterfallUnevenTierAmounts(t *testing.T) {
	holders := []Holder{{UserID: "a", Balance: 1, PayoutHandle: "a@pay"}}

	// 33.33 / 33.33 / 33.34 over an amount that does not divide cleanly.
	dists, err := CalculateWaterfall(WaterfallInput{
		TokenID:     "tok",
		Currency:    "USD",
		TotalAmount: 100,
		MinPayment:  1,
		Tiers: []Tier{
			{Name: "one", Percentage: 33.33, Holders: holders},
			{Name: "two", Percentage: 33.33, Holders: holders},
			{Name: "three", Percentage: 33.34, Holders: holders},
		},
	})
	require.NoError(t, err)
	require.Len(t, dists, 3)

	var total int64
	for _, dist := range dists {
		total += dist.TotalAmount
	}
	// Truncation per tier may leave residual, never overshoot.
	assert.LessOrEqual(t, total, int64(100))
}

func TestCalculateWaterfallValidation(t *testing.T) {
	_, err := CalculateWaterfall(WaterfallInput{
		TokenID:     "tok",
		Currency:    "USD",
		TotalAmount: 0,
		Tiers:       []Tier{{Name: "t", Percentage: 100}},
	})
	assert.True(t, types.IsValidationError(err))

	_, err = CalculateWaterfall(WaterfallInput{
		TokenID:     "tok",
		Currency:    "USD",
		TotalAmount: 100,
	})
	assert.True(t, types.IsValidationError(err))
}
