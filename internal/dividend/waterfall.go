package dividend

import (
	"math"

	sdkmath "cosmossdk.io/math"

	"github.com/bookledger-io/equity-ledger/internal/db/model"
	"github.com/bookledger-io/equity-ledger/internal/types"
)

// tierSumTolerance absorbs float error when validating that tier
// percentages cover exactly 100%.
const tierSumTolerance = 0.01

// Tier is one layer of a waterfall: a share of the total, distributed
// pro-rata among its own holder set.
type Tier struct {
	Name       string
	Percentage float64
	Holders    []Holder
}

type WaterfallInput struct {
	TokenID     string
	Currency    string
	TotalAmount int64
	MinPayment  int64
	Tiers       []Tier
}

// CalculateWaterfall splits the total across tiers and runs an
// independent pro-rata distribution within each. Tier sub-amounts are
// truncated to the minor unit, so at most len(Tiers) units of rounding
// residual stay unallocated across the whole run.
func CalculateWaterfall(in WaterfallInput) ([]*model.DividendDistribution, error) {
	if in.TotalAmount <= 0 {
		return nil, &types.ValidationError{Field: "totalAmount", Message: "must be positive"}
	}
	if len(in.Tiers) == 0 {
		return nil, &types.ValidationError{Field: "tiers", Message: "must not be empty"}
	}

	var sum float64
	for _, tier := range in.Tiers {
		if tier.Percentage < 0 {
			return nil, &types.ValidationError{Field: "tiers", Message: "negative tier percentage"}
		}
		sum += tier.Percentage
	}
	if math.Abs(sum-100) > tierSumTolerance {
		return nil, &types.TierSumError{Sum: sum}
	}

	distributions := make([]*model.DividendDistribution, 0, len(in.Tiers))
	for _, tier := range in.Tiers {
		tierAmount := sdkmath.LegacyNewDec(in.TotalAmount).
			MulInt64(int64(math.Round(tier.Percentage * 100))).
			QuoInt64(10000).
			TruncateInt64()
		if tierAmount <= 0 {
			continue
		}

		dist, err := CalculateDistribution(DistributionInput{
			TokenID:     in.TokenID,
			Currency:    in.Currency,
			TotalAmount: tierAmount,
			MinPayment:  in.MinPayment,
			Holders:     tier.Holders,
			Tier:        tier.Name,
		})
		if err != nil {
			return nil, err
		}
		distributions = append(distributions, dist)
	}

	return distributions, nil
}
