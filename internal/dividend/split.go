package dividend

import (
	"math"

	sdkmath "cosmossdk.io/math"

	"github.com/bookledger-io/equity-ledger/internal/db/model"
	"github.com/bookledger-io/equity-ledger/internal/types"
)

// Split routes a percentage of the total either to a holder set (pro-rata)
// or to a single fixed external address, e.g. "70% to holders, 30% to
// treasury".
type Split struct {
	Name         string
	Percentage   float64
	Holders      []Holder
	FixedAddress string
}

type SplitInput struct {
	TokenID     string
	Currency    string
	TotalAmount int64
	MinPayment  int64
	Splits      []Split
}

// FixedPayment is a split share routed to one external address.
type FixedPayment struct {
	Name    string
	Address string
	Amount  int64
}

type SplitResult struct {
	Distributions []*model.DividendDistribution
	FixedPayments []FixedPayment
}

// CalculateSplit validates that split percentages cover 100% (same
// tolerance as waterfall tiers) and routes each share.
func CalculateSplit(in SplitInput) (*SplitResult, error) {
	if in.TotalAmount <= 0 {
		return nil, &types.ValidationError{Field: "totalAmount", Message: "must be positive"}
	}
	if len(in.Splits) == 0 {
		return nil, &types.ValidationError{Field: "splits", Message: "must not be empty"}
	}

	var sum float64
	for _, split := range in.Splits {
		if split.Percentage < 0 {
			return nil, &types.ValidationError{Field: "splits", Message: "negative split percentage"}
		}
		if split.FixedAddress == "" && len(split.Holders) == 0 {
			return nil, &types.ValidationError{
				Field:   "splits",
				Message: "split needs either a holder set or a fixed address",
			}
		}
		sum += split.Percentage
	}
	if math.Abs(sum-100) > tierSumTolerance {
		return nil, &types.TierSumError{Sum: sum}
	}

	result := &SplitResult{}
	for _, split := range in.Splits {
		splitAmount := sdkmath.LegacyNewDec(in.TotalAmount).
			MulInt64(int64(math.Round(split.Percentage * 100))).
			QuoInt64(10000).
			TruncateInt64()
		if splitAmount <= 0 {
			continue
		}

		if split.FixedAddress != "" {
			result.FixedPayments = append(result.FixedPayments, FixedPayment{
				Name:    split.Name,
				Address: split.FixedAddress,
				Amount:  splitAmount,
			})
			continue
		}

		dist, err := CalculateDistribution(DistributionInput{
			TokenID:     in.TokenID,
			Currency:    in.Currency,
			TotalAmount: splitAmount,
			MinPayment:  in.MinPayment,
			Holders:     split.Holders,
			Tier:        split.Name,
		})
		if err != nil {
			return nil, err
		}
		result.Distributions = append(result.Distributions, dist)
	}

	return result, nil
}
