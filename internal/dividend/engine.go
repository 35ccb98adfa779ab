package dividend

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/bookledger-io/equity-ledger/internal/db/model"
	"github.com/bookledger-io/equity-ledger/internal/types"
)

// Holder is one row of the balance snapshot a distribution is computed
// over. Balance is in whole token units.
type Holder struct {
	UserID       string
	Balance      int64
	PayoutHandle string
}

// DistributionInput describes a single pro-rata payout run. All money
// amounts are in the currency's minor unit (cents for fiat).
type DistributionInput struct {
	TokenID     string
	Currency    string
	TotalAmount int64
	MinPayment  int64
	Holders     []Holder
	// IncludeUnlinked pays holders without a payout handle instead of
	// routing their share into BelowThreshold.
	IncludeUnlinked bool
	Tier            string
}

// CalculateDistribution computes an exact pro-rata distribution over the
// snapshot. Pure: it mutates nothing and reads no external state.
//
// Each holder's raw payment is balance * perTokenAmount, rounded to the
// nearest minor unit with ties going to the even value, then capped at
// whatever is left of TotalAmount so rounding up can never pay out more
// than the pot. Holders whose rounded payment falls below MinPayment,
// and holders without a payout handle (unless IncludeUnlinked), are not
// paid; their rounded amounts accumulate into BelowThreshold. The
// invariant
//
//	TotalDistributed + BelowThreshold == sum of rounded amounts <= TotalAmount
//
// always holds; any residual below TotalAmount is rounding loss and is
// visible as TotalAmount - TotalDistributed - BelowThreshold.
func CalculateDistribution(in DistributionInput) (*model.DividendDistribution, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var eligibleTokens int64
	for _, h := range in.Holders {
		if h.Balance > 0 {
			eligibleTokens += h.Balance
		}
	}

	dist := &model.DividendDistribution{
		ID:             uuid.NewString(),
		TokenID:        in.TokenID,
		Currency:       in.Currency,
		TotalAmount:    in.TotalAmount,
		EligibleTokens: eligibleTokens,
		Tier:           in.Tier,
		CalculatedAt:   time.Now().UTC(),
	}

	if eligibleTokens == 0 {
		dist.PerTokenAmount = sdkmath.LegacyZeroDec().String()
		dist.BelowThreshold = in.TotalAmount
		return dist, nil
	}

	perToken := sdkmath.LegacyNewDec(in.TotalAmount).
		Quo(sdkmath.LegacyNewDec(eligibleTokens))
	dist.PerTokenAmount = perToken.String()

	remaining := in.TotalAmount
	for _, h := range in.Holders {
		if h.Balance <= 0 {
			continue
		}

		rounded := sdkmath.LegacyNewDec(h.Balance).Mul(perToken).RoundInt64()
		if rounded > remaining {
			rounded = remaining
		}
		remaining -= rounded

		payable := rounded >= in.MinPayment &&
			(h.PayoutHandle != "" || in.IncludeUnlinked)
		if !payable {
			dist.BelowThreshold += rounded
			continue
		}

		dist.Payments = append(dist.Payments, model.DividendPayment{
			UserID:       h.UserID,
			Balance:      h.Balance,
			Amount:       rounded,
			PayoutHandle: h.PayoutHandle,
		})
		dist.TotalDistributed += rounded
	}

	return dist, nil
}

func validateInput(in DistributionInput) error {
	if in.TotalAmount <= 0 {
		return &types.ValidationError{Field: "totalAmount", Message: "must be positive"}
	}
	if in.MinPayment < 0 {
		return &types.ValidationError{Field: "minPayment", Message: "must not be negative"}
	}
	if in.Currency == "" {
		return &types.ValidationError{Field: "currency", Message: "must not be empty"}
	}
	for _, h := range in.Holders {
		if h.UserID == "" {
			return &types.ValidationError{Field: "holders", Message: "holder without user id"}
		}
		if h.Balance < 0 {
			return &types.ValidationError{Field: "holders", Message: "negative holder balance"}
		}
	}
	return nil
}
