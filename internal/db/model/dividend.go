package model

import "time"

const DividendDistributionCollection = "dividend_distributions"

// DividendPayment is one holder's share of a distribution, in the payout
// currency's minor unit.
type DividendPayment struct {
	UserID       string `bson:"user_id"`
	Balance      int64  `bson:"balance"`
	Amount       int64  `bson:"amount"`
	PayoutHandle string `bson:"payout_handle,omitempty"`
}

// DividendDistribution is immutable once calculated. Execution is a
// separate idempotent step recorded as DIVIDEND transactions.
type DividendDistribution struct {
	ID               string            `bson:"_id"`
	TokenID          string            `bson:"token_id"`
	Currency         string            `bson:"currency"`
	TotalAmount      int64             `bson:"total_amount"`
	PerTokenAmount   string            `bson:"per_token_amount"`
	EligibleTokens   int64             `bson:"eligible_tokens"`
	Payments         []DividendPayment `bson:"payments"`
	TotalDistributed int64             `bson:"total_distributed"`
	BelowThreshold   int64             `bson:"below_threshold"`
	Tier             string            `bson:"tier,omitempty"`
	CalculatedAt     time.Time         `bson:"calculated_at"`
}
