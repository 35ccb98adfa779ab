package model

import "time"

const CapTableCollection = "cap_table"

const (
	CapEntryActive  = "ACTIVE"
	CapEntryRemoved = "REMOVED"
)

// CapTableEntry is a projection over confirmed stakes. It is rebuildable
// from stake state and is never a source of truth.
type CapTableEntry struct {
	StakeID            string    `bson:"_id"`
	HolderUserID       string    `bson:"holder_user_id"`
	TokenID            string    `bson:"token_id"`
	Amount             int64     `bson:"amount"`
	PercentageOfTotal  string    `bson:"percentage_of_total"`
	LastDividendAmount int64     `bson:"last_dividend_amount"`
	LifetimeDividends  int64     `bson:"lifetime_dividends_received"`
	Status             string    `bson:"status"`
	CreatedAt          time.Time `bson:"created_at"`
	UpdatedAt          time.Time `bson:"updated_at"`
}
