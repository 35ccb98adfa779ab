package model

import (
	"time"

	"github.com/bookledger-io/equity-ledger/internal/types"
)

const TransactionCollection = "transactions"

// Transaction is an immutable append-only record. Rows are never edited,
// only superseded by new rows; a FAILED row never retroactively debits.
type Transaction struct {
	ID             string                  `bson:"_id"`
	UserID         string                  `bson:"user_id"`
	TokenID        string                  `bson:"token_id"`
	Type           types.TransactionType   `bson:"type"`
	Status         types.TransactionStatus `bson:"status"`
	Amount         int64                   `bson:"amount"`
	FromUserID     string                  `bson:"from_user_id,omitempty"`
	ToUserID       string                  `bson:"to_user_id,omitempty"`
	TxID           string                  `bson:"txid,omitempty"`
	// DistributionID is set on DIVIDEND rows; the partial unique index on
	// (distribution_id, user_id) is what makes execution idempotent.
	DistributionID string    `bson:"distribution_id,omitempty"`
	Reference      string    `bson:"reference,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

// TransactionFilter narrows GetTransactions. Zero values mean "any".
type TransactionFilter struct {
	UserID  string
	TokenID string
	Type    types.TransactionType
	Status  types.TransactionStatus
	After   time.Time
	Before  time.Time
}
