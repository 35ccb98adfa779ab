package model

import (
	"time"

	"github.com/bookledger-io/equity-ledger/internal/types"
)

const WithdrawalRequestCollection = "withdrawal_requests"

// WithdrawalRequest reserves the requested amount from the holder's
// balance the moment it is created; only a COMPLETED terminal state keeps
// the reservation, REJECTED/FAILED reverse it.
type WithdrawalRequest struct {
	ID          string                `bson:"_id"`
	UserID      string                `bson:"user_id"`
	TokenID     string                `bson:"token_id"`
	Amount      int64                 `bson:"amount"`
	Destination string                `bson:"destination"`
	State       types.WithdrawalState `bson:"state"`
	TxID        string                `bson:"txid,omitempty"`
	Reason      string                `bson:"reason,omitempty"`
	CreatedAt   time.Time             `bson:"created_at"`
	UpdatedAt   time.Time             `bson:"updated_at"`
}
