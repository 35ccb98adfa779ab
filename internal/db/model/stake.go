package model

import (
	"time"

	"github.com/bookledger-io/equity-ledger/internal/types"
)

const StakeCollection = "stakes"

// Stake is never deleted; it is soft-transitioned through its lifecycle
// for audit. Re-staking creates a new document.
type Stake struct {
	ID       string           `bson:"_id"`
	UserID   string           `bson:"user_id"`
	TokenID  string           `bson:"token_id"`
	Amount   int64            `bson:"amount"`
	State    types.StakeState `bson:"state"`
	SubState string           `bson:"sub_state,omitempty"`
	// DividendsAccumulated is in the payout currency's minor unit. It
	// survives unstaking and stays claimable.
	DividendsAccumulated int64      `bson:"dividends_accumulated"`
	DepositTxID          string     `bson:"deposit_txid,omitempty"`
	DepositDeadline      time.Time  `bson:"deposit_deadline"`
	StakedAt             time.Time  `bson:"staked_at"`
	ConfirmedAt          *time.Time `bson:"confirmed_at,omitempty"`
	UnstakedAt           *time.Time `bson:"unstaked_at,omitempty"`
}
