package model

import "time"

const BalanceCollection = "balances"

// Balance is one row per (user, token). The document is keyed by the
// natural compound key so every mutation is a single atomic upsert.
type Balance struct {
	UserID         string    `bson:"user_id"`
	TokenID        string    `bson:"token_id"`
	Balance        int64     `bson:"balance"`
	PendingIn      int64     `bson:"pending_in"`
	PendingOut     int64     `bson:"pending_out"`
	TotalPurchased int64     `bson:"total_purchased"`
	TotalReceived  int64     `bson:"total_received"`
	TotalSent      int64     `bson:"total_sent"`
	TotalWithdrawn int64     `bson:"total_withdrawn"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

// AvailableBalance is what a holder can spend right now. Reserved
// (pending out) amounts are already debited from Balance.
func (b *Balance) AvailableBalance() int64 {
	return b.Balance
}

// BalanceCounter names the lifetime counter a credit or debit maintains
// alongside the balance itself.
type BalanceCounter string

const (
	CounterNone      BalanceCounter = ""
	CounterPurchased BalanceCounter = "total_purchased"
	CounterReceived  BalanceCounter = "total_received"
	CounterSent      BalanceCounter = "total_sent"
	CounterWithdrawn BalanceCounter = "total_withdrawn"
)
