package chainclient

import "context"

// TxDetails is what the core sees of an on-chain transaction. The core
// never parses raw chain data itself.
type TxDetails struct {
	TxID          string `json:"txid"`
	Confirmations uint64 `json:"confirmations"`
	Amount        int64  `json:"amount"`
	Destination   string `json:"destination"`
	BlockHeight   uint64 `json:"block_height"`
}

type ChainInterface interface {
	// IsConfirmed reports whether txid has at least minConfirmations.
	IsConfirmed(ctx context.Context, txid string, minConfirmations uint64) (bool, error)
	// GetTransaction returns nil (no error) for an unknown txid.
	GetTransaction(ctx context.Context, txid string) (*TxDetails, error)
	// Broadcast submits a signed transaction and returns its txid.
	Broadcast(ctx context.Context, rawTx string) (string, error)
}
