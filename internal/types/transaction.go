package types

// Enum values for Transaction Type
type TransactionType string

const (
	TxPurchase    TransactionType = "PURCHASE"
	TxSale        TransactionType = "SALE"
	TxTransferIn  TransactionType = "TRANSFER_IN"
	TxTransferOut TransactionType = "TRANSFER_OUT"
	TxWithdrawal  TransactionType = "WITHDRAWAL"
	TxDeposit     TransactionType = "DEPOSIT"
	TxDividend    TransactionType = "DIVIDEND"
	TxMint        TransactionType = "MINT"
	TxBurn        TransactionType = "BURN"
	TxAirdrop     TransactionType = "AIRDROP"
	TxSwap        TransactionType = "SWAP"
)

func (t TransactionType) String() string {
	return string(t)
}

// Credits reports whether this transaction type increases the holder's
// available balance when confirmed.
func (t TransactionType) Credits() bool {
	switch t {
	case TxPurchase, TxTransferIn, TxDeposit, TxMint, TxAirdrop:
		return true
	default:
		return false
	}
}

// Debits reports whether this transaction type decreases the holder's
// available balance when confirmed. Dividend and swap rows are cash-side
// records and touch no token balance.
func (t TransactionType) Debits() bool {
	switch t {
	case TxSale, TxTransferOut, TxWithdrawal, TxBurn:
		return true
	default:
		return false
	}
}

// Enum values for Transaction Status
type TransactionStatus string

const (
	TxPending   TransactionStatus = "PENDING"
	TxConfirmed TransactionStatus = "CONFIRMED"
	TxFailed    TransactionStatus = "FAILED"
	TxCancelled TransactionStatus = "CANCELLED"
)

func (s TransactionStatus) String() string {
	return string(s)
}
