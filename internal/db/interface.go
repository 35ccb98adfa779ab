package db

import (
	"context"
	"time"

	"github.com/bookledger-io/equity-ledger/internal/db/model"
	"github.com/bookledger-io/equity-ledger/internal/types"
)

type DbInterface interface {
	Ping(ctx context.Context) error

	// tokens
	SaveToken(ctx context.Context, token *model.Token) error
	GetTokenByID(ctx context.Context, tokenID string) (*model.Token, error)
	GetTokenByTicker(ctx context.Context, ticker string) (*model.Token, error)
	AdjustTokenSupply(ctx context.Context, tokenID string, delta int64) error

	// balances
	GetBalance(ctx context.Context, userID, tokenID string) (*model.Balance, error)
	CreditBalance(ctx context.Context, userID, tokenID string, amount int64, counter model.BalanceCounter) error
	DebitBalance(ctx context.Context, userID, tokenID string, amount int64, counter model.BalanceCounter) error
	ReserveBalance(ctx context.Context, userID, tokenID string, amount int64) error
	ReleaseReservation(ctx context.Context, userID, tokenID string, amount int64) error
	FinalizeReservation(ctx context.Context, userID, tokenID string, amount int64) error
	ListBalancesByToken(ctx context.Context, tokenID string) ([]model.Balance, error)
	ReplayBalance(ctx context.Context, userID, tokenID string) (int64, error)

	// transactions
	SaveTransaction(ctx context.Context, tx *model.Transaction) error
	GetTransactionByID(ctx context.Context, txID string) (*model.Transaction, error)
	GetTransactions(ctx context.Context, filter model.TransactionFilter, limit, offset int64) ([]model.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, txID string, qualifiedPreviousStatuses []types.TransactionStatus, newStatus types.TransactionStatus) error
	GetExecutedDistributionIDs(ctx context.Context, userID string) (map[string]struct{}, error)

	// stakes
	SaveNewStake(ctx context.Context, stake *model.Stake) error
	GetStakeByID(ctx context.Context, stakeID string) (*model.Stake, error)
	UpdateStakeState(ctx context.Context, stakeID string, qualifiedPreviousStates []types.StakeState, newState types.StakeState, stampField string, stampAt time.Time) error
	RevertStakeState(ctx context.Context, stakeID string, from, to types.StakeState, clearField string) error
	MarkStakeSubState(ctx context.Context, stakeID string, subState types.StakeSubState) error
	AccrueDividends(ctx context.Context, stakeID string, amount int64) error
	GetStakesByUser(ctx context.Context, userID string) ([]model.Stake, error)
	GetConfirmedStakes(ctx context.Context, tokenID string) ([]model.Stake, error)
	FindExpiredPendingStakes(ctx context.Context, now time.Time, limit int64) ([]model.Stake, error)

	// cap table
	UpsertCapTableEntry(ctx context.Context, entry *model.CapTableEntry) error
	RemoveCapTableEntry(ctx context.Context, stakeID string) error
	RestoreCapTableEntry(ctx context.Context, stakeID string) error
	GetActiveCapTable(ctx context.Context, tokenID string) ([]model.CapTableEntry, error)
	UpdateCapTablePercentage(ctx context.Context, stakeID, percentage string) error
	RecordCapTableDividend(ctx context.Context, stakeID string, amount int64) error

	// dividend distributions
	SaveDistribution(ctx context.Context, dist *model.DividendDistribution) error
	GetDistributionByID(ctx context.Context, distributionID string) (*model.DividendDistribution, error)
	GetDistributionsForUser(ctx context.Context, userID string) ([]model.DividendDistribution, error)

	// withdrawals
	SaveWithdrawalRequest(ctx context.Context, req *model.WithdrawalRequest) error
	GetWithdrawalRequest(ctx context.Context, requestID string) (*model.WithdrawalRequest, error)
	UpdateWithdrawalState(ctx context.Context, requestID string, qualifiedPreviousStates []types.WithdrawalState, newState types.WithdrawalState, reason, txID string) error
	GetWithdrawalsByUser(ctx context.Context, userID string) ([]model.WithdrawalRequest, error)

	// wallets
	UpsertWallet(ctx context.Context, wallet *model.Wallet) error
	GetWalletByUserID(ctx context.Context, userID string) (*model.Wallet, error)
}
