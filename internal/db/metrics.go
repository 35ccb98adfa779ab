package db

import (
	"context"
	"time"

	"github.com/bookledger-io/equity-ledger/internal/db/model"
	"github.com/bookledger-io/equity-ledger/internal/observability/metrics"
	"github.com/bookledger-io/equity-ledger/internal/types"
)

type DbWithMetrics struct {
	db DbInterface
}

func NewDbWithMetrics(db DbInterface) *DbWithMetrics {
	return &DbWithMetrics{db: db}
}

func (d *DbWithMetrics) Ping(ctx context.Context) error {
	return d.db.Ping(ctx)
}

func (d *DbWithMetrics) SaveToken(ctx context.Context, token *model.Token) error {
	return d.run("SaveToken", func() error {
		return d.db.SaveToken(ctx, token)
	})
}

func (d *DbWithMetrics) GetTokenByID(ctx context.Context, tokenID string) (result *model.Token, err error) {
	//nolint:errcheck
	d.run("GetTokenByID", func() error {
		result, err = d.db.GetTokenByID(ctx, tokenID)
		return err
	})

	return
}

func (d *DbWithMetrics) GetTokenByTicker(ctx context.Context, ticker string) (result *model.Token, err error) {
	//nolint:errcheck
	d.run("GetTokenByTicker", func() error {
		result, err = d.db.GetTokenByTicker(ctx, ticker)
		return err
	})

	return
}

func (d *DbWithMetrics) AdjustTokenSupply(ctx context.Context, tokenID string, delta int64) error {
	return d.run("AdjustTokenSupply", func() error {
		return d.db.AdjustTokenSupply(ctx, tokenID, delta)
	})
}

func (d *DbWithMetrics) GetBalance(ctx context.Context, userID, tokenID string) (result *model.Balance, err error) {
	//nolint:errcheck
	d.run("GetBalance", func() error {
		result, err = d.db.GetBalance(ctx, userID, tokenID)
		return err
	})

	return
}

func (d *DbWithMetrics) CreditBalance(ctx context.Context, userID, tokenID string, amount int64, counter model.BalanceCounter) error {
	return d.run("CreditBalance", func() error {
		return d.db.CreditBalance(ctx, userID, tokenID, amount, counter)
	})
}

func (d *DbWithMetrics) DebitBalance(ctx context.Context, userID, tokenID string, amount int64, counter model.BalanceCounter) error {
	return d.run("DebitBalance", func() error {
		return d.db.DebitBalance(ctx, userID, tokenID, amount, counter)
	})
}

func (d *DbWithMetrics) ReserveBalance(ctx context.Context, userID, tokenID string, amount int64) error {
	return d.run("ReserveBalance", func() error {
		return d.db.ReserveBalance(ctx, userID, tokenID, amount)
	})
}

func (d *DbWithMetrics) ReleaseReservation(ctx context.Context, userID, tokenID string, amount int64) error {
	return d.run("ReleaseReservation", func() error {
		return d.db.ReleaseReservation(ctx, userID, tokenID, amount)
	})
}

func (d *DbWithMetrics) FinalizeReservation(ctx context.Context, userID, tokenID string, amount int64) error {
	return d.run("FinalizeReservation", func() error {
		return d.db.FinalizeReservation(ctx, userID, tokenID, amount)
	})
}

func (d *DbWithMetrics) ListBalancesByToken(ctx context.Context, tokenID string) (result []model.Balance, err error) {
	//nolint:errcheck
	d.run("ListBalancesByToken", func() error {
		result, err = d.db.ListBalancesByToken(ctx, tokenID)
		return err
	})

	return
}

func (d *DbWithMetrics) ReplayBalance(ctx context.Context, userID, tokenID string) (result int64, err error) {
	//nolint:errcheck
	d.run("ReplayBalance", func() error {
		result, err = d.db.ReplayBalance(ctx, userID, tokenID)
		return err
	})

	return
}

func (d *DbWithMetrics) SaveTransaction(ctx context.Context, tx *model.Transaction) error {
	return d.run("SaveTransaction", func() error {
		return d.db.SaveTransaction(ctx, tx)
	})
}

func (d *DbWithMetrics) GetTransactionByID(ctx context.Context, txID string) (result *model.Transaction, err error) {
	//nolint:errcheck
	d.run("GetTransactionByID", func() error {
		result, err = d.db.GetTransactionByID(ctx, txID)
		return err
	})

	return
}

func (d *DbWithMetrics) GetTransactions(ctx context.Context, filter model.TransactionFilter, limit, offset int64) (result []model.Transaction, err error) {
	//nolint:errcheck
	d.run("GetTransactions", func() error {
		result, err = d.db.GetTransactions(ctx, filter, limit, offset)
		return err
	})

	return
}

func (d *DbWithMetrics) UpdateTransactionStatus(ctx context.Context, txID string, qualifiedPreviousStatuses []types.TransactionStatus, newStatus types.TransactionStatus) error {
	return d.run("UpdateTransactionStatus", func() error {
		return d.db.UpdateTransactionStatus(ctx, txID, qualifiedPreviousStatuses, newStatus)
	})
}

func (d *DbWithMetrics) GetExecutedDistributionIDs(ctx context.Context, userID string) (result map[string]struct{}, err error) {
	//nolint:errcheck
	d.run("GetExecutedDistributionIDs", func() error {
		result, err = d.db.GetExecutedDistributionIDs(ctx, userID)
		return err
	})

	return
}

func (d *DbWithMetrics) SaveNewStake(ctx context.Context, stake *model.Stake) error {
	return d.run("SaveNewStake", func() error {
		return d.db.SaveNewStake(ctx, stake)
	})
}

func (d *DbWithMetrics) GetStakeByID(ctx context.Context, stakeID string) (result *model.Stake, err error) {
	//nolint:errcheck
	d.run("GetStakeByID", func() error {
		result, err = d.db.GetStakeByID(ctx, stakeID)
		return err
	})

	return
}

func (d *DbWithMetrics) UpdateStakeState(ctx context.Context, stakeID string, qualifiedPreviousStates []types.StakeState, newState types.StakeState, stampField string, stampAt time.Time) error {
	return d.run("UpdateStakeState", func() error {
		return d.db.UpdateStakeState(ctx, stakeID, qualifiedPreviousStates, newState, stampField, stampAt)
	})
}

func (d *DbWithMetrics) RevertStakeState(ctx context.Context, stakeID string, from, to types.StakeState, clearField string) error {
	return d.run("RevertStakeState", func() error {
		return d.db.RevertStakeState(ctx, stakeID, from, to, clearField)
	})
}

func (d *DbWithMetrics) MarkStakeSubState(ctx context.Context, stakeID string, subState types.StakeSubState) error {
	return d.run("MarkStakeSubState", func() error {
		return d.db.MarkStakeSubState(ctx, stakeID, subState)
	})
}

func (d *DbWithMetrics) AccrueDividends(ctx context.Context, stakeID string, amount int64) error {
	return d.run("AccrueDividends", func() error {
		return d.db.AccrueDividends(ctx, stakeID, amount)
	})
}

func (d *DbWithMetrics) GetStakesByUser(ctx context.Context, userID string) (result []model.Stake, err error) {
	//nolint:errcheck
	d.run("GetStakesByUser", func() error {
		result, err = d.db.GetStakesByUser(ctx, userID)
		return err
	})

	return
}

func (d *DbWithMetrics) GetConfirmedStakes(ctx context.Context, tokenID string) (result []model.Stake, err error) {
	//nolint:errcheck
	d.run("GetConfirmedStakes", func() error {
		result, err = d.db.GetConfirmedStakes(ctx, tokenID)
		return err
	})

	return
}

func (d *DbWithMetrics) FindExpiredPendingStakes(ctx context.Context, now time.Time, limit int64) (result []model.Stake, err error) {
	//nolint:errcheck
	d.run("FindExpiredPendingStakes", func() error {
		result, err = d.db.FindExpiredPendingStakes(ctx, now, limit)
		return err
	})

	return
}

func (d *DbWithMetrics) UpsertCapTableEntry(ctx context.Context, entry *model.CapTableEntry) error {
	return d.run("UpsertCapTableEntry", func() error {
		return d.db.UpsertCapTableEntry(ctx, entry)
	})
}

func (d *DbWithMetrics) RemoveCapTableEntry(ctx context.Context, stakeID string) error {
	return d.run("RemoveCapTableEntry", func() error {
		return d.db.RemoveCapTableEntry(ctx, stakeID)
	})
}

func (d *DbWithMetrics) RestoreCapTableEntry(ctx context.Context, stakeID string) error {
	return d.run("RestoreCapTableEntry", func() error {
		return d.db.RestoreCapTableEntry(ctx, stakeID)
	})
}

func (d *DbWithMetrics) GetActiveCapTable(ctx context.Context, tokenID string) (result []model.CapTableEntry, err error) {
	//nolint:errcheck
	d.run("GetActiveCapTable", func() error {
		result, err = d.db.GetActiveCapTable(ctx, tokenID)
		return err
	})

	return
}

func (d *DbWithMetrics) UpdateCapTablePercentage(ctx context.Context, stakeID, percentage string) error {
	return d.run("UpdateCapTablePercentage", func() error {
		return d.db.UpdateCapTablePercentage(ctx, stakeID, percentage)
	})
}

func (d *DbWithMetrics) RecordCapTableDividend(ctx context.Context, stakeID string, amount int64) error {
	return d.run("RecordCapTableDividend", func() error {
		return d.db.RecordCapTableDividend(ctx, stakeID, amount)
	})
}

func (d *DbWithMetrics) SaveDistribution(ctx context.Context, dist *model.DividendDistribution) error {
	return d.run("SaveDistribution", func() error {
		return d.db.SaveDistribution(ctx, dist)
	})
}

func (d *DbWithMetrics) GetDistributionByID(ctx context.Context, distributionID string) (result *model.DividendDistribution, err error) {
	//nolint:errcheck
	d.run("GetDistributionByID", func() error {
		result, err = d.db.GetDistributionByID(ctx, distributionID)
		return err
	})

	return
}

func (d *DbWithMetrics) GetDistributionsForUser(ctx context.Context, userID string) (result []model.DividendDistribution, err error) {
	//nolint:errcheck
	d.run("GetDistributionsForUser", func() error {
		result, err = d.db.GetDistributionsForUser(ctx, userID)
		return err
	})

	return
}

func (d *DbWithMetrics) SaveWithdrawalRequest(ctx context.Context, req *model.WithdrawalRequest) error {
	return d.run("SaveWithdrawalRequest", func() error {
		return d.db.SaveWithdrawalRequest(ctx, req)
	})
}

func (d *DbWithMetrics) GetWithdrawalRequest(ctx context.Context, requestID string) (result *model.WithdrawalRequest, err error) {
	//nolint:errcheck
	d.run("GetWithdrawalRequest", func() error {
		result, err = d.db.GetWithdrawalRequest(ctx, requestID)
		return err
	})

	return
}

func (d *DbWithMetrics) UpdateWithdrawalState(ctx context.Context, requestID string, qualifiedPreviousStates []types.WithdrawalState, newState types.WithdrawalState, reason, txID string) error {
	return d.run("UpdateWithdrawalState", func() error {
		return d.db.UpdateWithdrawalState(ctx, requestID, qualifiedPreviousStates, newState, reason, txID)
	})
}

func (d *DbWithMetrics) GetWithdrawalsByUser(ctx context.Context, userID string) (result []model.WithdrawalRequest, err error) {
	//nolint:errcheck
	d.run("GetWithdrawalsByUser", func() error {
		result, err = d.db.GetWithdrawalsByUser(ctx, userID)
		return err
	})

	return
}

func (d *DbWithMetrics) UpsertWallet(ctx context.Context, wallet *model.Wallet) error {
	return d.run("UpsertWallet", func() error {
		return d.db.UpsertWallet(ctx, wallet)
	})
}

func (d *DbWithMetrics) GetWalletByUserID(ctx context.Context, userID string) (result *model.Wallet, err error) {
	//nolint:errcheck
	d.run("GetWalletByUserID", func() error {
		result, err = d.db.GetWalletByUserID(ctx, userID)
		return err
	})

	return
}

func (d *DbWithMetrics) run(method string, f func() error) error {
	startTime := time.Now()
	err := f()
	duration := time.Since(startTime)

	metrics.RecordDbLatency(duration, method, err != nil)
	return err
}
