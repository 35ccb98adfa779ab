package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookledger-io/equity-ledger/internal/db/model"
	"github.com/bookledger-io/equity-ledger/internal/queue"
	"github.com/bookledger-io/equity-ledger/internal/types"
)

func TestCreateStakeReservesBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.fundUser(t, "alice", "tok", 1000)

	stake, err := env.service.CreateStake(ctx, StakeInput{
		UserID:      "alice",
		TokenID:     "tok",
		Amount:      600,
		DepositTxID: "deposit-1",
	})
	require.NoError(t, err)
	assert.Equal(t, types.StakePendingDeposit, stake.State)
	assert.False(t, stake.DepositDeadline.IsZero())

	balance, err := env.service.GetBalance(ctx, "alice", "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(400), balance.Balance)
	assert.Equal(t, int64(600), balance.PendingOut)

	t.Run("insufficient balance", func(t *testing.T) {
		_, err := env.service.CreateStake(ctx, StakeInput{
			UserID:      "alice",
			TokenID:     "tok",
			Amount:      500,
			DepositTxID: "deposit-2",
		})
		assert.True(t, types.IsInsufficientBalanceError(err))
	})
}

func TestConfirmStake(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.fundUser(t, "alice", "tok", 1000)
	stake, err := env.service.CreateStake(ctx, StakeInput{
		UserID:      "alice",
		TokenID:     "tok",
		Amount:      600,
		DepositTxID: "deposit-1",
	})
	require.NoError(t, err)

	t.Run("not enough confirmations", func(t *testing.T) {
		_, err := env.service.ConfirmStake(ctx, stake.ID)
		assert.True(t, types.IsInvalidStakeStatusError(err))
	})

	env.chain.confirmed["deposit-1"] = true
	confirmed, err := env.service.ConfirmStake(ctx, stake.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StakeConfirmed, confirmed.State)
	require.NotNil(t, confirmed.ConfirmedAt)

	// Confirmation moves no balance; the reservation stays.
	balance, err := env.service.GetBalance(ctx, "alice", "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(400), balance.Balance)
	assert.Equal(t, int64(600), balance.PendingOut)

	// Cap table entry appears with the full percentage.
	entries, err := env.service.GetCapTable(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].HolderUserID)
	assert.Equal(t, int64(600), entries[0].Amount)

	events := env.publisher.byType(queue.StakeConfirmedEventType)
	require.Len(t, events, 1)

	t.Run("second confirm rejected", func(t *testing.T) {
		_, err := env.service.ConfirmStake(ctx, stake.ID)
		assert.True(t, types.IsInvalidStakeStatusError(err))
	})
}

func TestConfirmStakeAfterDeadline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.fundUser(t, "alice", "tok", 1000)
	stake, err := env.service.CreateStake(ctx, StakeInput{
		UserID:      "alice",
		TokenID:     "tok",
		Amount:      600,
		DepositTxID: "deposit-1",
	})
	require.NoError(t, err)

	// Push the deadline into the past.
	env.db.stakes[stake.ID].DepositDeadline = time.Now().UTC().Add(-time.Minute)
	env.chain.confirmed["deposit-1"] = true

	_, err = env.service.ConfirmStake(ctx, stake.ID)
	assert.True(t, types.IsInvalidStakeStatusError(err))

	stored, err := env.db.GetStakeByID(ctx, stake.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StakePendingDeposit, stored.State)
	assert.Equal(t, types.SubStateDepositExpired.String(), stored.SubState)

	events := env.publisher.byType(queue.StakeDepositExpiredType)
	require.Len(t, events, 1)
}

func TestUnstake(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stake := env.confirmedStake(t, "alice", "tok", 5000)
	// Accrue 12.50 before unstaking; it must survive.
	require.NoError(t, env.db.AccrueDividends(ctx, stake.ID, 1250))

	unstaked, err := env.service.Unstake(ctx, stake.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StakeUnstaked, unstaked.State)
	require.NotNil(t, unstaked.UnstakedAt)

	balance, err := env.service.GetBalance(ctx, "alice", "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance.Balance)
	assert.Zero(t, balance.PendingOut)

	stored, err := env.db.GetStakeByID(ctx, stake.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), stored.DividendsAccumulated)

	entries, err := env.service.GetCapTable(ctx, "tok")
	require.NoError(t, err)
	assert.Empty(t, entries)

	events := env.publisher.byType(queue.StakeUnstakedEventType)
	require.Len(t, events, 1)
}

func TestUnstakeGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.fundUser(t, "alice", "tok", 1000)
	pending, err := env.service.CreateStake(ctx, StakeInput{
		UserID:      "alice",
		TokenID:     "tok",
		Amount:      100,
		DepositTxID: "deposit-1",
	})
	require.NoError(t, err)

	t.Run("pending stake", func(t *testing.T) {
		_, err := env.service.Unstake(ctx, pending.ID)
		var statusErr *types.InvalidStakeStatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, types.StakePendingDeposit, statusErr.Current)
	})

	t.Run("already unstaked", func(t *testing.T) {
		stake := env.confirmedStake(t, "bob", "tok2", 200)
		_, err := env.service.Unstake(ctx, stake.ID)
		require.NoError(t, err)

		_, err = env.service.Unstake(ctx, stake.ID)
		var statusErr *types.InvalidStakeStatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, types.StakeUnstaked, statusErr.Current)
	})

	t.Run("unknown stake", func(t *testing.T) {
		_, err := env.service.Unstake(ctx, "missing")
		assert.True(t, types.IsInvalidStakeStatusError(err))
	})

	// Guard failures cause no balance or cap table mutation.
	balance, err := env.service.GetBalance(ctx, "alice", "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance.Balance)
	assert.Equal(t, int64(100), balance.PendingOut)
}

func TestUnstakeRollsBackOnReleaseFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stake := env.confirmedStake(t, "alice", "tok", 5000)
	env.db.failOnce("ReleaseReservation", errors.New("write concern failed"))

	_, err := env.service.Unstake(ctx, stake.ID)
	require.Error(t, err)

	// The stake is back to CONFIRMED with no unstake timestamp left
	// behind, and its cap entry restored.
	stored, err := env.db.GetStakeByID(ctx, stake.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StakeConfirmed, stored.State)
	assert.Nil(t, stored.UnstakedAt)

	entries, err := env.service.GetCapTable(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.CapEntryActive, entries[0].Status)

	balance, err := env.service.GetBalance(ctx, "alice", "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance.PendingOut)
}

func TestCheckExpiredStakes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.fundUser(t, "alice", "tok", 1000)
	stake, err := env.service.CreateStake(ctx, StakeInput{
		UserID:      "alice",
		TokenID:     "tok",
		Amount:      100,
		DepositTxID: "deposit-1",
	})
	require.NoError(t, err)

	env.db.stakes[stake.ID].DepositDeadline = time.Now().UTC().Add(-time.Hour)

	require.NoError(t, env.service.checkExpiredStakes(ctx))

	stored, err := env.db.GetStakeByID(ctx, stake.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SubStateDepositExpired.String(), stored.SubState)
	assert.Equal(t, types.StakePendingDeposit, stored.State)

	events := env.publisher.byType(queue.StakeDepositExpiredType)
	require.Len(t, events, 1)

	// A second pass does not re-report the same stake.
	require.NoError(t, env.service.checkExpiredStakes(ctx))
	events = env.publisher.byType(queue.StakeDepositExpiredType)
	require.Len(t, events, 1)
}

func TestRebuildCapTablePercentages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.confirmedStake(t, "alice", "tok", 750)
	env.confirmedStake(t, "bob", "tok", 250)

	require.NoError(t, env.service.RebuildCapTable(ctx, "tok"))

	entries, err := env.service.GetCapTable(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byHolder := make(map[string]model.CapTableEntry)
	for _, entry := range entries {
		byHolder[entry.HolderUserID] = entry
	}
	assert.Equal(t, "75.000000000000000000", byHolder["alice"].PercentageOfTotal)
	assert.Equal(t, "25.000000000000000000", byHolder["bob"].PercentageOfTotal)
}
