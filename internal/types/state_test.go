package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualifiedStatesForStakeTransitions(t *testing.T) {
	assert.Equal(t, []StakeState{StakePendingDeposit}, QualifiedStatesForConfirm())
	assert.Equal(t, []StakeState{StakeConfirmed}, QualifiedStatesForUnstake())
}

func TestWithdrawalTransitionTable(t *testing.T) {
	testCases := []struct {
		target    WithdrawalState
		qualified []WithdrawalState
	}{
		{WithdrawalApproved, []WithdrawalState{WithdrawalPending}},
		{WithdrawalRejected, []WithdrawalState{WithdrawalPending}},
		{WithdrawalExecuting, []WithdrawalState{WithdrawalApproved}},
		{WithdrawalCompleted, []WithdrawalState{WithdrawalExecuting}},
		{WithdrawalFailed, []WithdrawalState{WithdrawalExecuting}},
		{WithdrawalPending, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.target.String(), func(t *testing.T) {
			assert.Equal(t, tc.qualified, QualifiedStatesForWithdrawalTransition(tc.target))
		})
	}
}

func TestWithdrawalTerminalStates(t *testing.T) {
	assert.True(t, WithdrawalRejected.IsTerminal())
	assert.True(t, WithdrawalCompleted.IsTerminal())
	assert.True(t, WithdrawalFailed.IsTerminal())
	assert.False(t, WithdrawalPending.IsTerminal())
	assert.False(t, WithdrawalApproved.IsTerminal())
	assert.False(t, WithdrawalExecuting.IsTerminal())
}

func TestTransactionTypeDirection(t *testing.T) {
	credits := []TransactionType{TxPurchase, TxTransferIn, TxDeposit, TxMint, TxAirdrop}
	for _, typ := range credits {
		assert.True(t, typ.Credits(), typ)
		assert.False(t, typ.Debits(), typ)
	}

	debits := []TransactionType{TxSale, TxTransferOut, TxWithdrawal, TxBurn}
	for _, typ := range debits {
		assert.True(t, typ.Debits(), typ)
		assert.False(t, typ.Credits(), typ)
	}

	// Dividend and swap rows are cash-side and move no token balance.
	assert.False(t, TxDividend.Credits())
	assert.False(t, TxDividend.Debits())
	assert.False(t, TxSwap.Credits())
	assert.False(t, TxSwap.Debits())
}
