package types

// Enum values for Stake State
type StakeState string

const (
	StakePendingDeposit StakeState = "PENDING_DEPOSIT"
	StakeConfirmed      StakeState = "CONFIRMED"
	StakeUnstaked       StakeState = "UNSTAKED"
)

func (s StakeState) String() string {
	return string(s)
}

// StakeSubState qualifies a state without changing it. A stake whose
// deposit confirmation arrived after the deadline stays PENDING_DEPOSIT
// and carries DepositExpired so callers can report it.
type StakeSubState string

const (
	SubStateDepositExpired StakeSubState = "DEPOSIT_EXPIRED"
)

func (s StakeSubState) String() string {
	return string(s)
}

// QualifiedStatesForConfirm returns the states from which a stake may
// transition to CONFIRMED upon on-chain deposit confirmation.
func QualifiedStatesForConfirm() []StakeState {
	return []StakeState{StakePendingDeposit}
}

// QualifiedStatesForUnstake returns the states from which a stake may
// transition to UNSTAKED. Unstaking anything else is InvalidStakeStatus.
func QualifiedStatesForUnstake() []StakeState {
	return []StakeState{StakeConfirmed}
}
