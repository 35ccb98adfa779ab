package types

// Enum values for Withdrawal State
type WithdrawalState string

const (
	WithdrawalPending   WithdrawalState = "PENDING"
	WithdrawalApproved  WithdrawalState = "APPROVED"
	WithdrawalRejected  WithdrawalState = "REJECTED"
	WithdrawalExecuting WithdrawalState = "EXECUTING"
	WithdrawalCompleted WithdrawalState = "COMPLETED"
	WithdrawalFailed    WithdrawalState = "FAILED"
)

func (s WithdrawalState) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition may leave this state.
func (s WithdrawalState) IsTerminal() bool {
	switch s {
	case WithdrawalRejected, WithdrawalCompleted, WithdrawalFailed:
		return true
	default:
		return false
	}
}

// QualifiedStatesForWithdrawalTransition returns the states from which a
// withdrawal may move into newState. An empty result means newState is
// never a valid target.
func QualifiedStatesForWithdrawalTransition(newState WithdrawalState) []WithdrawalState {
	switch newState {
	case WithdrawalApproved, WithdrawalRejected:
		return []WithdrawalState{WithdrawalPending}
	case WithdrawalExecuting:
		return []WithdrawalState{WithdrawalApproved}
	case WithdrawalCompleted, WithdrawalFailed:
		return []WithdrawalState{WithdrawalExecuting}
	default:
		return nil
	}
}
