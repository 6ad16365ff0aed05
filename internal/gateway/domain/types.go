package domain

// TransactionState is a step in the per-transaction state machine.
type TransactionState string

const (
	TransactionStateNew             TransactionState = "new"
	TransactionStateAuthorized      TransactionState = "authorized"
	TransactionStateCaptureEligible TransactionState = "capture_eligible"
	TransactionStateCaptured        TransactionState = "captured"
	TransactionStateCaptureFailed   TransactionState = "capture_failed"
	TransactionStatePendingReview   TransactionState = "pending_review"
	TransactionStateCancelling      TransactionState = "cancelling"
	TransactionStateCancelled       TransactionState = "cancelled"
	TransactionStateRejected        TransactionState = "rejected"
)

// IsTerminal reports whether the engine makes no further transitions from the state.
func (s TransactionState) IsTerminal() bool {
	switch s {
	case TransactionStateCaptured, TransactionStateCaptureFailed, TransactionStatePendingReview,
		TransactionStateCancelled, TransactionStateRejected:
		return true
	default:
		return false
	}
}

// transitions lists the allowed edges of the state machine.
var transitions = map[TransactionState][]TransactionState{
	TransactionStateNew:             {TransactionStateAuthorized, TransactionStateRejected},
	TransactionStateAuthorized:      {TransactionStateCaptureEligible, TransactionStatePendingReview, TransactionStateCancelling},
	TransactionStateCaptureEligible: {TransactionStateCaptured, TransactionStateCaptureFailed},
	TransactionStateCancelling:      {TransactionStateCancelled},
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to TransactionState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
