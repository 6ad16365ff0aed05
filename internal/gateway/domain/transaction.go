package domain

import "fmt"

// Transaction tracks one logical payment through the state machine within a single call.
// It is created per call and never shared.
type Transaction struct {
	ref     TransactionRef
	state   TransactionState
	history []TransactionState
}

// NewTransaction starts a transaction in the New state.
func NewTransaction() *Transaction {
	return &Transaction{
		state:   TransactionStateNew,
		history: []TransactionState{TransactionStateNew},
	}
}

// ResumeForCapture rehydrates a transaction from an authorization token held by the
// caller. Holding the token means the authorization was released for capture.
func ResumeForCapture(ref TransactionRef) *Transaction {
	return &Transaction{
		ref:     ref,
		state:   TransactionStateCaptureEligible,
		history: []TransactionState{TransactionStateCaptureEligible},
	}
}

// Ref returns the processor ref, empty until authorized.
func (t *Transaction) Ref() TransactionRef {
	return t.ref
}

// State returns the current state.
func (t *Transaction) State() TransactionState {
	return t.state
}

// History returns the states visited, oldest first.
func (t *Transaction) History() []TransactionState {
	return append([]TransactionState(nil), t.history...)
}

func (t *Transaction) moveTo(next TransactionState) error {
	if !CanTransition(t.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, t.state, next)
	}
	t.state = next
	t.history = append(t.history, next)
	return nil
}

// Authorized records the processor's acceptance of the authorization.
func (t *Transaction) Authorized(ref TransactionRef) error {
	if err := t.moveTo(TransactionStateAuthorized); err != nil {
		return err
	}
	t.ref = ref
	return nil
}

// Reject records a processor rejection of the authorize request itself.
func (t *Transaction) Reject() error {
	return t.moveTo(TransactionStateRejected)
}

// ApplyDecision moves an authorized transaction according to the risk decision.
func (t *Transaction) ApplyDecision(decision Decision) error {
	switch decision {
	case DecisionPass:
		return t.moveTo(TransactionStateCaptureEligible)
	case DecisionHold:
		return t.moveTo(TransactionStatePendingReview)
	case DecisionFail:
		return t.moveTo(TransactionStateCancelling)
	default:
		return fmt.Errorf("%w: unknown decision %q", ErrInvalidStateTransition, decision)
	}
}

// Cancelled records that the pending authorization was voided.
func (t *Transaction) Cancelled() error {
	return t.moveTo(TransactionStateCancelled)
}

// Captured records a successful capture.
func (t *Transaction) Captured() error {
	return t.moveTo(TransactionStateCaptured)
}

// CaptureFailed records a rejected capture.
func (t *Transaction) CaptureFailed() error {
	return t.moveTo(TransactionStateCaptureFailed)
}
