package sandbox

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"cardgate/internal/common/config"
	"cardgate/internal/gateway/domain"
)

// Status codes and messages the sandbox answers with.
const (
	StatusBadRequest   = 400
	StatusUnauthorized = 401
	StatusRiskFailed   = 403
	StatusNotFound     = 404

	MessageOK                 = "OK"
	MessagePermissionDenied   = `Permission denied to domain "soap"`
	MessageDeclined           = "Payment method validation failed"
	MessageRiskScreening      = "Transaction failed risk screening"
	MessageDuplicate          = "Duplicate merchantTransactionId"
	MessageUnknownReference   = "Unable to find stored payment method"
	MessageNotCapturable      = "Transaction is not in a capturable state"
	MessageUnknownTransaction = "Unable to find transaction"
	MessageNotVoidable        = "Transaction can no longer be voided"
)

// Status-log statuses written by the sandbox.
const (
	StatusNew       = "New"
	StatusCaptured  = "Captured"
	StatusCancelled = "Cancelled"
)

type transaction struct {
	ref           domain.TransactionRef
	merchantTxnID string
	accountID     string
	cardNumber    string
	amount        string
	currency      string
	riskScore     int
	statusLog     []domain.StatusLogEntry
}

func (t *transaction) status() string {
	return t.statusLog[0].Status
}

func (t *transaction) push(status string) {
	t.statusLog = append([]domain.StatusLogEntry{{Status: status}}, t.statusLog...)
}

// Processor is an in-memory domain.ProcessorClient that behaves like the
// processor's test environment. It authenticates the login it was built with
// against the accepted login.
// Concurrency: all access is guarded by a mutex.
type Processor struct {
	mu          sync.Mutex
	creds       config.ProcessorCredentials
	accepted    func(login, password string) bool
	newRef      func() string
	unavailable bool

	byRef         map[domain.TransactionRef]*transaction
	byMerchantTxn map[string]*transaction
}

// Option configures a Processor.
type Option func(*Processor)

// WithAcceptedLogin only authenticates the given login and password.
func WithAcceptedLogin(login, password string) Option {
	return func(p *Processor) {
		p.accepted = func(l, pw string) bool { return l == login && pw == password }
	}
}

// WithRefGenerator overrides how transaction refs are minted.
func WithRefGenerator(fn func() string) Option {
	return func(p *Processor) {
		p.newRef = fn
	}
}

// NewProcessor creates a sandbox processor. By default any non-empty login is accepted.
func NewProcessor(creds config.ProcessorCredentials, opts ...Option) *Processor {
	p := &Processor{
		creds:         creds,
		accepted:      func(l, pw string) bool { return l != "" && pw != "" },
		newRef:        uuid.NewString,
		byRef:         make(map[domain.TransactionRef]*transaction),
		byMerchantTxn: make(map[string]*transaction),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetUnavailable simulates an outage: every call fails with domain.ErrProcessorUnavailable.
func (p *Processor) SetUnavailable(unavailable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unavailable = unavailable
}

func (p *Processor) authenticated() bool {
	return p.accepted(p.creds.Login, p.creds.Password)
}

func rejection(code int, message string) domain.RemoteRecord {
	return domain.RemoteRecord{
		StatusCode:    code,
		StatusMessage: message,
		Fields: map[string]string{
			"returnCode":   strconv.Itoa(code),
			"returnString": message,
		},
	}
}

// Authorize reserves funds for a fresh card or a stored payment method.
func (p *Processor) Authorize(ctx context.Context, req domain.AuthorizationRequest, riskScoreFail int) (domain.RemoteRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unavailable {
		return domain.RemoteRecord{}, domain.ErrProcessorUnavailable
	}
	if !p.authenticated() {
		return rejection(StatusUnauthorized, MessagePermissionDenied), nil
	}
	if _, exists := p.byMerchantTxn[req.MerchantTransactionID]; exists {
		return rejection(StatusBadRequest, MessageDuplicate), nil
	}

	cardNumber, ok := p.resolveCard(req.PaymentMethod, req.Account.MerchantAccountID)
	if !ok {
		return rejection(StatusBadRequest, MessageUnknownReference), nil
	}

	card := lookupCard(cardNumber)
	if card.Decline {
		return rejection(StatusBadRequest, MessageDeclined), nil
	}
	if riskScoreFail > 0 && card.RiskScore >= riskScoreFail {
		return rejection(StatusRiskFailed, MessageRiskScreening), nil
	}

	txn := &transaction{
		ref:           domain.TransactionRef(p.newRef()),
		merchantTxnID: req.MerchantTransactionID,
		accountID:     req.Account.MerchantAccountID,
		cardNumber:    cardNumber,
		amount:        req.AmountMinorUnits.Decimal().StringFixed(2),
		currency:      req.Currency.String(),
		riskScore:     card.RiskScore,
		statusLog:     []domain.StatusLogEntry{{Status: StatusNew}},
	}
	if !card.SkipAuthLog {
		txn.statusLog = append([]domain.StatusLogEntry{{
			Status:  domain.StatusAuthorized,
			AVSCode: card.AVSCode,
			CVNCode: card.CVNCode,
		}}, txn.statusLog...)
	}

	p.byRef[txn.ref] = txn
	p.byMerchantTxn[txn.merchantTxnID] = txn

	return txn.record(), nil
}

// resolveCard returns the card number behind a payment method. Stored references
// must belong to the same merchant account when one is given.
func (p *Processor) resolveCard(method domain.PaymentMethod, accountID string) (string, bool) {
	if card, ok := method.Card(); ok {
		return card.Number, true
	}

	var prior *transaction
	switch method.ReferenceKind() {
	case domain.ReferenceByRemoteRef:
		prior = p.byRef[domain.TransactionRef(method.StoredReference())]
	default:
		prior = p.byMerchantTxn[method.StoredReference()]
	}
	if prior == nil {
		return "", false
	}
	owner := method.MerchantAccountID()
	if owner == "" {
		owner = accountID
	}
	if owner != "" && prior.accountID != "" && owner != prior.accountID {
		return "", false
	}
	return prior.cardNumber, true
}

// Capture settles authorizations. Capturing an already captured ref succeeds again.
func (p *Processor) Capture(ctx context.Context, refs []domain.TransactionRef) (domain.CaptureAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unavailable {
		return domain.CaptureAck{}, domain.ErrProcessorUnavailable
	}

	ack := domain.CaptureAck{Attempted: len(refs)}
	if !p.authenticated() {
		ack.FailedCount = len(refs)
		return ack, nil
	}

	for _, ref := range refs {
		txn, ok := p.byRef[ref]
		if !ok {
			ack.FailedCount++
			ack.Results = append(ack.Results, domain.CaptureResult{Ref: ref, StatusCode: StatusNotFound})
			continue
		}

		switch txn.status() {
		case domain.StatusAuthorized, StatusNew:
			txn.push(StatusCaptured)
			fallthrough
		case StatusCaptured:
			ack.SucceededCount++
			ack.Results = append(ack.Results, domain.CaptureResult{Ref: ref, MerchantTransactionID: txn.merchantTxnID, StatusCode: domain.StatusOK})
		default:
			ack.FailedCount++
			ack.Results = append(ack.Results, domain.CaptureResult{Ref: ref, MerchantTransactionID: txn.merchantTxnID, StatusCode: StatusBadRequest})
		}
	}
	return ack, nil
}

// Cancel voids pending authorizations. Captured transactions cannot be voided.
func (p *Processor) Cancel(ctx context.Context, refs []domain.TransactionRef) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unavailable {
		return domain.ErrProcessorUnavailable
	}
	if !p.authenticated() {
		return fmt.Errorf("cancel: %s", MessagePermissionDenied)
	}

	for _, ref := range refs {
		txn, ok := p.byRef[ref]
		if !ok {
			return fmt.Errorf("cancel %s: %w", ref, domain.ErrRemoteRecordNotFound)
		}
		switch txn.status() {
		case StatusCancelled:
		case StatusCaptured:
			return fmt.Errorf("cancel %s: %s", ref, MessageNotVoidable)
		default:
			txn.push(StatusCancelled)
		}
	}
	return nil
}

// FindByMerchantTransactionID returns the current record for a transaction.
func (p *Processor) FindByMerchantTransactionID(ctx context.Context, id string) (domain.RemoteRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unavailable {
		return domain.RemoteRecord{}, domain.ErrProcessorUnavailable
	}
	if !p.authenticated() {
		return rejection(StatusUnauthorized, MessagePermissionDenied), nil
	}

	txn, ok := p.byMerchantTxn[id]
	if !ok {
		return domain.RemoteRecord{}, fmt.Errorf("%s %q: %w", MessageUnknownTransaction, id, domain.ErrRemoteRecordNotFound)
	}
	return txn.record(), nil
}

func (t *transaction) record() domain.RemoteRecord {
	log := make([]domain.StatusLogEntry, len(t.statusLog))
	copy(log, t.statusLog)

	fields := map[string]string{
		"VID":                   t.ref.String(),
		"merchantTransactionId": t.merchantTxnID,
		"amount":                t.amount,
		"currency":              t.currency,
		"status":                t.status(),
		"riskScore":             strconv.Itoa(t.riskScore),
		"returnCode":            strconv.Itoa(domain.StatusOK),
		"returnString":          MessageOK,
	}
	if t.accountID != "" {
		fields["merchantAccountId"] = t.accountID
	}
	if signal := domain.ExtractRiskSignal(log); signal.Found {
		fields["avsCode"] = signal.AVSCode
		fields["cvnCode"] = signal.CVNCode
	}

	return domain.RemoteRecord{
		Ref:                   t.ref,
		MerchantTransactionID: t.merchantTxnID,
		StatusCode:            domain.StatusOK,
		StatusMessage:         MessageOK,
		StatusLog:             log,
		Fields:                fields,
	}
}

var _ domain.ProcessorClient = (*Processor)(nil)
