package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cardgate/internal/common/config"
	"cardgate/internal/common/logging"
	"cardgate/internal/common/metrics"
	vo "cardgate/internal/common/value_objects"
	"cardgate/internal/gateway/domain"
)

// Engine is the full set of gateway operations the payment service drives.
type Engine interface {
	domain.PaymentGateway
	StoredAuthorize(ctx context.Context, req domain.StoredChargeRequest) (domain.PaymentResult, error)
	StoredPurchase(ctx context.Context, req domain.StoredChargeRequest) (domain.PaymentResult, error)
}

// PaymentService is the stateful caller of the gateway. It adds what the gateway
// deliberately leaves out:
//   - Idempotency keys per merchant account, replaying the stored result
//   - An in-flight guard so concurrent duplicates never reach the processor twice
//   - A ledger entry for every outcome, written with the Atomic pattern
//   - Named risk profiles selected per request
//
// The processor call happens outside the storage transaction; only the outcome and
// the idempotency record are committed together.
type PaymentService struct {
	engine    Engine
	dataStore domain.AtomicExecutor
	repos     domain.Repositories
	guard     domain.InFlightGuard
	base      domain.RiskThresholds
	profiles  map[string]domain.ThresholdOverrides
	now       func() time.Time
}

// ServiceOption configures a PaymentService.
type ServiceOption func(*PaymentService)

// WithRiskProfiles registers named threshold overrides layered on base.
func WithRiskProfiles(base domain.RiskThresholds, profiles map[string]domain.ThresholdOverrides) ServiceOption {
	return func(s *PaymentService) {
		s.base = base
		s.profiles = profiles
	}
}

// WithClock overrides the time source for ledger timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *PaymentService) {
		s.now = now
	}
}

// NewPaymentService creates a new PaymentService.
// The dataStore must implement both AtomicExecutor and Repositories interfaces.
func NewPaymentService(engine Engine, dataStore interface {
	domain.AtomicExecutor
	domain.Repositories
}, guard domain.InFlightGuard, opts ...ServiceOption) *PaymentService {
	s := &PaymentService{
		engine:    engine,
		dataStore: dataStore,
		repos:     dataStore,
		guard:     guard,
		base:      domain.DefaultRiskThresholds(),
		profiles:  map[string]domain.ThresholdOverrides{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RiskProfilesFromConfig converts the profiles file into threshold overrides.
func RiskProfilesFromConfig(profiles map[string]config.RiskProfile) map[string]domain.ThresholdOverrides {
	out := make(map[string]domain.ThresholdOverrides, len(profiles))
	for name, p := range profiles {
		out[name] = domain.ThresholdOverrides{
			CVNFail:       p.CVNFail,
			CVNModerate:   p.CVNModerate,
			AVSFail:       p.AVSFail,
			AVSModerate:   p.AVSModerate,
			MissingSignal: domain.MissingSignalPolicy(p.MissingSignal),
			RiskScoreFail: p.RiskScoreFail,
		}
	}
	return out
}

// ChargeCommand represents a request to authorize or purchase with a fresh card.
type ChargeCommand struct {
	MerchantAccountID vo.MerchantAccountID
	IdempotencyKey    string
	RiskProfile       string
	Charge            domain.ChargeRequest
}

// StoredChargeCommand represents a request to authorize or purchase with a stored credential.
type StoredChargeCommand struct {
	MerchantAccountID vo.MerchantAccountID
	IdempotencyKey    string
	RiskProfile       string
	Charge            domain.StoredChargeRequest
}

// CaptureCommand represents a request to capture an authorization.
type CaptureCommand struct {
	MerchantAccountID vo.MerchantAccountID
	IdempotencyKey    string
	Capture           domain.CaptureRequest
}

// Authorize reserves funds on a fresh card.
func (s *PaymentService) Authorize(ctx context.Context, cmd ChargeCommand) (*domain.PaymentResult, error) {
	return s.charge(ctx, domain.OperationAuthorize, cmd, s.engine.Authorize)
}

// Purchase authorizes and captures a fresh card.
func (s *PaymentService) Purchase(ctx context.Context, cmd ChargeCommand) (*domain.PaymentResult, error) {
	return s.charge(ctx, domain.OperationPurchase, cmd, s.engine.Purchase)
}

// StoredAuthorize reserves funds on the payment method of a prior order.
func (s *PaymentService) StoredAuthorize(ctx context.Context, cmd StoredChargeCommand) (*domain.PaymentResult, error) {
	return s.storedCharge(ctx, domain.OperationStoredAuthorize, cmd, s.engine.StoredAuthorize)
}

// StoredPurchase authorizes and captures the payment method of a prior order.
func (s *PaymentService) StoredPurchase(ctx context.Context, cmd StoredChargeCommand) (*domain.PaymentResult, error) {
	return s.storedCharge(ctx, domain.OperationStoredPurchase, cmd, s.engine.StoredPurchase)
}

// Capture settles an authorization token.
func (s *PaymentService) Capture(ctx context.Context, cmd CaptureCommand) (*domain.PaymentResult, error) {
	entry := domain.LedgerEntry{
		MerchantAccountID: cmd.MerchantAccountID,
		Operation:         domain.OperationCapture,
		Amount:            cmd.Capture.Amount,
		Currency:          vo.DefaultCurrency,
	}
	if cmd.Capture.AuthorizationToken != "" {
		prior, err := s.repos.Ledger().LatestByToken(ctx, cmd.MerchantAccountID, cmd.Capture.AuthorizationToken)
		switch {
		case err == nil:
			entry.MerchantTransactionID = prior.MerchantTransactionID
			entry.Currency = prior.Currency
		case !errors.Is(err, domain.ErrPaymentNotFound):
			return nil, err
		}
	}

	return s.run(ctx, cmd.MerchantAccountID, cmd.IdempotencyKey, entry, func(ctx context.Context) (domain.PaymentResult, error) {
		return s.engine.Capture(ctx, cmd.Capture)
	})
}

func (s *PaymentService) charge(
	ctx context.Context,
	op domain.Operation,
	cmd ChargeCommand,
	call func(context.Context, domain.ChargeRequest) (domain.PaymentResult, error),
) (*domain.PaymentResult, error) {
	req := cmd.Charge
	if err := s.prepareOptions(&req.Options, cmd.MerchantAccountID, cmd.RiskProfile); err != nil {
		return nil, err
	}

	entry := s.chargeEntry(op, cmd.MerchantAccountID, req.Amount, req.Options)
	return s.run(ctx, cmd.MerchantAccountID, cmd.IdempotencyKey, entry, func(ctx context.Context) (domain.PaymentResult, error) {
		return call(ctx, req)
	})
}

func (s *PaymentService) storedCharge(
	ctx context.Context,
	op domain.Operation,
	cmd StoredChargeCommand,
	call func(context.Context, domain.StoredChargeRequest) (domain.PaymentResult, error),
) (*domain.PaymentResult, error) {
	req := cmd.Charge
	if err := s.prepareOptions(&req.Options, cmd.MerchantAccountID, cmd.RiskProfile); err != nil {
		return nil, err
	}

	entry := s.chargeEntry(op, cmd.MerchantAccountID, req.Amount, req.Options)
	return s.run(ctx, cmd.MerchantAccountID, cmd.IdempotencyKey, entry, func(ctx context.Context) (domain.PaymentResult, error) {
		return call(ctx, req)
	})
}

// prepareOptions fixes the merchant transaction id up front so the ledger knows it,
// and resolves the named risk profile.
func (s *PaymentService) prepareOptions(opts *domain.ChargeOptions, accountID vo.MerchantAccountID, profile string) error {
	if opts.MerchantTransactionID == "" {
		opts.MerchantTransactionID = uuid.NewString()
	}
	if opts.MerchantAccountID == "" {
		opts.MerchantAccountID = accountID.String()
	}
	if profile == "" || opts.Thresholds != nil {
		return nil
	}

	overrides, ok := s.profiles[profile]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownRiskProfile, profile)
	}
	thresholds := overrides.Apply(s.base)
	opts.Thresholds = &thresholds
	return nil
}

func (s *PaymentService) chargeEntry(op domain.Operation, accountID vo.MerchantAccountID, amount vo.MinorUnits, opts domain.ChargeOptions) domain.LedgerEntry {
	currency := opts.Currency
	if currency == "" {
		currency = vo.DefaultCurrency
	}
	return domain.LedgerEntry{
		MerchantAccountID:     accountID,
		MerchantTransactionID: opts.MerchantTransactionID,
		Operation:             op,
		Amount:                amount,
		Currency:              currency,
	}
}

// run executes one gateway call under the idempotency and in-flight guards and
// records its outcome. Connectivity errors are returned and nothing is recorded,
// so the caller may retry with the same key.
func (s *PaymentService) run(
	ctx context.Context,
	accountID vo.MerchantAccountID,
	key string,
	entry domain.LedgerEntry,
	call func(context.Context) (domain.PaymentResult, error),
) (*domain.PaymentResult, error) {
	ctx = logging.WithMerchantAccountID(ctx, accountID)
	if entry.MerchantTransactionID != "" {
		ctx = logging.WithMerchantTransactionID(ctx, entry.MerchantTransactionID)
	}

	if key != "" {
		guardKey := accountID.String() + ":" + key
		owner, err := s.guard.Acquire(ctx, guardKey)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := s.guard.Release(context.WithoutCancel(ctx), guardKey, owner); err != nil {
				logging.WarnContext(ctx, "Failed to release in-flight guard", "error", err)
			}
		}()

		replayed, err := s.replay(ctx, accountID, key, entry.Operation)
		if err != nil || replayed != nil {
			return replayed, err
		}
	}

	result, err := call(ctx)
	if err != nil {
		return nil, err
	}

	entry.ID = uuid.NewString()
	entry.AuthorizationToken = result.AuthorizationToken
	entry.State = result.State
	entry.Succeeded = result.Succeeded
	entry.FraudReview = result.FraudReview
	entry.Message = result.Message
	entry.CreatedAt = s.now()

	err = s.dataStore.Atomic(ctx, func(repos domain.Repositories) error {
		if err := repos.Ledger().Append(ctx, &entry); err != nil {
			return err
		}

		if key == "" {
			return nil
		}

		responseBody, err := json.Marshal(result)
		if err != nil {
			return err
		}
		return repos.IdempotencyStore().Set(ctx, &domain.IdempotencyEntry{
			MerchantAccountID: accountID,
			IdempotencyKey:    key,
			Operation:         entry.Operation,
			ResponseBody:      responseBody,
			CreatedAt:         entry.CreatedAt,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("recording %s outcome: %w", entry.Operation, err)
	}

	logging.InfoContext(ctx, "Payment outcome recorded",
		"operation", string(entry.Operation),
		"state", string(entry.State),
		"succeeded", entry.Succeeded,
		"fraud_review", entry.FraudReview,
		"amount", entry.Amount.String(),
	)

	return &result, nil
}

func (s *PaymentService) replay(ctx context.Context, accountID vo.MerchantAccountID, key string, op domain.Operation) (*domain.PaymentResult, error) {
	existing, err := s.repos.IdempotencyStore().Get(ctx, accountID, key)
	if err != nil || existing == nil {
		return nil, err
	}
	if existing.Operation != op {
		return nil, fmt.Errorf("%w: key %q was used for %s", domain.ErrIdempotencyKeyReused, key, existing.Operation)
	}

	var result domain.PaymentResult
	if err := json.Unmarshal(existing.ResponseBody, &result); err != nil {
		return nil, fmt.Errorf("%w: idempotency response: %v", domain.ErrCorruptData, err)
	}

	metrics.RecordIdempotencyCacheHit()
	logging.InfoContext(ctx, "Replaying stored payment result", "operation", string(op))
	return &result, nil
}

// PaymentView is the latest recorded state of an authorization token.
type PaymentView struct {
	AuthorizationToken    string `json:"authorization_token"`
	MerchantTransactionID string `json:"merchant_transaction_id"`
	Operation             string `json:"operation"`
	State                 string `json:"state"`
	Succeeded             bool   `json:"succeeded"`
	FraudReview           bool   `json:"fraud_review"`
	Message               string `json:"message"`
	Amount                string `json:"amount"`
	AmountMinorUnits      int64  `json:"amount_minor_units"`
	Currency              string `json:"currency"`
	RecordedAt            string `json:"recorded_at"`
}

// GetPayment returns the latest ledger entry the account recorded for a token.
// Tokens recorded by other accounts are reported as ErrPaymentNotFound.
// This is a read-only operation and doesn't use the Atomic pattern.
func (s *PaymentService) GetPayment(ctx context.Context, accountID vo.MerchantAccountID, token string) (*PaymentView, error) {
	entry, err := s.repos.Ledger().LatestByToken(ctx, accountID, token)
	if err != nil {
		return nil, err
	}

	return &PaymentView{
		AuthorizationToken:    entry.AuthorizationToken,
		MerchantTransactionID: entry.MerchantTransactionID,
		Operation:             string(entry.Operation),
		State:                 string(entry.State),
		Succeeded:             entry.Succeeded,
		FraudReview:           entry.FraudReview,
		Message:               entry.Message,
		Amount:                entry.Amount.String(),
		AmountMinorUnits:      int64(entry.Amount),
		Currency:              entry.Currency.String(),
		RecordedAt:            entry.CreatedAt.Format(time.RFC3339),
	}, nil
}
