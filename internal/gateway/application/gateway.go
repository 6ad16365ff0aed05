package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"cardgate/internal/common/config"
	"cardgate/internal/common/logging"
	"cardgate/internal/common/metrics"
	vo "cardgate/internal/common/value_objects"
	"cardgate/internal/gateway/domain"
)

// Gateway orchestrates authorize, risk screening, capture and cancel against a
// remote processor and returns normalized results.
//
// A Gateway holds no per-call state: risk verdicts and failure reasons are values
// threaded through each call, so one instance is safe for concurrent use.
// It never retries and never caches; timeouts come from ctx and the client.
type Gateway struct {
	client     domain.ProcessorClient
	thresholds domain.RiskThresholds
	normalizer Normalizer
	stored     StoredCredentials
	newID      func() string
}

var _ domain.PaymentGateway = (*Gateway)(nil)

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithRiskThresholds replaces the default thresholds for every call that does not
// carry its own.
func WithRiskThresholds(thresholds domain.RiskThresholds) GatewayOption {
	return func(g *Gateway) {
		g.thresholds = thresholds
	}
}

// WithReferenceKind selects how stored references are resolved by the processor.
func WithReferenceKind(kind domain.ReferenceKind) GatewayOption {
	return func(g *Gateway) {
		g.stored = NewStoredCredentials(kind)
	}
}

// WithIDGenerator overrides how missing merchant transaction ids are generated.
func WithIDGenerator(fn func() string) GatewayOption {
	return func(g *Gateway) {
		g.newID = fn
	}
}

// NewGateway creates a Gateway. It fails with config.ErrMissingCredentials when
// the processor login is incomplete, since no call could succeed.
func NewGateway(client domain.ProcessorClient, creds config.ProcessorCredentials, opts ...GatewayOption) (*Gateway, error) {
	if creds.Login == "" || creds.Password == "" {
		return nil, config.ErrMissingCredentials
	}
	if client == nil {
		return nil, errors.New("processor client is required")
	}

	g := &Gateway{
		client:     client,
		thresholds: domain.DefaultRiskThresholds(),
		normalizer: NewNormalizer(creds.TestMode()),
		stored:     NewStoredCredentials(domain.ReferenceByMerchantOrderID),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Authorize reserves funds on a fresh card and screens the authorization.
// A Pass returns a capturable token; a Hold returns the token flagged for fraud
// review; a Fail voids the authorization and returns no token.
// The error is non-nil only when the processor could not be reached.
func (g *Gateway) Authorize(ctx context.Context, req domain.ChargeRequest) (domain.PaymentResult, error) {
	result, err := g.authorize(ctx, req, true)
	return g.observe(domain.OperationAuthorize, result, err)
}

// Purchase authorizes and, when the authorization is clean, captures it.
func (g *Gateway) Purchase(ctx context.Context, req domain.ChargeRequest) (domain.PaymentResult, error) {
	result, err := g.purchase(ctx, req, true)
	return g.observe(domain.OperationPurchase, result, err)
}

// Capture settles a previously authorized token. Capturing the same token twice
// yields the same outcome; the processor treats repeated captures as no-ops.
func (g *Gateway) Capture(ctx context.Context, req domain.CaptureRequest) (domain.PaymentResult, error) {
	result, err := g.capture(ctx, req)
	return g.observe(domain.OperationCapture, result, err)
}

// StoredAuthorize authorizes against the payment method of a prior order.
// The billing address is optional.
func (g *Gateway) StoredAuthorize(ctx context.Context, req domain.StoredChargeRequest) (domain.PaymentResult, error) {
	charge, failed := g.resolveStored(req)
	if failed != nil {
		return g.observe(domain.OperationStoredAuthorize, *failed, nil)
	}
	result, err := g.authorize(ctx, charge, false)
	return g.observe(domain.OperationStoredAuthorize, result, err)
}

// StoredPurchase is Purchase against the payment method of a prior order.
func (g *Gateway) StoredPurchase(ctx context.Context, req domain.StoredChargeRequest) (domain.PaymentResult, error) {
	charge, failed := g.resolveStored(req)
	if failed != nil {
		return g.observe(domain.OperationStoredPurchase, *failed, nil)
	}
	result, err := g.purchase(ctx, charge, false)
	return g.observe(domain.OperationStoredPurchase, result, err)
}

func (g *Gateway) resolveStored(req domain.StoredChargeRequest) (domain.ChargeRequest, *domain.PaymentResult) {
	method, err := g.stored.Resolve(req.PriorOrderID, req.AccountID)
	if err != nil {
		failed := g.failed(err.Error())
		return domain.ChargeRequest{}, &failed
	}

	opts := req.Options
	if opts.MerchantAccountID == "" {
		opts.MerchantAccountID = req.AccountID
	}
	return domain.ChargeRequest{
		Amount:        req.Amount,
		PaymentMethod: method,
		Address:       req.Address,
		Options:       opts,
	}, nil
}

func (g *Gateway) purchase(ctx context.Context, req domain.ChargeRequest, requireAddress bool) (domain.PaymentResult, error) {
	auth, err := g.authorize(ctx, req, requireAddress)
	if err != nil || auth.FraudReview || !auth.Succeeded {
		return auth, err
	}
	return g.capture(ctx, domain.CaptureRequest{Amount: req.Amount, AuthorizationToken: auth.AuthorizationToken})
}

func (g *Gateway) authorize(ctx context.Context, req domain.ChargeRequest, requireAddress bool) (domain.PaymentResult, error) {
	if !req.Amount.IsPositive() {
		return g.failed(vo.ErrNonPositiveAmount.Error()), nil
	}
	if err := req.PaymentMethod.Validate(); err != nil {
		return g.failed(err.Error()), nil
	}
	if requireAddress && req.Address == nil {
		return g.failed(domain.ErrMissingBillingAddress.Error()), nil
	}

	thresholds := g.thresholds
	if req.Options.Thresholds != nil {
		thresholds = *req.Options.Thresholds
	}

	authReq := g.buildRequest(req)
	ctx = logging.WithMerchantTransactionID(ctx, authReq.MerchantTransactionID)
	txn := domain.NewTransaction()

	record, err := g.client.Authorize(ctx, authReq, thresholds.RiskScoreFail)
	if err != nil {
		return domain.PaymentResult{}, fmt.Errorf("authorizing %s: %w", authReq.MerchantTransactionID, err)
	}

	if !record.OK() {
		if err := txn.Reject(); err != nil {
			return domain.PaymentResult{}, err
		}
		logging.InfoContext(ctx, "Authorization rejected by processor",
			"status_code", record.StatusCode,
			"status_message", record.StatusMessage,
		)
		return g.finish(g.normalizer.Normalize(record, "", false), txn), nil
	}

	if err := txn.Authorized(record.Ref); err != nil {
		return domain.PaymentResult{}, err
	}

	signal := domain.ExtractRiskSignal(record.StatusLog)
	verdict := domain.Evaluate(signal, thresholds)
	metrics.RecordRiskDecision(string(verdict.Decision))

	if err := txn.ApplyDecision(verdict.Decision); err != nil {
		return domain.PaymentResult{}, err
	}

	logging.InfoContext(ctx, "Authorization screened",
		"ref", record.Ref.String(),
		"avs_code", signal.AVSCode,
		"cvn_code", signal.CVNCode,
		"signal_found", signal.Found,
		"decision", string(verdict.Decision),
	)

	switch verdict.Decision {
	case domain.DecisionFail:
		g.cancel(ctx, txn)
		result := g.normalizer.Normalize(record, verdict.Reason, false)
		result.AuthorizationToken = ""
		return g.finish(result, txn), nil
	case domain.DecisionHold:
		return g.finish(g.normalizer.Normalize(record, verdict.Reason, true), txn), nil
	default:
		return g.finish(g.normalizer.Normalize(record, "", false), txn), nil
	}
}

// cancel voids a failed authorization. It is best-effort: a processor error is
// logged and the transaction stays in Cancelling.
func (g *Gateway) cancel(ctx context.Context, txn *domain.Transaction) {
	if err := g.client.Cancel(ctx, []domain.TransactionRef{txn.Ref()}); err != nil {
		logging.WarnContext(ctx, "Cancel of failed authorization did not complete",
			"ref", txn.Ref().String(),
			"error", err,
		)
		return
	}
	if err := txn.Cancelled(); err != nil {
		logging.ErrorContext(ctx, "Unexpected state after cancel", "error", err)
	}
}

func (g *Gateway) capture(ctx context.Context, req domain.CaptureRequest) (domain.PaymentResult, error) {
	if req.AuthorizationToken == "" {
		return g.failed(domain.ReasonInvalidToken.String()), nil
	}

	ref := domain.TransactionRef(req.AuthorizationToken)
	txn := domain.ResumeForCapture(ref)

	ack, err := g.client.Capture(ctx, []domain.TransactionRef{ref})
	if err != nil {
		return domain.PaymentResult{}, fmt.Errorf("capturing %s: %w", ref, err)
	}

	if len(ack.Results) == 0 || ack.Results[0].MerchantTransactionID == "" {
		return g.unconfirmedCapture(ctx, txn, ack)
	}

	merchantTxnID := ack.Results[0].MerchantTransactionID
	ctx = logging.WithMerchantTransactionID(ctx, merchantTxnID)

	record, err := g.client.FindByMerchantTransactionID(ctx, merchantTxnID)
	if errors.Is(err, domain.ErrRemoteRecordNotFound) {
		return g.unconfirmedCapture(ctx, txn, ack)
	}
	if err != nil {
		return domain.PaymentResult{}, fmt.Errorf("looking up captured %s: %w", merchantTxnID, err)
	}

	// The lookup only reflects the transaction; the acknowledgement counts decide.
	var failure domain.FailureReason
	if ack.SucceededCount == 0 {
		failure = domain.ReasonCaptureFailed
		if record.OK() {
			metrics.RecordCaptureInconsistency()
			logging.WarnContext(ctx, "Capture rejected although lookup reports OK",
				"ref", ref.String(),
				"failed_count", ack.FailedCount,
			)
		}
	}

	if failure.IsEmpty() && record.OK() {
		err = txn.Captured()
	} else {
		err = txn.CaptureFailed()
	}
	if err != nil {
		return domain.PaymentResult{}, err
	}

	logging.InfoContext(ctx, "Capture completed",
		"ref", ref.String(),
		"succeeded_count", ack.SucceededCount,
		"state", string(txn.State()),
	)

	result := g.normalizer.Normalize(record, failure, false)
	if result.AuthorizationToken == "" {
		result.AuthorizationToken = ref.String()
	}
	return g.finish(result, txn), nil
}

func (g *Gateway) unconfirmedCapture(ctx context.Context, txn *domain.Transaction, ack domain.CaptureAck) (domain.PaymentResult, error) {
	metrics.RecordCaptureInconsistency()
	logging.WarnContext(ctx, "Capture acknowledgement could not be matched to a transaction",
		"ref", txn.Ref().String(),
		"succeeded_count", ack.SucceededCount,
		"results", len(ack.Results),
	)

	if err := txn.CaptureFailed(); err != nil {
		return domain.PaymentResult{}, err
	}

	reason := domain.ReasonCaptureUnconfirmed
	if ack.SucceededCount == 0 {
		reason = domain.ReasonCaptureFailed
	}
	result := g.failed(reason.String())
	result.AuthorizationToken = txn.Ref().String()
	return g.finish(result, txn), nil
}

func (g *Gateway) buildRequest(req domain.ChargeRequest) domain.AuthorizationRequest {
	opts := req.Options

	merchantTxnID := opts.MerchantTransactionID
	if merchantTxnID == "" {
		merchantTxnID = g.newID()
	}

	currency := opts.Currency
	if currency == "" {
		currency = vo.DefaultCurrency
	}

	var holder string
	if card, ok := req.PaymentMethod.Card(); ok {
		holder = card.HolderName()
	}

	return domain.AuthorizationRequest{
		AmountMinorUnits:      req.Amount,
		Currency:              currency,
		MerchantTransactionID: merchantTxnID,
		Account: domain.Account{
			MerchantAccountID: opts.MerchantAccountID,
			Email:             opts.Email,
			Name:              holder,
		},
		PaymentMethod: req.PaymentMethod,
		Address:       req.Address,
		LineItem: domain.LineItem{
			SKU:             opts.SKU,
			Name:            opts.ItemName,
			PriceMinorUnits: req.Amount,
			Quantity:        1,
			TaxClass:        opts.TaxClass,
		},
		SourceIP:     opts.SourceIP,
		CustomFields: opts.CustomFields,
	}
}

func (g *Gateway) failed(message string) domain.PaymentResult {
	return domain.FailedResult(message, g.normalizer.testMode)
}

func (g *Gateway) finish(result domain.PaymentResult, txn *domain.Transaction) domain.PaymentResult {
	result.State = txn.State()
	return result
}

func (g *Gateway) observe(op domain.Operation, result domain.PaymentResult, err error) (domain.PaymentResult, error) {
	if err != nil {
		metrics.RecordPaymentOutcome(string(op), "error")
		return result, err
	}
	metrics.RecordPaymentOutcome(string(op), string(result.State))
	return result, nil
}
