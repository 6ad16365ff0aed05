package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"cardgate/internal/common/logging"
	vo "cardgate/internal/common/value_objects"
	"cardgate/internal/gateway/application"
	"cardgate/internal/gateway/domain"
)

// Request headers.
const (
	HeaderMerchantAccountID = "X-Merchant-Account-ID"
	HeaderIdempotencyKey    = "Idempotency-Key"
	HeaderCorrelationID     = "X-Correlation-ID"
)

// Handler implements the HTTP handlers for the payments API.
// Business outcomes (declines, fraud holds, risk failures) are 200 responses
// carrying the PaymentResult; only envelope and infrastructure problems are errors.
type Handler struct {
	service *application.PaymentService
}

// NewHandler creates a new Handler.
func NewHandler(service *application.PaymentService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the payments API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /payments/authorize", h.Authorize)
	mux.HandleFunc("POST /payments/purchase", h.Purchase)
	mux.HandleFunc("POST /payments/stored/authorize", h.StoredAuthorize)
	mux.HandleFunc("POST /payments/stored/purchase", h.StoredPurchase)
	mux.HandleFunc("POST /payments/{token}/capture", h.Capture)
	mux.HandleFunc("GET /payments/{token}", h.GetPayment)
}

// CardRequest is raw card data in a charge request.
type CardRequest struct {
	Number           string `json:"number"`
	ExpiryYear       int    `json:"expiry_year"`
	ExpiryMonth      int    `json:"expiry_month"`
	VerificationCode string `json:"verification_code"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
}

// AddressRequest is a billing address in a charge request.
type AddressRequest struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	Region     string `json:"region"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
}

// ChargeOptionsRequest holds the fields shared by fresh-card and stored charges.
type ChargeOptionsRequest struct {
	AmountMinorUnits int64             `json:"amount_minor_units"`
	Currency         string            `json:"currency"`
	OrderID          string            `json:"order_id"`
	Email            string            `json:"email"`
	SKU              string            `json:"sku"`
	ItemName         string            `json:"item_name"`
	TaxClass         string            `json:"tax_class"`
	CustomFields     map[string]string `json:"custom_fields"`
	RiskProfile      string            `json:"risk_profile"`
	BillingAddress   *AddressRequest   `json:"billing_address"`
}

// ChargeRequest is the JSON request body for authorize and purchase.
type ChargeRequest struct {
	ChargeOptionsRequest
	Card *CardRequest `json:"card"`
}

// StoredChargeRequest is the JSON request body for stored-credential authorize and purchase.
type StoredChargeRequest struct {
	ChargeOptionsRequest
	PriorOrderID string `json:"prior_order_id"`
}

// CaptureRequest is the JSON request body for capture.
type CaptureRequest struct {
	AmountMinorUnits int64 `json:"amount_minor_units"`
}

// requestContext carries the header-level fields common to every payment call.
type requestContext struct {
	ctx            context.Context
	accountID      vo.MerchantAccountID
	idempotencyKey string
	sourceIP       string
}

func (h *Handler) parseHeaders(w http.ResponseWriter, r *http.Request) (requestContext, bool) {
	accountID, err := vo.ParseMerchantAccountID(r.Header.Get(HeaderMerchantAccountID))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, HeaderMerchantAccountID+" header is required", nil)
		return requestContext{}, false
	}

	correlationID, err := vo.ParseCorrelationID(r.Header.Get(HeaderCorrelationID))
	if err != nil {
		correlationID = vo.NewCorrelationID()
	}
	w.Header().Set(HeaderCorrelationID, correlationID.String())

	ctx := logging.WithCorrelationID(r.Context(), correlationID)
	ctx = logging.WithMerchantAccountID(ctx, accountID)

	sourceIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		sourceIP = r.RemoteAddr
	}

	return requestContext{
		ctx:            ctx,
		accountID:      accountID,
		idempotencyKey: r.Header.Get(HeaderIdempotencyKey),
		sourceIP:       sourceIP,
	}, true
}

func (o ChargeOptionsRequest) toDomain(accountID vo.MerchantAccountID, sourceIP string) (vo.MinorUnits, *domain.Address, domain.ChargeOptions, error) {
	currency, err := vo.ParseCurrency(o.Currency)
	if err != nil {
		return 0, nil, domain.ChargeOptions{}, err
	}

	var address *domain.Address
	if o.BillingAddress != nil {
		address = &domain.Address{
			Line1:      o.BillingAddress.Line1,
			City:       o.BillingAddress.City,
			Region:     o.BillingAddress.Region,
			Country:    o.BillingAddress.Country,
			PostalCode: o.BillingAddress.PostalCode,
		}
	}

	return vo.MinorUnits(o.AmountMinorUnits), address, domain.ChargeOptions{
		MerchantTransactionID: o.OrderID,
		Currency:              currency,
		MerchantAccountID:     accountID.String(),
		Email:                 o.Email,
		SKU:                   o.SKU,
		ItemName:              o.ItemName,
		TaxClass:              o.TaxClass,
		SourceIP:              sourceIP,
		CustomFields:          o.CustomFields,
	}, nil
}

func (h *Handler) decodeCharge(w http.ResponseWriter, r *http.Request) (requestContext, application.ChargeCommand, bool) {
	rc, ok := h.parseHeaders(w, r)
	if !ok {
		return rc, application.ChargeCommand{}, false
	}

	var req ChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return rc, application.ChargeCommand{}, false
	}
	if req.Card == nil {
		h.writeError(w, http.StatusBadRequest, "card is required", nil)
		return rc, application.ChargeCommand{}, false
	}

	amount, address, opts, err := req.toDomain(rc.accountID, rc.sourceIP)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid currency", err)
		return rc, application.ChargeCommand{}, false
	}

	return rc, application.ChargeCommand{
		MerchantAccountID: rc.accountID,
		IdempotencyKey:    rc.idempotencyKey,
		RiskProfile:       req.RiskProfile,
		Charge: domain.ChargeRequest{
			Amount: amount,
			PaymentMethod: domain.NewCardPaymentMethod(domain.Card{
				Number:           req.Card.Number,
				Expiry:           domain.Expiry{Year: req.Card.ExpiryYear, Month: req.Card.ExpiryMonth},
				VerificationCode: req.Card.VerificationCode,
				FirstName:        req.Card.FirstName,
				LastName:         req.Card.LastName,
			}),
			Address: address,
			Options: opts,
		},
	}, true
}

func (h *Handler) decodeStoredCharge(w http.ResponseWriter, r *http.Request) (requestContext, application.StoredChargeCommand, bool) {
	rc, ok := h.parseHeaders(w, r)
	if !ok {
		return rc, application.StoredChargeCommand{}, false
	}

	var req StoredChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return rc, application.StoredChargeCommand{}, false
	}

	amount, address, opts, err := req.toDomain(rc.accountID, rc.sourceIP)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid currency", err)
		return rc, application.StoredChargeCommand{}, false
	}

	return rc, application.StoredChargeCommand{
		MerchantAccountID: rc.accountID,
		IdempotencyKey:    rc.idempotencyKey,
		RiskProfile:       req.RiskProfile,
		Charge: domain.StoredChargeRequest{
			Amount:       amount,
			PriorOrderID: req.PriorOrderID,
			AccountID:    rc.accountID.String(),
			Address:      address,
			Options:      opts,
		},
	}, true
}

// Authorize handles POST /payments/authorize.
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	rc, cmd, ok := h.decodeCharge(w, r)
	if !ok {
		return
	}
	h.respond(w, rc.ctx)(h.service.Authorize(rc.ctx, cmd))
}

// Purchase handles POST /payments/purchase.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	rc, cmd, ok := h.decodeCharge(w, r)
	if !ok {
		return
	}
	h.respond(w, rc.ctx)(h.service.Purchase(rc.ctx, cmd))
}

// StoredAuthorize handles POST /payments/stored/authorize.
func (h *Handler) StoredAuthorize(w http.ResponseWriter, r *http.Request) {
	rc, cmd, ok := h.decodeStoredCharge(w, r)
	if !ok {
		return
	}
	h.respond(w, rc.ctx)(h.service.StoredAuthorize(rc.ctx, cmd))
}

// StoredPurchase handles POST /payments/stored/purchase.
func (h *Handler) StoredPurchase(w http.ResponseWriter, r *http.Request) {
	rc, cmd, ok := h.decodeStoredCharge(w, r)
	if !ok {
		return
	}
	h.respond(w, rc.ctx)(h.service.StoredPurchase(rc.ctx, cmd))
}

// Capture handles POST /payments/{token}/capture.
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.parseHeaders(w, r)
	if !ok {
		return
	}

	var req CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	h.respond(w, rc.ctx)(h.service.Capture(rc.ctx, application.CaptureCommand{
		MerchantAccountID: rc.accountID,
		IdempotencyKey:    rc.idempotencyKey,
		Capture: domain.CaptureRequest{
			Amount:             vo.MinorUnits(req.AmountMinorUnits),
			AuthorizationToken: r.PathValue("token"),
		},
	}))
}

// GetPayment handles GET /payments/{token}.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.parseHeaders(w, r)
	if !ok {
		return
	}

	resp, err := h.service.GetPayment(rc.ctx, rc.accountID, r.PathValue("token"))
	if err != nil {
		h.handleDomainError(rc.ctx, w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// respond writes a payment result or maps the service error.
func (h *Handler) respond(w http.ResponseWriter, ctx context.Context) func(*domain.PaymentResult, error) {
	return func(result *domain.PaymentResult, err error) {
		if err != nil {
			h.handleDomainError(ctx, w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, result)
	}
}

// handleDomainError maps domain errors to HTTP responses.
func (h *Handler) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrPaymentNotFound):
		h.writeError(w, http.StatusNotFound, "payment not found", nil)
	case errors.Is(err, domain.ErrRequestInFlight):
		h.writeError(w, http.StatusConflict, "request with this idempotency key is in progress", nil)
	case errors.Is(err, domain.ErrIdempotencyKeyReused):
		h.writeError(w, http.StatusUnprocessableEntity, "idempotency key was used for a different operation", nil)
	case errors.Is(err, domain.ErrUnknownRiskProfile):
		h.writeError(w, http.StatusBadRequest, "unknown risk profile", err)
	case errors.Is(err, domain.ErrProcessorUnavailable):
		logging.WarnContext(ctx, "Processor unavailable", "error", err)
		h.writeError(w, http.StatusBadGateway, "payment processor unavailable", nil)
	default:
		logging.ErrorContext(ctx, "Unhandled error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error", nil)
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error("Failed to encode response", "error", err)
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Message = err.Error()
	}
	h.writeJSON(w, status, resp)
}
