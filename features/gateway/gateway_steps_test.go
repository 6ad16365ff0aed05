package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"cardgate/internal/common/config"
	vo "cardgate/internal/common/value_objects"
	"cardgate/internal/gateway/application"
	"cardgate/internal/gateway/domain"
	"cardgate/internal/gateway/infrastructure/memory"
	"cardgate/internal/gateway/infrastructure/processor"
	"cardgate/internal/gateway/infrastructure/sandbox"
)

// cardsByName maps the names used in feature files to sandbox card numbers.
var cardsByName = map[string]string{
	"approved":       sandbox.CardApproved,
	"declined":       sandbox.CardDeclined,
	"avs_no_match":   sandbox.CardAVSNoMatch,
	"cvn_no_match":   sandbox.CardCVNNoMatch,
	"cvn_unverified": sandbox.CardCVNUnverified,
	"avs_zip_only":   sandbox.CardAVSZipOnly,
	"high_risk":      sandbox.CardHighRisk,
	"no_auth_log":    sandbox.CardNoAuthLog,
}

type gatewayState struct {
	ctx            context.Context
	account        vo.MerchantAccountID
	acceptLogin    string
	acceptPassword string
	creds          config.ProcessorCredentials
	processor      *sandbox.Processor
	dataStore      *memory.DataStore
	service        *application.PaymentService
	results        []*domain.PaymentResult
	lastError      error
	gatewayError   error
}

func InitializeGatewayScenario(ctx *godog.ScenarioContext) {
	state := &gatewayState{
		ctx:     context.Background(),
		account: vo.MustParseMerchantAccountID("acct-1"),
	}

	// Setup steps
	ctx.Step(`^the processor accepts merchant "([^"]*)" with password "([^"]*)"$`, state.theProcessorAccepts)
	ctx.Step(`^the gateway logs in as "([^"]*)" with password "([^"]*)"$`, state.theGatewayLogsInAs)
	ctx.Step(`^the gateway is created with login "([^"]*)" and no password$`, state.theGatewayIsCreatedWithoutPassword)
	ctx.Step(`^the processor is unavailable$`, state.theProcessorIsUnavailable)

	// Charge steps
	ctx.Step(`^I authorize (\d+) ([A-Z]{3}) on card "([^"]*)" for order "([^"]*)"$`, state.iAuthorize)
	ctx.Step(`^I authorize (\d+) ([A-Z]{3}) on card "([^"]*)" for order "([^"]*)" with idempotency key "([^"]*)"$`, state.iAuthorizeWithIdempotencyKey)
	ctx.Step(`^I have authorized (\d+) ([A-Z]{3}) on card "([^"]*)" for order "([^"]*)"$`, state.iHaveAuthorized)
	ctx.Step(`^I purchase (\d+) ([A-Z]{3}) on card "([^"]*)" for order "([^"]*)"$`, state.iPurchase)
	ctx.Step(`^I make a stored purchase of (\d+) ([A-Z]{3}) for order "([^"]*)" referencing "([^"]*)"$`, state.iMakeAStoredPurchase)

	// Capture steps
	ctx.Step(`^I capture (\d+) ([A-Z]{3}) with the authorization token$`, state.iCaptureWithTheAuthorizationToken)
	ctx.Step(`^I capture (\d+) ([A-Z]{3}) with token "([^"]*)"$`, state.iCaptureWithToken)

	// Outcome steps
	ctx.Step(`^the payment should succeed$`, state.thePaymentShouldSucceed)
	ctx.Step(`^the payment should fail with message "([^"]*)"$`, state.thePaymentShouldFailWithMessage)
	ctx.Step(`^the payment should fail with the permission denied message$`, state.thePaymentShouldFailWithPermissionDenied)
	ctx.Step(`^the payment should be held for review with message "([^"]*)"$`, state.thePaymentShouldBeHeldForReview)
	ctx.Step(`^the payment should not be held for review$`, state.thePaymentShouldNotBeHeldForReview)
	ctx.Step(`^the payment should carry an authorization token$`, state.thePaymentShouldCarryAToken)
	ctx.Step(`^the payment should not carry an authorization token$`, state.thePaymentShouldNotCarryAToken)
	ctx.Step(`^the payment state should be "([^"]*)"$`, state.thePaymentStateShouldBe)
	ctx.Step(`^the message should be "([^"]*)"$`, state.theMessageShouldBe)
	ctx.Step(`^both payments should carry the same authorization token$`, state.bothPaymentsShouldCarryTheSameToken)
	ctx.Step(`^the ledger should show operation "([^"]*)" for the token$`, state.theLedgerShouldShowOperation)
	ctx.Step(`^the request should fail with "([^"]*)"$`, state.theRequestShouldFailWith)
	ctx.Step(`^gateway creation should fail with "([^"]*)"$`, state.gatewayCreationShouldFailWith)
}

func (s *gatewayState) theProcessorAccepts(login, password string) error {
	s.acceptLogin = login
	s.acceptPassword = password
	return nil
}

func (s *gatewayState) theGatewayLogsInAs(login, password string) error {
	s.creds = config.ProcessorCredentials{
		Login:       login,
		Password:    password,
		Environment: config.ProcessorEnvProdtest,
	}
	return s.build()
}

func (s *gatewayState) theGatewayIsCreatedWithoutPassword(login string) error {
	s.creds = config.ProcessorCredentials{Login: login, Environment: config.ProcessorEnvProdtest}
	s.gatewayError = s.build()
	return nil
}

// build wires the same client chain the server uses, backed by the sandbox.
func (s *gatewayState) build() error {
	s.processor = sandbox.NewProcessor(s.creds, sandbox.WithAcceptedLogin(s.acceptLogin, s.acceptPassword))
	client := processor.NewInstrumented(processor.NewCircuitBreaker(s.processor, processor.BreakerSettings{
		Name:        "features",
		OpenTimeout: time.Second,
	}))

	gw, err := application.NewGateway(client, s.creds)
	if err != nil {
		return err
	}

	s.dataStore = memory.NewDataStore()
	s.service = application.NewPaymentService(gw, s.dataStore, memory.NewInFlightGuard(time.Minute))
	return nil
}

func (s *gatewayState) theProcessorIsUnavailable() error {
	s.processor.SetUnavailable(true)
	return nil
}

func (s *gatewayState) chargeCommand(amount int, currency, cardName, orderID, key string) (application.ChargeCommand, error) {
	number, ok := cardsByName[cardName]
	if !ok {
		return application.ChargeCommand{}, fmt.Errorf("unknown test card %q", cardName)
	}
	cur, err := vo.ParseCurrency(currency)
	if err != nil {
		return application.ChargeCommand{}, err
	}

	return application.ChargeCommand{
		MerchantAccountID: s.account,
		IdempotencyKey:    key,
		Charge: domain.ChargeRequest{
			Amount: vo.MinorUnits(amount),
			PaymentMethod: domain.NewCardPaymentMethod(domain.Card{
				Number:           number,
				Expiry:           domain.Expiry{Year: 2030, Month: 12},
				VerificationCode: "123",
				FirstName:        "Ada",
				LastName:         "Lovelace",
			}),
			Address: &domain.Address{
				Line1:      "1 Main St",
				City:       "Springfield",
				Region:     "IL",
				Country:    "US",
				PostalCode: "62701",
			},
			Options: domain.ChargeOptions{
				MerchantTransactionID: orderID,
				Currency:              cur,
				Email:                 "buyer@example.com",
				SKU:                   "PREMIUM_USD",
				ItemName:              "Premium plan",
			},
		},
	}, nil
}

func (s *gatewayState) record(result *domain.PaymentResult, err error) {
	s.lastError = err
	if err == nil {
		s.results = append(s.results, result)
	}
}

func (s *gatewayState) iAuthorize(amount int, currency, cardName, orderID string) error {
	return s.iAuthorizeWithIdempotencyKey(amount, currency, cardName, orderID, "")
}

func (s *gatewayState) iAuthorizeWithIdempotencyKey(amount int, currency, cardName, orderID, key string) error {
	cmd, err := s.chargeCommand(amount, currency, cardName, orderID, key)
	if err != nil {
		return err
	}
	s.record(s.service.Authorize(s.ctx, cmd))
	return nil
}

func (s *gatewayState) iHaveAuthorized(amount int, currency, cardName, orderID string) error {
	if err := s.iAuthorize(amount, currency, cardName, orderID); err != nil {
		return err
	}
	if s.lastError != nil {
		return s.lastError
	}
	return s.thePaymentShouldSucceed()
}

func (s *gatewayState) iPurchase(amount int, currency, cardName, orderID string) error {
	cmd, err := s.chargeCommand(amount, currency, cardName, orderID, "")
	if err != nil {
		return err
	}
	s.record(s.service.Purchase(s.ctx, cmd))
	return nil
}

func (s *gatewayState) iMakeAStoredPurchase(amount int, currency, orderID, priorOrderID string) error {
	cur, err := vo.ParseCurrency(currency)
	if err != nil {
		return err
	}

	s.record(s.service.StoredPurchase(s.ctx, application.StoredChargeCommand{
		MerchantAccountID: s.account,
		Charge: domain.StoredChargeRequest{
			Amount:       vo.MinorUnits(amount),
			PriorOrderID: priorOrderID,
			AccountID:    s.account.String(),
			Options: domain.ChargeOptions{
				MerchantTransactionID: orderID,
				Currency:              cur,
			},
		},
	}))
	return nil
}

func (s *gatewayState) iCaptureWithTheAuthorizationToken(amount int, currency string) error {
	last, err := s.last()
	if err != nil {
		return err
	}
	return s.iCaptureWithToken(amount, currency, last.AuthorizationToken)
}

func (s *gatewayState) iCaptureWithToken(amount int, _ string, token string) error {
	s.record(s.service.Capture(s.ctx, application.CaptureCommand{
		MerchantAccountID: s.account,
		Capture: domain.CaptureRequest{
			Amount:             vo.MinorUnits(amount),
			AuthorizationToken: token,
		},
	}))
	return nil
}

func (s *gatewayState) last() (*domain.PaymentResult, error) {
	if s.lastError != nil {
		return nil, fmt.Errorf("last request failed: %w", s.lastError)
	}
	if len(s.results) == 0 {
		return nil, errors.New("no payment result recorded")
	}
	return s.results[len(s.results)-1], nil
}

func (s *gatewayState) thePaymentShouldSucceed() error {
	last, err := s.last()
	if err != nil {
		return err
	}
	if !last.Succeeded {
		return fmt.Errorf("expected success, got failure %q", last.Message)
	}
	if last.FraudReview {
		return errors.New("a successful payment must not be held for review")
	}
	return nil
}

func (s *gatewayState) thePaymentShouldFailWithMessage(message string) error {
	last, err := s.last()
	if err != nil {
		return err
	}
	if last.Succeeded {
		return errors.New("expected failure, got success")
	}
	if last.Message != message {
		return fmt.Errorf("expected message %q, got %q", message, last.Message)
	}
	return nil
}

func (s *gatewayState) thePaymentShouldFailWithPermissionDenied() error {
	return s.thePaymentShouldFailWithMessage(sandbox.MessagePermissionDenied)
}

func (s *gatewayState) thePaymentShouldBeHeldForReview(message string) error {
	if err := s.thePaymentShouldFailWithMessage(message); err != nil {
		return err
	}
	if !s.results[len(s.results)-1].FraudReview {
		return errors.New("expected the payment to be held for review")
	}
	return nil
}

func (s *gatewayState) thePaymentShouldNotBeHeldForReview() error {
	last, err := s.last()
	if err != nil {
		return err
	}
	if last.FraudReview {
		return errors.New("expected no fraud review")
	}
	return nil
}

func (s *gatewayState) thePaymentShouldCarryAToken() error {
	last, err := s.last()
	if err != nil {
		return err
	}
	if last.AuthorizationToken == "" {
		return errors.New("expected an authorization token")
	}
	return nil
}

func (s *gatewayState) thePaymentShouldNotCarryAToken() error {
	last, err := s.last()
	if err != nil {
		return err
	}
	if last.AuthorizationToken != "" {
		return fmt.Errorf("expected no authorization token, got %q", last.AuthorizationToken)
	}
	return nil
}

func (s *gatewayState) thePaymentStateShouldBe(expected string) error {
	last, err := s.last()
	if err != nil {
		return err
	}
	if string(last.State) != expected {
		return fmt.Errorf("expected state %q, got %q", expected, last.State)
	}
	return nil
}

func (s *gatewayState) theMessageShouldBe(expected string) error {
	last, err := s.last()
	if err != nil {
		return err
	}
	if last.Message != expected {
		return fmt.Errorf("expected message %q, got %q", expected, last.Message)
	}
	return nil
}

func (s *gatewayState) bothPaymentsShouldCarryTheSameToken() error {
	if len(s.results) != 2 {
		return fmt.Errorf("expected 2 results, got %d", len(s.results))
	}
	if s.results[0].AuthorizationToken == "" || s.results[0].AuthorizationToken != s.results[1].AuthorizationToken {
		return fmt.Errorf("tokens differ: %q vs %q", s.results[0].AuthorizationToken, s.results[1].AuthorizationToken)
	}
	if entries := s.dataStore.LedgerEntries(); len(entries) != 1 {
		return fmt.Errorf("expected 1 ledger entry, got %d", len(entries))
	}
	return nil
}

func (s *gatewayState) theLedgerShouldShowOperation(operation string) error {
	last, err := s.last()
	if err != nil {
		return err
	}
	view, err := s.service.GetPayment(s.ctx, s.account, last.AuthorizationToken)
	if err != nil {
		return err
	}
	if view.Operation != operation {
		return fmt.Errorf("expected ledger operation %q, got %q", operation, view.Operation)
	}
	return nil
}

func (s *gatewayState) theRequestShouldFailWith(message string) error {
	if s.lastError == nil {
		return errors.New("expected the request to fail")
	}
	if !strings.Contains(s.lastError.Error(), message) {
		return fmt.Errorf("expected error containing %q, got %q", message, s.lastError.Error())
	}
	return nil
}

func (s *gatewayState) gatewayCreationShouldFailWith(message string) error {
	if s.gatewayError == nil {
		return errors.New("expected gateway creation to fail")
	}
	if !strings.Contains(s.gatewayError.Error(), message) {
		return fmt.Errorf("expected error containing %q, got %q", message, s.gatewayError.Error())
	}
	return nil
}
