package features

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/cucumber/godog"

	"cardgate/internal/common/config"
	"cardgate/internal/gateway/api"
	"cardgate/internal/gateway/application"
	"cardgate/internal/gateway/infrastructure/memory"
	"cardgate/internal/gateway/infrastructure/sandbox"
)

type contractState struct {
	server   *httptest.Server
	response *http.Response
	body     map[string]any
}

func InitializeScenario(sc *godog.ScenarioContext) {
	state := &contractState{}

	sc.Step(`^the service is running$`, state.theServiceIsRunning)
	sc.Step(`^I request the health endpoint$`, state.iRequestTheHealthEndpoint)
	sc.Step(`^I post an authorization for card "([^"]*)" as merchant "([^"]*)"$`, state.iPostAnAuthorizationAs)
	sc.Step(`^I post an authorization for card "([^"]*)" without a merchant account$`, state.iPostAnAuthorizationWithoutAccount)
	sc.Step(`^I request payment "([^"]*)"$`, state.iRequestPayment)
	sc.Step(`^the response status should be (\d+)$`, state.theResponseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should be (true|false)$`, state.theResponseFieldShouldBe)

	sc.After(func(ctx context.Context, scenario *godog.Scenario, err error) (context.Context, error) {
		if state.server != nil {
			state.server.Close()
		}
		if state.response != nil {
			state.response.Body.Close()
		}
		return ctx, nil
	})
}

func (s *contractState) theServiceIsRunning() error {
	creds := config.ProcessorCredentials{Login: "merchant", Password: "secret", Environment: config.ProcessorEnvProdtest}
	gw, err := application.NewGateway(sandbox.NewProcessor(creds), creds)
	if err != nil {
		return err
	}
	service := application.NewPaymentService(gw, memory.NewDataStore(), memory.NewInFlightGuard(time.Minute))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	api.NewHandler(service).RegisterRoutes(mux)

	s.server = httptest.NewServer(mux)
	return nil
}

func (s *contractState) do(req *http.Request) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	s.response = resp
	s.body = nil
	if resp.Header.Get("Content-Type") == "application/json" {
		_ = json.NewDecoder(resp.Body).Decode(&s.body)
	}
	return nil
}

func (s *contractState) iRequestTheHealthEndpoint() error {
	if s.server == nil {
		return fmt.Errorf("server not running")
	}
	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/health", nil)
	if err != nil {
		return err
	}
	return s.do(req)
}

func (s *contractState) postAuthorization(card, account string) error {
	if s.server == nil {
		return fmt.Errorf("server not running")
	}
	payload, err := json.Marshal(map[string]any{
		"amount_minor_units": 4900,
		"currency":           "USD",
		"card": map[string]any{
			"number":            card,
			"expiry_year":       2030,
			"expiry_month":      12,
			"verification_code": "123",
		},
		"billing_address": map[string]any{"line1": "1 Main St", "country": "US", "postal_code": "62701"},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/payments/authorize", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if account != "" {
		req.Header.Set(api.HeaderMerchantAccountID, account)
	}
	return s.do(req)
}

func (s *contractState) iPostAnAuthorizationAs(card, account string) error {
	return s.postAuthorization(card, account)
}

func (s *contractState) iPostAnAuthorizationWithoutAccount(card string) error {
	return s.postAuthorization(card, "")
}

func (s *contractState) iRequestPayment(token string) error {
	if s.server == nil {
		return fmt.Errorf("server not running")
	}
	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/payments/"+token, nil)
	if err != nil {
		return err
	}
	req.Header.Set(api.HeaderMerchantAccountID, "acct-1")
	return s.do(req)
}

func (s *contractState) theResponseStatusShouldBe(expected int) error {
	if s.response == nil {
		return fmt.Errorf("no response received")
	}
	if s.response.StatusCode != expected {
		return fmt.Errorf("expected status %d, got %d", expected, s.response.StatusCode)
	}
	return nil
}

func (s *contractState) theResponseFieldShouldBe(field, expected string) error {
	value, ok := s.body[field].(bool)
	if !ok {
		return fmt.Errorf("response field %q missing or not a boolean", field)
	}
	if fmt.Sprint(value) != expected {
		return fmt.Errorf("expected %s=%s, got %v", field, expected, value)
	}
	return nil
}
