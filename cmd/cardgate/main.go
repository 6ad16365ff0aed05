package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker"

	"cardgate/internal/common/config"
	"cardgate/internal/common/logging"
	"cardgate/internal/common/metrics"
	vo "cardgate/internal/common/value_objects"
	gatewayapi "cardgate/internal/gateway/api"
	"cardgate/internal/gateway/application"
	"cardgate/internal/gateway/domain"
	"cardgate/internal/gateway/infrastructure/memory"
	"cardgate/internal/gateway/infrastructure/postgres"
	"cardgate/internal/gateway/infrastructure/processor"
	"cardgate/internal/gateway/infrastructure/redis"
	"cardgate/internal/gateway/infrastructure/sandbox"
)

// pinger is a dependency the readiness check probes.
type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup structured logging
	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	startupCtx := logging.WithCorrelationID(context.Background(), vo.NewCorrelationID())

	logging.InfoContext(startupCtx, "Starting cardgate",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"processor_environment", cfg.ProcessorEnvironment,
		"ledger_backend", cfg.LedgerBackend,
	)

	// Without processor credentials no transaction can be attempted.
	creds, err := cfg.ProcessorCredentials()
	if err != nil {
		logging.ErrorContext(startupCtx, "Invalid processor configuration", "error", err)
		os.Exit(1)
	}

	profiles, err := config.LoadRiskProfiles(cfg.RiskProfilesPath)
	if err != nil {
		logging.ErrorContext(startupCtx, "Failed to load risk profiles", "error", err)
		os.Exit(1)
	}

	// Processor client chain: instrumented -> circuit breaker -> sandbox
	breaker := processor.NewCircuitBreaker(sandbox.NewProcessor(creds), processor.BreakerSettings{
		Name:        "sandbox",
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
	})
	client := processor.NewInstrumented(breaker)

	thresholds := domain.DefaultRiskThresholds()
	thresholds.RiskScoreFail = cfg.RiskScoreFail

	gw, err := application.NewGateway(client, creds, application.WithRiskThresholds(thresholds))
	if err != nil {
		logging.ErrorContext(startupCtx, "Failed to create gateway", "error", err)
		os.Exit(1)
	}

	deps := map[string]pinger{}

	dataStore, closeStore, err := newDataStore(startupCtx, cfg)
	if err != nil {
		logging.ErrorContext(startupCtx, "Failed to initialize ledger", "error", err)
		os.Exit(1)
	}
	defer closeStore()
	if p, ok := dataStore.(pinger); ok {
		deps["database"] = p
	}

	guard, closeGuard, err := newInFlightGuard(startupCtx, cfg)
	if err != nil {
		logging.ErrorContext(startupCtx, "Failed to initialize in-flight guard", "error", err)
		os.Exit(1)
	}
	defer closeGuard()
	if p, ok := guard.(pinger); ok {
		deps["redis"] = p
	}

	service := application.NewPaymentService(gw, dataStore, guard,
		application.WithRiskProfiles(thresholds, application.RiskProfilesFromConfig(profiles)),
	)

	logging.InfoContext(startupCtx, "Payment gateway initialized",
		"risk_profiles", len(profiles),
		"risk_score_fail", cfg.RiskScoreFail,
	)

	// Setup HTTP server
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(cfg, breaker, deps))
	mux.Handle("GET /metrics", metrics.Handler())
	gatewayapi.NewHandler(service).RegisterRoutes(mux)

	// Middleware chain: metrics -> request logging -> handler
	handler := metrics.Middleware(requestMiddleware(mux))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		return
	}

	logging.Info("Server stopped")
}

type ledgerStore interface {
	domain.AtomicExecutor
	domain.Repositories
}

// newDataStore selects the ledger backend.
func newDataStore(ctx context.Context, cfg *config.Config) (ledgerStore, func(), error) {
	if !cfg.UsesPostgresLedger() {
		if cfg.IsProduction() {
			return nil, nil, config.ErrVolatileLedger
		}
		logging.WarnContext(ctx, "Using in-memory ledger; outcomes are lost on restart")
		return memory.NewDataStore(), func() {}, nil
	}

	pool, err := cfg.NewPostgresPool(ctx)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewDataStore(pool), pool.Close, nil
}

// newInFlightGuard selects Redis when an address is configured.
func newInFlightGuard(ctx context.Context, cfg *config.Config) (domain.InFlightGuard, func(), error) {
	if cfg.RedisAddr == "" {
		return memory.NewInFlightGuard(cfg.InFlightTTL), func() {}, nil
	}

	client, err := cfg.NewRedisClient(ctx)
	if err != nil {
		return nil, nil, err
	}
	return redis.NewInFlightGuard(client, cfg.InFlightTTL), func() { client.Close() }, nil
}

// requestTimeout is the maximum time allowed for processing a single request.
const requestTimeout = 10 * time.Second

// requestMiddleware adds a request timeout and logs each request.
// Correlation IDs are handled by the payments API itself.
func requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		logging.InfoContext(ctx, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// healthHandler returns basic health status.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

// readyHandler reports not ready while a dependency is unreachable or the
// processor breaker is open.
func readyHandler(cfg *config.Config, breaker *processor.CircuitBreaker, deps map[string]pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"processor": breaker.State().String()}
		status := http.StatusOK

		if breaker.State() == gobreaker.StateOpen {
			status = http.StatusServiceUnavailable
		}
		for name, dep := range deps {
			if err := dep.Ping(r.Context()); err != nil {
				logging.WarnContext(r.Context(), "Readiness check failed", "dependency", name, "error", err)
				checks[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		state := "ready"
		if status != http.StatusOK {
			state = "not_ready"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status":      state,
			"environment": cfg.Environment,
			"checks":      checks,
		})
	}
}
