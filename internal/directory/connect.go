package directory

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openidx/ciam-console/internal/common/resilience"
)

// ConnectOptions tunes the wiring built by Connect
type ConnectOptions struct {
	// BaseClient carries token and Graph traffic; nil uses a 30s-timeout client.
	// Its timeout bounds token fetches only. RequestTimeout bounds Graph calls.
	BaseClient       *http.Client
	RequestTimeout   time.Duration
	DefaultListLimit int

	// BreakerThreshold > 0 puts a circuit breaker in front of Graph
	BreakerThreshold int
	BreakerReset     time.Duration
	Breakers         *resilience.Registry
}

// Connection is an authenticated directory service plus the pieces health checks need
type Connection struct {
	Service     *Service
	Credentials *CredentialProvider
	Breaker     *resilience.CircuitBreaker
}

// Connect validates settings and assembles credential provider, Graph client and service
func Connect(settings Settings, log *zap.Logger, opts ConnectOptions) (*Connection, error) {
	creds, err := NewCredentialProvider(settings, WithBaseClient(opts.BaseClient))
	if err != nil {
		return nil, err
	}
	effective := creds.Settings()

	var doer Doer = creds.HTTPClient()
	var breaker *resilience.CircuitBreaker
	if opts.BreakerThreshold > 0 {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:         "microsoft-graph",
			Threshold:    opts.BreakerThreshold,
			ResetTimeout: opts.BreakerReset,
			Logger:       log,
		})
		if opts.Breakers != nil {
			opts.Breakers.Register(breaker)
		}
		doer = resilience.NewResilientHTTPClient(doer, breaker)
	}

	graph := NewGraphClient(effective.GraphBaseURL, doer, log)
	svc := NewService(graph, effective, log,
		WithTimeout(opts.RequestTimeout),
		WithDefaultListLimit(opts.DefaultListLimit))

	log.Info("Directory connection configured",
		zap.String("tenant_id", effective.TenantID),
		zap.String("tenant_name", effective.TenantName),
		zap.String("graph", effective.GraphBaseURL),
		zap.Bool("circuit_breaker", breaker != nil))

	return &Connection{
		Service:     svc,
		Credentials: creds,
		Breaker:     breaker,
	}, nil
}
