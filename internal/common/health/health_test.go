package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/oauth2"

	"github.com/openidx/ciam-console/internal/common/resilience"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type tokenFunc func() (*oauth2.Token, error)

func (f tokenFunc) Token() (*oauth2.Token, error) { return f() }

func TestTokenChecker(t *testing.T) {
	t.Run("Up when a token is issued", func(t *testing.T) {
		checker := NewTokenChecker(tokenFunc(func() (*oauth2.Token, error) {
			return &oauth2.Token{AccessToken: "t", Expiry: time.Now().Add(time.Hour)}, nil
		}))
		check := checker.Check(context.Background())
		assert.Equal(t, "up", check.Status)
		assert.Empty(t, check.Details)
	})

	t.Run("Down when acquisition fails", func(t *testing.T) {
		checker := NewTokenChecker(tokenFunc(func() (*oauth2.Token, error) {
			return nil, errors.New("invalid_client")
		}))
		check := checker.Check(context.Background())
		assert.Equal(t, "down", check.Status)
		assert.Contains(t, check.Details, "invalid_client")
	})

	t.Run("Down when the probe deadline passes", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		checker := NewTokenChecker(tokenFunc(func() (*oauth2.Token, error) {
			<-release
			return nil, errors.New("late")
		}))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		check := checker.Check(ctx)
		assert.Equal(t, "down", check.Status)
		assert.Contains(t, check.Details, "deadline")
	})
}

func TestReadyHandler_BreakerOpen(t *testing.T) {
	registry := resilience.NewRegistry()
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "health-graph",
		Threshold:    1,
		ResetTimeout: time.Hour,
	})
	registry.Register(cb)

	svc := NewHealthService(zaptest.NewLogger(t))
	svc.RegisterCheck(NewBreakerChecker(registry))

	router := gin.New()
	svc.RegisterStandardRoutes(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ready", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	_ = cb.Execute(func() error { return errors.New("graph down") })

	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Contains(t, status.Dependencies["circuit_breakers"].Details, "health-graph")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "1h 2m 3s", formatDuration(time.Hour+2*time.Minute+3*time.Second))
	assert.Equal(t, "2d 0h 0m 0s", formatDuration(48*time.Hour))
}
