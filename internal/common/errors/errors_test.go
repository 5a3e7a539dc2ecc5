package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type remoteErr struct {
	status  int
	code    string
	message string
}

func (e *remoteErr) Error() string         { return e.code + ": " + e.message }
func (e *remoteErr) RemoteCode() string    { return e.code }
func (e *remoteErr) RemoteMessage() string { return e.message }
func (e *remoteErr) HTTPStatus() int       { return e.status }

func TestNew(t *testing.T) {
	err := New(ErrBadRequest, "Test error", http.StatusBadRequest)

	assert.Equal(t, ErrBadRequest, err.Code)
	assert.Equal(t, "Test error", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Nil(t, err.Err)
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("original error")
	err := Wrap(originalErr, ErrInternal, "Wrapped error", http.StatusInternalServerError)

	assert.Equal(t, ErrInternal, err.Code)
	assert.Equal(t, originalErr, err.Unwrap())
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "Error without details",
			err:      &AppError{Code: ErrBadRequest, Message: "Invalid request"},
			expected: "[BAD_REQUEST] Invalid request",
		},
		{
			name:     "Error with details",
			err:      &AppError{Code: ErrBadRequest, Message: "Invalid request", Details: "limit must be numeric"},
			expected: "[BAD_REQUEST] Invalid request: limit must be numeric",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestConfiguration(t *testing.T) {
	err := Configuration("TenantId", "ClientSecret")

	assert.Equal(t, ErrConfiguration, err.Code)
	assert.Equal(t, "required: TenantId, ClientSecret", err.Details)
	assert.Equal(t, []string{"TenantId", "ClientSecret"}, err.Metadata["missing"])
}

func TestDirectoryRequest(t *testing.T) {
	t.Run("Remote rejection keeps remote diagnostic", func(t *testing.T) {
		remote := &remoteErr{status: 400, code: "Request_BadRequest", message: "Another object with the same value for property identities already exists."}
		err := DirectoryRequest("CreateUser", fmt.Errorf("create user: %w", remote))

		assert.Equal(t, ErrDirectoryRequest, err.Code)
		assert.Equal(t, http.StatusBadGateway, err.StatusCode)
		assert.Equal(t, remote.message, err.Details)
		assert.Equal(t, "Request_BadRequest", err.Metadata["remote_code"])
		assert.Equal(t, 400, err.Metadata["remote_status"])
		assert.ErrorIs(t, err, remote)
	})

	t.Run("Deadline becomes gateway timeout", func(t *testing.T) {
		err := DirectoryRequest("ListUsers", context.DeadlineExceeded)

		assert.Equal(t, ErrDirectoryRequest, err.Code)
		assert.Equal(t, http.StatusGatewayTimeout, err.StatusCode)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Transport error message becomes details", func(t *testing.T) {
		err := DirectoryRequest("GetUser", errors.New("dial tcp: connection refused"))
		assert.Equal(t, "dial tcp: connection refused", err.Details)
	})
}

func TestIsErrorCode(t *testing.T) {
	t.Run("Matching error code through wrapping", func(t *testing.T) {
		err := fmt.Errorf("bootstrap: %w", Configuration("TenantId"))
		assert.True(t, IsErrorCode(err, ErrConfiguration))
	})

	t.Run("Non-matching error code", func(t *testing.T) {
		assert.False(t, IsErrorCode(NotFound("User"), ErrBadRequest))
	})

	t.Run("Non-AppError", func(t *testing.T) {
		assert.False(t, IsErrorCode(errors.New("standard error"), ErrInternal))
	})
}

func TestGetStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, GetStatusCode(BadRequest("Invalid input")))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(errors.New("standard error")))
}

func TestHandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("AppError renders its status and code", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Set("request_id", "req-1")

		HandleError(c, DirectoryRequest("CreateOidcApplication", &remoteErr{status: 400, code: "Request_BadRequest", message: "duplicate"}))

		require.Equal(t, http.StatusBadGateway, w.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, ErrDirectoryRequest, body.Error)
		assert.Equal(t, "duplicate", body.Details)
		assert.Equal(t, "req-1", body.RequestID)
	})

	t.Run("Plain error renders as internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		HandleError(c, errors.New("boom"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestErrorMetadataChaining(t *testing.T) {
	err := NotFound("User")
	err.WithMetadata("identifier", "jane.doe@example.com")
	err.WithDetails("no directory object matched")

	assert.Equal(t, 1, len(err.Metadata))
	assert.Equal(t, "no directory object matched", err.Details)
}

func BenchmarkDirectoryRequest(b *testing.B) {
	remote := &remoteErr{status: 400, code: "Request_BadRequest", message: "bad"}
	for i := 0; i < b.N; i++ {
		_ = DirectoryRequest("CreateUser", remote)
	}
}
