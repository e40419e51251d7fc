package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxyhq/nudge-engine/internal/notification"
)

const testSecret = "test-secret"

type runnerFunc func(ctx context.Context) (*notification.Summary, error)

func (f runnerFunc) Dispatch(ctx context.Context) (*notification.Summary, error) { return f(ctx) }

func signToken(t *testing.T, method jwt.SigningMethod, key any) string {
	t.Helper()
	token := jwt.NewWithClaims(method, jwt.MapClaims{
		"sub": "scheduler",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func TestHandler_Dispatch(t *testing.T) {
	tests := []struct {
		name           string
		secret         string
		authHeader     func(t *testing.T) string
		runErr         error
		expectedStatus int
		expectedBody   string
		expectRun      bool
	}{
		{
			name:           "Valid Token",
			secret:         testSecret,
			authHeader:     func(t *testing.T) string { return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret)) },
			expectedStatus: http.StatusOK,
			expectedBody:   `"message":"Stochastic nudges processed"`,
			expectRun:      true,
		},
		{
			name:           "Missing Token",
			secret:         testSecret,
			authHeader:     func(t *testing.T) string { return "" },
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "missing bearer token",
		},
		{
			name:           "Wrong Secret",
			secret:         testSecret,
			authHeader:     func(t *testing.T) string { return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other")) },
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "invalid token",
		},
		{
			name:           "Wrong Algorithm",
			secret:         testSecret,
			authHeader:     func(t *testing.T) string { return "Bearer " + signToken(t, jwt.SigningMethodHS512, []byte(testSecret)) },
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "invalid token",
		},
		{
			name:           "No Secret Configured",
			authHeader:     func(t *testing.T) string { return "Bearer anything" },
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "not configured",
		},
		{
			name:           "Run Already In Progress",
			secret:         testSecret,
			authHeader:     func(t *testing.T) string { return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret)) },
			runErr:         notification.ErrRunInProgress,
			expectedStatus: http.StatusConflict,
			expectedBody:   "already in progress",
			expectRun:      true,
		},
		{
			name:           "Configuration Error",
			secret:         testSecret,
			authHeader:     func(t *testing.T) string { return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret)) },
			runErr:         fmt.Errorf("%w: VAPID public and private keys are required", notification.ErrConfiguration),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"configuration error: VAPID`,
			expectRun:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ran := false
			runner := runnerFunc(func(ctx context.Context) (*notification.Summary, error) {
				ran = true
				return &notification.Summary{RunID: "run-1", Message: "Stochastic nudges processed", Sent: 2, Total: 2, Results: []notification.Result{}}, tt.runErr
			})

			req := httptest.NewRequest(http.MethodPost, "/v1/dispatch", nil)
			if h := tt.authHeader(t); h != "" {
				req.Header.Set("Authorization", h)
			}
			rr := httptest.NewRecorder()

			NewHandler(runner, tt.secret, nil).Router().ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			assert.Equal(t, tt.expectRun, ran)
		})
	}
}

func TestHandler_Health(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context) (*notification.Summary, error) {
		return nil, errors.New("must not run")
	})

	rr := httptest.NewRecorder()
	NewHandler(runner, "", nil).Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"active"`)
}

func TestHandler_Metrics(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHandler(nil, "", nil).Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "go_goroutines"))
}

func TestHandler_DispatchRequiresPost(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/dispatch", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, []byte(testSecret)))
	NewHandler(nil, testSecret, nil).Router().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
