// Package api exposes the HTTP trigger surface of the dispatcher.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/proxyhq/nudge-engine/internal/notification"
	"github.com/proxyhq/nudge-engine/pkg/jsonutil"
)

// Runner is satisfied by *notification.Dispatcher.
type Runner interface {
	Dispatch(ctx context.Context) (*notification.Summary, error)
}

type Handler struct {
	runner    Runner
	jwtSecret []byte
	logger    *slog.Logger
}

func NewHandler(runner Runner, jwtSecret string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{runner: runner, jwtSecret: []byte(jwtSecret), logger: logger}
}

// Router wires every route and wraps the result with OpenTelemetry.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(h.requireJWT)
	v1.HandleFunc("/dispatch", h.Dispatch).Methods(http.MethodPost)

	return otelhttp.NewHandler(r, "nudge-request")
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	jsonutil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "active",
		"service": "nudge",
	})
}

// Dispatch runs one sweep synchronously and returns its summary.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	summary, err := h.runner.Dispatch(r.Context())
	switch {
	case errors.Is(err, notification.ErrRunInProgress):
		jsonutil.WriteErrorJSON(w, http.StatusConflict, err.Error())
	case err != nil:
		h.logger.Error("dispatch request failed", "error", err)
		jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, err.Error())
	default:
		jsonutil.WriteJSON(w, http.StatusOK, summary)
	}
}

// requireJWT accepts HS256 bearer tokens signed with the configured secret.
// With no secret configured every request is rejected.
func (h *Handler) requireJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.jwtSecret) == 0 {
			jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "trigger endpoint is not configured")
			return
		}

		tokenString, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || tokenString == "" {
			jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		_, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
			return h.jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			h.logger.Warn("rejected trigger token", "error", err)
			jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
