// Package httpapi exposes the ops HTTP surface: health, fulfilment reads and
// an admin trigger for the nightly billing sweep.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"fulfilment-backend/internal/domain"
	"fulfilment-backend/internal/logger"
	"fulfilment-backend/internal/security"
	"fulfilment-backend/internal/service"
)

type Handler struct {
	fulfilments service.FulfilmentService
	tokens      security.TokenManager
}

func NewHandler(fulfilments service.FulfilmentService, tokens security.TokenManager) *Handler {
	return &Handler{fulfilments: fulfilments, tokens: tokens}
}

// RegisterRoutes attaches all ops endpoints to the router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/fulfilments/{id}", h.GetFulfilment).Methods(http.MethodGet)
	router.HandleFunc("/fulfilments/{id}/forecast", h.ForecastPricing).Methods(http.MethodGet)
	router.HandleFunc("/admin/rental-charges/run", h.RunNightlyRentalCharges).Methods(http.MethodPost)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetFulfilment(w http.ResponseWriter, r *http.Request) {
	principal, err := h.principalFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	fulfilment, err := h.fulfilments.GetFulfilment(r.Context(), principal, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fulfilment)
}

func (h *Handler) ForecastPricing(w http.ResponseWriter, r *http.Request) {
	principal, err := h.principalFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, domain.NewValidationError("days must be an integer", err))
			return
		}
	}

	forecast, err := h.fulfilments.ForecastFulfilmentPricing(r.Context(), principal, mux.Vars(r)["id"], days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, forecast)
}

func (h *Handler) RunNightlyRentalCharges(w http.ResponseWriter, r *http.Request) {
	principal, err := h.principalFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	enqueued, err := h.fulfilments.NightlyRentalCharges(r.Context(), principal, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"jobs_enqueued": enqueued})
}

func (h *Handler) principalFromRequest(r *http.Request) (*domain.Principal, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, domain.NewUnauthorizedError("missing bearer token")
	}
	principal, err := h.tokens.ValidateToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return nil, domain.NewUnauthorizedError(err.Error())
	}
	return principal, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsNotFound(err):
		status = http.StatusNotFound
	case domain.IsUnauthorized(err):
		status = http.StatusForbidden
	default:
		var validation *domain.ValidationError
		var invariant *domain.InvariantViolationError
		var transition *domain.StateTransitionError
		if errors.As(err, &validation) {
			status = http.StatusBadRequest
		} else if errors.As(err, &invariant) || errors.As(err, &transition) {
			status = http.StatusConflict
		}
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
