// Package handlers provides HTTP handlers for zakat totals and inputs.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/zakat"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles zakat HTTP requests
type Handler struct {
	service *zakat.Service
	log     zerolog.Logger
}

// NewHandler creates a new zakat handler
func NewHandler(service *zakat.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "zakat").Logger(),
	}
}

// RegisterRoutes registers all zakat routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/zakat", func(r chi.Router) {
		r.Get("/summary", h.HandleGetSummary)
		r.Get("/breakdown", h.HandleGetBreakdown)
		r.Put("/hawl", h.HandleSetHawl)
		r.Put("/dividends", h.HandleSetDividends)
		r.Put("/metal-prices", h.HandleSetMetalPrices)
	})
}

// HandleGetSummary returns totals, nisab and breakdown
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Summary())
}

// HandleGetBreakdown returns the per-category breakdown
func (h *Handler) HandleGetBreakdown(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Aggregator().Breakdown())
}

// HandleSetHawl sets the Hawl flag
func (h *Handler) HandleSetHawl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HawlMet *bool `json:"hawl_met"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.HawlMet == nil {
		h.writeError(w, http.StatusBadRequest, "hawl_met is required")
		return
	}

	h.service.SetHawlMet(r.Context(), *req.HawlMet)
	h.writeJSON(w, http.StatusOK, h.service.Summary())
}

// HandleSetDividends sets total dividend earnings
func (h *Handler) HandleSetDividends(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.SetDividendEarnings(r.Context(), req.Amount); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.service.Summary())
}

// HandleSetMetalPrices sets gold and silver prices per gram
func (h *Handler) HandleSetMetalPrices(w http.ResponseWriter, r *http.Request) {
	var req domain.MetalPrices
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.SetMetalPrices(r.Context(), req.Gold, req.Silver, req.Currency); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.service.Summary())
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	if domain.IsValidationError(err) {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.log.Error().Err(err).Msg("Request failed")
	h.writeError(w, http.StatusInternalServerError, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
