// Package handlers provides HTTP handlers for stock holdings, price refresh and
// passive investments.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/holdings"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/passive"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/prices"
	"github.com/MrAsimZahid/zakat-calculator/internal/state"
	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
)

// Handler handles stock HTTP requests
type Handler struct {
	store    *state.Store
	holdings *holdings.Registry
	pipeline *prices.Pipeline
	passive  *passive.Manager
	migrator *passive.Migrator
	policy   *bluemonday.Policy
	log      zerolog.Logger
}

// NewHandler creates a new stocks handler
func NewHandler(
	store *state.Store,
	registry *holdings.Registry,
	pipeline *prices.Pipeline,
	passiveManager *passive.Manager,
	migrator *passive.Migrator,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		store:    store,
		holdings: registry,
		pipeline: pipeline,
		passive:  passiveManager,
		migrator: migrator,
		policy:   bluemonday.StrictPolicy(),
		log:      log.With().Str("handler", "stocks").Logger(),
	}
}

// AddHoldingRequest is the body of POST /stocks/holdings.
type AddHoldingRequest struct {
	Price    *float64 `json:"price,omitempty"`
	Symbol   string   `json:"symbol"`
	Currency string   `json:"currency,omitempty"`
	Shares   float64  `json:"shares"`
}

// UpdateHoldingRequest is the body of PUT /stocks/holdings/{symbol}.
type UpdateHoldingRequest struct {
	Shares float64 `json:"shares"`
}

// RefreshRequest is the optional body of POST /stocks/prices/refresh.
type RefreshRequest struct {
	Currency     string `json:"currency,omitempty"`
	FromCurrency string `json:"from_currency,omitempty"`
}

// PassiveRequest is the body of PUT /stocks/passive.
type PassiveRequest struct {
	Data         *passive.Data         `json:"data,omitempty"`
	Calculations *passive.Calculations `json:"calculations,omitempty"`
	Method       domain.PassiveMethod  `json:"method"`
}

// HandleGetState returns the full state snapshot
func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Snapshot())
}

// HandleReset restores the default state
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Reset(r.Context()))
}

// HandleListHoldings returns all active holdings
func (h *Handler) HandleListHoldings(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"holdings": h.holdings.List(),
	})
}

// HandleAddHolding adds a holding or replaces an existing one
func (h *Handler) HandleAddHolding(w http.ResponseWriter, r *http.Request) {
	var req AddHoldingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	holding, err := h.holdings.Add(r.Context(), h.clean(req.Symbol), req.Shares, req.Price, h.clean(req.Currency))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, holding)
}

// HandleUpdateHolding changes the share count of a holding
func (h *Handler) HandleUpdateHolding(w http.ResponseWriter, r *http.Request) {
	symbol := h.clean(chi.URLParam(r, "symbol"))

	var req UpdateHoldingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	holding, err := h.holdings.Update(r.Context(), symbol, req.Shares)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, holding)
}

// HandleRemoveHolding removes a holding
func (h *Handler) HandleRemoveHolding(w http.ResponseWriter, r *http.Request) {
	symbol := h.clean(chi.URLParam(r, "symbol"))
	if !h.holdings.Remove(r.Context(), symbol) {
		h.writeError(w, http.StatusNotFound, "Holding not found")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"removed": holdings.CanonicalSymbol(symbol),
	})
}

// HandleRefreshPrices refreshes the price of every holding
func (h *Handler) HandleRefreshPrices(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	result, err := h.pipeline.Refresh(r.Context(), h.clean(req.Currency), h.clean(req.FromCurrency))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleGetPassive returns the passive investment block
func (h *Handler) HandleGetPassive(w http.ResponseWriter, r *http.Request) {
	current := h.passive.Current()
	if current == nil {
		h.writeError(w, http.StatusNotFound, "No passive investments recorded")
		return
	}
	h.writeJSON(w, http.StatusOK, current)
}

// HandleUpdatePassive stores a passive investment update
func (h *Handler) HandleUpdatePassive(w http.ResponseWriter, r *http.Request) {
	var req PassiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.Method.Valid() {
		h.writeError(w, http.StatusBadRequest, "method must be 'quick' or 'detailed'")
		return
	}
	if req.Data != nil {
		for i := range req.Data.Investments {
			req.Data.Investments[i].Name = h.clean(req.Data.Investments[i].Name)
		}
	}

	if !h.passive.UpdatePassive(r.Context(), req.Method, req.Data, req.Calculations) {
		h.writeError(w, http.StatusUnprocessableEntity, "Passive investment update was rejected")
		return
	}
	h.writeJSON(w, http.StatusOK, h.passive.Current())
}

// HandleMigratePassive migrates a posted passive block, or the stored one when
// the body is empty. Posted blocks are returned, not stored.
func (h *Handler) HandleMigratePassive(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength == 0 {
		migrated, ok := h.passive.MigrateStored(r.Context())
		if !ok {
			h.writeError(w, http.StatusUnprocessableEntity, "Stored passive investments could not be migrated")
			return
		}
		h.writeJSON(w, http.StatusOK, migrated)
		return
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	migrated := h.migrator.Migrate(raw)
	if migrated == nil {
		h.writeError(w, http.StatusUnprocessableEntity, "Unrecognized passive investment state")
		return
	}
	h.writeJSON(w, http.StatusOK, migrated)
}

func (h *Handler) clean(s string) string {
	return strings.TrimSpace(h.policy.Sanitize(s))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrHoldingNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case domain.IsValidationError(err):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case domain.IsFetchError(err):
		h.log.Error().Err(err).Msg("Price source request failed")
		h.writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.log.Error().Err(err).Msg("Request failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
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
