package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/events"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/assets"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/zakat"
	"github.com/MrAsimZahid/zakat-calculator/internal/state"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (chi.Router, *state.Store) {
	t.Helper()
	st := domain.NewDefaultState("USD", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), func() string { return "row-1" })
	st.StockValues.ActiveStocks = []domain.ActiveStockHolding{{Symbol: "AAPL", Shares: 10, CurrentPrice: 400, MarketValue: 4000, ZakatDue: 100}}

	store := state.NewStore("USD", zerolog.Nop(), state.WithInitialState(st))
	svc := zakat.NewService(store, assets.NewRegistry(), events.NewManager(nil, zerolog.Nop()), zerolog.Nop())

	router := chi.NewRouter()
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(router)
	return router, store
}

func send(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeSummary(t *testing.T, rec *httptest.ResponseRecorder) zakat.Summary {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var s zakat.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	return s
}

func TestSummaryFlow(t *testing.T) {
	router, store := setupRouter(t)

	s := decodeSummary(t, send(router, http.MethodGet, "/zakat/summary", ""))
	assert.Equal(t, 4000.0, s.Total)
	assert.Equal(t, 0.0, s.Zakatable)
	assert.False(t, s.HawlMet)

	s = decodeSummary(t, send(router, http.MethodPut, "/zakat/hawl", `{"hawl_met":true}`))
	assert.Equal(t, 4000.0, s.Zakatable)
	assert.Equal(t, 100.0, s.ZakatDue)

	s = decodeSummary(t, send(router, http.MethodPut, "/zakat/dividends", `{"amount":1000}`))
	assert.Equal(t, 5000.0, s.Total)
	assert.Equal(t, 5000.0, store.Snapshot().StockValues.ZakatableValue)

	s = decodeSummary(t, send(router, http.MethodPut, "/zakat/metal-prices", `{"gold":100,"silver":10}`))
	assert.Equal(t, 5950.0, s.NisabThreshold)
	assert.False(t, s.MeetsNisab)
}

func TestBreakdownEndpoint(t *testing.T) {
	router, _ := setupRouter(t)

	rec := send(router, http.MethodGet, "/zakat/breakdown", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var b zakat.Breakdown
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, 100.0, b[zakat.CategoryActiveTrading].Percentage)
}

func TestInputValidation(t *testing.T) {
	router, _ := setupRouter(t)

	assert.Equal(t, http.StatusBadRequest, send(router, http.MethodPut, "/zakat/hawl", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(router, http.MethodPut, "/zakat/dividends", `{"amount":-5}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(router, http.MethodPut, "/zakat/metal-prices", `{"gold":-1}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(router, http.MethodPut, "/zakat/dividends", `nope`).Code)
}
