package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/MrAsimZahid/zakat-calculator/internal/database"
	"github.com/MrAsimZahid/zakat-calculator/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
	err  error
	runs int
}

func (j *stubJob) Name() string { return j.name }
func (j *stubJob) Run() error {
	j.runs++
	return j.err
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "state.db"),
		Profile: database.ProfileStandard,
		Name:    database.NameState,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func systemRouter(h *SystemHandlers) chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.HandleSystemStatus)
	r.Get("/databases", h.HandleDatabaseStats)
	r.Get("/jobs", h.HandleJobsStatus)
	r.Post("/jobs/{name}", h.HandleTriggerJob)
	return r
}

func TestHandleSystemStatus(t *testing.T) {
	sched := scheduler.New(zerolog.Nop())
	require.NoError(t, sched.AddJob("0 */15 * * * *", &stubJob{name: "price_refresh"}))

	h := NewSystemHandlers(map[string]*database.DB{"state": newTestDB(t)}, sched, nil, t.TempDir(), zerolog.Nop())

	rec := httptest.NewRecorder()
	systemRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, map[string]string{"state": "healthy"}, resp.Databases)
	assert.Equal(t, "0 */15 * * * *", resp.Jobs["price_refresh"])
	assert.GreaterOrEqual(t, resp.MemoryPercent, 0.0)
}

func TestHandleSystemStatus_DegradedOnClosedDatabase(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Close())

	h := NewSystemHandlers(map[string]*database.DB{"state": db}, nil, nil, "", zerolog.Nop())
	rec := httptest.NewRecorder()
	systemRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unhealthy", resp.Databases["state"])
}

func TestHandleDatabaseStats(t *testing.T) {
	h := NewSystemHandlers(map[string]*database.DB{"state": newTestDB(t)}, nil, nil, "", zerolog.Nop())

	rec := httptest.NewRecorder()
	systemRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/databases", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]database.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Positive(t, stats["state"].PageSize)
}

func TestHandleJobsStatus(t *testing.T) {
	h := NewSystemHandlers(nil, nil, []scheduler.Job{&stubJob{name: "b"}, &stubJob{name: "a"}}, "", zerolog.Nop())

	rec := httptest.NewRecorder()
	systemRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))

	var resp struct {
		Scheduled map[string]string `json:"scheduled"`
		Triggers  []string          `json:"triggers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Scheduled)
	assert.Equal(t, []string{"a", "b"}, resp.Triggers)
}

func TestHandleTriggerJob(t *testing.T) {
	ok := &stubJob{name: "state_backup"}
	failing := &stubJob{name: "price_refresh", err: errors.New("quote API down")}
	h := NewSystemHandlers(nil, scheduler.New(zerolog.Nop()), []scheduler.Job{ok, failing}, "", zerolog.Nop())
	router := systemRouter(h)

	tests := []struct {
		name       string
		job        string
		wantStatus int
	}{
		{"runs registered job", "state_backup", http.StatusOK},
		{"job error", "price_refresh", http.StatusInternalServerError},
		{"unknown job", "nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/"+tt.job, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, failing.runs)
}
