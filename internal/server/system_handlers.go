package server

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/MrAsimZahid/zakat-calculator/internal/database"
	"github.com/MrAsimZahid/zakat-calculator/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves process, database and job status.
type SystemHandlers struct {
	databases map[string]*database.DB
	scheduler *scheduler.Scheduler
	jobs      map[string]scheduler.Job
	dataDir   string
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates system handlers. Every argument may be nil or empty.
func NewSystemHandlers(
	databases map[string]*database.DB,
	sched *scheduler.Scheduler,
	jobs []scheduler.Job,
	dataDir string,
	log zerolog.Logger,
) *SystemHandlers {
	byName := make(map[string]scheduler.Job, len(jobs))
	for _, j := range jobs {
		byName[j.Name()] = j
	}
	return &SystemHandlers{
		databases: databases,
		scheduler: sched,
		jobs:      byName,
		dataDir:   dataDir,
		startTime: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// SystemStatusResponse is returned by GET /api/system/status.
type SystemStatusResponse struct {
	Status        string            `json:"status"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	CPUPercent    float64           `json:"cpu_percent"`
	MemoryPercent float64           `json:"memory_percent"`
	DiskPercent   float64           `json:"disk_percent,omitempty"`
	Databases     map[string]string `json:"databases"`
	Jobs          map[string]string `json:"jobs"`
	Timestamp     string            `json:"timestamp"`
}

// HandleSystemStatus reports resource usage, database health and job schedules.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	dbStatus := make(map[string]string, len(h.databases))
	status := "healthy"
	for _, name := range h.databaseNames() {
		if err := h.databases[name].QuickCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Database quick check failed")
			dbStatus[name] = "unhealthy"
			status = "degraded"
			continue
		}
		dbStatus[name] = "healthy"
	}

	jobs := map[string]string{}
	if h.scheduler != nil {
		jobs = h.scheduler.Jobs()
	}

	resp := SystemStatusResponse{
		Status:        status,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Databases:     dbStatus,
		Jobs:          jobs,
		Timestamp:     time.Now().Format(time.RFC3339),
	}
	if h.dataDir != "" {
		if usage, err := disk.Usage(h.dataDir); err == nil {
			resp.DiskPercent = usage.UsedPercent
		}
	}

	writeJSON(w, http.StatusOK, resp, h.log)
}

// HandleDatabaseStats returns file and page statistics for each database.
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]*database.Stats, len(h.databases))
	for _, name := range h.databaseNames() {
		s, err := h.databases[name].GetStats()
		if err != nil {
			h.log.Error().Err(err).Str("database", name).Msg("Failed to get database stats")
			writeError(w, http.StatusInternalServerError, "failed to get database stats", h.log)
			return
		}
		stats[name] = s
	}
	writeJSON(w, http.StatusOK, stats, h.log)
}

// HandleJobsStatus lists scheduled jobs with their cron expressions.
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"scheduled": map[string]string{},
		"triggers":  h.triggerNames(),
	}
	if h.scheduler != nil {
		resp["scheduled"] = h.scheduler.Jobs()
	}
	writeJSON(w, http.StatusOK, resp, h.log)
}

// HandleTriggerJob runs a registered job synchronously.
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown job: "+name, h.log)
		return
	}

	start := time.Now()
	var err error
	if h.scheduler != nil {
		err = h.scheduler.RunNow(job)
	} else {
		err = job.Run()
	}
	if err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Triggered job failed")
		writeError(w, http.StatusInternalServerError, err.Error(), h.log)
		return
	}

	h.log.Info().Str("job", name).Dur("duration", time.Since(start)).Msg("Triggered job completed")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job":         name,
		"status":      "completed",
		"duration_ms": time.Since(start).Milliseconds(),
	}, h.log)
}

// getSystemStats returns CPU and memory utilisation. Failures read as zero.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var cpuPercent float64
	if percents, err := cpu.PercentWithContext(ctx, 100*time.Millisecond, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	} else if err != nil {
		h.log.Debug().Err(err).Msg("Failed to read CPU usage")
	}

	var memPercent float64
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		memPercent = vm.UsedPercent
	} else {
		h.log.Debug().Err(err).Msg("Failed to read memory usage")
	}

	return cpuPercent, memPercent
}

func (h *SystemHandlers) databaseNames() []string {
	names := make([]string, 0, len(h.databases))
	for name := range h.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *SystemHandlers) triggerNames() []string {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
