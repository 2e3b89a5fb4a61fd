package monitoring

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

type HealthCheckFunc func(ctx context.Context) error

// StatsFunc reports a dependency's internal counters, such as pool usage.
type StatsFunc func() map[string]interface{}

type HealthCheck struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	LastRun  time.Time     `json:"last_run"`
}

// HealthChecker runs named dependency checks on demand.
type HealthChecker struct {
	mu      sync.RWMutex
	checks  map[string]HealthCheckFunc
	stats   map[string]StatsFunc
	timeout time.Duration
	started time.Time
}

func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		checks:  make(map[string]HealthCheckFunc),
		stats:   make(map[string]StatsFunc),
		timeout: timeout,
		started: time.Now(),
	}
}

func (h *HealthChecker) Register(name string, check HealthCheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

func (h *HealthChecker) RegisterStats(name string, fn StatsFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats[name] = fn
}

// Stats collects every registered stats provider under its name.
func (h *HealthChecker) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]interface{}, len(h.stats))
	for name, fn := range h.stats {
		out[name] = fn()
	}
	return out
}

// Run executes every check concurrently, each bounded by the checker's
// timeout, and reports whether all passed.
func (h *HealthChecker) Run(ctx context.Context) ([]HealthCheck, bool) {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	funcs := make([]HealthCheckFunc, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		funcs = append(funcs, h.checks[name])
	}
	h.mu.RUnlock()

	results := make([]HealthCheck, len(names))
	var wg sync.WaitGroup
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			cctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			start := time.Now()
			err := funcs[i](cctx)

			results[i] = HealthCheck{
				Name:     names[i],
				Status:   StatusHealthy,
				Duration: time.Since(start),
				LastRun:  start,
			}
			if err != nil {
				results[i].Status = StatusUnhealthy
				results[i].Message = err.Error()
			}
		}(i)
	}
	wg.Wait()

	healthy := true
	for _, r := range results {
		if r.Status != StatusHealthy {
			healthy = false
		}
	}
	return results, healthy
}

func (h *HealthChecker) Uptime() time.Duration {
	return time.Since(h.started)
}

type SystemMetrics struct {
	GoroutineCount int    `json:"goroutine_count"`
	CPUCount       int    `json:"cpu_count"`
	GoVersion      string `json:"go_version"`
	AllocMB        uint64 `json:"alloc_mb"`
	SysMB          uint64 `json:"sys_mb"`
	NumGC          uint32 `json:"num_gc"`
}

func GetSystemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemMetrics{
		GoroutineCount: runtime.NumGoroutine(),
		CPUCount:       runtime.NumCPU(),
		GoVersion:      runtime.Version(),
		AllocMB:        m.Alloc / 1024 / 1024,
		SysMB:          m.Sys / 1024 / 1024,
		NumGC:          m.NumGC,
	}
}

func HealthHandler(h *HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks, healthy := h.Run(c.Request.Context())

		overall := StatusHealthy
		status := http.StatusOK
		if !healthy {
			overall = StatusUnhealthy
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"status":    overall,
			"timestamp": time.Now().UTC(),
			"checks":    checks,
			"uptime":    h.Uptime().String(),
			"system":    GetSystemMetrics(),
			"stats":     h.Stats(),
		})
	}
}

func ReadinessHandler(h *HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, healthy := h.Run(c.Request.Context()); !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "not ready",
				"timestamp": time.Now().UTC(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
		})
	}
}

func LivenessHandler(h *HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now().UTC(),
			"uptime":    h.Uptime().String(),
		})
	}
}
