package workerrt

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourorg/rendercore/internal/logging"
)

// maxHealthPortAttempts bounds how many consecutive ports are tried
// before giving up.
const maxHealthPortAttempts = 5

// ListenWithPortFallback binds to basePort on all interfaces, retrying
// on the next higher port (up to maxHealthPortAttempts total attempts)
// if the port is already in use.
func ListenWithPortFallback(basePort string) (net.Listener, string, error) {
	port, err := strconv.Atoi(basePort)
	if err != nil {
		return nil, "", fmt.Errorf("invalid health port %q: %w", basePort, err)
	}

	var lastErr error
	for i := 0; i < maxHealthPortAttempts; i++ {
		addr := fmt.Sprintf(":%d", port+i)
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, strconv.Itoa(port + i), nil
		}
		lastErr = err
	}
	return nil, "", fmt.Errorf("no free port found starting at %d after %d attempts: %w", port, maxHealthPortAttempts, lastErr)
}

// healthResponse is the JSON body of GET /health.
type healthResponse struct {
	Status        string  `json:"status"`
	Hostname      string  `json:"hostname"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	LastHeartbeat int64   `json:"last_heartbeat_unix"`
	CurrentJob    *string `json:"current_job_id,omitempty"`
	CurrentRender *string `json:"current_render_id,omitempty"`
	Concurrency   struct {
		Limit     int `json:"limit"`
		Active    int `json:"active"`
		Available int `json:"available"`
	} `json:"concurrency"`
	MemoryUsedBytes uint64 `json:"memory_used_bytes"`
}

// NewHealthServer builds the gin engine serving /health, /metrics, and /,
// bound to addr.
func (r *Runtime) NewHealthServer(addr string) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "rendercore worker")
	})
	engine.GET("/health", r.handleHealth)
	engine.GET("/metrics", r.handleMetrics)

	return &http.Server{Addr: addr, Handler: engine}
}

func (r *Runtime) handleHealth(c *gin.Context) {
	resp := r.buildHealthResponse()
	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (r *Runtime) buildHealthResponse() healthResponse {
	var resp healthResponse
	resp.Hostname = hostname()
	resp.UptimeSeconds = time.Since(r.startedAt).Seconds()
	resp.LastHeartbeat = r.lastHeartbeatTime().Unix()

	if r.Healthy() {
		resp.Status = "ok"
	} else {
		resp.Status = "unhealthy"
	}

	limit := int(r.maxConcurrent.Load())
	active := 0
	if r.isProcessing.Load() {
		active = 1
	}
	resp.Concurrency.Limit = limit
	resp.Concurrency.Active = active
	resp.Concurrency.Available = limit - active
	if resp.Concurrency.Available < 0 {
		resp.Concurrency.Available = 0
	}

	r.currentJobMu.Lock()
	if r.currentJobID != "" {
		job := r.currentJobID
		resp.CurrentJob = &job
	}
	if r.currentRenderID != "" {
		render := r.currentRenderID
		resp.CurrentRender = &render
	}
	r.currentJobMu.Unlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	resp.MemoryUsedBytes = mem.Alloc

	return resp
}

// handleMetrics emits the worker's gauges in Prometheus exposition
// format.
func (r *Runtime) handleMetrics(c *gin.Context) {
	resp := r.buildHealthResponse()

	isProcessing := 0.0
	if r.isProcessing.Load() {
		isProcessing = 1.0
	}

	var b strings.Builder
	writeGauge(&b, "worker_uptime_seconds", resp.UptimeSeconds)
	writeGauge(&b, "worker_last_heartbeat_seconds", float64(resp.LastHeartbeat))
	writeGauge(&b, "worker_memory_used_bytes", float64(resp.MemoryUsedBytes))
	writeGauge(&b, "worker_is_processing", isProcessing)
	writeGauge(&b, "worker_concurrency_active", float64(resp.Concurrency.Active))
	writeGauge(&b, "worker_concurrency_limit", float64(resp.Concurrency.Limit))
	writeGauge(&b, "worker_concurrency_available", float64(resp.Concurrency.Available))

	c.Data(http.StatusOK, "text/plain; version=0.0.4", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name string, value float64) {
	fmt.Fprintf(b, "# TYPE %s gauge\n%s %v\n", name, name, value)
}

// ShutdownHealthServer gracefully stops srv with the given drain budget, logging
// (not propagating) any close error.
func ShutdownHealthServer(ctx context.Context, srv *http.Server, drain time.Duration) {
	shutdownCtx, cancel := context.WithTimeout(ctx, drain)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.WarnWithComponent(logging.ComponentHealth, "health server shutdown error", "error", err)
	}
}
