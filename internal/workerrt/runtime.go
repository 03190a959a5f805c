// Package workerrt is the single long-lived worker process: main claim
// loop, heartbeat, health/metrics surface, graceful
// shutdown, and retention-driven working-directory cleanup.
package workerrt

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/yourorg/rendercore/internal/config"
	"github.com/yourorg/rendercore/internal/database"
	"github.com/yourorg/rendercore/internal/logging"
	"github.com/yourorg/rendercore/internal/queue"
	"github.com/yourorg/rendercore/internal/rendering"
)

// Options configures one Runtime, each sourced from an environment
// variable with a documented default.
type Options struct {
	PollInterval         time.Duration // POLL_INTERVAL_MS, default 2s
	ConfigRefreshEvery   time.Duration // WORKER_CONFIG_REFRESH_MS, default 15s
	StuckSweepEvery      time.Duration // RENDER_STUCK_SWEEP_INTERVAL_MS, default 60s
	StuckRenderTimeout   time.Duration // RENDER_STUCK_TIMEOUT_MS, default 10m
	HeartbeatTimeout     time.Duration // HEARTBEAT_TIMEOUT_MS, default 60s
	DefaultMaxConcurrent int           // MAX_CONCURRENT_JOBS, default 1
	ShutdownDrain        time.Duration // drain budget, default 30s
	SuccessRetention     time.Duration // SUCCESS_RENDER_RETENTION_HOURS, default 1h
	FailedRetention      time.Duration // FAILED_RENDER_RETENTION_DAYS, default 7d
	CleanupMaxAge        time.Duration // CLEANUP_MAX_AGE_DAYS, default 30d
}

// OptionsFromEnv builds Options from the environment, applying the
// documented defaults.
func OptionsFromEnv() Options {
	return Options{
		PollInterval:         config.GetDuration("POLL_INTERVAL_MS", 2*time.Second),
		ConfigRefreshEvery:   config.GetDuration("WORKER_CONFIG_REFRESH_MS", 15*time.Second),
		StuckSweepEvery:      config.GetDuration("RENDER_STUCK_SWEEP_INTERVAL_MS", 60*time.Second),
		StuckRenderTimeout:   config.GetDuration("RENDER_STUCK_TIMEOUT_MS", 10*time.Minute),
		HeartbeatTimeout:     config.GetDuration("HEARTBEAT_TIMEOUT_MS", 60*time.Second),
		DefaultMaxConcurrent: config.GetInt("MAX_CONCURRENT_JOBS", 1),
		ShutdownDrain:        config.GetDuration("WORKER_SHUTDOWN_DRAIN", 30*time.Second),
		SuccessRetention:     config.GetDuration("SUCCESS_RENDER_RETENTION_HOURS", 1*time.Hour),
		FailedRetention:      config.GetDuration("FAILED_RENDER_RETENTION_DAYS", 7*24*time.Hour),
		CleanupMaxAge:        config.GetDuration("CLEANUP_MAX_AGE_DAYS", 30*24*time.Hour),
	}
}

// Runtime owns the main loop, its current job summary, and the shared
// state the health/metrics endpoints report.
type Runtime struct {
	DB       *gorm.DB
	Pipeline *rendering.Pipeline
	Opts     Options

	startedAt       time.Time
	lastHeartbeat   atomic.Int64 // unix nanos
	isShuttingDown  atomic.Bool
	isProcessing    atomic.Bool
	maxConcurrent   atomic.Int64
	currentJobMu    sync.Mutex
	currentJobID    string
	currentRenderID string

	cleanup *Cleaner
}

// NewRuntime constructs a Runtime with its cleanup scheduler wired in.
func NewRuntime(db *gorm.DB, pipeline *rendering.Pipeline, workDir string, opts Options) *Runtime {
	r := &Runtime{
		DB:       db,
		Pipeline: pipeline,
		Opts:     opts,
		startedAt: time.Now(),
		cleanup:  NewCleaner(workDir, opts.SuccessRetention, opts.FailedRetention, opts.CleanupMaxAge),
	}
	r.maxConcurrent.Store(int64(opts.DefaultMaxConcurrent))
	r.bumpHeartbeat()
	return r
}

func (r *Runtime) bumpHeartbeat() {
	r.lastHeartbeat.Store(time.Now().UnixNano())
}

func (r *Runtime) lastHeartbeatTime() time.Time {
	return time.Unix(0, r.lastHeartbeat.Load())
}

// Healthy reports the /health contract: alive and heartbeat not stale.
func (r *Runtime) Healthy() bool {
	if r.isShuttingDown.Load() {
		return false
	}
	return time.Since(r.lastHeartbeatTime()) < r.Opts.HeartbeatTimeout
}

// Run enters the main loop: heartbeat, periodic config
// refresh, periodic stuck-render sweep, claim-and-run, sleep. It returns
// when ctx is cancelled, after draining any in-flight job.
func (r *Runtime) Run(ctx context.Context) error {
	r.cleanup.Start(ctx)

	lastConfigRefresh := time.Time{}
	lastSweep := time.Time{}

	ticker := time.NewTicker(r.Opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return r.drain()
		case <-ticker.C:
		}

		r.bumpHeartbeat()

		if time.Since(lastConfigRefresh) >= r.Opts.ConfigRefreshEvery {
			r.refreshMaxConcurrent(ctx)
			lastConfigRefresh = time.Now()
		}

		if time.Since(lastSweep) >= r.Opts.StuckSweepEvery {
			r.sweepStuckRenders(ctx)
			lastSweep = time.Now()
		}

		if r.isShuttingDown.Load() {
			continue
		}

		r.claimAndRun(ctx)
	}
}

// Shutdown marks the runtime as shutting down: /health reports unhealthy
// and Run's later ticks stop claiming new jobs. Run itself keeps ticking
// until its context is cancelled.
func (r *Runtime) Shutdown() {
	r.isShuttingDown.Store(true)
}

// drain waits up to ShutdownDrain for an in-flight job to finish.
func (r *Runtime) drain() error {
	if !r.isProcessing.Load() {
		return nil
	}
	deadline := time.Now().Add(r.Opts.ShutdownDrain)
	for r.isProcessing.Load() && time.Now().Before(deadline) {
		time.Sleep(200 * time.Millisecond)
	}
	return nil
}

func (r *Runtime) refreshMaxConcurrent(ctx context.Context) {
	v := queue.MaxConcurrentJobs(ctx, r.DB, r.Opts.DefaultMaxConcurrent)
	r.maxConcurrent.Store(int64(v))
}

func (r *Runtime) sweepStuckRenders(ctx context.Context) {
	n, err := queue.RescueStuckRenders(ctx, r.DB, r.Opts.StuckRenderTimeout)
	if err != nil {
		logging.WarnWithComponent(logging.ComponentWorker, "stuck render sweep failed", "error", err)
		return
	}
	if n > 0 {
		logging.InfoWithComponent(logging.ComponentWorker, "rescued stuck renders", "count", n)
	}
}

// claimAndRun claims one job (if the semaphore allows it) and runs the
// pipeline synchronously; a pipeline panic is caught and translated into
// a failed render/job rather than crashing the process.
func (r *Runtime) claimAndRun(ctx context.Context) {
	job, err := queue.Claim(ctx, r.DB, int(r.maxConcurrent.Load()))
	if err != nil {
		logging.ErrorWithComponent(logging.ComponentWorker, "claim failed", "error", err)
		return
	}
	if job == nil {
		return
	}

	r.isProcessing.Store(true)
	r.currentJobMu.Lock()
	r.currentJobID = job.JobID.String()
	r.currentRenderID = job.RenderID.String()
	r.currentJobMu.Unlock()

	succeeded := false

	defer func() {
		if rec := recover(); rec != nil {
			logging.ErrorWithComponent(logging.ComponentWorker, "pipeline panicked", "render_id", job.RenderID, "panic", rec)
			_ = queue.Progress(ctx, r.DB, job.RenderID, database.RenderStatusFailed, 0, "internal error")
			_ = queue.FinalizeJob(ctx, r.DB, job.JobID, database.RenderJobFailed, "internal error")
			succeeded = false
		}
		r.isProcessing.Store(false)
		r.currentJobMu.Lock()
		r.currentJobID, r.currentRenderID = "", ""
		r.currentJobMu.Unlock()
		r.cleanup.ScheduleForRender(job.RenderID, job.PublicID, succeeded)
	}()

	if err := r.Pipeline.Run(ctx, job); err != nil {
		logging.WarnWithComponent(logging.ComponentWorker, "render failed", "render_id", job.RenderID, "error", err)
		return
	}
	succeeded = true
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
