package workerrt

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/yourorg/rendercore/internal/logging"
)

// pendingDeletion is one working directory waiting out its retention
// window before removal.
type pendingDeletion struct {
	path     string
	deleteAt time.Time
}

// Cleaner implements retention-driven cleanup: a per-render scheduled
// deletion after its retention window, plus a periodic cron mop-up for
// anything that slipped through (process restarts, crashed
// workers that never scheduled a deletion).
type Cleaner struct {
	WorkDir          string
	SuccessRetention time.Duration
	FailedRetention  time.Duration
	MaxAge           time.Duration

	mu      sync.Mutex
	pending map[string]pendingDeletion

	cron *cron.Cron
}

// NewCleaner constructs a Cleaner rooted at workDir.
func NewCleaner(workDir string, successRetention, failedRetention, maxAge time.Duration) *Cleaner {
	return &Cleaner{
		WorkDir:          workDir,
		SuccessRetention: successRetention,
		FailedRetention:  failedRetention,
		MaxAge:           maxAge,
		pending:          make(map[string]pendingDeletion),
	}
}

// Start launches the background ticker that applies scheduled
// deletions and the cron mop-up; it returns immediately.
func (c *Cleaner) Start(ctx context.Context) {
	c.cron = cron.New()
	_, err := c.cron.AddFunc("@daily", func() { c.mopUp() })
	if err != nil {
		logging.WarnWithComponent(logging.ComponentCleanup, "failed to register mop-up cron", "error", err)
	} else {
		c.cron.Start()
	}

	go c.applyLoop(ctx)
}

func (c *Cleaner) applyLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if c.cron != nil {
				c.cron.Stop()
			}
			return
		case <-ticker.C:
			c.applyDue()
		}
	}
}

// ScheduleForRender finds the render's working directory (named
// "<slug>-<renderID>") and schedules its deletion after the retention
// window matching succeeded: SuccessRetention when the render
// completed, or the longer FailedRetention when it didn't, so
// failed-render artifacts stay around long enough to debug.
func (c *Cleaner) ScheduleForRender(renderID uuid.UUID, publicID string, succeeded bool) {
	matches, err := filepath.Glob(filepath.Join(c.WorkDir, "*-"+renderID.String()))
	if err != nil || len(matches) == 0 {
		return
	}

	retention := c.FailedRetention
	if succeeded {
		retention = c.SuccessRetention
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, path := range matches {
		c.pending[path] = pendingDeletion{path: path, deleteAt: time.Now().Add(retention)}
	}
}

func (c *Cleaner) applyDue() {
	c.mu.Lock()
	due := make([]string, 0)
	now := time.Now()
	for path, pd := range c.pending {
		if now.After(pd.deleteAt) {
			due = append(due, path)
		}
	}
	for _, path := range due {
		delete(c.pending, path)
	}
	c.mu.Unlock()

	for _, path := range due {
		c.remove(path)
	}
}

// mopUp removes any campaign working directory older than MaxAge,
// regardless of whether it was ever scheduled — a backstop for crashed
// or restarted workers.
func (c *Cleaner) mopUp() {
	entries, err := os.ReadDir(c.WorkDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.WarnWithComponent(logging.ComponentCleanup, "mop-up readdir failed", "error", err)
		}
		return
	}

	cutoff := time.Now().Add(-c.MaxAge)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		c.remove(filepath.Join(c.WorkDir, entry.Name()))
	}
}

func (c *Cleaner) remove(path string) {
	if err := os.RemoveAll(path); err != nil {
		logging.WarnWithComponent(logging.ComponentCleanup, "failed to remove working directory, ignoring", "path", path, "error", err)
		return
	}
	logging.DebugWithComponent(logging.ComponentCleanup, "removed working directory", "path", path)
}
