// Package queue implements the at-least-once, restart-safe claim
// protocol: an atomic claim across concurrently polling
// workers, backed by a relational database, using SELECT ... FOR UPDATE
// SKIP LOCKED so claimers never contend for the same row.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yourorg/rendercore/internal/database"
	"github.com/yourorg/rendercore/internal/logging"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNoJob signals inside Claim's transaction that no job currently
// qualifies — either the concurrency ceiling is saturated or the queue is
// empty. Claim does not return it to callers.
var ErrNoJob = errors.New("queue: no job available")

// ClaimedJob bundles a render job with everything the pipeline needs to
// run it, joined from render_jobs, renders, and campaigns in one claim
// transaction.
type ClaimedJob struct {
	JobID          uuid.UUID
	RenderID       uuid.UUID
	PublicID       string
	CampaignID     uuid.UUID
	CampaignName   string
	Scenes         datatypes.JSON
	OutputSettings datatypes.JSON
	FacecamURL     string
	LeadCSVURL     string
	LeadRowIndex   *int
}

// Claim atomically claims the oldest queued job, provided fewer than
// maxConcurrent renders are currently processing. It returns (nil, nil)
// when nothing qualifies, so callers can treat an empty queue the same as
// a saturated semaphore.
func Claim(ctx context.Context, db *gorm.DB, maxConcurrent int) (*ClaimedJob, error) {
	var claimed *ClaimedJob

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var processing int64
		if err := tx.Raw(`SELECT COUNT(*) FROM render_jobs WHERE state = ?`, database.RenderJobProcessing).
			Scan(&processing).Error; err != nil {
			return fmt.Errorf("count processing jobs: %w", err)
		}
		if int(processing) >= maxConcurrent {
			return ErrNoJob
		}

		// Select-and-lock the oldest queued job; concurrent claimers skip
		// any row already locked by another transaction rather than
		// blocking on it.
		row := tx.Raw(`
			WITH next AS (
				SELECT rj.id
				FROM render_jobs rj
				JOIN renders r ON r.id = rj.render_id
				WHERE rj.state = ?
				ORDER BY r.created_at ASC
				FOR UPDATE OF rj SKIP LOCKED
				LIMIT 1
			)
			UPDATE render_jobs q
			SET state = ?, started_at = ?, updated_at = ?
			FROM next
			WHERE q.id = next.id
			RETURNING q.id, q.render_id
		`, database.RenderJobQueued, database.RenderJobProcessing, time.Now(), time.Now()).Row()

		var jobID, renderID uuid.UUID
		if err := row.Scan(&jobID, &renderID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNoJob
			}
			return fmt.Errorf("claim next render job: %w", err)
		}

		var render database.Render
		if err := tx.First(&render, "id = ?", renderID).Error; err != nil {
			return fmt.Errorf("load claimed render: %w", err)
		}
		var campaign database.Campaign
		if err := tx.First(&campaign, "id = ?", render.CampaignID).Error; err != nil {
			return fmt.Errorf("load claimed campaign: %w", err)
		}

		claimed = &ClaimedJob{
			JobID:          jobID,
			RenderID:       renderID,
			PublicID:       render.PublicID,
			CampaignID:     campaign.ID,
			CampaignName:   campaign.Name,
			Scenes:         campaign.Scenes,
			OutputSettings: campaign.Output,
			FacecamURL:     render.FacecamURL,
			LeadCSVURL:     render.LeadCSVURL,
			LeadRowIndex:   render.LeadRowIndex,
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrNoJob) {
			return nil, nil
		}
		return nil, err
	}
	return claimed, nil
}

// FinalizeJob transitions a render job to a terminal state. It also
// advances the owning render's status to the same terminal value in the
// same transaction, so job and render always reach terminal together.
func FinalizeJob(ctx context.Context, db *gorm.DB, jobID uuid.UUID, state database.RenderJobState, errMsg string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job database.RenderJob
		if err := tx.First(&job, "id = ?", jobID).Error; err != nil {
			return fmt.Errorf("load render job %s: %w", jobID, err)
		}

		now := time.Now()
		updates := map[string]interface{}{
			"state":        state,
			"updated_at":   now,
			"completed_at": now,
		}
		if errMsg != "" {
			updates["error_message"] = errMsg
		}
		if err := tx.Model(&database.RenderJob{}).Where("id = ?", jobID).Updates(updates).Error; err != nil {
			return fmt.Errorf("finalize job %s: %w", jobID, err)
		}

		renderUpdates := map[string]interface{}{
			"status":     renderStatusFor(state),
			"updated_at": now,
		}
		if errMsg != "" {
			renderUpdates["error_message"] = errMsg
		}
		if state == database.RenderJobCompleted {
			renderUpdates["completed_at"] = now
			renderUpdates["progress"] = 100
		}
		if state == database.RenderJobCancelled {
			renderUpdates["cancelled_at"] = now
		}
		if err := tx.Model(&database.Render{}).Where("id = ?", job.RenderID).Updates(renderUpdates).Error; err != nil {
			return fmt.Errorf("finalize render %s: %w", job.RenderID, err)
		}
		return nil
	})
}

func renderStatusFor(state database.RenderJobState) database.RenderStatus {
	switch state {
	case database.RenderJobCompleted:
		return database.RenderStatusCompleted
	case database.RenderJobFailed:
		return database.RenderStatusFailed
	case database.RenderJobCancelled:
		return database.RenderStatusCancelled
	default:
		return database.RenderStatusFailed
	}
}

// Progress is an idempotent upsert of a render's latest status/progress.
// It refuses to move progress backwards unless the write is terminal.
func Progress(ctx context.Context, db *gorm.DB, renderID uuid.UUID, status database.RenderStatus, progress int, errMsg string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current database.Render
		if err := tx.First(&current, "id = ?", renderID).Error; err != nil {
			return fmt.Errorf("load render %s: %w", renderID, err)
		}
		if current.Status.Terminal() {
			// no mutation once terminal.
			return nil
		}

		newProgress := current.Progress
		if status.Terminal() || progress >= current.Progress {
			newProgress = progress
		}

		updates := map[string]interface{}{
			"status":     status,
			"progress":   newProgress,
			"updated_at": time.Now(),
		}
		if errMsg != "" {
			updates["error_message"] = errMsg
		}
		return tx.Model(&database.Render{}).Where("id = ?", renderID).Updates(updates).Error
	})
}

// MarkComplete sets a render to completed with its final artifact URLs.
func MarkComplete(ctx context.Context, db *gorm.DB, renderID uuid.UUID, videoURL, thumbnailURL string) error {
	now := time.Now()
	return db.WithContext(ctx).Model(&database.Render{}).Where("id = ?", renderID).Updates(map[string]interface{}{
		"status":        database.RenderStatusCompleted,
		"progress":      100,
		"video_url":     videoURL,
		"thumbnail_url": thumbnailURL,
		"completed_at":  now,
		"updated_at":    now,
	}).Error
}

// IsCancelled reports whether a render's status has flipped to
// cancelled, checked by the orchestrator between pipeline steps.
func IsCancelled(ctx context.Context, db *gorm.DB, renderID uuid.UUID) (bool, error) {
	var status database.RenderStatus
	err := db.WithContext(ctx).Model(&database.Render{}).Select("status").Where("id = ?", renderID).Scan(&status).Error
	if err != nil {
		return false, fmt.Errorf("check cancellation for render %s: %w", renderID, err)
	}
	return status == database.RenderStatusCancelled, nil
}

// RescueStuckRenders finds renders in a non-terminal status whose
// updated_at is older than tStuck and marks both the render and its job
// failed with "heartbeat timeout". Safe to call from
// any worker and safe to call twice in a row.
func RescueStuckRenders(ctx context.Context, db *gorm.DB, tStuck time.Duration) (int, error) {
	cutoff := time.Now().Add(-tStuck)
	var rescued int

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stale []database.Render
		if err := tx.Where("status NOT IN ? AND updated_at < ?", terminalStatuses(), cutoff).Find(&stale).Error; err != nil {
			return fmt.Errorf("scan for stuck renders: %w", err)
		}
		if len(stale) == 0 {
			return nil
		}

		now := time.Now()
		for _, r := range stale {
			if err := tx.Model(&database.Render{}).Where("id = ?", r.ID).Updates(map[string]interface{}{
				"status":        database.RenderStatusFailed,
				"error_message": "heartbeat timeout",
				"updated_at":    now,
			}).Error; err != nil {
				return fmt.Errorf("rescue render %s: %w", r.ID, err)
			}
			if err := tx.Model(&database.RenderJob{}).Where("render_id = ?", r.ID).Updates(map[string]interface{}{
				"state":         database.RenderJobFailed,
				"error_message": "heartbeat timeout",
				"updated_at":    now,
				"completed_at":  now,
			}).Error; err != nil {
				return fmt.Errorf("rescue render job for render %s: %w", r.ID, err)
			}
			rescued++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if rescued > 0 {
		logging.WarnWithComponent(logging.ComponentQueue, "rescued stuck renders", "count", rescued, "stuck_after", tStuck)
	}
	return rescued, nil
}

func terminalStatuses() []database.RenderStatus {
	return []database.RenderStatus{
		database.RenderStatusCompleted,
		database.RenderStatusFailed,
		database.RenderStatusCancelled,
	}
}

// MaxConcurrentJobs reads the system_settings row, falling back to def
// when missing or malformed.
func MaxConcurrentJobs(ctx context.Context, db *gorm.DB, def int) int {
	raw, err := database.GetSystemSetting("max_concurrent_jobs")
	if err != nil {
		return def
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil || n <= 0 {
		return def
	}
	return n
}
