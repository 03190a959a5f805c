// Package rendering drives one Render from queued to a terminal state
// as the pipeline orchestrator.
package rendering

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yourorg/rendercore/internal/blobstore"
	"github.com/yourorg/rendercore/internal/browser"
	"github.com/yourorg/rendercore/internal/config"
	"github.com/yourorg/rendercore/internal/database"
	"github.com/yourorg/rendercore/internal/logging"
	"github.com/yourorg/rendercore/internal/queue"
	"github.com/yourorg/rendercore/internal/recorder"
	"github.com/yourorg/rendercore/internal/videotool"
)

const maxTotalSceneDurationSec = 300
const sceneRecordMaxAttempts = 3
const retryBaseDelay = 2 * time.Second
const retryCapDelay = 32 * time.Second

var transientErrorPattern = regexp.MustCompile(`(?i)timeout|navigation|too many requests|429`)

// ProgressSink is the pipeline's view of the job queue's progress/cancel
// API; NewDBSink returns the implementation backed by internal/queue.
type ProgressSink interface {
	Progress(ctx context.Context, renderID uuid.UUID, status database.RenderStatus, progress int, errMsg string) error
	MarkComplete(ctx context.Context, renderID uuid.UUID, videoURL, thumbnailURL string) error
	IsCancelled(ctx context.Context, renderID uuid.UUID) (bool, error)
}

// dbSink adapts internal/queue's package-level functions to ProgressSink.
type dbSink struct {
	db *gorm.DB
}

// NewDBSink returns the production ProgressSink backed by the database.
func NewDBSink(db *gorm.DB) ProgressSink { return dbSink{db: db} }

func (s dbSink) Progress(ctx context.Context, renderID uuid.UUID, status database.RenderStatus, progress int, errMsg string) error {
	return queue.Progress(ctx, s.db, renderID, status, progress, errMsg)
}

func (s dbSink) MarkComplete(ctx context.Context, renderID uuid.UUID, videoURL, thumbnailURL string) error {
	return queue.MarkComplete(ctx, s.db, renderID, videoURL, thumbnailURL)
}

func (s dbSink) IsCancelled(ctx context.Context, renderID uuid.UUID) (bool, error) {
	return queue.IsCancelled(ctx, s.db, renderID)
}

// Pipeline wires together the components a render needs end to end.
type Pipeline struct {
	DB       *gorm.DB
	Sink     ProgressSink
	Blob     blobstore.Store
	Tool     videotool.Tool
	Driver   browser.Driver
	WorkDir  string // base directory under which per-render working dirs are created
	CacheDir string // per-URL scene cache, sibling to working directories
}

// Run drives job through recording, normalizing, concatenating,
// overlaying, and uploading, reporting progress at every transition and
// checking for cancellation between (not during) steps.
func (p *Pipeline) Run(ctx context.Context, job *queue.ClaimedJob) error {
	workDir := filepath.Join(p.WorkDir, fmt.Sprintf("%s-%s", slugify(job.CampaignName), job.RenderID.String()))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create working directory: %w", err)
	}

	var scenes []database.Scene
	if err := json.Unmarshal(job.Scenes, &scenes); err != nil {
		return p.fail(ctx, job, fmt.Errorf("parse campaign scenes: %w", err))
	}
	var campaignOutput database.OutputSettings
	if len(job.OutputSettings) > 0 {
		if err := json.Unmarshal(job.OutputSettings, &campaignOutput); err != nil {
			return p.fail(ctx, job, fmt.Errorf("parse campaign output settings: %w", err))
		}
	}
	output := resolveOutputSettings(campaignOutput, loadSystemOutputSettings())

	inputs, err := p.resolveInputs(ctx, job, workDir)
	if err != nil {
		return p.fail(ctx, job, err)
	}
	if err := p.setLeadIdentifier(ctx, job.RenderID, inputs.leadIdentifier); err != nil {
		logging.WarnWithComponent(logging.ComponentPipeline, "failed to persist lead identifier", "render_id", job.RenderID, "error", err)
	}

	if err := p.checkGlobalConstraint(scenes, inputs); err != nil {
		return p.fail(ctx, job, err)
	}

	if err := p.reportProgress(ctx, job.RenderID, database.RenderStatusRecording, 10); err != nil {
		return err
	}

	normalizedScenes := make([]string, 0, len(scenes))
	for _, scene := range scenes {
		if cancelled, cerr := p.checkCancelled(ctx, job.RenderID); cerr != nil {
			return cerr
		} else if cancelled {
			return p.cancel(ctx, job)
		}

		url, err := inputs.sceneURL(scene)
		if err != nil {
			return p.fail(ctx, job, err)
		}

		normalizedPath, err := p.recordAndNormalizeScene(ctx, workDir, scene, url, output)
		if err != nil {
			return p.fail(ctx, job, err)
		}
		normalizedScenes = append(normalizedScenes, normalizedPath)
	}

	if cancelled, cerr := p.checkCancelled(ctx, job.RenderID); cerr != nil {
		return cerr
	} else if cancelled {
		return p.cancel(ctx, job)
	}
	if err := p.reportProgress(ctx, job.RenderID, database.RenderStatusNormalizing, 50); err != nil {
		return err
	}

	if err := p.reportProgress(ctx, job.RenderID, database.RenderStatusConcatenating, 60); err != nil {
		return err
	}
	backgroundPath := filepath.Join(workDir, "background.mp4")
	if err := p.Tool.Concat(ctx, normalizedScenes, backgroundPath); err != nil {
		return p.fail(ctx, job, fmt.Errorf("concat scenes: %w", err))
	}

	if cancelled, cerr := p.checkCancelled(ctx, job.RenderID); cerr != nil {
		return cerr
	} else if cancelled {
		return p.cancel(ctx, job)
	}
	if err := p.reportProgress(ctx, job.RenderID, database.RenderStatusOverlaying, 80); err != nil {
		return err
	}
	finalPath := filepath.Join(workDir, "final.mp4")
	if inputs.facecamPath != "" {
		pip := videotool.PIPOptions{Width: output.FacecamPIPWidth, Margin: output.FacecamPIPMargin, Corner: output.FacecamPIPCorner}
		if err := p.Tool.Overlay(ctx, backgroundPath, inputs.facecamPath, finalPath, pip); err != nil {
			return p.fail(ctx, job, fmt.Errorf("overlay facecam: %w", err))
		}
	} else {
		if err := os.Rename(backgroundPath, finalPath); err != nil {
			return p.fail(ctx, job, fmt.Errorf("promote background to final: %w", err))
		}
	}

	thumbnailPath := filepath.Join(workDir, "thumbnail.jpg")
	if err := p.Tool.Thumbnail(ctx, finalPath, thumbnailPath); err != nil {
		return p.fail(ctx, job, fmt.Errorf("extract thumbnail: %w", err))
	}

	if err := p.reportProgress(ctx, job.RenderID, database.RenderStatusUploading, 90); err != nil {
		return err
	}
	videoURL, err := blobstore.UploadVideo(ctx, p.Blob, finalPath, job.PublicID)
	if err != nil {
		return p.fail(ctx, job, fmt.Errorf("upload video: %w", err))
	}
	thumbURL, err := blobstore.UploadThumbnail(ctx, p.Blob, thumbnailPath, job.PublicID)
	if err != nil {
		return p.fail(ctx, job, fmt.Errorf("upload thumbnail: %w", err))
	}

	if err := p.Sink.MarkComplete(ctx, job.RenderID, videoURL, thumbURL); err != nil {
		return fmt.Errorf("mark render complete: %w", err)
	}
	if err := queue.FinalizeJob(ctx, p.DB, job.JobID, database.RenderJobCompleted, ""); err != nil {
		return fmt.Errorf("finalize job: %w", err)
	}

	logging.InfoWithComponent(logging.ComponentPipeline, "render completed", "render_id", job.RenderID, "public_id", job.PublicID)
	return nil
}

// loadSystemOutputSettings reads the optional "default_output_settings"
// system_settings row. A missing row (the common case — most
// deployments never set one) or a malformed value both resolve to the
// zero value, which config.Resolve treats as "not set at this layer".
func loadSystemOutputSettings() database.OutputSettings {
	var sys database.OutputSettings
	raw, err := database.GetSystemSetting("default_output_settings")
	if err != nil {
		return sys
	}
	_ = json.Unmarshal(raw, &sys)
	return sys
}

// resolveOutputSettings applies the campaign > system > env > defaults
// precedence via config.Resolve, translating to and from
// internal/config's leaf OutputSettings type.
func resolveOutputSettings(campaignOutput, systemOutput database.OutputSettings) database.OutputSettings {
	resolved := config.Resolve(toConfigOutput(campaignOutput), toConfigOutput(systemOutput))
	return fromConfigOutput(resolved)
}

func toConfigOutput(o database.OutputSettings) config.OutputSettings {
	return config.OutputSettings{
		Width:            o.Width,
		Height:           o.Height,
		FPS:              o.FPS,
		PageLoadWaitMs:   o.PageLoadWaitMs,
		FacecamPIPWidth:  o.FacecamPIPWidth,
		FacecamPIPMargin: o.FacecamPIPMargin,
		FacecamPIPCorner: o.FacecamPIPCorner,
		EndPadMode:       o.EndPadMode,
	}
}

func fromConfigOutput(o config.OutputSettings) database.OutputSettings {
	return database.OutputSettings{
		Width:            o.Width,
		Height:           o.Height,
		FPS:              o.FPS,
		PageLoadWaitMs:   o.PageLoadWaitMs,
		FacecamPIPWidth:  o.FacecamPIPWidth,
		FacecamPIPMargin: o.FacecamPIPMargin,
		FacecamPIPCorner: o.FacecamPIPCorner,
		EndPadMode:       o.EndPadMode,
	}
}

func (p *Pipeline) checkCancelled(ctx context.Context, renderID uuid.UUID) (bool, error) {
	cancelled, err := p.Sink.IsCancelled(ctx, renderID)
	if err != nil {
		return false, fmt.Errorf("check cancellation: %w", err)
	}
	return cancelled, nil
}

func (p *Pipeline) cancel(ctx context.Context, job *queue.ClaimedJob) error {
	if err := p.Sink.Progress(ctx, job.RenderID, database.RenderStatusCancelled, 0, ""); err != nil {
		return fmt.Errorf("mark render cancelled: %w", err)
	}
	return queue.FinalizeJob(ctx, p.DB, job.JobID, database.RenderJobCancelled, "")
}

func (p *Pipeline) fail(ctx context.Context, job *queue.ClaimedJob, cause error) error {
	_ = p.Sink.Progress(ctx, job.RenderID, database.RenderStatusFailed, 0, cause.Error())
	_ = queue.FinalizeJob(ctx, p.DB, job.JobID, database.RenderJobFailed, cause.Error())
	return cause
}

func (p *Pipeline) reportProgress(ctx context.Context, renderID uuid.UUID, status database.RenderStatus, progress int) error {
	return p.Sink.Progress(ctx, renderID, status, progress, "")
}

type resolvedInputs struct {
	facecamPath    string
	facecamDurSec  float64
	csvRows        [][]string
	csvHeader      []string
	rowIndex       int
	leadIdentifier string
}

func (inputs *resolvedInputs) sceneURL(scene database.Scene) (string, error) {
	switch scene.Kind {
	case database.SceneKindManual:
		return normalizeURL(scene.URL), nil
	case database.SceneKindCSV:
		col := indexOf(inputs.csvHeader, scene.CSVColumn)
		if col < 0 || col >= len(inputs.csvRows[inputs.rowIndex]) {
			return "", fmt.Errorf("csv column %q not found for scene", scene.CSVColumn)
		}
		val := strings.TrimSpace(inputs.csvRows[inputs.rowIndex][col])
		if val == "" {
			return "", fmt.Errorf("csv column %q is empty for row %d", scene.CSVColumn, inputs.rowIndex)
		}
		return normalizeURL(val), nil
	default:
		return "", fmt.Errorf("unknown scene kind %q", scene.Kind)
	}
}

// resolveInputs downloads the facecam/CSV, validates the row index, and
// derives leadIdentifier from the first csv-kind scene's column value.
func (p *Pipeline) resolveInputs(ctx context.Context, job *queue.ClaimedJob, workDir string) (*resolvedInputs, error) {
	var scenes []database.Scene
	_ = json.Unmarshal(job.Scenes, &scenes)

	inputs := &resolvedInputs{rowIndex: 0}
	if job.LeadRowIndex != nil {
		inputs.rowIndex = *job.LeadRowIndex
	}

	if job.FacecamURL != "" {
		data, err := blobstore.DownloadFacecam(ctx, p.Blob, job.FacecamURL)
		if err != nil {
			return nil, fmt.Errorf("download facecam: %w", err)
		}
		facecamPath := filepath.Join(workDir, "facecam.mp4")
		if err := os.WriteFile(facecamPath, data, 0o644); err != nil {
			return nil, fmt.Errorf("write facecam: %w", err)
		}
		inputs.facecamPath = facecamPath

		probe, err := p.Tool.Probe(ctx, facecamPath)
		if err != nil {
			return nil, fmt.Errorf("probe facecam: %w", err)
		}
		inputs.facecamDurSec = probe.DurationSec
	}

	if job.LeadCSVURL != "" {
		data, err := blobstore.DownloadCSV(ctx, p.Blob, job.LeadCSVURL)
		if err != nil {
			return nil, fmt.Errorf("download lead csv: %w", err)
		}
		csvPath := filepath.Join(workDir, "leads.csv")
		if err := os.WriteFile(csvPath, data, 0o644); err != nil {
			return nil, fmt.Errorf("write lead csv: %w", err)
		}

		header, rows, err := parseCSV(csvPath)
		if err != nil {
			return nil, fmt.Errorf("parse lead csv: %w", err)
		}
		if inputs.rowIndex < 0 || inputs.rowIndex >= len(rows) {
			return nil, fmt.Errorf("lead row index %d out of range [0, %d)", inputs.rowIndex, len(rows))
		}
		inputs.csvHeader, inputs.csvRows = header, rows
	}

	inputs.leadIdentifier = deriveLeadIdentifier(scenes, inputs)
	return inputs, nil
}

func deriveLeadIdentifier(scenes []database.Scene, inputs *resolvedInputs) string {
	for _, scene := range scenes {
		if scene.Kind != database.SceneKindCSV {
			continue
		}
		col := indexOf(inputs.csvHeader, scene.CSVColumn)
		if col < 0 || inputs.rowIndex >= len(inputs.csvRows) || col >= len(inputs.csvRows[inputs.rowIndex]) {
			continue
		}
		val := strings.TrimSpace(inputs.csvRows[inputs.rowIndex][col])
		if val != "" {
			return val
		}
	}
	return fmt.Sprintf("Lead %d", inputs.rowIndex+1)
}

func (p *Pipeline) setLeadIdentifier(ctx context.Context, renderID uuid.UUID, identifier string) error {
	return p.DB.WithContext(ctx).Model(&database.Render{}).
		Where("id = ?", renderID).
		Update("lead_identifier", identifier).Error
}

// checkGlobalConstraint enforces the ≤300s total and, when a facecam is
// present, an exact-second match against its probed duration.
func (p *Pipeline) checkGlobalConstraint(scenes []database.Scene, inputs *resolvedInputs) error {
	total := 0
	for _, s := range scenes {
		total += s.DurationSec
	}
	if total > maxTotalSceneDurationSec {
		return fmt.Errorf("total scene duration %ds exceeds %ds maximum", total, maxTotalSceneDurationSec)
	}
	if inputs.facecamPath != "" {
		if total != int(math.Round(inputs.facecamDurSec)) {
			return fmt.Errorf("total scene duration %ds does not match facecam duration %.0fs", total, inputs.facecamDurSec)
		}
	}
	return nil
}

// recordAndNormalizeScene runs the scene cache check, then the recorder
// (with retry) and normalizer for one scene, returning the normalized
// scene's MP4 path.
func (p *Pipeline) recordAndNormalizeScene(ctx context.Context, workDir string, scene database.Scene, url string, output database.OutputSettings) (string, error) {
	cacheKey := sceneCacheKey(url, output)
	cachedPath := filepath.Join(p.CacheDir, cacheKey+".mp4")
	normalizedPath := filepath.Join(workDir, fmt.Sprintf("scene-%d.mp4", scene.OrderIndex))

	if _, err := os.Stat(cachedPath); err == nil {
		if err := copyFile(cachedPath, normalizedPath); err == nil {
			logging.DebugWithComponent(logging.ComponentPipeline, "scene cache hit", "url", url, "cache_key", cacheKey)
			return normalizedPath, nil
		}
	}

	rawPath, err := p.recordSceneWithRetry(ctx, workDir, scene, url, output)
	if err != nil {
		return "", err
	}

	opts := videotool.NormalizeOptions{
		Width:       output.Width,
		Height:      output.Height,
		FPS:         output.FPS,
		DurationSec: scene.DurationSec,
	}
	if err := p.Tool.Normalize(ctx, rawPath, normalizedPath, opts); err != nil {
		return "", fmt.Errorf("normalize scene %d: %w", scene.OrderIndex, err)
	}

	if err := os.MkdirAll(p.CacheDir, 0o755); err == nil {
		_ = copyFile(normalizedPath, cachedPath)
	}

	return normalizedPath, nil
}

// recordSceneWithRetry makes up to 3 attempts at recording a scene,
// retrying transient failures with exponential backoff (base 2s, cap
// 32s, ±25% jitter), scoped only to scene recording. It acquires a
// browser session for this one scene and releases it when done; sessions
// are not shared between a campaign's scenes.
func (p *Pipeline) recordSceneWithRetry(ctx context.Context, workDir string, scene database.Scene, url string, output database.OutputSettings) (string, error) {
	rec := &recorder.Recorder{Driver: p.Driver}
	sess, err := p.Driver.AcquireCampaignSession(ctx, output.Width, output.Height, workDir)
	if err != nil {
		return "", fmt.Errorf("acquire campaign session: %w", err)
	}
	defer p.Driver.ReleaseSession(ctx, sess)

	var lastErr error
	for attempt := 0; attempt < sceneRecordMaxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(backoffWithJitter(attempt))
		}

		path, err := rec.RecordScene(ctx, sess, scene, url, output.PageLoadWaitMs)
		if err == nil {
			return path, nil
		}
		lastErr = err

		if !transientErrorPattern.MatchString(err.Error()) {
			return "", fmt.Errorf("record scene %d: %w", scene.OrderIndex, err)
		}
		logging.WarnWithComponent(logging.ComponentPipeline, "transient scene recording error, retrying", "scene", scene.OrderIndex, "attempt", attempt+1, "error", err)
	}

	return "", fmt.Errorf("record scene %d: exhausted %d attempts: %w", scene.OrderIndex, sceneRecordMaxAttempts, lastErr)
}

func backoffWithJitter(attempt int) time.Duration {
	base := retryBaseDelay * time.Duration(1<<uint(attempt-1))
	if base > retryCapDelay {
		base = retryCapDelay
	}
	jitter := 1 + (rand.Float64()*0.5 - 0.25)
	return time.Duration(float64(base) * jitter)
}

func sceneCacheKey(url string, output database.OutputSettings) string {
	sum := sha256.Sum256([]byte(url))
	hash := hex.EncodeToString(sum[:])[:16]
	return fmt.Sprintf("%s-%dx%d@%d", hash, output.Width, output.Height, output.FPS)
}

func normalizeURL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}

func indexOf(header []string, column string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(column)) {
			return i
		}
	}
	return -1
}

func parseCSV(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("csv has no rows")
	}
	return all[0], all[1:], nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

var slugPattern = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func slugify(name string) string {
	s := strings.ToLower(slugPattern.ReplaceAllString(name, "-"))
	return strings.Trim(s, "-")
}
