package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SceneKind discriminates the two scene-descriptor variants: a literal
// URL or a CSV column lookup resolved later, in the pipeline, never
// inside the recorder.
type SceneKind string

const (
	SceneKindManual SceneKind = "manual"
	SceneKindCSV    SceneKind = "csv"
)

// SceneAction is one explicit, authored recorder step. When a scene
// carries a non-empty Actions list, the recorder executes these in
// order instead of invoking the HME.
type SceneAction struct {
	Type    string `json:"type"` // "go-to", "wait", "click-text", "highlight", "scroll"
	Value   string `json:"value,omitempty"`
	Target  string `json:"target,omitempty"`
	Ms      int    `json:"ms,omitempty"`
	Amount  int    `json:"amount,omitempty"`
}

// Scene is one entry of Campaign.Scenes. It round-trips through the
// campaigns.scenes jsonb column as part of Campaign.
type Scene struct {
	OrderIndex  int           `json:"order_index"`
	Kind        SceneKind     `json:"kind"`
	URL         string        `json:"url,omitempty"`
	CSVColumn   string        `json:"csv_column,omitempty"`
	DurationSec int           `json:"duration_sec"`
	Actions     []SceneAction `json:"actions,omitempty"`
}

// OutputSettings is the per-campaign rendering configuration.
type OutputSettings struct {
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
	FPS             int    `json:"fps,omitempty"`
	PageLoadWaitMs  int    `json:"page_load_wait_ms,omitempty"`
	FacecamPIPWidth int    `json:"facecam_pip_width,omitempty"`
	FacecamPIPMargin int   `json:"facecam_pip_margin,omitempty"`
	FacecamPIPCorner string `json:"facecam_pip_corner,omitempty"`
	EndPadMode      string `json:"end_pad_mode,omitempty"`
}

// Campaign is the immutable, externally-owned definition a render is
// produced from. The core never mutates it.
type Campaign struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;index" json:"user_id"`
	Name      string         `gorm:"not null" json:"name"`
	Scenes    datatypes.JSON `gorm:"type:jsonb;not null" json:"scenes"`
	Output    datatypes.JSON `gorm:"column:output_settings;type:jsonb" json:"output_settings"`
	CreatedAt time.Time      `json:"created_at"`
}

func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (Campaign) TableName() string { return "campaigns" }

// RenderStatus mirrors the render pipeline's state machine.
type RenderStatus string

const (
	RenderStatusQueued       RenderStatus = "queued"
	RenderStatusRecording    RenderStatus = "recording"
	RenderStatusNormalizing  RenderStatus = "normalizing"
	RenderStatusConcatenating RenderStatus = "concatenating"
	RenderStatusOverlaying   RenderStatus = "overlaying"
	RenderStatusUploading    RenderStatus = "uploading"
	RenderStatusCompleted    RenderStatus = "completed"
	RenderStatusFailed       RenderStatus = "failed"
	RenderStatusCancelled    RenderStatus = "cancelled"
)

// Terminal reports whether status is one the pipeline never leaves.
func (s RenderStatus) Terminal() bool {
	switch s {
	case RenderStatusCompleted, RenderStatusFailed, RenderStatusCancelled:
		return true
	}
	return false
}

// Render is one execution instance of a campaign for one lead row.
type Render struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	PublicID       string       `gorm:"uniqueIndex;not null" json:"public_id"`
	CampaignID     uuid.UUID    `gorm:"type:uuid;index;not null" json:"campaign_id"`
	FacecamURL     string       `json:"facecam_url,omitempty"`
	LeadCSVURL     string       `json:"lead_csv_url,omitempty"`
	LeadRowIndex   *int         `json:"lead_row_index,omitempty"`
	LeadIdentifier string       `json:"lead_identifier,omitempty"`
	VideoURL       string       `json:"video_url,omitempty"`
	ThumbnailURL   string       `json:"thumbnail_url,omitempty"`
	Status         RenderStatus `gorm:"index;not null;default:queued" json:"status"`
	Progress       int          `gorm:"not null;default:0" json:"progress"`
	ErrorMessage   string       `json:"error_message,omitempty"`
	DurationSec    int          `json:"duration_sec"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	CancelledAt    *time.Time   `json:"cancelled_at,omitempty"`
}

func (r *Render) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.PublicID == "" {
		r.PublicID = newPublicID()
	}
	return nil
}

func (Render) TableName() string { return "renders" }

// RenderJobState is the queue row's own state, kept in lockstep with
// Render.Status at every terminal transition.
type RenderJobState string

const (
	RenderJobQueued    RenderJobState = "queued"
	RenderJobProcessing RenderJobState = "processing"
	RenderJobCompleted RenderJobState = "completed"
	RenderJobFailed    RenderJobState = "failed"
	RenderJobCancelled RenderJobState = "cancelled"
)

// RenderJob is the unit of worker claim; exactly one per Render
// (enforced by the unique index on render_id).
type RenderJob struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RenderID     uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null" json:"render_id"`
	State        RenderJobState `gorm:"index;not null;default:queued" json:"state"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

func (j *RenderJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

func (RenderJob) TableName() string { return "render_jobs" }

// SystemSetting is a single key/value row; the keys the core reads are
// "max_concurrent_jobs" and "default_output_settings".
type SystemSetting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     datatypes.JSON `gorm:"type:jsonb" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SystemSetting) TableName() string { return "system_settings" }

// GetAllModels lists every model migrated at startup.
func GetAllModels() []interface{} {
	return []interface{}{
		&Campaign{},
		&Render{},
		&RenderJob{},
		&SystemSetting{},
	}
}
