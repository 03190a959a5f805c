package database

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/yourorg/rendercore/internal/logging"
	"gorm.io/gorm"
)

// RunVersionedMigrations applies schema changes that auto-migration cannot
// express safely (index renames, backfills). Kept separate from
// RunAutoMigrations so new columns can be backfilled before constraints
// that depend on them are added.
func RunVersionedMigrations() error {
	m := gormigrate.New(DB, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202601010001_render_jobs_unique_render_id",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_render_jobs_render_id ON render_jobs(render_id)`,
				).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec(`DROP INDEX IF EXISTS idx_render_jobs_render_id`).Error
			},
		},
		{
			ID: "202601010002_renders_stuck_sweep_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(
					`CREATE INDEX IF NOT EXISTS idx_renders_status_updated_at ON renders(status, updated_at)`,
				).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec(`DROP INDEX IF EXISTS idx_renders_status_updated_at`).Error
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return err
	}
	logging.InfoWithComponent(logging.ComponentDatabase, "versioned migrations applied")
	return nil
}
