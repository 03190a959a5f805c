package queue

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/rendercore/internal/database"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	}), &gorm.Config{})
	require.NoError(t, err)
	return gdb, mock
}

// TestClaimSaturatedSemaphoreReturnsNoJob covers the semaphore
// short-circuit: when the processing count already meets maxConcurrent,
// Claim must return (nil, nil) without ever issuing the SKIP LOCKED
// select — proven here because sqlmock fails the test on any
// unexpected query.
func TestClaimSaturatedSemaphoreReturnsNoJob(t *testing.T) {
	gdb, mock := openMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM render_jobs WHERE state = $1`)).
		WithArgs(database.RenderJobProcessing).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	job, err := Claim(context.Background(), gdb, 2)
	require.NoError(t, err)
	require.Nil(t, job)
	require.NoError(t, mock.ExpectationsWereMet())
}

func openSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(database.GetAllModels()...))
	return gdb
}

func seedRender(t *testing.T, gdb *gorm.DB, status database.RenderStatus, updatedAt time.Time) *database.Render {
	t.Helper()
	campaign := &database.Campaign{Name: "acme", Scenes: []byte(`[]`), Output: []byte(`{}`)}
	require.NoError(t, gdb.Create(campaign).Error)

	render := &database.Render{
		CampaignID: campaign.ID,
		Status:     status,
		Progress:   40,
	}
	require.NoError(t, gdb.Create(render).Error)
	require.NoError(t, gdb.Model(render).Update("updated_at", updatedAt).Error)
	render.UpdatedAt = updatedAt

	job := &database.RenderJob{RenderID: render.ID, State: database.RenderJobProcessing}
	require.NoError(t, gdb.Create(job).Error)

	return render
}

// TestProgressIsMonotonicUntilTerminal proves progress never goes
// backwards for a non-terminal render.
func TestProgressIsMonotonicUntilTerminal(t *testing.T) {
	gdb := openSQLiteDB(t)
	render := seedRender(t, gdb, database.RenderStatusRecording, time.Now())

	ctx := context.Background()
	require.NoError(t, Progress(ctx, gdb, render.ID, database.RenderStatusNormalizing, 55, ""))
	require.NoError(t, Progress(ctx, gdb, render.ID, database.RenderStatusNormalizing, 20, "")) // regression attempt

	var reloaded database.Render
	require.NoError(t, gdb.First(&reloaded, "id = ?", render.ID).Error)
	require.Equal(t, 55, reloaded.Progress, "progress must not regress below the previous value")
}

// TestProgressNoOpAfterTerminal proves cancelling (or any further
// progress write) after a render reaches completed must not mutate it.
func TestProgressNoOpAfterTerminal(t *testing.T) {
	gdb := openSQLiteDB(t)
	render := seedRender(t, gdb, database.RenderStatusCompleted, time.Now())
	require.NoError(t, gdb.Model(render).Update("progress", 100).Error)

	require.NoError(t, Progress(context.Background(), gdb, render.ID, database.RenderStatusCancelled, 0, "ignored"))

	var reloaded database.Render
	require.NoError(t, gdb.First(&reloaded, "id = ?", render.ID).Error)
	require.Equal(t, database.RenderStatusCompleted, reloaded.Status)
	require.Equal(t, 100, reloaded.Progress)
}

// TestRescueStuckRendersIdempotent proves a stale non-terminal render is
// rescued once; running the sweep again finds nothing left to do.
func TestRescueStuckRendersIdempotent(t *testing.T) {
	gdb := openSQLiteDB(t)
	stale := seedRender(t, gdb, database.RenderStatusRecording, time.Now().Add(-20*time.Minute))

	ctx := context.Background()
	n, err := RescueStuckRenders(ctx, gdb, 10*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	var reloaded database.Render
	require.NoError(t, gdb.First(&reloaded, "id = ?", stale.ID).Error)
	require.Equal(t, database.RenderStatusFailed, reloaded.Status)
	require.Equal(t, "heartbeat timeout", reloaded.ErrorMessage)

	n, err = RescueStuckRenders(ctx, gdb, 10*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 0, n, "a second sweep must have no additional effect")
}

func TestRenderJobUniquePerRender(t *testing.T) {
	gdb := openSQLiteDB(t)
	render := seedRender(t, gdb, database.RenderStatusQueued, time.Now())

	dup := &database.RenderJob{RenderID: render.ID, State: database.RenderJobQueued}
	err := gdb.Create(dup).Error
	require.Error(t, err, "render_jobs.render_id must be unique (one job per render)")
}
