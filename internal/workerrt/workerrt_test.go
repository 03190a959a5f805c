package workerrt

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenWithPortFallbackFallsBackWhenBasePortIsTaken(t *testing.T) {
	occupied, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer occupied.Close()

	basePort := occupied.Addr().(*net.TCPAddr).Port

	ln, bound, err := ListenWithPortFallback(strconv.Itoa(basePort))
	require.NoError(t, err)
	defer ln.Close()

	assert.NotEqual(t, strconv.Itoa(basePort), bound)
	boundPort, err := strconv.Atoi(bound)
	require.NoError(t, err)
	assert.Greater(t, boundPort, basePort)
	assert.LessOrEqual(t, boundPort, basePort+maxHealthPortAttempts-1)
}

func TestListenWithPortFallbackUsesBasePortWhenFree(t *testing.T) {
	probe, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	freePort := probe.Addr().(*net.TCPAddr).Port
	require.NoError(t, probe.Close())

	ln, bound, err := ListenWithPortFallback(strconv.Itoa(freePort))
	require.NoError(t, err)
	defer ln.Close()
	assert.Equal(t, strconv.Itoa(freePort), bound)
}

func TestRuntimeHealthyRequiresRecentHeartbeatAndNotShuttingDown(t *testing.T) {
	r := &Runtime{Opts: Options{HeartbeatTimeout: 100 * time.Millisecond}}
	r.bumpHeartbeat()
	assert.True(t, r.Healthy())

	time.Sleep(150 * time.Millisecond)
	assert.False(t, r.Healthy())

	r.bumpHeartbeat()
	r.isShuttingDown.Store(true)
	assert.False(t, r.Healthy())
}

func TestBuildHealthResponseReflectsConcurrencyAndCurrentJob(t *testing.T) {
	r := &Runtime{Opts: Options{HeartbeatTimeout: time.Minute}}
	r.bumpHeartbeat()
	r.maxConcurrent.Store(3)
	r.isProcessing.Store(true)
	r.currentJobID = "job-1"
	r.currentRenderID = "render-1"

	resp := r.buildHealthResponse()
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Concurrency.Limit)
	assert.Equal(t, 1, resp.Concurrency.Active)
	assert.Equal(t, 2, resp.Concurrency.Available)
	require.NotNil(t, resp.CurrentJob)
	assert.Equal(t, "job-1", *resp.CurrentJob)
}

func TestCleanerScheduleForRenderFindsMatchingDirectory(t *testing.T) {
	dir := t.TempDir()
	renderID := uuid.New()
	workingDir := filepath.Join(dir, "acme-campaign-"+renderID.String())
	require.NoError(t, os.MkdirAll(workingDir, 0o755))

	c := NewCleaner(dir, 50*time.Millisecond, time.Hour, 30*24*time.Hour)
	c.ScheduleForRender(renderID, "pub123", true)

	c.mu.Lock()
	_, scheduled := c.pending[workingDir]
	c.mu.Unlock()
	assert.True(t, scheduled)

	time.Sleep(100 * time.Millisecond)
	c.applyDue()

	_, err := os.Stat(workingDir)
	assert.True(t, os.IsNotExist(err))
}

func TestCleanerScheduleForRenderUsesFailedRetentionOnFailure(t *testing.T) {
	dir := t.TempDir()
	renderID := uuid.New()
	workingDir := filepath.Join(dir, "acme-campaign-"+renderID.String())
	require.NoError(t, os.MkdirAll(workingDir, 0o755))

	c := NewCleaner(dir, time.Millisecond, time.Hour, 30*24*time.Hour)
	c.ScheduleForRender(renderID, "pub123", false)

	c.mu.Lock()
	pd, scheduled := c.pending[workingDir]
	c.mu.Unlock()
	require.True(t, scheduled)
	assert.Greater(t, pd.deleteAt.Sub(time.Now()), 30*time.Minute, "a failed render must get the long retention window, not the short success one")
}

func TestCleanerMopUpRemovesOnlyStaleDirectories(t *testing.T) {
	dir := t.TempDir()
	fresh := filepath.Join(dir, "fresh-render")
	stale := filepath.Join(dir, "stale-render")
	require.NoError(t, os.MkdirAll(fresh, 0o755))
	require.NoError(t, os.MkdirAll(stale, 0o755))

	old := time.Now().Add(-60 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	c := NewCleaner(dir, time.Hour, 7*24*time.Hour, 30*24*time.Hour)
	c.mopUp()

	_, err := os.Stat(fresh)
	assert.NoError(t, err)
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}
