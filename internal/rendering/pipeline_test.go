package rendering

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/rendercore/internal/database"
)

func TestResolveOutputSettingsFillsZeroValues(t *testing.T) {
	o := resolveOutputSettings(database.OutputSettings{}, database.OutputSettings{})

	assert.Equal(t, 1920, o.Width)
	assert.Equal(t, 1080, o.Height)
	assert.Equal(t, 60, o.FPS)
	assert.Equal(t, 3000, o.PageLoadWaitMs)
	assert.Equal(t, 320, o.FacecamPIPWidth)
	assert.Equal(t, 24, o.FacecamPIPMargin)
	assert.Equal(t, "bottom-right", o.FacecamPIPCorner)
	assert.Equal(t, "freeze", o.EndPadMode)
}

func TestResolveOutputSettingsPreservesExplicitCampaignValues(t *testing.T) {
	campaign := database.OutputSettings{Width: 1280, Height: 720, FPS: 30}
	o := resolveOutputSettings(campaign, database.OutputSettings{})

	assert.Equal(t, 1280, o.Width)
	assert.Equal(t, 720, o.Height)
	assert.Equal(t, 30, o.FPS)
}

func TestResolveOutputSettingsCampaignOutranksSystem(t *testing.T) {
	campaign := database.OutputSettings{Width: 1280}
	system := database.OutputSettings{Width: 3840, Height: 2160}
	o := resolveOutputSettings(campaign, system)

	assert.Equal(t, 1280, o.Width, "campaign output settings must win over the system_settings row")
	assert.Equal(t, 2160, o.Height, "system_settings fills gaps the campaign leaves unset")
}

// TestSceneCacheKeyVariesByResolutionAndFPS proves the cache salt
// resolved for the URL-collision open question: two identical URLs
// rendered at different resolutions or frame rates must never share a
// cache entry.
func TestSceneCacheKeyVariesByResolutionAndFPS(t *testing.T) {
	url := "https://example.com/widget"
	hd := sceneCacheKey(url, database.OutputSettings{Width: 1920, Height: 1080, FPS: 60})
	sd := sceneCacheKey(url, database.OutputSettings{Width: 1280, Height: 720, FPS: 60})
	slowFPS := sceneCacheKey(url, database.OutputSettings{Width: 1920, Height: 1080, FPS: 30})

	assert.NotEqual(t, hd, sd)
	assert.NotEqual(t, hd, slowFPS)

	again := sceneCacheKey(url, database.OutputSettings{Width: 1920, Height: 1080, FPS: 60})
	assert.Equal(t, hd, again)
}

func TestCheckGlobalConstraintRejectsOverLongCampaign(t *testing.T) {
	p := &Pipeline{}
	scenes := []database.Scene{{DurationSec: 200}, {DurationSec: 150}}
	err := p.checkGlobalConstraint(scenes, &resolvedInputs{})
	assert.Error(t, err)
}

func TestCheckGlobalConstraintRejectsFacecamDurationMismatch(t *testing.T) {
	p := &Pipeline{}
	scenes := []database.Scene{{DurationSec: 30}, {DurationSec: 30}}
	inputs := &resolvedInputs{facecamPath: "/tmp/facecam.mp4", facecamDurSec: 45}
	err := p.checkGlobalConstraint(scenes, inputs)
	assert.Error(t, err)
}

func TestCheckGlobalConstraintAcceptsMatchingFacecamDuration(t *testing.T) {
	p := &Pipeline{}
	scenes := []database.Scene{{DurationSec: 30}, {DurationSec: 30}}
	inputs := &resolvedInputs{facecamPath: "/tmp/facecam.mp4", facecamDurSec: 60.4}
	err := p.checkGlobalConstraint(scenes, inputs)
	assert.NoError(t, err)
}

func TestDeriveLeadIdentifierUsesFirstCSVScene(t *testing.T) {
	scenes := []database.Scene{
		{Kind: database.SceneKindManual, URL: "https://example.com"},
		{Kind: database.SceneKindCSV, CSVColumn: "company"},
	}
	inputs := &resolvedInputs{
		csvHeader: []string{"name", "company"},
		csvRows:   [][]string{{"Ada", "Analytical Engines"}},
		rowIndex:  0,
	}
	assert.Equal(t, "Analytical Engines", deriveLeadIdentifier(scenes, inputs))
}

func TestDeriveLeadIdentifierFallsBackToRowOrdinal(t *testing.T) {
	inputs := &resolvedInputs{rowIndex: 2}
	assert.Equal(t, "Lead 3", deriveLeadIdentifier(nil, inputs))
}

func TestResolvedInputsSceneURLManual(t *testing.T) {
	inputs := &resolvedInputs{}
	url, err := inputs.sceneURL(database.Scene{Kind: database.SceneKindManual, URL: "example.com/page"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", url)
}

func TestResolvedInputsSceneURLCSVLookup(t *testing.T) {
	inputs := &resolvedInputs{
		csvHeader: []string{"name", "site"},
		csvRows:   [][]string{{"Ada", "ada.example.com"}},
		rowIndex:  0,
	}
	url, err := inputs.sceneURL(database.Scene{Kind: database.SceneKindCSV, CSVColumn: "site"})
	require.NoError(t, err)
	assert.Equal(t, "https://ada.example.com", url)
}

func TestResolvedInputsSceneURLCSVMissingColumnErrors(t *testing.T) {
	inputs := &resolvedInputs{
		csvHeader: []string{"name"},
		csvRows:   [][]string{{"Ada"}},
		rowIndex:  0,
	}
	_, err := inputs.sceneURL(database.Scene{Kind: database.SceneKindCSV, CSVColumn: "site"})
	assert.Error(t, err)
}

func TestSlugifyStripsNonAlnum(t *testing.T) {
	assert.Equal(t, "acme-q3-launch", slugify("Acme — Q3 Launch!"))
}

func TestParseCSVReturnsHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leads.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,company\nAda,Analytical Engines\nGrace,Cobol Inc\n"), 0o644))

	header, rows, err := parseCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "company"}, header)
	assert.Len(t, rows, 2)
	assert.Equal(t, "Grace", rows[1][0])
}

func TestIndexOfIsCaseInsensitiveAndTrims(t *testing.T) {
	header := []string{" Name ", "Company"}
	assert.Equal(t, 1, indexOf(header, "company"))
	assert.Equal(t, -1, indexOf(header, "missing"))
}

func TestBackoffWithJitterRespectsCapAndJitterBand(t *testing.T) {
	for attempt := 1; attempt <= 6; attempt++ {
		d := backoffWithJitter(attempt)
		assert.Greater(t, d.Seconds(), 0.0)
		assert.LessOrEqual(t, d.Seconds(), retryCapDelay.Seconds()*1.25+0.001)
	}
}
