package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveFallsBackToDefaultsWhenAllLayersEmpty(t *testing.T) {
	out := Resolve(OutputSettings{}, OutputSettings{})
	assert.Equal(t, Defaults, out)
}

func TestResolvePerRenderTakesPrecedenceOverSystem(t *testing.T) {
	perRender := OutputSettings{Width: 1280, Height: 720}
	perSystem := OutputSettings{Width: 3840, Height: 2160, FPS: 24}

	out := Resolve(perRender, perSystem)

	assert.Equal(t, 1280, out.Width)
	assert.Equal(t, 720, out.Height)
	assert.Equal(t, 24, out.FPS)
}

func TestResolveEnvFillsGapsBelowSystemSettings(t *testing.T) {
	t.Setenv("OUTPUT_FPS", "25")

	out := Resolve(OutputSettings{}, OutputSettings{})
	assert.Equal(t, 25, out.FPS)
}

func TestResolveSystemSettingsTakePrecedenceOverEnv(t *testing.T) {
	t.Setenv("OUTPUT_FPS", "25")

	out := Resolve(OutputSettings{}, OutputSettings{FPS: 30})
	assert.Equal(t, 30, out.FPS, "system_settings row must outrank a process env var")
}
