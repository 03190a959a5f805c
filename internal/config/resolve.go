package config

import (
	"github.com/spf13/viper"
)

// OutputSettings mirrors database.OutputSettings without importing the
// database package, so config stays a leaf dependency. Zero values mean
// "not set at this layer" and fall through to the next.
type OutputSettings struct {
	Width            int    `mapstructure:"width"`
	Height           int    `mapstructure:"height"`
	FPS              int    `mapstructure:"fps"`
	PageLoadWaitMs   int    `mapstructure:"page_load_wait_ms"`
	FacecamPIPWidth  int    `mapstructure:"facecam_pip_width"`
	FacecamPIPMargin int    `mapstructure:"facecam_pip_margin"`
	FacecamPIPCorner string `mapstructure:"facecam_pip_corner"`
	EndPadMode       string `mapstructure:"end_pad_mode"`
}

// Defaults are the strict defaults that form the last-resort layer
// of Resolve.
var Defaults = OutputSettings{
	Width:            1920,
	Height:           1080,
	FPS:              60,
	PageLoadWaitMs:   3000,
	FacecamPIPWidth:  320,
	FacecamPIPMargin: 24,
	FacecamPIPCorner: "bottom-right",
	EndPadMode:       "freeze",
}

// Resolve merges three layers in order of precedence (highest wins):
// perRender (campaign output_settings), perSystem (the system_settings
// row), and process environment (OUTPUT_* vars), falling back to
// Defaults for anything still unset. It is backed by viper: Defaults
// are registered with SetDefault, OUTPUT_* environment variables are
// picked up via AutomaticEnv, and perSystem/perRender are layered on
// top as explicit overrides — perSystem applied first, perRender
// applied last so it wins whenever both set the same field.
func Resolve(perRender, perSystem OutputSettings) OutputSettings {
	v := viper.New()

	v.SetDefault("width", Defaults.Width)
	v.SetDefault("height", Defaults.Height)
	v.SetDefault("fps", Defaults.FPS)
	v.SetDefault("page_load_wait_ms", Defaults.PageLoadWaitMs)
	v.SetDefault("facecam_pip_width", Defaults.FacecamPIPWidth)
	v.SetDefault("facecam_pip_margin", Defaults.FacecamPIPMargin)
	v.SetDefault("facecam_pip_corner", Defaults.FacecamPIPCorner)
	v.SetDefault("end_pad_mode", Defaults.EndPadMode)

	v.SetEnvPrefix("OUTPUT")
	v.AutomaticEnv()

	for key, val := range nonZeroFields(perSystem) {
		v.Set(key, val)
	}
	for key, val := range nonZeroFields(perRender) {
		v.Set(key, val)
	}

	var out OutputSettings
	_ = v.Unmarshal(&out)
	return out
}

// nonZeroFields returns only the explicitly-set fields of o, keyed by
// their mapstructure tag, so an unset (zero-value) field never
// shadows a lower-precedence layer.
func nonZeroFields(o OutputSettings) map[string]interface{} {
	fields := make(map[string]interface{}, 8)
	if o.Width != 0 {
		fields["width"] = o.Width
	}
	if o.Height != 0 {
		fields["height"] = o.Height
	}
	if o.FPS != 0 {
		fields["fps"] = o.FPS
	}
	if o.PageLoadWaitMs != 0 {
		fields["page_load_wait_ms"] = o.PageLoadWaitMs
	}
	if o.FacecamPIPWidth != 0 {
		fields["facecam_pip_width"] = o.FacecamPIPWidth
	}
	if o.FacecamPIPMargin != 0 {
		fields["facecam_pip_margin"] = o.FacecamPIPMargin
	}
	if o.FacecamPIPCorner != "" {
		fields["facecam_pip_corner"] = o.FacecamPIPCorner
	}
	if o.EndPadMode != "" {
		fields["end_pad_mode"] = o.EndPadMode
	}
	return fields
}
