package videotool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yourorg/rendercore/internal/logging"
)

// Tool resolves the ffmpeg/ffprobe binaries to invoke; the zero value
// uses PATH-based discovery ("ffmpeg"/"ffprobe"), with an explicit
// path resolved through config taking precedence.
type Tool struct {
	FFmpegBin  string
	FFprobeBin string
}

func (t Tool) ffmpeg() string {
	if t.FFmpegBin == "" {
		return "ffmpeg"
	}
	return t.FFmpegBin
}

func (t Tool) ffprobe() string {
	if t.FFprobeBin == "" {
		return "ffprobe"
	}
	return t.FFprobeBin
}

func (t Tool) Probe(ctx context.Context, path string) (ProbeInfo, error) {
	return Probe(ctx, t.ffprobe(), path)
}

// NormalizeOptions describes one scene's target encoding.
type NormalizeOptions struct {
	Width            int
	Height           int
	FPS              int
	DurationSec      int
	FixedLeaderSkip  time.Duration // default 4.5s
	LumaScan         bool
	LumaScanOffset   time.Duration // refinement found by the caller's luma scan, if LumaScan is set
}

// Normalize trims the leading white/warmup offset, forces an exact frame
// count (durationSec × fps), scales, sets square pixels and a
// pixel-format compatible with concat, and encodes video-only.
func (t Tool) Normalize(ctx context.Context, inputPath, outputPath string, opts NormalizeOptions) error {
	skip := leaderSkip(opts)

	frameCount := opts.DurationSec * opts.FPS
	if frameCount <= 0 {
		return fmt.Errorf("normalize %s: duration and fps must be positive (got %ds @ %dfps)", inputPath, opts.DurationSec, opts.FPS)
	}

	cmd := newCommand(t.ffmpeg()).
		Overwrite().
		Input(inputPath).
		StartAt(skip).
		Filter(fmt.Sprintf("scale=%d:%d:flags=bicubic,setsar=1,fps=%d", opts.Width, opts.Height, opts.FPS)).
		Frames(frameCount).
		VideoCodec("libx264").
		Preset("veryfast").
		CRF(20).
		PixelFormat("yuv420p").
		NoAudio().
		Output(outputPath)

	logging.InfoWithComponent(logging.ComponentVideoTool, "normalizing scene", "input", inputPath, "skip", skip, "frames", frameCount)
	return cmd.Run(ctx)
}

// leaderSkip returns the leading offset Normalize trims: FixedLeaderSkip,
// or 4.5s when unset.
func leaderSkip(opts NormalizeOptions) time.Duration {
	skip := opts.FixedLeaderSkip
	if skip <= 0 {
		skip = 4500 * time.Millisecond
	}
	// The luma scan may only refine the skip downward, never push it past
	// the fixed value.
	if opts.LumaScan && opts.LumaScanOffset > 0 && opts.LumaScanOffset < skip {
		skip = opts.LumaScanOffset
	}
	return skip
}

// Concat stream-copies a list of same-parameter MP4s into one output,
// using ffmpeg's concat demuxer (no re-encode).
func (t Tool) Concat(ctx context.Context, inputs []string, outputPath string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("concat: no inputs provided")
	}

	listPath := outputPath + ".concat.txt"
	f, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			f.Close()
			return fmt.Errorf("resolve path %s: %w", in, err)
		}
		if _, err := fmt.Fprintf(f, "file '%s'\n", abs); err != nil {
			f.Close()
			return fmt.Errorf("write concat list: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close concat list: %w", err)
	}
	defer os.Remove(listPath)

	cmd := newCommand(t.ffmpeg()).
		Overwrite().
		Arg("-f", "concat", "-safe", "0").
		Input(listPath).
		Codec(true).
		Output(outputPath)

	logging.InfoWithComponent(logging.ComponentVideoTool, "concatenating scenes", "count", len(inputs), "output", outputPath)
	return cmd.Run(ctx)
}

// PIPOptions describes the facecam picture-in-picture placement.
type PIPOptions struct {
	Width  int
	Margin int
	Corner string // "bottom-right", "bottom-left", "top-right", "top-left"
}

// Overlay composites the facecam video onto the background, scaling it
// to pip.Width with the configured corner margin, mixing audio from
// both sources, in a single re-encode.
func (t Tool) Overlay(ctx context.Context, backgroundPath, facecamPath, outputPath string, pip PIPOptions) error {
	overlayExpr := overlayPosition(pip)

	filterComplex := fmt.Sprintf(
		"[1:v]scale=%d:-2[pip];[0:v][pip]overlay=%s[v];[0:a][1:a]amix=inputs=2:duration=longest[a]",
		pip.Width, overlayExpr,
	)

	cmd := newCommand(t.ffmpeg()).
		Overwrite().
		Input(backgroundPath).
		Input(facecamPath).
		FilterComplex(filterComplex).
		Arg("-map", "[v]", "-map", "[a]").
		VideoCodec("libx264").
		Preset("veryfast").
		CRF(20).
		Output(outputPath)

	logging.InfoWithComponent(logging.ComponentVideoTool, "overlaying facecam", "corner", pip.Corner, "output", outputPath)
	return cmd.Run(ctx)
}

func overlayPosition(pip PIPOptions) string {
	m := pip.Margin
	switch pip.Corner {
	case "top-left":
		return fmt.Sprintf("%d:%d", m, m)
	case "top-right":
		return fmt.Sprintf("W-w-%d:%d", m, m)
	case "bottom-left":
		return fmt.Sprintf("%d:H-h-%d", m, m)
	default: // bottom-right
		return fmt.Sprintf("W-w-%d:H-h-%d", m, m)
	}
}

// MuxImageSequence encodes a numbered JPEG frame sequence (ffmpeg
// printf-style pattern, e.g. "frame-%08d.jpg") into a WebM at the given
// frame rate, used by the browser driver's screencast-based recording.
func (t Tool) MuxImageSequence(ctx context.Context, pattern string, fps int, outputPath string) error {
	cmd := newCommand(t.ffmpeg()).
		Overwrite().
		Arg("-framerate", fmt.Sprintf("%d", fps)).
		Input(pattern).
		VideoCodec("libvpx-vp9").
		PixelFormat("yuv420p").
		NoAudio().
		Output(outputPath)

	logging.InfoWithComponent(logging.ComponentVideoTool, "muxing screencast frames", "pattern", pattern, "fps", fps, "output", outputPath)
	return cmd.Run(ctx)
}

// Thumbnail extracts one frame at t=3s, scales to 1280x720, and encodes
// a high-quality JPEG.
func (t Tool) Thumbnail(ctx context.Context, inputPath, outputPath string) error {
	cmd := newCommand(t.ffmpeg()).
		Overwrite().
		Input(inputPath).
		StartAt(3 * time.Second).
		Filter("scale=1280:720:flags=bicubic").
		Frames(1).
		Arg("-q:v", "2").
		Output(outputPath)

	logging.InfoWithComponent(logging.ComponentVideoTool, "extracting thumbnail", "input", inputPath)
	return cmd.Run(ctx)
}
