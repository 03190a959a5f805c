package videotool

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeInfo is the subset of media metadata the pipeline needs.
type ProbeInfo struct {
	Width         int
	Height        int
	AvgFrameRate  float64
	DurationSec   float64
	AudioChannels int
}

// Probe shells out to ffprobe and returns width, height, average frame
// rate, duration, and audio channel count for inputPath.
func Probe(ctx context.Context, ffprobeBin, inputPath string) (ProbeInfo, error) {
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	args := []string{
		"-v", "error",
		"-show_entries", "stream=width,height,avg_frame_rate,channels,codec_type:format=duration",
		"-of", "json",
		inputPath,
	}
	cmd := exec.CommandContext(ctx, ffprobeBin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return ProbeInfo{}, fmt.Errorf("ffprobe failed: %w (output: %s)", err, string(out))
	}

	var parsed struct {
		Streams []struct {
			CodecType    string `json:"codec_type"`
			Width        int    `json:"width"`
			Height       int    `json:"height"`
			AvgFrameRate string `json:"avg_frame_rate"`
			Channels     int    `json:"channels"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return ProbeInfo{}, fmt.Errorf("parse ffprobe json: %w", err)
	}

	var pi ProbeInfo
	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			if pi.Width == 0 {
				pi.Width = s.Width
				pi.Height = s.Height
				pi.AvgFrameRate = parseFraction(s.AvgFrameRate)
			}
		case "audio":
			if pi.AudioChannels == 0 {
				pi.AudioChannels = s.Channels
			}
		}
	}
	if parsed.Format.Duration != "" {
		if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
			pi.DurationSec = d
		}
	}
	return pi, nil
}

func parseFraction(s string) float64 {
	parts := strings.Split(s, "/")
	if len(parts) == 2 {
		num, _ := strconv.ParseFloat(parts[0], 64)
		den, _ := strconv.ParseFloat(parts[1], 64)
		if den != 0 {
			return num / den
		}
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
