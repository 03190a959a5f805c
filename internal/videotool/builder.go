// Package videotool provides thin, typed wrappers over an external
// frame-accurate video tool (ffmpeg/ffprobe), implementing the Probe,
// Normalize, Concat, Overlay, and Thumbnail operations.
package videotool

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yourorg/rendercore/internal/logging"
)

// stderrTailLimit bounds how much stderr is embedded in a returned
// error, so failures stay descriptive without dumping megabytes of log.
const stderrTailLimit = 4096

// command provides a fluent API for building and running an ffmpeg
// invocation.
type command struct {
	bin     string
	args    []string
	filters []string
}

func newCommand(bin string) *command {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &command{bin: bin}
}

func (c *command) Overwrite() *command {
	c.args = append(c.args, "-y")
	return c
}

func (c *command) Input(path string) *command {
	c.args = append(c.args, "-i", path)
	return c
}

func (c *command) StartAt(at time.Duration) *command {
	if at > 0 {
		c.args = append(c.args, "-ss", fmt.Sprintf("%.3f", at.Seconds()))
	}
	return c
}

func (c *command) Frames(n int) *command {
	if n > 0 {
		c.args = append(c.args, "-frames:v", strconv.Itoa(n))
	}
	return c
}

func (c *command) VideoCodec(codec string) *command {
	if codec != "" {
		c.args = append(c.args, "-c:v", codec)
	}
	return c
}

func (c *command) Preset(preset string) *command {
	if preset != "" {
		c.args = append(c.args, "-preset", preset)
	}
	return c
}

func (c *command) CRF(v int) *command {
	if v > 0 {
		c.args = append(c.args, "-crf", strconv.Itoa(v))
	}
	return c
}

func (c *command) PixelFormat(pf string) *command {
	if pf != "" {
		c.args = append(c.args, "-pix_fmt", pf)
	}
	return c
}

func (c *command) NoAudio() *command {
	c.args = append(c.args, "-an")
	return c
}

func (c *command) MapAudioFrom(inputIndex int) *command {
	c.args = append(c.args, "-map", fmt.Sprintf("%d:a", inputIndex))
	return c
}

func (c *command) MapVideoFrom(inputIndex int) *command {
	c.args = append(c.args, "-map", fmt.Sprintf("%d:v", inputIndex))
	return c
}

func (c *command) FilterComplex(fc string) *command {
	if fc != "" {
		c.args = append(c.args, "-filter_complex", fc)
	}
	return c
}

func (c *command) Filter(filter string) *command {
	if filter != "" {
		c.filters = append(c.filters, filter)
	}
	return c
}

func (c *command) Codec(copyStreams bool) *command {
	if copyStreams {
		c.args = append(c.args, "-c", "copy")
	}
	return c
}

func (c *command) Arg(args ...string) *command {
	c.args = append(c.args, args...)
	return c
}

func (c *command) Output(path string) *command {
	c.args = append(c.args, path)
	return c
}

func (c *command) buildArgs() []string {
	var outputPath string
	argsWithoutOutput := c.args
	if len(c.args) > 0 && !strings.HasPrefix(c.args[len(c.args)-1], "-") {
		outputPath = c.args[len(c.args)-1]
		argsWithoutOutput = c.args[:len(c.args)-1]
	}

	args := make([]string, 0, len(c.args)+2)
	args = append(args, argsWithoutOutput...)

	if len(c.filters) > 0 {
		args = append(args, "-vf", strings.Join(c.filters, ","))
	}
	if outputPath != "" {
		args = append(args, outputPath)
	}
	return args
}

// Run executes the built command, capturing and returning a stderr tail
// on failure.
func (c *command) Run(ctx context.Context) error {
	args := c.buildArgs()
	cmd := exec.CommandContext(ctx, c.bin, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s failed to start: %w", c.bin, err)
	}

	var tailMu sync.Mutex
	var tail strings.Builder
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			tailMu.Lock()
			tail.WriteString(scanner.Text())
			tail.WriteString("\n")
			if tail.Len() > stderrTailLimit*2 {
				trimmed := tail.String()
				tail.Reset()
				tail.WriteString(trimmed[len(trimmed)-stderrTailLimit:])
			}
			tailMu.Unlock()
		}
	}()

	waitErr := cmd.Wait()
	<-done

	if waitErr != nil {
		tailMu.Lock()
		out := tail.String()
		tailMu.Unlock()
		if len(out) > stderrTailLimit {
			out = out[len(out)-stderrTailLimit:]
		}
		logging.ErrorWithComponent(logging.ComponentVideoTool, "ffmpeg invocation failed", "args", strings.Join(args, " "))
		return fmt.Errorf("%s failed: %w\nstderr: %s", c.bin, waitErr, out)
	}
	return nil
}
