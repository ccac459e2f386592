package ffprobe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ErrProbeFailed reports that a media duration could not be determined.
var ErrProbeFailed = errors.New("probe failed")

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// commandExecutor executes commands using os/exec and returns stdout.
type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.Output()
}

// Option configures the prober.
type Option func(*Prober)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(p *Prober) {
		if exec != nil {
			p.exec = exec
		}
	}
}

// Prober reads container durations through ffprobe.
type Prober struct {
	binary string
	exec   Executor
}

// New constructs a Prober for the given ffprobe binary, defaulting to "ffprobe".
func New(binary string, opts ...Option) *Prober {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	p := &Prober{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Binary returns the ffprobe executable the prober invokes.
func (p *Prober) Binary() string {
	return p.binary
}

// Args returns the ffprobe argument list used to read the duration of path.
func Args(path string) []string {
	return []string{"-i", path, "-show_entries", "format=duration", "-v", "quiet", "-of", "csv=p=0"}
}

// DurationSeconds returns the container duration of path in fractional seconds.
func (p *Prober) DurationSeconds(ctx context.Context, path string) (float64, error) {
	if strings.TrimSpace(path) == "" {
		return 0, fmt.Errorf("%w: empty path", ErrProbeFailed)
	}

	output, err := p.exec.Run(ctx, p.binary, Args(path))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrProbeFailed, path, ctxErr)
		}
		return 0, fmt.Errorf("%w: %s: %w", ErrProbeFailed, path, err)
	}
	seconds, err := ParseDuration(string(output))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return seconds, nil
}

// Duration returns the container duration of path truncated to whole seconds.
func (p *Prober) Duration(ctx context.Context, path string) (uint32, error) {
	seconds, err := p.DurationSeconds(ctx, path)
	if err != nil {
		return 0, err
	}
	if seconds > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %s: duration %.3fs out of range", ErrProbeFailed, path, seconds)
	}
	return uint32(seconds), nil
}

// ParseDuration decodes the single-value csv output produced by Args.
func ParseDuration(output string) (float64, error) {
	cleaned := strings.TrimSpace(output)
	if cleaned == "" {
		return 0, fmt.Errorf("%w: empty output", ErrProbeFailed)
	}
	seconds, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %q: %w", ErrProbeFailed, cleaned, err)
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0, fmt.Errorf("%w: invalid duration %q", ErrProbeFailed, cleaned)
	}
	return seconds, nil
}
