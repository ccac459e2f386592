package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 5 * time.Second

// MediaRequirements lists the encoder and prober binaries exports need.
func MediaRequirements(ffmpeg, ffprobe string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpeg,
			Description: "Required for exporting videos",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobe,
			Description: "Required for countdown and music durations",
		},
	}
}

// CheckMediaTools reports availability of ffmpeg and ffprobe. Available
// binaries are asked for their version, which becomes the status detail.
func CheckMediaTools(ctx context.Context, ffmpeg, ffprobe string) []Status {
	results := CheckBinaries(MediaRequirements(ffmpeg, ffprobe))
	for i := range results {
		if !results[i].Available {
			continue
		}
		version, err := ProbeVersion(ctx, results[i].Command)
		if err != nil {
			results[i].Available = false
			results[i].Detail = err.Error()
			continue
		}
		results[i].Detail = version
	}
	return results
}

// ProbeVersion runs "<command> -version" and returns the first output line.
func ProbeVersion(ctx context.Context, command string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, command, "-version")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s -version failed: %w", command, err)
	}
	scanner := bufio.NewScanner(&stdout)
	if scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("%s -version printed nothing", command)
}
