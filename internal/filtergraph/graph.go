package filtergraph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// FrameWidth is the canonical output width in pixels.
	FrameWidth = 1920
	// FrameHeight is the canonical output height in pixels.
	FrameHeight = 1080
	// FadeSeconds is the fade-out length applied to every sub-stream.
	FadeSeconds = 1

	videoOut = "v"
	audioOut = "a"
)

// ErrInvalidDuration reports a countdown that does not fit inside the clip duration.
var ErrInvalidDuration = errors.New("invalid duration")

// Item is one timeline entry: a music segment starting at Offset shown over ImagePath.
type Item struct {
	Offset    time.Duration
	MusicPath string
	ImagePath string
}

// Params describes a full export.
type Params struct {
	// ClipDuration is the length in seconds of each slot including its countdown.
	ClipDuration uint32
	// CountdownDuration is the probed countdown length in seconds.
	CountdownDuration uint32
	Countdown         string
	Items             []Item
	Output            string
	// ExtraArgs are output options (resource hints such as -threads) placed
	// before the output path.
	ExtraArgs []string
}

// LoopDuration returns how long each still image is shown after its countdown.
func (p Params) LoopDuration() (uint32, error) {
	if p.CountdownDuration > p.ClipDuration {
		return 0, fmt.Errorf("%w: countdown %ds exceeds clip duration %ds", ErrInvalidDuration, p.CountdownDuration, p.ClipDuration)
	}
	return p.ClipDuration - p.CountdownDuration, nil
}

// Build returns the ffmpeg arguments (binary excluded) for p.
func Build(p Params) ([]string, error) {
	loop, err := p.LoopDuration()
	if err != nil {
		return nil, err
	}
	graph, err := Graph(p)
	if err != nil {
		return nil, err
	}

	clip := strconv.FormatUint(uint64(p.ClipDuration), 10)
	loopArg := strconv.FormatUint(uint64(loop), 10)

	args := make([]string, 0, 2+len(p.Items)*12+16+len(p.ExtraArgs))
	args = append(args, "-i", p.Countdown)
	for _, item := range p.Items {
		args = append(args,
			"-loop", "1", "-t", loopArg, "-i", item.ImagePath,
			"-ss", formatSeconds(item.Offset), "-t", clip, "-i", item.MusicPath,
		)
	}
	args = append(args, "-filter_complex", graph, "-map", "["+videoOut+"]")
	if len(p.Items) > 0 {
		args = append(args, "-map", "["+audioOut+"]")
	}
	args = append(args, "-v", "error", "-progress", "-", "-nostdin", "-shortest")
	args = append(args, p.ExtraArgs...)
	args = append(args, "-y", p.Output)
	return args, nil
}

// Graph returns only the -filter_complex value for p.
func Graph(p Params) (string, error) {
	loop, err := p.LoopDuration()
	if err != nil {
		return "", err
	}
	n := len(p.Items)

	clauses := make([]string, 0, 2*n+3)

	countdown := "[0:v]" + frameChain(p.CountdownDuration)
	if n <= 1 {
		clauses = append(clauses, countdown+label(videoLabel(0)))
	} else {
		var copies strings.Builder
		for i := range n {
			copies.WriteString(label(videoLabel(2 * i)))
		}
		clauses = append(clauses, fmt.Sprintf("%s,split=%d%s", countdown, n, copies.String()))
	}

	for i := range n {
		imageInput := 1 + 2*i
		musicInput := 2 + 2*i
		clauses = append(clauses,
			fmt.Sprintf("[%d:v]%s%s", imageInput, frameChain(loop), label(videoLabel(2*i+1))),
			fmt.Sprintf("[%d:a]%s%s", musicInput, audioFade(p.ClipDuration), label(audioLabel(i))),
		)
	}

	var video strings.Builder
	videoStreams := 2 * n
	if n == 0 {
		videoStreams = 1
	}
	for i := range videoStreams {
		video.WriteString(label(videoLabel(i)))
	}
	clauses = append(clauses, fmt.Sprintf("%sconcat=n=%d:v=1:a=0%s", video.String(), videoStreams, label(videoOut)))

	if n > 0 {
		var audio strings.Builder
		for i := range n {
			audio.WriteString(label(audioLabel(i)))
		}
		clauses = append(clauses, fmt.Sprintf("%sconcat=n=%d:v=0:a=1%s", audio.String(), n, label(audioOut)))
	}

	return strings.Join(clauses, ";"), nil
}

// frameChain letterboxes a video sub-stream to the canonical frame and fades
// it out over the last second of duration.
func frameChain(duration uint32) string {
	chain := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1",
		FrameWidth, FrameHeight, FrameWidth, FrameHeight,
	)
	if duration == 0 {
		return chain
	}
	start, length := fadeWindow(duration)
	return chain + fmt.Sprintf(",fade=t=out:st=%d:d=%d", start, length)
}

func audioFade(duration uint32) string {
	if duration == 0 {
		return "anull"
	}
	start, length := fadeWindow(duration)
	return fmt.Sprintf("afade=t=out:st=%d:d=%d", start, length)
}

// fadeWindow returns the fade start and length so the fade ends at duration.
func fadeWindow(duration uint32) (uint32, uint32) {
	if duration <= FadeSeconds {
		return 0, duration
	}
	return duration - FadeSeconds, FadeSeconds
}

func videoLabel(i int) string { return "v" + strconv.Itoa(i) }

func audioLabel(i int) string { return "a" + strconv.Itoa(i) }

func label(name string) string { return "[" + name + "]" }

// formatSeconds renders an offset as fractional seconds accepted by -ss.
func formatSeconds(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
