package testsupport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"blindtest/internal/export"
)

// ErrTerminated is what a held FakeEncoder process reports after Terminate.
var ErrTerminated = errors.New("signal: terminated")

// ProgressLines renders an ffmpeg -progress stream reporting each frame and
// ending with progress=end.
func ProgressLines(frames ...uint64) []string {
	lines := make([]string, 0, len(frames)*2+1)
	for _, frame := range frames {
		lines = append(lines, fmt.Sprintf("frame=%d", frame), "progress=continue")
	}
	return append(lines, "progress=end")
}

// StaticProber reports the same duration for every file.
type StaticProber struct {
	Seconds uint32
	Err     error
}

// Duration implements export.DurationProber.
func (p StaticProber) Duration(context.Context, string) (uint32, error) {
	return p.Seconds, p.Err
}

// FakeEncoder is an export.Runner that replays scripted progress lines
// instead of running ffmpeg. With Hold set the process keeps stdout open
// after the script until it is terminated or its context ends.
type FakeEncoder struct {
	Lines   []string
	Hold    bool
	WaitErr error

	mu     sync.Mutex
	starts int
	args   [][]string
}

// Start implements export.Runner.
func (f *FakeEncoder) Start(ctx context.Context, _ string, args []string) (export.Process, error) {
	f.mu.Lock()
	f.starts++
	f.args = append(f.args, append([]string(nil), args...))
	f.mu.Unlock()

	reader, writer := io.Pipe()
	proc := &fakeProcess{stdout: reader, writer: writer, exited: make(chan struct{}), waitErr: f.WaitErr}
	go func() {
		for _, line := range f.Lines {
			if _, err := io.WriteString(writer, line+"\n"); err != nil {
				return
			}
		}
		if !f.Hold {
			proc.exit(nil)
			return
		}
		select {
		case <-ctx.Done():
			proc.exit(ErrTerminated)
		case <-proc.exited:
		}
	}()
	return proc, nil
}

// Starts returns how many processes were started.
func (f *FakeEncoder) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

// Args returns the arguments of the most recent start.
func (f *FakeEncoder) Args() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.args) == 0 {
		return nil
	}
	return f.args[len(f.args)-1]
}

type fakeProcess struct {
	stdout  *io.PipeReader
	writer  *io.PipeWriter
	once    sync.Once
	exited  chan struct{}
	waitErr error
}

func (p *fakeProcess) exit(err error) {
	p.once.Do(func() {
		if err != nil {
			p.waitErr = err
		}
		_ = p.writer.Close()
		close(p.exited)
	})
}

func (p *fakeProcess) Stdout() io.Reader { return p.stdout }

func (p *fakeProcess) Wait() error {
	<-p.exited
	return p.waitErr
}

func (p *fakeProcess) Terminate() error {
	p.exit(ErrTerminated)
	return nil
}
