package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultTerminateGrace is how long a terminated encoder has to exit before it is killed.
const DefaultTerminateGrace = 5 * time.Second

const stderrTailBytes = 4096

// Process is a running encoder whose stdout carries progress lines.
type Process interface {
	Stdout() io.Reader
	// Wait blocks until the process exits and reports its exit status.
	Wait() error
	// Terminate asks the process to stop. It does not reap it.
	Terminate() error
}

// Runner launches encoder processes.
type Runner interface {
	Start(ctx context.Context, binary string, args []string) (Process, error)
}

// ExecRunner starts encoders with os/exec in their own process group so
// termination reaches any helpers they fork.
type ExecRunner struct {
	// Grace is the delay between SIGTERM and SIGKILL. Zero uses DefaultTerminateGrace.
	Grace time.Duration
}

// Start launches binary with args. Cancelling ctx terminates the process group.
func (r ExecRunner) Start(ctx context.Context, binary string, args []string) (Process, error) {
	grace := r.Grace
	if grace <= 0 {
		grace = DefaultTerminateGrace
	}

	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	proc := &execProcess{cmd: cmd, grace: grace, stderr: &tailBuffer{limit: stderrTailBytes}}
	cmd.Stderr = proc.stderr
	cmd.Cancel = func() error { return proc.signal(unix.SIGTERM) }
	cmd.WaitDelay = grace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}
	proc.stdout = stdout
	return proc, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr *tailBuffer
	grace  time.Duration

	mu   sync.Mutex
	kill *time.Timer
}

func (p *execProcess) Stdout() io.Reader {
	return p.stdout
}

func (p *execProcess) Wait() error {
	err := p.cmd.Wait()
	p.mu.Lock()
	if p.kill != nil {
		p.kill.Stop()
	}
	p.mu.Unlock()
	if err == nil {
		return nil
	}
	if tail := strings.TrimSpace(p.stderr.String()); tail != "" {
		return fmt.Errorf("%w: %s", err, tail)
	}
	return err
}

func (p *execProcess) Terminate() error {
	err := p.signal(unix.SIGTERM)
	p.mu.Lock()
	if p.kill == nil {
		p.kill = time.AfterFunc(p.grace, func() { _ = p.signal(unix.SIGKILL) })
	}
	p.mu.Unlock()
	return err
}

// signal delivers sig to the whole process group.
func (p *execProcess) signal(sig unix.Signal) error {
	if p.cmd.Process == nil {
		return nil
	}
	err := unix.Kill(-p.cmd.Process.Pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
