package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"blindtest/internal/config"
	"blindtest/internal/deps"
)

// MinFreeBytes is the free space below which an output directory is flagged.
const MinFreeBytes = 64 << 20

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckOutput verifies that an output file can be created: its directory must
// be writable, the path itself must not be a directory, and the filesystem
// should have at least MinFreeBytes available.
func CheckOutput(output string) Result {
	name := "Output " + filepath.Base(output)
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", output)}
	}
	dir := filepath.Dir(output)
	access := CheckDirectoryAccess(name, dir)
	if !access.Passed {
		return access
	}
	free, err := FreeBytes(dir)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", dir, err)}
	}
	if free < MinFreeBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: only %d MiB free)", dir, free>>20)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (writable, %d MiB free)", dir, free>>20)}
}

// FreeBytes returns the space available to unprivileged users on the
// filesystem holding path.
func FreeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// CheckSystemDeps evaluates the media tools named in the config. Both the
// doctor command and the HTTP bridge health endpoint use this.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckMediaTools(ctx, cfg.Tools.FFmpeg, cfg.Tools.FFprobe)
}
