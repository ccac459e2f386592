package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const maxLineBytes = 1024 * 1024

// DefaultPollInterval is how often Follow checks the file for new lines.
const DefaultPollInterval = 250 * time.Millisecond

// Options select the lines Tail returns.
type Options struct {
	// Limit is the number of trailing lines to return; zero returns none and
	// only reports the end offset.
	Limit int
	// Match keeps only lines containing the substring. Empty keeps all.
	Match string
}

// Result holds tailed lines and the offset just past them.
type Result struct {
	Lines  []string
	Offset int64
}

// Tail returns the last opts.Limit lines of path that contain opts.Match.
// A missing file yields an empty result.
func Tail(path string, opts Options) (Result, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return Result{}, err
	}
	defer file.Close()

	limit := max(opts.Limit, 0)
	ring := make([]string, limit)
	count, next := 0, 0
	scanner := newScanner(file)
	for scanner.Scan() {
		if limit == 0 {
			continue
		}
		line := scanner.Text()
		if !matches(line, opts.Match) {
			continue
		}
		ring[next] = line
		next = (next + 1) % limit
		count = min(count+1, limit)
	}
	if err := scanner.Err(); err != nil {
		return Result{}, fmt.Errorf("read log file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return Result{}, fmt.Errorf("seek log file: %w", err)
	}

	lines := make([]string, 0, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := range count {
		lines = append(lines, ring[(start+i)%max(limit, 1)])
	}
	return Result{Lines: lines, Offset: offset}, nil
}

// ReadFrom returns complete lines written after offset. A trailing partial
// line is left for the next call. When the file shrank below offset it was
// rotated or truncated and reading restarts at the beginning.
func ReadFrom(path string, offset int64, match string) (Result, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return Result{Offset: 0}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Result{Offset: offset}, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Result{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}

	result := Result{Offset: offset}
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		if err != nil {
			return result, fmt.Errorf("read log file: %w", err)
		}
		result.Offset += int64(len(line))
		line = strings.TrimRight(line, "\r\n")
		if matches(line, match) {
			result.Lines = append(result.Lines, line)
		}
	}
}

// Follow polls path from offset and calls emit for each new matching line
// until ctx ends. It returns nil when ctx is cancelled.
func Follow(ctx context.Context, path string, offset int64, match string, interval time.Duration, emit func(string)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := ReadFrom(path, offset, match)
		if err != nil {
			return err
		}
		offset = result.Offset
		for _, line := range result.Lines {
			emit(line)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func openLog(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}

func matches(line, match string) bool {
	return match == "" || strings.Contains(line, match)
}
