// Package activitylog writes Zen's human-readable activity trail: a flat,
// append-only file distinct from the structured process logs emitted via
// log/slog. It is meant to be tailed or grepped by a person, not parsed by
// a machine.
package activitylog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
)

const (
	maxSizeBytes = 100 * 1024
	maxLines     = 1000
	timeLayout   = "2006-01-02 15:04:05"
)

// Log is an append-only writer over a single activity log file.
type Log struct {
	path  string
	clock clockwork.Clock
}

// New returns a Log writing to path, creating parent directories if
// needed. It does not open the file; each Append call opens, writes, and
// closes independently so concurrent writers from separate processes
// interleave safely.
func New(path string, clock clockwork.Clock) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create activity log directory: %w", err)
	}
	return &Log{path: path, clock: clock}, nil
}

// Append writes one line "TIMESTAMP [source] action details", then rotates
// the file if it has grown past maxSizeBytes.
func (l *Log) Append(source, action, details string) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open activity log: %w", err)
	}

	line := fmt.Sprintf("%s [%s] %s %s\n", l.clock.Now().Format(timeLayout), source, action, details)
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to activity log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close activity log: %w", err)
	}

	if err := l.rotateIfNeeded(); err != nil {
		return fmt.Errorf("failed to rotate activity log: %w", err)
	}
	return nil
}

func (l *Log) rotateIfNeeded() error {
	info, err := os.Stat(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() <= maxSizeBytes {
		return nil
	}

	lines, err := readLines(l.path)
	if err != nil {
		return err
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}

	tmp := l.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
