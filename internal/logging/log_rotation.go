package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultMaxLogSize = 50 << 20
	DefaultMaxLogAge  = 7 * 24 * time.Hour
)

// LogRotation archives the log file at startup once it is too large or too old.
type LogRotation struct {
	maxSize int64
	maxAge  time.Duration
	now     func() time.Time
}

func NewLogRotation(maxSize int64, maxAge time.Duration) *LogRotation {
	return &LogRotation{
		maxSize: maxSize,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

func (lr *LogRotation) ShouldRotate(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return false
	}

	if info.Size() >= lr.maxSize {
		return true
	}
	return lr.now().Sub(info.ModTime()) >= lr.maxAge
}

// Rotate renames path to path-<timestamp><ext>.
func (lr *LogRotation) Rotate(path string) (string, error) {
	timestamp := lr.now().Format("20060102-150405")
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]

	newPath := fmt.Sprintf("%s-%s%s", base, timestamp, ext)
	if err := os.Rename(path, newPath); err != nil {
		return "", err
	}
	return newPath, nil
}

// RotateIfNeeded returns the archived path, or "" when nothing was rotated.
func (lr *LogRotation) RotateIfNeeded(path string) (string, error) {
	if !lr.ShouldRotate(path) {
		return "", nil
	}
	archived, err := lr.Rotate(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	return archived, err
}
