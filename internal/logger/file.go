package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileLogger writes level-filtered log lines to a rotating file inside a
// log directory. Rotation happens on the configured size ceiling, and
// additionally at local-midnight when RotateDaily is set; BackupCount
// bounds how many rotated files are kept, oldest deleted first.
type FileLogger struct {
	dir         string
	prefix      string
	maxBytes    int64
	backupCount int
	rotateDaily bool

	mu       sync.Mutex
	level    Level
	file     *os.File
	written  int64
	openedOn string
}

// NewFileLogger creates the log directory if needed and opens today's log
// file for appending.
func NewFileLogger(dir, prefix string, maxBytes int64, backupCount int, rotateDaily bool) (*FileLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logger: create log dir: %w", err)
	}
	fl := &FileLogger{
		dir:         dir,
		prefix:      prefix,
		maxBytes:    maxBytes,
		backupCount: backupCount,
		rotateDaily: rotateDaily,
		level:       LevelInfo,
	}
	if err := fl.openCurrent(); err != nil {
		return nil, err
	}
	return fl, nil
}

func (fl *FileLogger) currentPath() string {
	return filepath.Join(fl.dir, fmt.Sprintf("%s.log", fl.prefix))
}

func (fl *FileLogger) openCurrent() error {
	f, err := os.OpenFile(fl.currentPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("logger: open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("logger: stat log file: %w", err)
	}
	fl.file = f
	fl.written = info.Size()
	fl.openedOn = time.Now().Format("2006-01-02")
	return nil
}

func (fl *FileLogger) Log(level Level, msg string, fields Fields) {
	if level < fl.level {
		return
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.rotateDaily && time.Now().Format("2006-01-02") != fl.openedOn {
		fl.rotateLocked()
	}

	line := fmt.Sprintf("[%s] %-5s %s", time.Now().Format(time.RFC3339), level.String(), msg)
	if len(fields) > 0 {
		line += " " + formatFields(fields)
	}
	line += "\n"

	n, err := fl.file.WriteString(line)
	if err != nil {
		return
	}
	fl.written += int64(n)

	if fl.maxBytes > 0 && fl.written >= fl.maxBytes {
		fl.rotateLocked()
	}
}

func (fl *FileLogger) Trace(msg string, f Fields) { fl.Log(LevelTrace, msg, f) }
func (fl *FileLogger) Debug(msg string, f Fields) { fl.Log(LevelDebug, msg, f) }
func (fl *FileLogger) Info(msg string, f Fields)  { fl.Log(LevelInfo, msg, f) }
func (fl *FileLogger) Warn(msg string, f Fields)  { fl.Log(LevelWarn, msg, f) }
func (fl *FileLogger) Error(msg string, f Fields) { fl.Log(LevelError, msg, f) }

// rotateLocked renames the current file aside with a timestamp suffix,
// opens a fresh one, and prunes old backups beyond backupCount. Caller
// must hold fl.mu.
func (fl *FileLogger) rotateLocked() {
	if fl.file != nil {
		fl.file.Close()
	}
	backup := filepath.Join(fl.dir, fmt.Sprintf("%s-%s.log", fl.prefix, time.Now().Format("20060102-150405")))
	_ = os.Rename(fl.currentPath(), backup)
	if err := fl.openCurrent(); err != nil {
		fl.file = nil
	}
	fl.pruneBackupsLocked()
}

func (fl *FileLogger) pruneBackupsLocked() {
	if fl.backupCount <= 0 {
		return
	}
	entries, err := os.ReadDir(fl.dir)
	if err != nil {
		return
	}
	var backups []string
	for _, e := range entries {
		name := e.Name()
		if name == fmt.Sprintf("%s.log", fl.prefix) {
			continue
		}
		if filepath.Ext(name) == ".log" {
			backups = append(backups, name)
		}
	}
	sort.Strings(backups)
	for len(backups) > fl.backupCount {
		_ = os.Remove(filepath.Join(fl.dir, backups[0]))
		backups = backups[1:]
	}
}

// Close flushes and closes the underlying file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.file == nil {
		return nil
	}
	return fl.file.Close()
}
