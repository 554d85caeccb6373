package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "warn", "text")
	cl.Info("should not appear", nil)
	cl.Error("should appear", nil)
	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

func TestConsoleLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info", "json")
	cl.Info("hello", Fields{"k": "v"})
	out := buf.String()
	assert.Contains(t, out, `"msg":"hello"`)
	assert.Contains(t, out, `"k":"v"`)
}

func TestFileLoggerWritesAndRotatesBySize(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "run", 64, 2, false)
	require.NoError(t, err)
	defer fl.Close()

	for i := 0; i < 20; i++ {
		fl.Info(strings.Repeat("x", 20), nil)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 2, "expected at least one rotated backup plus the current file")

	current := filepath.Join(dir, "run.log")
	_, err = os.Stat(current)
	require.NoError(t, err)
}

func TestFileLoggerPrunesBackupsBeyondCount(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "run", 32, 1, false)
	require.NoError(t, err)
	defer fl.Close()

	for i := 0; i < 40; i++ {
		fl.Info("line of text to force rotation repeatedly", nil)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	// current file + at most 1 backup
	assert.LessOrEqual(t, len(entries), 2)
}
