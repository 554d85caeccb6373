// Package logger provides structured logging for the linker knowledge
// engine. It offers two sinks, a colorized/TTY-aware console writer and a
// daily-rotating file writer, each independently level-filtered. Both are
// safe for concurrent use.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Level is a log verbosity level, ordered from most to least verbose.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

func parseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Fields is a set of structured key/value pairs attached to a log line.
type Fields map[string]any

// Logger is the interface both sinks, and the multi-sink Logger returned by
// New, implement.
type Logger interface {
	Log(level Level, msg string, fields Fields)
	Trace(msg string, fields Fields)
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, fields Fields)
}

// multiLogger fans a single log call out to every configured sink.
type multiLogger struct {
	sinks []Logger
}

// New builds a Logger from the resolved configuration: a console sink when
// ToConsole is set, and a rotating file sink when ToFile is set.
func New(level string, format string, toConsole bool, console io.Writer, fileSink *FileLogger) Logger {
	m := &multiLogger{}
	if toConsole {
		m.sinks = append(m.sinks, NewConsoleLogger(console, level, format))
	}
	if fileSink != nil {
		fileSink.level = parseLevel(level)
		m.sinks = append(m.sinks, fileSink)
	}
	return m
}

func (m *multiLogger) Log(level Level, msg string, fields Fields) {
	for _, s := range m.sinks {
		s.Log(level, msg, fields)
	}
}
func (m *multiLogger) Trace(msg string, fields Fields) { m.Log(LevelTrace, msg, fields) }
func (m *multiLogger) Debug(msg string, fields Fields) { m.Log(LevelDebug, msg, fields) }
func (m *multiLogger) Info(msg string, fields Fields)  { m.Log(LevelInfo, msg, fields) }
func (m *multiLogger) Warn(msg string, fields Fields)  { m.Log(LevelWarn, msg, fields) }
func (m *multiLogger) Error(msg string, fields Fields) { m.Log(LevelError, msg, fields) }

// ConsoleLogger writes timestamped, level-filtered log lines to an
// io.Writer, colorizing the level tag when the writer is a TTY and
// format is "text". format "json" emits one JSON object per line instead.
type ConsoleLogger struct {
	writer io.Writer
	level  Level
	format string
	color  bool
	mu     sync.Mutex
}

// NewConsoleLogger creates a ConsoleLogger. Color is enabled automatically
// when writer is a terminal (os.Stdout/os.Stderr) that supports it.
func NewConsoleLogger(writer io.Writer, level string, format string) *ConsoleLogger {
	if writer == nil {
		writer = io.Discard
	}
	return &ConsoleLogger{
		writer: writer,
		level:  parseLevel(level),
		format: format,
		color:  isTerminal(writer),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || term.IsTerminal(int(f.Fd()))
}

var levelColor = map[Level]*color.Color{
	LevelTrace: color.New(color.FgHiBlack),
	LevelDebug: color.New(color.FgCyan),
	LevelInfo:  color.New(color.FgGreen),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed, color.Bold),
}

func (c *ConsoleLogger) Log(level Level, msg string, fields Fields) {
	if level < c.level {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.format == "json" {
		fmt.Fprintln(c.writer, encodeJSONLine(level, msg, fields))
		return
	}

	ts := time.Now().Format("15:04:05")
	tag := level.String()
	if c.color {
		tag = levelColor[level].Sprint(tag)
	}
	line := fmt.Sprintf("[%s] %-5s %s", ts, tag, msg)
	if len(fields) > 0 {
		line += " " + formatFields(fields)
	}
	fmt.Fprintln(c.writer, line)
}

func (c *ConsoleLogger) Trace(msg string, f Fields) { c.Log(LevelTrace, msg, f) }
func (c *ConsoleLogger) Debug(msg string, f Fields) { c.Log(LevelDebug, msg, f) }
func (c *ConsoleLogger) Info(msg string, f Fields)  { c.Log(LevelInfo, msg, f) }
func (c *ConsoleLogger) Warn(msg string, f Fields)  { c.Log(LevelWarn, msg, f) }
func (c *ConsoleLogger) Error(msg string, f Fields) { c.Log(LevelError, msg, f) }

func formatFields(f Fields) string {
	var b strings.Builder
	first := true
	for k, v := range f {
		if !first {
			b.WriteByte(' ')
		}
		first = false
		fmt.Fprintf(&b, "%s=%v", k, v)
	}
	return b.String()
}

func encodeJSONLine(level Level, msg string, fields Fields) string {
	var b strings.Builder
	b.WriteByte('{')
	fmt.Fprintf(&b, "%q:%q,", "time", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "%q:%q,", "level", level.String())
	fmt.Fprintf(&b, "%q:%q", "msg", msg)
	for k, v := range fields {
		fmt.Fprintf(&b, `,%q:%q`, k, fmt.Sprint(v))
	}
	b.WriteByte('}')
	return b.String()
}
