package logging

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
)

var (
	debugEnabled atomic.Bool
	logger       = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "barshell",
		Level:           log.InfoLevel,
	})
	if debugEnabled.Load() {
		l.SetLevel(log.DebugLevel)
	}
	return l
}

// SetOutput redirects all log output. Tests use it to capture messages.
func SetOutput(w io.Writer) {
	logger = newLogger(w)
}

// EnableDebug turns on verbose debug logging for the application lifecycle.
func EnableDebug() {
	debugEnabled.Store(true)
	logger.SetLevel(log.DebugLevel)
	logger.Debug("debug logging enabled")
}

// DebugEnabled reports whether debug logging is active.
func DebugEnabled() bool {
	return debugEnabled.Load()
}

// Debugf emits a formatted debug log message when debugging is enabled.
func Debugf(format string, args ...interface{}) {
	if !DebugEnabled() {
		return
	}
	logger.Debugf(format, args...)
}

// Infof emits a formatted informational message.
func Infof(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

// Warnf emits a formatted warning.
func Warnf(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

// Errorf emits a formatted error message. It never terminates the process.
func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

// Preview shortens user supplied text (notification bodies, trace lines) so
// log lines stay on one row. Newlines are flattened.
func Preview(value string, max int) string {
	flat := strings.Join(strings.Fields(value), " ")
	if max <= 0 || utf8.RuneCountInString(flat) <= max {
		return flat
	}
	runes := []rune(flat)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// DescribeBytes summarises a binary payload such as decoded pixel data.
func DescribeBytes(body []byte) string {
	const head = 8
	if len(body) == 0 {
		return "(0 bytes)"
	}
	n := len(body)
	if n > head {
		return fmt.Sprintf("(%d bytes): %s...", n, hex.EncodeToString(body[:head]))
	}
	return fmt.Sprintf("(%d bytes): %s", n, hex.EncodeToString(body))
}
