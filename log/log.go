package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/kastheco/mountie/internal/sentry"
)

var (
	DebugLog   *charmlog.Logger
	InfoLog    *charmlog.Logger
	WarningLog *charmlog.Logger
	ErrorLog   *charmlog.Logger
)

var logFileName = defaultLogFile()

var globalLogFile *os.File

func init() {
	DebugLog = newLogger(io.Discard, "DEBUG")
	InfoLog = newLogger(io.Discard, "INFO")
	WarningLog = newLogger(io.Discard, "WARNING")
	ErrorLog = newLogger(io.Discard, "ERROR")
}

// defaultLogFile places the log under $XDG_STATE_HOME/mountie, falling back to the
// temp dir when no state directory can be resolved.
func defaultLogFile() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "mountie", "mountie.log")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "mountie", "mountie.log")
	}
	return filepath.Join(os.TempDir(), "mountie.log")
}

// FileName returns the path of the log file.
func FileName() string {
	return logFileName
}

// Initialize should be called once at the beginning of the program to set up logging.
// defer Close() after calling this function. When debug is false, DebugLog discards.
func Initialize(debug bool) {
	var out io.Writer = io.Discard
	if err := os.MkdirAll(filepath.Dir(logFileName), 0o755); err == nil {
		f, err := os.OpenFile(logFileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			globalLogFile = f
			out = f
		} else {
			fmt.Fprintf(os.Stderr, "could not open log file %s: %v\n", logFileName, err)
		}
	}

	DebugLog = newLogger(io.Discard, "DEBUG")
	if debug {
		DebugLog = newLogger(out, "DEBUG")
	}
	InfoLog = newLogger(sentry.NewWriter(out, sentry.LevelInfo), "INFO")
	WarningLog = newLogger(sentry.NewWriter(out, sentry.LevelWarning), "WARNING")
	ErrorLog = newLogger(sentry.NewWriter(out, sentry.LevelError), "ERROR")
}

func newLogger(w io.Writer, prefix string) *charmlog.Logger {
	return charmlog.NewWithOptions(w, charmlog.Options{
		Prefix:          prefix,
		ReportTimestamp: true,
		ReportCaller:    true,
		TimeFormat:      time.DateTime,
		Level:           charmlog.DebugLevel,
	})
}

// Close closes the log file.
func Close() {
	if globalLogFile == nil {
		return
	}
	_ = globalLogFile.Close()
	globalLogFile = nil
}

// Every is used to log at most once every timeout duration.
type Every struct {
	mu      sync.Mutex
	timeout time.Duration
	last    time.Time
}

func NewEvery(timeout time.Duration) *Every {
	return &Every{timeout: timeout}
}

// ShouldLog returns true if the timeout has passed since the last log.
func (e *Every) ShouldLog() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	if e.last.IsZero() || now.Sub(e.last) >= e.timeout {
		e.last = now
		return true
	}
	return false
}
