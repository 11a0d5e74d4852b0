// Package logger provides logging implementations for playcheck runs.
//
// The logger package reports verification progress at the document and
// block levels. Implementations are thread-safe because documents may be
// verified in parallel, and support various output destinations (console,
// file, fan-out).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/harrison/playcheck/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs verification progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// It supports log level filtering to control message verbosity.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	now         func() time.Time
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
		now:         time.Now,
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
// Returns true for os.Stdout and os.Stderr when they are TTYs.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}

	if w == os.Stdout || w == os.Stderr {
		// color.NoColor honors NO_COLOR and non-TTY output
		return !color.NoColor
	}

	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
// Format: "[HH:MM:SS] [TRACE] <message>"
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

// logWithLevel is a helper that logs a message at the specified level if filtering allows it.
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := cl.now().Format("15:04:05")
	var formatted string
	if cl.colorOutput {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, colorLevel(level), message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}

	cl.writer.Write([]byte(formatted))
}

// colorLevel wraps a level name in its ANSI color.
func colorLevel(level string) string {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		return color.New(color.FgCyan).Sprint(level)
	case "INFO":
		return color.New(color.FgBlue).Sprint(level)
	case "WARN":
		return color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		return color.New(color.FgRed).Sprint(level)
	default:
		return level
	}
}

// LogDocumentStart logs the start of a document.
// Format: "[HH:MM:SS] [INFO] Verifying docs/intro.go (4 code blocks)"
func (cl *ConsoleLogger) LogDocumentStart(doc *models.Document) {
	cl.LogInfo(fmt.Sprintf("Verifying %s (%d code blocks)", doc.Path, len(doc.CodeBlocks())))
}

// LogResult logs a single block result. Passes are debug-level, skips are
// info-level, failures and faults are errors carrying the location and the
// diff or fault message.
func (cl *ConsoleLogger) LogResult(res models.VerificationResult) {
	loc := fmt.Sprintf("%s %s (lines %s)", res.Document, res.BlockID, res.Lines)
	switch res.Status {
	case models.StatusPassed:
		cl.LogDebug(loc + " passed")
	case models.StatusSkipped:
		cl.LogInfo(loc + " skipped (disabled example)")
	case models.StatusFailed:
		cl.LogError(fmt.Sprintf("%s failed: output mismatch\n%s", loc, strings.TrimRight(res.Diff, "\n")))
	case models.StatusFault:
		msg := "evaluation fault"
		if res.Fault != nil {
			msg = res.Fault.Error()
		}
		cl.LogError(fmt.Sprintf("%s fault: %s", loc, msg))
	}
}

// LogDocumentComplete logs per-document counts and elapsed time.
// Format: "[HH:MM:SS] [INFO] docs/intro.go: 3 passed, 1 failed, 0 skipped, 0 faults in 1.2s"
func (cl *ConsoleLogger) LogDocumentComplete(run models.DocumentRun, duration time.Duration) {
	var counts models.Counts
	for _, res := range run.Results {
		counts.Add(res.Status)
	}
	msg := fmt.Sprintf("%s: %d passed, %d failed, %d skipped, %d faults in %s",
		run.Path, counts.Passed, counts.Failed, counts.Skipped, counts.Faults, formatDuration(duration))
	if run.Canceled {
		cl.LogWarn(msg + " (canceled)")
		return
	}
	cl.LogInfo(msg)
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "350ms", "1.2s", "1m30s"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		minutes := d / time.Minute
		seconds := (d % time.Minute) / time.Second
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d >= time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}
