package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/harrison/playcheck/internal/models"
)

// FileLogger writes structured JSON run logs into a log directory.
// Each run gets a timestamped run-YYYYMMDD-HHMMSS.log file and the
// latest.log symlink is pointed at it. It is thread-safe and implements the
// executor.Logger interface.
type FileLogger struct {
	logDir  string
	runFile string
	file    *os.File
	zl      *zap.Logger
	mu      sync.Mutex
	closed  bool
}

// NewFileLoggerWithDirAndLevel creates a FileLogger with a custom log directory and level.
// Trace maps onto zap's debug level.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(file),
		zapLevel(normalizeLogLevel(logLevel)),
	)

	fl := &FileLogger{
		logDir:  logDir,
		runFile: runFile,
		file:    file,
		zl:      zap.New(core),
	}
	fl.zl.Info("run started", zap.Int("pid", os.Getpid()))
	return fl, nil
}

// zapLevel maps a normalized level name onto zap.
func zapLevel(level string) zapcore.Level {
	switch level {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// RunFile returns the path of the current run log.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

// logger returns the zap logger, or a no-op logger once closed.
func (fl *FileLogger) logger() *zap.Logger {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.closed {
		return zap.NewNop()
	}
	return fl.zl
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logger().Debug(message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logger().Info(message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logger().Warn(message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logger().Error(message)
}

// LogDocumentStart records the start of a document with its block counts
// and extraction anomalies.
func (fl *FileLogger) LogDocumentStart(doc *models.Document) {
	fl.logger().Info("document started",
		zap.String("document", doc.Path),
		zap.Int("blocks", len(doc.Blocks)),
		zap.Int("code_blocks", len(doc.CodeBlocks())),
		zap.Int("anomalies", len(doc.Anomalies)),
	)
}

// LogResult records one block result. Failures and faults are logged at
// error level with the diff or fault attached.
func (fl *FileLogger) LogResult(res models.VerificationResult) {
	fields := []zap.Field{
		zap.String("document", res.Document),
		zap.String("block", res.BlockID),
		zap.Stringer("lines", res.Lines),
		zap.String("status", string(res.Status)),
	}
	zl := fl.logger()
	switch res.Status {
	case models.StatusFailed:
		zl.Error("block failed", append(fields,
			zap.Strings("expected", res.ExpectedOutput),
			zap.Strings("actual", res.ActualOutput),
			zap.String("diff", res.Diff),
		)...)
	case models.StatusFault:
		if res.Fault != nil {
			fields = append(fields, zap.String("fault_kind", string(res.Fault.Kind)), zap.String("fault", res.Fault.Message))
		}
		zl.Error("block fault", fields...)
	default:
		zl.Debug("block "+string(res.Status), fields...)
	}
}

// LogDocumentComplete records per-document counts and elapsed time.
func (fl *FileLogger) LogDocumentComplete(run models.DocumentRun, duration time.Duration) {
	var counts models.Counts
	for _, res := range run.Results {
		counts.Add(res.Status)
	}
	fl.logger().Info("document complete",
		zap.String("document", run.Path),
		zap.Int("passed", counts.Passed),
		zap.Int("failed", counts.Failed),
		zap.Int("skipped", counts.Skipped),
		zap.Int("faults", counts.Faults),
		zap.Bool("canceled", run.Canceled),
		zap.Duration("duration", duration),
	)
}

// LogReport records the aggregated totals of the run.
func (fl *FileLogger) LogReport(rep models.Report, runID string) {
	fl.logger().Info("run complete",
		zap.String("run_id", runID),
		zap.Int("documents", len(rep.Documents)),
		zap.Int("passed", rep.Totals.Passed),
		zap.Int("failed", rep.Totals.Failed),
		zap.Int("skipped", rep.Totals.Skipped),
		zap.Int("faults", rep.Totals.Faults),
		zap.Bool("ok", rep.OK()),
	)
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.closed {
		return nil
	}
	fl.closed = true
	_ = fl.zl.Sync()
	return fl.file.Close()
}
