package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/harrison/playcheck/internal/config"
	"github.com/harrison/playcheck/internal/evaluator"
	"github.com/harrison/playcheck/internal/executor"
	"github.com/harrison/playcheck/internal/filelock"
	"github.com/harrison/playcheck/internal/fileutil"
	"github.com/harrison/playcheck/internal/history"
	"github.com/harrison/playcheck/internal/logger"
	"github.com/harrison/playcheck/internal/models"
	"github.com/harrison/playcheck/internal/report"
	"github.com/harrison/playcheck/internal/watch"
)

// commandWaitDelay bounds how long a killed interpreter may hold its pipes.
const commandWaitDelay = 500 * time.Millisecond

// NewVerifyCommand creates the verify command
func NewVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <path>...",
		Short: "Run the snippets of literate documents and check their annotations",
		Long: `Verify extracts the code blocks of each document, runs them in order
with the bindings of earlier blocks in scope, and compares the output
of every annotated block with its result annotation.

Paths may be files, directories (scanned recursively for the configured
extensions) or glob patterns. Documents are verified independently and
up to --parallel of them at once; blocks inside a document always run
in order.

Exit status is 0 when every block passed or was skipped, 1 when any
block failed or faulted, and 2 on configuration or invocation errors.`,
		Example: `  # Verify one playground document
  playcheck verify docs/basics.go

  # Verify a directory of markdown guides as colored text
  playcheck verify --format=text guides/

  # Verify Swift playground pages with the swift interpreter
  playcheck verify --command "swift -" Pages/*.swift

  # Re-verify whenever a document changes
  playcheck verify --watch --format=text docs/`,
		Args: cobra.MinimumNArgs(1),
		RunE: runVerify,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .playcheck/config.yaml)")
	cmd.Flags().Duration("timeout", 0, "Maximum evaluation time per snippet (e.g., 500ms, 2s)")
	cmd.Flags().Int("parallel", 1, "Number of documents verified at once")
	cmd.Flags().Bool("strict-whitespace", false, "Compare output without trimming trailing whitespace")
	cmd.Flags().String("format", "json", "Report format: json or text")
	cmd.Flags().String("adapter", "yaegi", "Snippet runtime: yaegi or command")
	cmd.Flags().String("command", "", "Interpreter command line for the command adapter (e.g., \"swift -\")")
	cmd.Flags().String("log-dir", "", "Directory for run log files (empty string disables)")
	cmd.Flags().String("log-level", "info", "Console log level: trace, debug, info, warn, error")
	cmd.Flags().Bool("no-history", false, "Do not record the run in the history database")
	cmd.Flags().Bool("watch", false, "Re-verify documents when they change")
	cmd.Flags().String("output", "", "Write the report to a file instead of stdout")

	return cmd
}

// loadConfig loads --config, or .playcheck/config.yaml from the project root.
// It returns the config and the directory relative paths are anchored at.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, "", config.NewConfigError("config", "cannot read config file", err)
		}
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, "", err
		}
		// <root>/.playcheck/config.yaml anchors at <root>
		dir := filepath.Dir(configPath)
		if filepath.Base(dir) == config.DirName {
			dir = filepath.Dir(dir)
		}
		return cfg, dir, nil
	}

	root, err := config.FindProjectRoot(".")
	if err != nil {
		return nil, "", config.NewConfigError("", "cannot locate project root", err)
	}
	cfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return nil, "", err
	}
	return cfg, root, nil
}

// collectFlags builds flag pointers for merge (only flags set on the command line)
func collectFlags(cmd *cobra.Command) config.Flags {
	var f config.Flags
	flags := cmd.Flags()

	if flags.Changed("timeout") {
		v, _ := flags.GetDuration("timeout")
		f.Timeout = &v
	}
	if flags.Changed("parallel") {
		v, _ := flags.GetInt("parallel")
		f.Parallel = &v
	}
	if flags.Changed("strict-whitespace") {
		v, _ := flags.GetBool("strict-whitespace")
		f.StrictWhitespace = &v
	}
	if flags.Changed("format") {
		v, _ := flags.GetString("format")
		f.Format = &v
	}
	if flags.Changed("adapter") {
		v, _ := flags.GetString("adapter")
		f.Adapter = &v
	}
	if flags.Changed("command") {
		v, _ := flags.GetString("command")
		f.Command = &v
	}
	if flags.Changed("log-dir") {
		v, _ := flags.GetString("log-dir")
		f.LogDir = &v
	}
	if flags.Changed("log-level") {
		v, _ := flags.GetString("log-level")
		f.LogLevel = &v
	}
	if flags.Changed("no-history") {
		v, _ := flags.GetBool("no-history")
		f.NoHistory = &v
	}
	return f
}

// verifySession holds everything one verify invocation needs across runs.
type verifySession struct {
	cfg        *config.Config
	root       string
	runner     *executor.Runner
	console    *logger.ConsoleLogger
	fileLog    *logger.FileLogger
	format     report.Format
	out        io.Writer
	outputPath string
	useColor   bool
}

// runVerify implements the verify command logic
func runVerify(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	cfg.MergeWithFlags(collectFlags(cmd))
	if err := cfg.Validate(); err != nil {
		return err
	}
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return configErr("format", "unsupported report format", err)
	}

	scanOpts := fileutil.DefaultScanOptions(cfg.Extensions)
	files, err := fileutil.ExpandPaths(args, scanOpts)
	if err != nil {
		return configErr("paths", "cannot resolve documents", err)
	}

	command, err := cfg.CommandArgs()
	if err != nil {
		return err
	}
	factory, err := evaluator.NewFactory(evaluator.Options{
		Kind:             evaluator.Kind(cfg.Adapter.Kind),
		Imports:          cfg.Adapter.Imports,
		EchoValues:       cfg.Adapter.EchoValues,
		Command:          command,
		SentinelTemplate: cfg.Adapter.SentinelTemplate,
		WaitDelay:        commandWaitDelay,
	})
	if err != nil {
		return configErr("adapter", "cannot create snippet runtime", err)
	}

	console := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	loggers := []executor.Logger{console}

	var fileLog *logger.FileLogger
	if cfg.LogDir != "" {
		fileLog, err = logger.NewFileLoggerWithDirAndLevel(config.ResolvePath(root, cfg.LogDir), cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		defer fileLog.Close()
		loggers = append(loggers, fileLog)
		console.LogDebug(fmt.Sprintf("Writing run log to %s", fileLog.RunFile()))
	}

	outputPath, _ := cmd.Flags().GetString("output")
	s := &verifySession{
		cfg:        cfg,
		root:       root,
		console:    console,
		fileLog:    fileLog,
		format:     format,
		out:        cmd.OutOrStdout(),
		outputPath: outputPath,
		useColor:   format == report.FormatText && outputPath == "" && colorEnabled(cmd.OutOrStdout()),
		runner: executor.NewRunner(cfg.Conventions, factory, executor.EngineOptions{
			Timeout:          cfg.Timeout,
			StrictWhitespace: cfg.StrictWhitespace,
		}, cfg.Parallel, &multiLogger{loggers: loggers}),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rep, err := s.verify(ctx, files)
	if err != nil {
		return err
	}

	if watchFlag, _ := cmd.Flags().GetBool("watch"); watchFlag {
		return s.watch(ctx, args, files, scanOpts)
	}

	return reportError(rep)
}

// verify loads and verifies files, writes the report and records history.
func (s *verifySession) verify(ctx context.Context, files []string) (models.Report, error) {
	docs, err := s.runner.Load(files)
	if err != nil {
		return models.Report{}, configErr("paths", "cannot read document", err)
	}

	started := time.Now()
	runs, err := s.runner.Run(ctx, docs)
	if err != nil {
		return models.Report{}, err
	}
	finished := time.Now()

	rep := report.Aggregate(runs)
	if err := s.writeReport(ctx, rep); err != nil {
		return rep, err
	}

	runID := ""
	if s.cfg.History.Enabled {
		dbPath := config.ResolvePath(s.root, s.cfg.History.DBPath)
		runID, err = history.Record(context.WithoutCancel(ctx), dbPath, rep, s.cfg.Adapter.Kind, started, finished)
		if err != nil {
			// history is advisory, the report is already out
			s.console.LogWarn(err.Error())
		} else {
			s.console.LogDebug(fmt.Sprintf("Recorded run %s in %s", runID, dbPath))
		}
	}
	if s.fileLog != nil {
		s.fileLog.LogReport(rep, runID)
	}
	return rep, nil
}

// writeReport renders rep to stdout or, with --output, atomically to a file.
func (s *verifySession) writeReport(ctx context.Context, rep models.Report) error {
	var buf bytes.Buffer
	if err := report.Write(&buf, rep, s.format, s.useColor); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	if s.outputPath == "" {
		_, err := s.out.Write(buf.Bytes())
		return err
	}
	if err := filelock.LockAndWrite(context.WithoutCancel(ctx), s.outputPath, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	s.console.LogInfo(fmt.Sprintf("Report written to %s", s.outputPath))
	return nil
}

// watch re-verifies changed documents until interrupted. Errors of a single
// re-run are logged and the loop goes on.
func (s *verifySession) watch(ctx context.Context, args, files []string, scanOpts fileutil.ScanOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	targets := append([]string{}, files...)
	for _, arg := range args {
		if info, err := os.Stat(arg); err == nil && info.IsDir() {
			targets = append(targets, arg)
		}
	}

	w, err := watch.New(targets, s.cfg.Extensions)
	if err != nil {
		return fmt.Errorf("failed to start watching: %w", err)
	}
	defer w.Close()

	s.console.LogInfo(fmt.Sprintf("Watching %d document(s) for changes (Ctrl+C to stop)", len(files)))
	return w.Run(ctx, func(ctx context.Context, changed []string) error {
		current, err := fileutil.ExpandPaths(args, scanOpts)
		if err != nil {
			s.console.LogError(err.Error())
			return nil
		}
		selected := selectChanged(current, changed)
		if len(selected) == 0 {
			return nil
		}
		s.console.LogInfo(fmt.Sprintf("Change detected, re-verifying %d document(s)", len(selected)))
		if _, err := s.verify(ctx, selected); err != nil {
			s.console.LogError(err.Error())
		}
		return nil
	})
}

// selectChanged returns the documents of files whose absolute path is in changed.
func selectChanged(files, changed []string) []string {
	set := make(map[string]bool, len(changed))
	for _, c := range changed {
		set[c] = true
	}
	var selected []string
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err == nil && set[abs] {
			selected = append(selected, f)
		}
	}
	return selected
}

// colorEnabled reports whether w is a color-capable terminal.
func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// multiLogger implements executor.Logger by delegating to multiple loggers
type multiLogger struct {
	loggers []executor.Logger
}

// LogDocumentStart forwards to all loggers
func (ml *multiLogger) LogDocumentStart(doc *models.Document) {
	for _, l := range ml.loggers {
		l.LogDocumentStart(doc)
	}
}

// LogResult forwards to all loggers
func (ml *multiLogger) LogResult(res models.VerificationResult) {
	for _, l := range ml.loggers {
		l.LogResult(res)
	}
}

// LogDocumentComplete forwards to all loggers
func (ml *multiLogger) LogDocumentComplete(run models.DocumentRun, duration time.Duration) {
	for _, l := range ml.loggers {
		l.LogDocumentComplete(run, duration)
	}
}

// LogWarn forwards to all loggers
func (ml *multiLogger) LogWarn(message string) {
	for _, l := range ml.loggers {
		l.LogWarn(message)
	}
}
