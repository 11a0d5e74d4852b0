package executor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/playcheck/internal/evaluator"
	"github.com/harrison/playcheck/internal/models"
	"github.com/harrison/playcheck/internal/parser"
)

// Runner verifies a set of documents. Documents are independent: each gets
// its own Engine, Environment and adapter, and up to Parallel of them run at
// once. Blocks inside a document always run sequentially.
type Runner struct {
	conv     parser.Conventions
	factory  evaluator.Factory
	opts     EngineOptions
	parallel int
	logger   Logger
}

// NewRunner creates a Runner. parallel < 1 means one document at a time.
// The logger parameter is optional and can be nil.
func NewRunner(conv parser.Conventions, factory evaluator.Factory, opts EngineOptions, parallel int, logger Logger) *Runner {
	if parallel < 1 {
		parallel = 1
	}
	return &Runner{conv: conv, factory: factory, opts: opts, parallel: parallel, logger: logger}
}

// Load reads and extracts every path. It fails on the first unreadable path,
// before any snippet runs.
func (r *Runner) Load(paths []string) ([]*models.Document, error) {
	docs := make([]*models.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := parser.ParseFile(path, r.conv)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// VerifyDocuments verifies docs and returns one run per document, in input
// order. Runs interrupted by ctx are returned with Canceled set.
func (r *Runner) VerifyDocuments(ctx context.Context, docs []*models.Document) ([]models.DocumentRun, error) {
	runs := make([]models.DocumentRun, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)

	for i, doc := range docs {
		if gctx.Err() != nil {
			runs[i] = models.DocumentRun{Path: doc.Path, Anomalies: doc.Anomalies, Canceled: true}
			continue
		}
		i, doc := i, doc
		g.Go(func() error {
			run, err := NewEngine(r.factory, r.opts, r.logger).Verify(gctx, doc)
			if err != nil {
				return err
			}
			runs[i] = run
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return runs, nil
}

// Run verifies docs with SIGINT/SIGTERM handling: a signal stops new
// evaluations and the partial runs are returned.
func (r *Runner) Run(ctx context.Context, docs []*models.Document) ([]models.DocumentRun, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			if r.logger != nil {
				r.logger.LogWarn("Received interrupt signal, stopping after the current snippets...")
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	runs, err := r.VerifyDocuments(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("verification aborted: %w", err)
	}
	return runs, nil
}
