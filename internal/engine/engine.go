// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/phortress/internal/analysis/static/php"
	"github.com/xkilldash9x/phortress/internal/config"
)

// -- Interfaces for Dependency Inversion --

// Analyzer defines the interface for any component that can analyse a
// single PHP file. This allows us to swap in mocks in tests.
type Analyzer interface {
	AnalyzeFile(ctx context.Context, filename string, content []byte) (*php.FileReport, error)
}

// FileError records a file that could not be analysed.
type FileError struct {
	File  string
	Error string
}

// Result aggregates a complete scan.
type Result struct {
	ScanID       string
	StartedAt    time.Time
	FinishedAt   time.Time
	FilesScanned int
	FilesSkipped int
	// Gaps counts constructs the analysis could not model, over all files.
	Gaps     int
	Findings []php.StaticFinding
	Errors   []FileError
}

// ScanEngine analyses files with bounded concurrency. Each file is an
// independent analysis unit; only the analyzer and the logger are shared.
type ScanEngine struct {
	cfg      config.Interface
	logger   *zap.Logger
	analyzer Analyzer
}

// New creates a new ScanEngine.
func New(cfg config.Interface, logger *zap.Logger, analyzer Analyzer) (*ScanEngine, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if analyzer == nil {
		return nil, errors.New("analyzer cannot be nil")
	}
	return &ScanEngine{
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "scan_engine")),
		analyzer: analyzer,
	}, nil
}

// fileOutcome is the per-file slot filled by one worker.
type fileOutcome struct {
	report  *php.FileReport
	skipped bool
	err     error
}

// Scan discovers the PHP files under targets and analyses them. Per-file
// failures are recorded in the result; only cancellation aborts the scan.
func (e *ScanEngine) Scan(ctx context.Context, scanID string, targets []string) (*Result, error) {
	if scanID == "" {
		scanID = uuid.New().String()
	}
	res := &Result{ScanID: scanID, StartedAt: time.Now().UTC(), Findings: []php.StaticFinding{}}

	files, err := Discover(targets, e.cfg.Analysis().Extensions)
	if err != nil {
		return nil, err
	}

	concurrency := e.cfg.Analysis().Concurrency
	if concurrency <= 0 {
		concurrency = 4 // A sensible default.
	}
	logger := e.logger.With(zap.String("scan_id", scanID))
	logger.Info("Starting scan", zap.Int("files", len(files)), zap.Int("concurrency", concurrency))

	outcomes := make([]fileOutcome, len(files))
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, file := range files {
		if groupCtx.Err() != nil {
			break
		}
		i, file := i, file
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			outcomes[i] = e.analyze(groupCtx, file, logger)
			if errors.Is(outcomes[i].err, context.Canceled) || errors.Is(outcomes[i].err, context.DeadlineExceeded) {
				return outcomes[i].err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Warn("Scan was cancelled", zap.Error(err))
		return nil, fmt.Errorf("scan %s cancelled: %w", scanID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan %s cancelled: %w", scanID, err)
	}

	for i, o := range outcomes {
		switch {
		case o.err != nil:
			res.Errors = append(res.Errors, FileError{File: files[i], Error: o.err.Error()})
		case o.skipped:
			res.FilesSkipped++
		default:
			res.FilesScanned++
			res.Gaps += len(o.report.Gaps)
			res.Findings = append(res.Findings, o.report.Findings...)
		}
	}
	sortFindings(res.Findings)
	res.FinishedAt = time.Now().UTC()

	logger.Info("Scan finished",
		zap.Int("files_scanned", res.FilesScanned),
		zap.Int("files_skipped", res.FilesSkipped),
		zap.Int("errors", len(res.Errors)),
		zap.Int("findings", len(res.Findings)),
		zap.Duration("duration", res.FinishedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

// analyze handles the execution of a single file.
func (e *ScanEngine) analyze(ctx context.Context, file string, logger *zap.Logger) fileOutcome {
	logger = logger.With(zap.String("file", file))

	info, err := os.Stat(file)
	if err != nil {
		logger.Error("Cannot stat file", zap.Error(err))
		return fileOutcome{err: err}
	}
	if limit := e.cfg.Analysis().MaxFileSize; limit > 0 && info.Size() > limit {
		logger.Warn("Skipping file above size limit", zap.Int64("size_bytes", info.Size()), zap.Int64("limit_bytes", limit))
		return fileOutcome{skipped: true}
	}

	content, err := os.ReadFile(file)
	if err != nil {
		logger.Error("Cannot read file", zap.Error(err))
		return fileOutcome{err: err}
	}

	report, err := e.analyzer.AnalyzeFile(ctx, file, content)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("File analysis was cancelled", zap.Error(err))
		} else {
			logger.Error("File analysis failed", zap.Error(err))
		}
		return fileOutcome{err: err}
	}
	logger.Debug("File analysed", zap.Int("findings", len(report.Findings)))
	return fileOutcome{report: report}
}

// sortFindings orders findings by file, line, sink and argument.
func sortFindings(findings []php.StaticFinding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Location.File != b.Location.File {
			return a.Location.File < b.Location.File
		}
		if a.Location.Line != b.Location.Line {
			return a.Location.Line < b.Location.Line
		}
		if a.Sink != b.Sink {
			return a.Sink < b.Sink
		}
		return a.Argument < b.Argument
	})
}
