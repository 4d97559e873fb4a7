// Filename: php/fingerprinter.go
// This module drives the PHP taint analysis for one file: parse, resolve
// scopes, then trace every argument that reaches a sink.
package php

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/phortress/internal/analysis/static/php/environment"
	"github.com/xkilldash9x/phortress/internal/analysis/static/php/sources"
	"github.com/xkilldash9x/phortress/internal/analysis/static/php/taint"
	"github.com/xkilldash9x/phortress/internal/php/ast"
	"github.com/xkilldash9x/phortress/internal/php/parser"
)

// Confidence levels attached to findings.
const (
	ConfidenceHigh = "High"
	ConfidenceLow  = "Low"
)

// maxSnippet bounds the source excerpt stored with a finding.
const maxSnippet = 200

// StaticFinding represents a potential vulnerability found via static analysis.
type StaticFinding struct {
	Sink     string
	SinkType sources.VulnerabilityClass
	// Argument is the zero-based position of the offending argument.
	Argument int
	// Sources names the dependencies that reach the sink unprotected.
	Sources []string
	// Sanitizers lists sanitizers that were applied but do not protect
	// against SinkType.
	Sanitizers []string
	Taint      taint.Annotation
	Location   LocationInfo
	// Function is the function enclosing the sink, empty at script level.
	Function string
	// Via lists the call sites, innermost first, through which the
	// tainted value entered Function.
	Via        []LocationInfo
	Confidence string
}

// Description renders a one-line summary of the finding.
func (f StaticFinding) Description() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s reaches %s (%s)", strings.Join(f.Sources, ", "), f.Sink, f.SinkType)
	if len(f.Via) > 0 {
		fmt.Fprintf(&b, " via call at line %d", f.Via[len(f.Via)-1].Line)
	}
	return b.String()
}

// LocationInfo holds the detailed location and snippet of a finding.
type LocationInfo struct {
	File    string
	Line    int
	Snippet string
}

func (l LocationInfo) String() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Options tunes a Fingerprinter.
type Options struct {
	// MaxCallDepth bounds nested function summaries. Zero uses the engine
	// default.
	MaxCallDepth int
	// ReportUnknown emits low-confidence findings for unresolvable values.
	ReportUnknown bool
}

// FileReport is everything learned about one file.
type FileReport struct {
	File         string
	Findings     []StaticFinding
	Gaps         []taint.Gap
	SyntaxErrors bool
	Skipped      map[string]int
}

// Fingerprinter analyzes PHP source code to find potential taint flows.
// It is safe for concurrent use; every call analyses in isolation.
type Fingerprinter struct {
	logger   *zap.Logger
	parser   *parser.Parser
	registry *sources.Registry
	opts     Options
}

// NewFingerprinter creates a new static analyzer.
func NewFingerprinter(logger *zap.Logger, registry *sources.Registry, opts Options) *Fingerprinter {
	if registry == nil {
		registry = sources.Default()
	}
	return &Fingerprinter{
		logger:   logger.Named("php_fingerprinter"),
		parser:   parser.New(logger),
		registry: registry,
		opts:     opts,
	}
}

// Analyze returns the findings for one PHP file.
func (f *Fingerprinter) Analyze(ctx context.Context, filename string, content []byte) ([]StaticFinding, error) {
	report, err := f.AnalyzeFile(ctx, filename, content)
	if err != nil {
		return nil, err
	}
	return report.Findings, nil
}

// AnalyzeFile parses, resolves and traces one PHP file.
func (f *Fingerprinter) AnalyzeFile(ctx context.Context, filename string, content []byte) (*FileReport, error) {
	report := &FileReport{File: filename, Findings: []StaticFinding{}}
	if len(bytes.TrimSpace(content)) == 0 {
		return report, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.logger.Debug("Starting analysis of PHP file", zap.String("filename", filename), zap.Int("size_bytes", len(content)))

	// 1. Parsing Phase
	parsed, err := f.parser.Parse(ctx, filename, content)
	if err != nil {
		return nil, err
	}
	report.SyntaxErrors = parsed.SyntaxErrors
	report.Skipped = parsed.Skipped

	// 2. Scope resolution
	annotations, err := environment.Resolve(f.logger, parsed.File)
	if err != nil {
		return nil, fmt.Errorf("resolving scopes in %s: %w", filename, err)
	}

	// 3. Taint analysis
	var engineOpts []taint.Option
	if f.opts.MaxCallDepth > 0 {
		engineOpts = append(engineOpts, taint.WithMaxCallDepth(f.opts.MaxCallDepth))
	}
	engine := taint.NewEngine(f.logger, annotations, f.registry, engineOpts...)

	a := newAnalysis(f, filename, content, engine)
	ast.Walk(a, parsed.File)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.checkSites()
	a.propagate()

	report.Findings = a.results()
	report.Gaps = engine.Gaps()

	if len(report.Gaps) > 0 {
		f.logger.Debug("Unsupported constructs recorded as analysis gaps",
			zap.String("filename", filename),
			zap.Int("gaps", len(report.Gaps)),
		)
	}
	if len(report.Findings) > 0 {
		f.logger.Info("Analysis completed with findings",
			zap.String("filename", filename),
			zap.Int("total_findings_count", len(report.Findings)),
			zap.Int("sink_sites", len(a.sites)),
		)
	}
	return report, nil
}

// snippet returns the trimmed source text of a 1-based line.
func snippet(lines [][]byte, line int) string {
	if line < 1 || line > len(lines) {
		return ""
	}
	s := strings.TrimSpace(string(lines[line-1]))
	if len(s) > maxSnippet {
		s = s[:maxSnippet] + "..."
	}
	return s
}
