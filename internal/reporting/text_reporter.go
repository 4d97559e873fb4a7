// internal/reporting/text_reporter.go
package reporting

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/gookit/color"
	"go.uber.org/zap"

	"github.com/xkilldash9x/phortress/internal/analysis/static/php"
	"github.com/xkilldash9x/phortress/internal/engine"
)

var (
	highTheme = color.New(color.FgLightWhite, color.BgRed)
	lowTheme  = color.New(color.FgBlack, color.BgYellow)
)

// TextReporter writes a human readable listing of findings.
type TextReporter struct {
	writer io.WriteCloser
	logger *zap.Logger

	colorize bool

	mu       sync.Mutex
	buf      *bufio.Writer
	findings int
}

// NewTextReporter creates a reporter that writes plain text. With colorize
// set, the severity tag is highlighted when the terminal supports it.
func NewTextReporter(writer io.WriteCloser, colorize bool, logger *zap.Logger) *TextReporter {
	return &TextReporter{
		writer:   writer,
		logger:   logger.Named("text_reporter"),
		colorize: colorize,
		buf:      bufio.NewWriter(writer),
	}
}

// tag renders the class and confidence of a finding.
func (r *TextReporter) tag(f php.StaticFinding) string {
	t := fmt.Sprintf("[%s/%s]", f.SinkType, f.Confidence)
	if !r.colorize {
		return t
	}
	if f.Confidence == php.ConfidenceHigh {
		return highTheme.Sprint(t)
	}
	return lowTheme.Sprint(t)
}

// Write renders one scan result.
func (r *TextReporter) Write(result *engine.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.buf
	for _, f := range result.Findings {
		fmt.Fprintf(w, "%s %s %s\n", f.Location, r.tag(f), f.Description())
		if f.Location.Snippet != "" {
			fmt.Fprintf(w, "    %s\n", f.Location.Snippet)
		}
		for i := len(f.Via) - 1; i >= 0; i-- {
			fmt.Fprintf(w, "    via %s\n", f.Via[i])
		}
		if len(f.Sanitizers) > 0 {
			fmt.Fprintf(w, "    sanitized by %v, which does not cover %s\n", f.Sanitizers, f.SinkType)
		}
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "%s: error: %s\n", e.File, e.Error)
	}
	r.findings += len(result.Findings)

	fmt.Fprintf(w, "\nScan %s: %d findings in %d files (%d skipped, %d errors, %d unmodelled constructs)\n",
		result.ScanID, len(result.Findings), result.FilesScanned, result.FilesSkipped, len(result.Errors), result.Gaps)
	return nil
}

// Close flushes the output and closes the writer.
func (r *TextReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	flushErr := r.buf.Flush()
	closeErr := r.writer.Close()
	if flushErr != nil {
		r.logger.Error("Failed to write text report", zap.Error(flushErr))
		return fmt.Errorf("failed to write text output: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}
