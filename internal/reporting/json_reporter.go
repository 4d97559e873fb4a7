// internal/reporting/json_reporter.go
package reporting

import (
	"fmt"
	"io"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/phortress/internal/analysis/static/php"
	"github.com/xkilldash9x/phortress/internal/engine"
)

// JSONReport is the document emitted by the json format.
type JSONReport struct {
	Tool         string        `json:"tool"`
	Version      string        `json:"version"`
	ScanID       string        `json:"scan_id"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	FilesScanned int           `json:"files_scanned"`
	FilesSkipped int           `json:"files_skipped"`
	Gaps         int           `json:"gaps"`
	Findings     []JSONFinding `json:"findings"`
	Errors       []JSONError   `json:"errors,omitempty"`
}

// JSONFinding is one finding in a JSONReport.
type JSONFinding struct {
	File        string         `json:"file"`
	Line        int            `json:"line"`
	Snippet     string         `json:"snippet,omitempty"`
	Sink        string         `json:"sink"`
	Type        string         `json:"type"`
	Argument    int            `json:"argument"`
	Sources     []string       `json:"sources"`
	Sanitizers  []string       `json:"sanitizers,omitempty"`
	Taint       string         `json:"taint"`
	Confidence  string         `json:"confidence"`
	Function    string         `json:"function,omitempty"`
	Via         []JSONLocation `json:"via,omitempty"`
	Description string         `json:"description"`
}

type JSONLocation struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

type JSONError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// JSONReporter buffers scan results and writes them as one JSON document on Close.
type JSONReporter struct {
	writer  io.WriteCloser
	logger  *zap.Logger
	version string

	mu     sync.Mutex
	report *JSONReport
}

// NewJSONReporter creates a reporter that writes JSON output.
func NewJSONReporter(writer io.WriteCloser, toolVersion string, logger *zap.Logger) *JSONReporter {
	return &JSONReporter{
		writer:  writer,
		logger:  logger.Named("json_reporter"),
		version: toolVersion,
	}
}

// Write records result. A later Write replaces the scan metadata and
// appends its findings.
func (r *JSONReporter) Write(result *engine.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.report == nil {
		r.report = &JSONReport{Tool: ToolName, Version: r.version, Findings: []JSONFinding{}}
	}
	rep := r.report
	rep.ScanID = result.ScanID
	rep.StartedAt = result.StartedAt
	rep.FinishedAt = result.FinishedAt
	rep.FilesScanned += result.FilesScanned
	rep.FilesSkipped += result.FilesSkipped
	rep.Gaps += result.Gaps
	for _, f := range result.Findings {
		rep.Findings = append(rep.Findings, toJSONFinding(f))
	}
	for _, e := range result.Errors {
		rep.Errors = append(rep.Errors, JSONError{File: e.File, Error: e.Error})
	}
	return nil
}

// Close writes the buffered report and closes the writer.
func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := r.report
	if report == nil {
		report = &JSONReport{Tool: ToolName, Version: r.version, Findings: []JSONFinding{}}
	}

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	encodeErr := encoder.Encode(report)
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode JSON report", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode JSON output: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	r.logger.Info("Wrote JSON report", zap.Int("findings", len(report.Findings)))
	return nil
}

func toJSONFinding(f php.StaticFinding) JSONFinding {
	jf := JSONFinding{
		File:        f.Location.File,
		Line:        f.Location.Line,
		Snippet:     f.Location.Snippet,
		Sink:        f.Sink,
		Type:        string(f.SinkType),
		Argument:    f.Argument,
		Sources:     f.Sources,
		Sanitizers:  f.Sanitizers,
		Taint:       f.Taint.String(),
		Confidence:  f.Confidence,
		Function:    f.Function,
		Description: f.Description(),
	}
	for _, v := range f.Via {
		jf.Via = append(jf.Via, JSONLocation{File: v.File, Line: v.Line})
	}
	return jf
}
