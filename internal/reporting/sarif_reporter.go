// internal/reporting/sarif_reporter.go
package reporting

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/phortress/internal/analysis/static/php"
	"github.com/xkilldash9x/phortress/internal/analysis/static/php/sources"
	"github.com/xkilldash9x/phortress/internal/engine"
	"github.com/xkilldash9x/phortress/internal/reporting/sarif"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "Phortress"
	ToolInfoURI  = "https://github.com/xkilldash9x/phortress"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
)

// ruleIDSanitizer replaces characters not typically safe or allowed in SARIF Rule IDs.
// Alphanumerics, underscore and dot are kept; any other run becomes a single hyphen.
var ruleIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.]+`)

// SARIFReporter implements the Reporter interface for the SARIF 2.1.0 format.
// It is thread safe.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	log    *sarif.Log
	// mu protects the log structure and the rule index.
	mu sync.Mutex
	// ruleIndex maps a vulnerability class to its position in the driver's rules.
	ruleIndex map[sources.VulnerabilityClass]int
}

// NewSARIFReporter creates a new reporter that writes SARIF output.
func NewSARIFReporter(writer io.WriteCloser, toolVersion string, logger *zap.Logger) *SARIFReporter {
	log := &sarif.Log{
		Version: SARIFVersion,
		Schema:  SARIFSchema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           ToolName,
						Version:        pString(toolVersion),
						InformationURI: pString(ToolInfoURI),
						// Initialize empty slices (not nil) for proper JSON marshalling
						Rules: []*sarif.ReportingDescriptor{},
					},
				},
				Results: []*sarif.Result{},
			},
		},
	}

	return &SARIFReporter{
		writer:    writer,
		logger:    logger.Named("sarif_reporter"),
		log:       log,
		ruleIndex: make(map[sources.VulnerabilityClass]int),
	}
}

// Write converts the findings of a scan into SARIF results and records the
// invocation.
func (r *SARIFReporter) Write(result *engine.Result) error {
	startTime := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	for _, finding := range result.Findings {
		index := r.ensureRule(finding.SinkType)
		run.Results = append(run.Results, &sarif.Result{
			RuleID:              run.Tool.Driver.Rules[index].ID,
			RuleIndex:           index,
			Message:             &sarif.Message{Text: pString(finding.Description())},
			Level:               mapConfidenceToSARIFLevel(finding.Confidence),
			Locations:           []*sarif.Location{location(finding.Location, "")},
			RelatedLocations:    relatedLocations(finding),
			PartialFingerprints: map[string]string{"phortress/v1": fingerprint(finding)},
			Properties: &sarif.PropertyBag{
				"sink":       finding.Sink,
				"argument":   finding.Argument,
				"sources":    finding.Sources,
				"sanitizers": finding.Sanitizers,
				"taint":      finding.Taint.String(),
				"confidence": finding.Confidence,
				"function":   finding.Function,
			},
		})
	}

	invocation := &sarif.Invocation{
		ExecutionSuccessful: len(result.Errors) == 0,
		StartTimeUTC:        pString(result.StartedAt.Format(time.RFC3339)),
		EndTimeUTC:          pString(result.FinishedAt.Format(time.RFC3339)),
	}
	for _, fe := range result.Errors {
		invocation.ToolExecutionNotifications = append(invocation.ToolExecutionNotifications, &sarif.Notification{
			Message:   &sarif.Message{Text: pString(fe.Error)},
			Level:     sarif.LevelError,
			Locations: []*sarif.Location{location(php.LocationInfo{File: fe.File}, "")},
		})
	}
	run.Invocations = append(run.Invocations, invocation)
	run.Properties = &sarif.PropertyBag{
		"scanId":       result.ScanID,
		"filesScanned": result.FilesScanned,
		"filesSkipped": result.FilesSkipped,
		"gaps":         result.Gaps,
	}

	if len(result.Findings) > 0 {
		r.logger.Debug("Wrote findings to SARIF buffer",
			zap.Int("findings_count", len(result.Findings)),
			zap.Duration("duration_ms", time.Since(startTime)),
		)
	}
	return nil
}

// Close finalizes the SARIF log and writes it to the output writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	r.logger.Info("Finalizing SARIF report",
		zap.Int("total_results", len(run.Results)),
		zap.Int("total_rules", len(run.Tool.Driver.Rules)),
	)

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ") // Pretty print

	encodeErr := encoder.Encode(r.log)
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode SARIF log to JSON", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}
	if closeErr != nil {
		r.logger.Error("Failed to close output writer", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// sanitizeRuleName creates a standardized base name for the rule ID.
func sanitizeRuleName(name string) string {
	sanitizedName := strings.ToUpper(name)
	sanitizedName = ruleIDSanitizer.ReplaceAllString(sanitizedName, "-")
	sanitizedName = strings.Trim(sanitizedName, "-")
	if sanitizedName == "" {
		return "UNKNOWN"
	}
	return sanitizedName
}

// ensureRule registers one rule per vulnerability class and returns its index.
// NOTE: Must be called while holding the mutex.
func (r *SARIFReporter) ensureRule(class sources.VulnerabilityClass) int {
	if index, exists := r.ruleIndex[class]; exists {
		return index
	}

	info := ruleFor(class)
	ruleID := "PHORTRESS-" + sanitizeRuleName(string(class))
	r.logger.Debug("Registering new SARIF rule definition", zap.String("rule_id", ruleID))

	markdownHelp := fmt.Sprintf("**Vulnerability:** %s\n\n**Description:**\n%s\n\n**Recommendation:**\n%s",
		info.Name, info.Description, info.Recommendation)

	properties := sarif.PropertyBag{
		"tags":      []string{"security", "taint", string(class)},
		"precision": "medium",
	}
	if info.CWE != "" {
		properties["CWE"] = []string{info.CWE}
	}

	driver := r.log.Runs[0].Tool.Driver
	driver.Rules = append(driver.Rules, &sarif.ReportingDescriptor{
		ID:               ruleID,
		Name:             pString(info.Name),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(info.Name)},
		FullDescription:  &sarif.MultiformatMessageString{Text: pString(info.Description)},
		Help: &sarif.MultiformatMessageString{
			Text:     pString(info.Recommendation),
			Markdown: pString(markdownHelp),
		},
		Properties: &properties,
	})
	index := len(driver.Rules) - 1
	r.ruleIndex[class] = index
	return index
}

// location converts a finding location into a SARIF location.
func location(l php.LocationInfo, message string) *sarif.Location {
	loc := &sarif.Location{
		PhysicalLocation: &sarif.PhysicalLocation{
			ArtifactLocation: &sarif.ArtifactLocation{URI: pString(filepath.ToSlash(l.File))},
		},
	}
	if l.Line > 0 {
		region := &sarif.Region{StartLine: l.Line}
		if l.Snippet != "" {
			region.Snippet = &sarif.Content{Text: pString(l.Snippet)}
		}
		loc.PhysicalLocation.Region = region
	}
	if message != "" {
		loc.Message = &sarif.Message{Text: pString(message)}
	}
	return loc
}

// relatedLocations lists the call sites through which the value reached
// the sink, outermost first.
func relatedLocations(finding php.StaticFinding) []*sarif.Location {
	if len(finding.Via) == 0 {
		return nil
	}
	locs := make([]*sarif.Location, 0, len(finding.Via))
	for i := len(finding.Via) - 1; i >= 0; i-- {
		id := len(locs)
		loc := location(finding.Via[i], fmt.Sprintf("tainted value passed to %s", finding.Function))
		loc.ID = &id
		locs = append(locs, loc)
	}
	return locs
}

// fingerprint identifies a finding independently of its line, so results
// survive unrelated edits above the sink.
func fingerprint(finding php.StaticFinding) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%s\x00%s\x00%s",
		filepath.ToSlash(finding.Location.File), finding.Sink, finding.Argument,
		finding.Function, strings.Join(finding.Sources, ","), finding.Location.Snippet)
	return hex.EncodeToString(h.Sum(nil))
}

// mapConfidenceToSARIFLevel converts a finding's confidence to the SARIF level.
func mapConfidenceToSARIFLevel(confidence string) sarif.Level {
	if confidence == php.ConfidenceHigh {
		return sarif.LevelError
	}
	return sarif.LevelWarning
}

// pString returns a pointer to the given string value. Helper for optional SARIF fields.
func pString(s string) *string {
	return &s
}
