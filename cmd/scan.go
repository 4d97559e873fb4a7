// File: cmd/scan.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/phortress/internal/analysis/static/php"
	"github.com/xkilldash9x/phortress/internal/analysis/static/php/sources"
	"github.com/xkilldash9x/phortress/internal/config"
	"github.com/xkilldash9x/phortress/internal/engine"
	"github.com/xkilldash9x/phortress/internal/observability"
	"github.com/xkilldash9x/phortress/internal/reporting"
)

// ErrFindingsReported is returned by scan --fail-on-findings when the
// report is not empty.
var ErrFindingsReported = errors.New("findings reported")

// newScanCmd creates and configures the `scan` command.
func newScanCmd(a *app) *cobra.Command {
	var scanCfg config.ScanConfig

	scanCmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Analyses PHP files and directories for tainted data reaching sinks",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(reporting.Formats, scanCfg.Format) {
				return fmt.Errorf("invalid --format %q, expected one of %s", scanCfg.Format, strings.Join(reporting.Formats, ", "))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			scanCfg.Targets = args
			if scanCfg.ScanID == "" {
				scanCfg.ScanID = uuid.New().String()
			}
			a.cfg.SetScanConfig(scanCfg)
			return runScan(cmd.Context(), a.cfg, observability.GetLogger())
		},
	}

	flags := scanCmd.Flags()
	flags.StringVarP(&scanCfg.Output, "output", "o", "", "Output file path for the report (default stdout)")
	flags.StringVarP(&scanCfg.Format, "format", "f", "text", "Report format: text, json or sarif")
	flags.StringVar(&scanCfg.ScanID, "scan-id", "", "Identifier recorded in the report (default a random UUID)")
	flags.BoolVar(&scanCfg.FailOnFindings, "fail-on-findings", false, "Exit non-zero when anything is reported")

	// Analysis overrides are bound to their config keys so flags take
	// precedence over the config file and environment.
	flags.IntP("concurrency", "j", 0, "Number of files analysed in parallel (overrides analysis.concurrency)")
	flags.Int("max-call-depth", 0, "Nested function summaries to follow (overrides analysis.max_call_depth)")
	flags.Bool("report-unknown", false, "Also report values that could not be resolved (overrides analysis.report_unknown)")
	bindings := map[string]string{
		"analysis.concurrency":    "concurrency",
		"analysis.max_call_depth": "max-call-depth",
		"analysis.report_unknown": "report-unknown",
	}
	for key, flag := range bindings {
		// Lookup only fails for unknown flags, which are defined just above.
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	return scanCmd
}

// runScan wires the analysis pipeline: registry, fingerprinter, engine
// and reporter.
func runScan(ctx context.Context, cfg config.Interface, logger *zap.Logger) error {
	scanCfg := cfg.Scan()
	analysisCfg := cfg.Analysis()

	logger.Info("Starting new scan",
		zap.String("scan_id", scanCfg.ScanID),
		zap.Strings("targets", scanCfg.Targets),
		zap.Int("concurrency", analysisCfg.Concurrency),
		zap.Int("max_call_depth", analysisCfg.MaxCallDepth),
		zap.Bool("report_unknown", analysisCfg.ReportUnknown),
	)

	registry := sources.NewFromConfig(analysisCfg)
	fingerprinter := php.NewFingerprinter(logger, registry, php.Options{
		MaxCallDepth:  analysisCfg.MaxCallDepth,
		ReportUnknown: analysisCfg.ReportUnknown,
	})

	scanEngine, err := engine.New(cfg, logger, fingerprinter)
	if err != nil {
		return fmt.Errorf("failed to initialize scan engine: %w", err)
	}

	result, err := scanEngine.Scan(ctx, scanCfg.ScanID, scanCfg.Targets)
	if err != nil {
		return err
	}

	reporter, err := reporting.New(scanCfg.Format, scanCfg.Output, Version, logger)
	if err != nil {
		return err
	}
	if err := reporter.Write(result); err != nil {
		reporter.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := reporter.Close(); err != nil {
		return err
	}

	if scanCfg.FailOnFindings && len(result.Findings) > 0 {
		return fmt.Errorf("%w: %d in scan %s", ErrFindingsReported, len(result.Findings), result.ScanID)
	}
	return nil
}
