// internal/reporting/reporter.go
package reporting

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gookit/color"
	"go.uber.org/zap"

	"github.com/xkilldash9x/phortress/internal/engine"
)

// Reporter defines the interface for writing scan results to an output.
type Reporter interface {
	// Write processes a completed scan result.
	Write(result *engine.Result) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// Formats lists the supported output formats.
var Formats = []string{"text", "json", "sarif"}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a new reporter based on the specified format and output path.
// An empty path or "stdout" writes to standard output.
func New(format, outputPath, toolVersion string, logger *zap.Logger) (Reporter, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch format {
	case "sarif":
		// NewSARIFReporter takes ownership of the writer.
		return NewSARIFReporter(writer, toolVersion, logger), nil
	case "json":
		return NewJSONReporter(writer, toolVersion, logger), nil
	case "text", "":
		// Colour only when writing to a terminal; files stay plain.
		return NewTextReporter(writer, isStdOut && color.SupportColor(), logger), nil
	default:
		if !isStdOut {
			writer.Close()
		}
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
