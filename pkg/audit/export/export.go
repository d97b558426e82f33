// Package export writes audit records as JSON or CSV.
package export

import (
	"fmt"

	"mercator-hq/gatekeeper/pkg/audit"
)

// New returns the exporter for format ("json" or "csv").
func New(format string, pretty bool) (audit.Exporter, error) {
	switch format {
	case "json", "":
		return NewJSONExporter(pretty), nil
	case "csv":
		return NewCSVExporter(true), nil
	default:
		return nil, &audit.ExportError{Format: format, Cause: fmt.Errorf("unsupported format")}
	}
}
