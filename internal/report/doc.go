// Package report defines the tabular report model consumed by the exporters.
//
// A report is either a Single table or a Combined pair of tables (cloud
// services and backup servers). The mode is always chosen by the caller;
// nothing in this package infers it from the shape of the data.
//
// The package also carries the pre-flight helpers used before an export:
//
//	result := report.Validate(r)
//	if !result.IsValid {
//		// result.Errors lists every problem found
//	}
//
//	size, err := report.EstimateSize(r, report.FormatCSV) // e.g. "1 KB"
package report
