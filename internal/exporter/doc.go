// Package exporter encodes report.Report values into downloadable files.
//
// This package contains three encoders and the dispatcher that drives them:
//
// CSVEncoder: metadata block followed by one section per table, written
// with encoding/csv so quoting is the standard one in every mode.
//
// ExcelEncoder: multi-sheet workbook built with excelize. Single reports get
// "Report Data" and "Report Info" sheets, combined reports get "Summary",
// "Cloud Services" and "Backup Servers".
//
// PDFEncoder: landscape paginated document. The encoder renders HTML and a
// PDFRenderer (headless Chrome in production) prints it.
//
// Exporter picks the encoder for a format and names the artifact.
// Dispatcher adds the per-owner idle/exporting state machine and the
// success or failure notification.
//
// Example usage:
//
//	exp := exporter.NewExporter(exporter.DefaultOptions(), exporter.NewChromeRenderer(cfg, logger), logger)
//	d := exporter.NewDispatcher(exp, notifier, logger)
//
//	artifact, err := d.Dispatch(ctx, "client-1", report.Single{Data: data}, report.FormatCSV, "status")
//	// artifact.Filename == "status.csv"
package exporter
