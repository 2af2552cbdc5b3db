package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"reportexport/internal/report"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVEncoder writes reports as delimited text.
//
// Layout: a key/value metadata block and a blank line, then per table a
// title line, the header line and one line per row. Tables are separated
// by a blank line.
type CSVEncoder struct {
	opts Options
}

// NewCSVEncoder creates a CSV encoder.
func NewCSVEncoder(opts Options) *CSVEncoder {
	return &CSVEncoder{opts: opts}
}

// Format implements Encoder.
func (e *CSVEncoder) Format() report.Format {
	return report.FormatCSV
}

// Encode implements Encoder.
func (e *CSVEncoder) Encode(ctx context.Context, w io.Writer, r report.Report) error {
	if e.opts.CSVBOM {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)

	for _, pair := range metadataPairs(r, e.opts.now()) {
		if err := writer.Write([]string{pair.Key, pair.Value}); err != nil {
			return fmt.Errorf("failed to write metadata: %w", err)
		}
	}
	if err := writer.Write([]string{""}); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	for i, section := range r.Sections() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			if err := writer.Write([]string{""}); err != nil {
				return fmt.Errorf("failed to write separator: %w", err)
			}
		}
		if err := e.writeSection(writer, sectionTitle(r, section), section.Data); err != nil {
			return fmt.Errorf("failed to write %s: %w", section.Name, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (e *CSVEncoder) writeSection(writer *csv.Writer, title string, data report.Data) error {
	if err := writer.Write([]string{title}); err != nil {
		return err
	}
	if err := writer.Write(data.Columns); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i := range data.Rows {
		if err := writer.Write(data.Record(i)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	return nil
}
