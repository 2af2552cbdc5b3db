package exporter

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"reportexport/internal/report"
)

// Sheet names of the generated workbooks.
const (
	SheetSummary    = "Summary"
	SheetReportInfo = "Report Info"
)

const defaultSheet = "Sheet1"

// ExcelEncoder writes reports as xlsx workbooks.
type ExcelEncoder struct {
	opts Options
}

// NewExcelEncoder creates a workbook encoder.
func NewExcelEncoder(opts Options) *ExcelEncoder {
	if opts.ColumnWidth <= 0 {
		opts.ColumnWidth = 20
	}
	return &ExcelEncoder{opts: opts}
}

// Format implements Encoder.
func (e *ExcelEncoder) Format() report.Format {
	return report.FormatExcel
}

// Encode implements Encoder.
func (e *ExcelEncoder) Encode(ctx context.Context, w io.Writer, r report.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	pairs := metadataPairs(r, e.opts.now())

	switch v := r.(type) {
	case report.Single:
		if err := f.SetSheetName(defaultSheet, report.SectionReport); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
		if err := e.writeTable(f, report.SectionReport, v.Data, e.opts.PDF.HeaderColor); err != nil {
			return err
		}
		if err := e.writeInfo(f, SheetReportInfo, pairs); err != nil {
			return err
		}
	case report.Combined:
		if err := f.SetSheetName(defaultSheet, SheetSummary); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
		if err := e.fillInfo(f, SheetSummary, pairs); err != nil {
			return err
		}
		colors := map[string]string{
			report.SectionCloud:  e.opts.PDF.HeaderColor,
			report.SectionBackup: e.opts.PDF.BackupHeaderColor,
		}
		for _, section := range v.Sections() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := f.NewSheet(section.Name); err != nil {
				return fmt.Errorf("failed to create sheet %s: %w", section.Name, err)
			}
			if err := e.writeTable(f, section.Name, section.Data, colors[section.Name]); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported report type %T", r)
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// writeTable writes the header row and the data rows of one table.
func (e *ExcelEncoder) writeTable(f *excelize.File, sheet string, data report.Data, headerColor string) error {
	if len(data.Columns) == 0 {
		return nil
	}

	header := make([]any, len(data.Columns))
	for i, col := range data.Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}

	for i, row := range data.Rows {
		values := make([]any, len(data.Columns))
		for j, col := range data.Columns {
			values[j] = cellValue(row[col])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(data.Columns))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, e.opts.ColumnWidth); err != nil {
		return fmt.Errorf("failed to set %s column width: %w", sheet, err)
	}

	style, err := f.NewStyle(headerStyle(headerColor))
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	return f.SetCellStyle(sheet, "A1", lastCol+"1", style)
}

// writeInfo adds a key/value sheet.
func (e *ExcelEncoder) writeInfo(f *excelize.File, sheet string, pairs []metaPair) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	return e.fillInfo(f, sheet, pairs)
}

func (e *ExcelEncoder) fillInfo(f *excelize.File, sheet string, pairs []metaPair) error {
	for i, pair := range pairs {
		row := []any{pair.Key, pair.Value}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s: %w", sheet, err)
		}
	}
	if err := f.SetColWidth(sheet, "A", "B", e.opts.ColumnWidth+10); err != nil {
		return fmt.Errorf("failed to set %s column width: %w", sheet, err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create key style: %w", err)
	}
	if len(pairs) == 0 {
		return nil
	}
	return f.SetCellStyle(sheet, "A1", fmt.Sprintf("A%d", len(pairs)), bold)
}

func headerStyle(color string) *excelize.Style {
	style := &excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	}
	if color = strings.TrimPrefix(color, "#"); color != "" {
		style.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{strings.ToUpper(color)}}
	}
	return style
}
