package report

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Section names used by the exporters for sheets, CSV blocks and PDF tables.
const (
	SectionReport = "Report Data"
	SectionCloud  = "Cloud Services"
	SectionBackup = "Backup Servers"
)

// NotAvailable is rendered in place of a missing date.
const NotAvailable = "N/A"

// DateLayout is the layout used to render report dates.
const DateLayout = "2006-01-02"

// Dates is the reporting period. Either bound may be unknown.
type Dates struct {
	Start *time.Time `json:"startDate,omitempty" yaml:"start_date,omitempty"`
	End   *time.Time `json:"endDate,omitempty" yaml:"end_date,omitempty"`
}

// StartText returns the start date for display.
func (d Dates) StartText() string {
	return formatDate(d.Start)
}

// EndText returns the end date for display.
func (d Dates) EndText() string {
	return formatDate(d.End)
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return NotAvailable
	}
	return t.Format(DateLayout)
}

// Row is one record keyed by column name. Values are display-ready
// strings or numbers.
type Row map[string]any

// Data is a single table plus its display metadata.
type Data struct {
	Title          string   `json:"reportTitle"`
	Dates          Dates    `json:"reportDates"`
	Columns        []string `json:"columns"`
	Rows           []Row    `json:"rows"`
	TotalSpaceUsed string   `json:"totalSpaceUsed,omitempty"`
}

// Cell returns the display text of column col in row i. Missing keys
// render as an empty string.
func (d Data) Cell(i int, col string) string {
	return CellText(d.Rows[i][col])
}

// Record returns row i laid out in column order.
func (d Data) Record(i int) []string {
	rec := make([]string, len(d.Columns))
	for j, col := range d.Columns {
		rec[j] = d.Cell(i, col)
	}
	return rec
}

// Cells returns the number of cells in the table body.
func (d Data) Cells() int {
	return len(d.Rows) * len(d.Columns)
}

// CellText renders a row value for text output.
func CellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Section is one named table of a report.
type Section struct {
	Name string
	Data Data
}

// Report is the sum type handed to every exporter. It is implemented by
// Single and Combined only.
type Report interface {
	// Mode reports which variant this is.
	Mode() Mode
	// Sections returns the tables in output order.
	Sections() []Section
	isReport()
}

// Single is a report with one table.
type Single struct {
	Data Data
}

// Mode implements Report.
func (Single) Mode() Mode { return ModeSingle }

// Sections implements Report.
func (s Single) Sections() []Section {
	return []Section{{Name: SectionReport, Data: s.Data}}
}

func (Single) isReport() {}

// Combined is the cloud services and backup servers pair exported together.
type Combined struct {
	Cloud  Data
	Backup Data
}

// Mode implements Report.
func (Combined) Mode() Mode { return ModeCombined }

// Sections implements Report.
func (c Combined) Sections() []Section {
	return []Section{
		{Name: SectionCloud, Data: c.Cloud},
		{Name: SectionBackup, Data: c.Backup},
	}
}

func (Combined) isReport() {}

// TotalRows returns the number of body rows across all sections.
func TotalRows(r Report) int {
	n := 0
	for _, s := range r.Sections() {
		n += len(s.Data.Rows)
	}
	return n
}

// TotalCells returns rows*columns summed over all sections.
func TotalCells(r Report) int {
	n := 0
	for _, s := range r.Sections() {
		n += s.Data.Cells()
	}
	return n
}

// HasData reports whether at least one section has columns to export.
func HasData(r Report) bool {
	if r == nil {
		return false
	}
	for _, s := range r.Sections() {
		if len(s.Data.Columns) > 0 {
			return true
		}
	}
	return false
}
