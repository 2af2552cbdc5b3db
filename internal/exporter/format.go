package exporter

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"reportexport/internal/report"
)

// TimestampLayout is used for every "generated at" stamp.
const TimestampLayout = "2006-01-02 15:04:05"

// CombinedTitle heads combined documents.
const CombinedTitle = "Cloud Services & Backup Servers Report"

// metaPair is one key/value line of report metadata.
type metaPair struct {
	Key   string
	Value string
}

// metadataPairs describes r as key/value lines. It feeds the CSV metadata
// block and the workbook info sheets.
func metadataPairs(r report.Report, generated time.Time) []metaPair {
	var pairs []metaPair
	switch v := r.(type) {
	case report.Single:
		pairs = dataPairs("", v.Data)
	case report.Combined:
		pairs = append(dataPairs("Cloud ", v.Cloud), dataPairs("Backup ", v.Backup)...)
	}
	return append(pairs, metaPair{"Generated At", generated.Format(TimestampLayout)})
}

func dataPairs(prefix string, d report.Data) []metaPair {
	pairs := []metaPair{
		{prefix + "Report Title", d.Title},
		{prefix + "Start Date", d.Dates.StartText()},
		{prefix + "End Date", d.Dates.EndText()},
	}
	if d.TotalSpaceUsed != "" {
		pairs = append(pairs, metaPair{prefix + "Total Space Used", d.TotalSpaceUsed})
	}
	return append(pairs, metaPair{prefix + "Total Rows", formatInt(len(d.Rows))})
}

// sectionTitle is the line printed above a table.
func sectionTitle(r report.Report, s report.Section) string {
	if _, ok := r.(report.Single); ok && s.Data.Title != "" {
		return s.Data.Title
	}
	return s.Name
}

// documentTitle is the heading of a whole document.
func documentTitle(r report.Report) string {
	if v, ok := r.(report.Single); ok {
		if v.Data.Title != "" {
			return v.Data.Title
		}
		return report.SectionReport
	}
	return CombinedTitle
}

// cellValue keeps numbers numeric for the workbook and renders everything
// else as text.
func cellValue(v any) any {
	switch val := v.(type) {
	case float64, float32, int, int64, int32, uint64:
		return val
	case json.Number:
		return numberValue(val)
	default:
		return report.CellText(val)
	}
}

// maxExactInt is the largest integer a float64 cell holds without loss.
const maxExactInt = 1 << 53

// numberValue converts a decoded JSON number for a workbook cell. Integers a
// spreadsheet cannot store exactly stay text so no digit is lost.
func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		if i <= maxExactInt && i >= -maxExactInt {
			return i
		}
		return n.String()
	}
	if !strings.ContainsAny(n.String(), ".eE") {
		return n.String()
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func formatInt(i int) string {
	return strconv.Itoa(i)
}
