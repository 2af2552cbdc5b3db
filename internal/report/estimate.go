package report

import (
	"fmt"
	"math"
)

const (
	kilobyte = 1024
	megabyte = 1024 * kilobyte
)

// Per-cell byte costs and minimum sizes used by EstimateSize. Workbooks
// carry the most overhead per cell, CSV the least.
var (
	bytesPerCell = map[Format]int{
		FormatExcel: 50,
		FormatPDF:   30,
		FormatCSV:   15,
	}
	baseBytes = map[Format]int{
		FormatExcel: 8 * kilobyte,
		FormatPDF:   4 * kilobyte,
		FormatCSV:   1 * kilobyte,
	}
)

// EstimateSize predicts the output size of exporting r as f and returns it
// as a human-readable string such as "1 KB" or "2.4 MB". It is a heuristic
// over the number of cells, not a measurement.
func EstimateSize(r Report, f Format) (string, error) {
	n, err := EstimateBytes(r, f)
	if err != nil {
		return "", err
	}
	return FormatBytes(n), nil
}

// EstimateBytes is EstimateSize without the formatting.
func EstimateBytes(r Report, f Format) (int, error) {
	perCell, ok := bytesPerCell[f]
	if !ok {
		return 0, ErrInvalidFormat
	}
	cells := 0
	if r != nil {
		cells = TotalCells(r)
	}
	return max(cells*perCell, baseBytes[f]), nil
}

// FormatBytes renders a byte count as B, KB (rounded) or MB (one decimal).
// The unit is chosen after rounding, so nothing renders as "1024 KB".
func FormatBytes(n int) string {
	if n < kilobyte {
		return fmt.Sprintf("%d B", n)
	}
	if kb := int(math.Round(float64(n) / kilobyte)); kb < kilobyte {
		return fmt.Sprintf("%d KB", kb)
	}
	return fmt.Sprintf("%.1f MB", float64(n)/megabyte)
}
