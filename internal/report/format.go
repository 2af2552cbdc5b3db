package report

import (
	"errors"
	"strings"
)

// Format is an export target.
type Format string

const (
	FormatExcel Format = "excel"
	FormatCSV   Format = "csv"
	FormatPDF   Format = "pdf"
)

// ErrInvalidFormat is returned for any format tag other than the three
// supported ones.
var ErrInvalidFormat = errors.New("Invalid export type")

// Formats lists the supported formats.
var Formats = []Format{FormatExcel, FormatCSV, FormatPDF}

// ParseFormat parses a format tag. "xlsx" is accepted for excel.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "excel", "xlsx":
		return FormatExcel, nil
	case "csv":
		return FormatCSV, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", ErrInvalidFormat
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatExcel:
		return "xlsx"
	case FormatCSV:
		return "csv"
	case FormatPDF:
		return "pdf"
	}
	return ""
}

// ContentType returns the MIME type of the produced file.
func (f Format) ContentType() string {
	switch f {
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	return f.Extension() != ""
}
