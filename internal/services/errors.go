package services

import (
	"errors"
	"strings"

	"reportexport/internal/report"
)

// ErrInvalidReport is wrapped by ReportError.
var ErrInvalidReport = errors.New("invalid report")

// ReportError carries the validator's findings for a rejected report.
type ReportError struct {
	Result report.ValidationResult
}

func (e *ReportError) Error() string {
	return ErrInvalidReport.Error() + ": " + strings.Join(e.Result.Errors, "; ")
}

func (e *ReportError) Unwrap() error { return ErrInvalidReport }
