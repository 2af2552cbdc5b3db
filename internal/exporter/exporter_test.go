package exporter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportexport/internal/report"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		format   report.Format
		fallback string
		want     string
	}{
		{"plain", "cloud-status", report.FormatCSV, "report", "cloud-status.csv"},
		{"empty uses fallback", "", report.FormatPDF, "report", "report.pdf"},
		{"empty fallback", "  ", report.FormatExcel, "", "report.xlsx"},
		{"extension not doubled", "summary.xlsx", report.FormatExcel, "report", "summary.xlsx"},
		{"other extension kept", "summary.csv", report.FormatPDF, "report", "summary.csv.pdf"},
		{"directories stripped", "../../etc/passwd", report.FormatCSV, "report", "passwd.csv"},
		{"unsafe characters", "q1:2024*final", report.FormatCSV, "report", "q1_2024_final.csv"},
		{"spaces kept", "April Report", report.FormatPDF, "report", "April Report.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(tt.base, tt.format, tt.fallback))
		})
	}
}

func TestExporter_Export(t *testing.T) {
	exp := NewExporter(testOptions(), &fakeRenderer{}, nil)
	ctx := context.Background()

	tests := []struct {
		format      report.Format
		filename    string
		contentType string
	}{
		{report.FormatCSV, "status.csv", "text/csv"},
		{report.FormatExcel, "status.xlsx", report.FormatExcel.ContentType()},
		{report.FormatPDF, "status.pdf", "application/pdf"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			artifact, err := exp.Export(ctx, statusReport(), tt.format, "status")
			require.NoError(t, err)

			assert.Equal(t, tt.filename, artifact.Filename)
			assert.Equal(t, tt.format, artifact.Format)
			assert.Contains(t, artifact.ContentType, tt.contentType)
			assert.Equal(t, 1, artifact.Rows)
			assert.Equal(t, len(artifact.Data), artifact.Size)
			assert.NotZero(t, artifact.Size)
		})
	}
}

func TestExporter_DefaultName(t *testing.T) {
	opts := testOptions()
	opts.DefaultBaseFilename = "inventory"
	exp := NewExporter(opts, nil, nil)

	artifact, err := exp.Export(context.Background(), statusReport(), report.FormatCSV, "")
	require.NoError(t, err)
	assert.Equal(t, "inventory.csv", artifact.Filename)
}

func TestExporter_InvalidFormat(t *testing.T) {
	exp := NewExporter(testOptions(), nil, nil)

	_, err := exp.Export(context.Background(), statusReport(), report.Format("docx"), "x")
	require.ErrorIs(t, err, report.ErrInvalidFormat)
	assert.Equal(t, "Invalid export type", err.Error())
}

func TestExporter_NoEncoder(t *testing.T) {
	exp := NewExporterWithEncoders("report", nil, NewCSVEncoder(testOptions()))

	_, err := exp.Export(context.Background(), statusReport(), report.FormatPDF, "x")
	assert.ErrorIs(t, err, ErrNoEncoder)
}

func TestExporter_EncoderFailure(t *testing.T) {
	boom := errors.New("render failed")
	exp := NewExporter(testOptions(), &fakeRenderer{err: boom}, nil)

	artifact, err := exp.Export(context.Background(), statusReport(), report.FormatPDF, "x")
	assert.Nil(t, artifact)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to encode pdf")
}
