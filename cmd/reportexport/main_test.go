package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"reportexport/internal/report"
	"reportexport/internal/security"
)

const sampleReport = `{
  "mode": "single",
  "report": {
    "reportTitle": "Cloud Status Report",
    "columns": ["Name", "Location"],
    "rows": [{"Name": "db1", "Location": "Tokyo, Japan"}]
  }
}`

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("REPORTEXPORT_CONFIG", "")
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRunExportCSV(t *testing.T) {
	dir := t.TempDir()

	stdout, _, err := runCLI(t, sampleReport, "-format", "csv", "-out", dir, "-name", "status")
	require.NoError(t, err)

	path := filepath.Join(dir, "status.csv")
	assert.Contains(t, stdout, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Name,Location\ndb1,\"Tokyo, Japan\"\n")
}

func TestRunExportKeepsLargeIntegers(t *testing.T) {
	dir := t.TempDir()
	in := `{"mode":"single","report":{"reportTitle":"Usage","columns":["Name","Bytes"],` +
		`"rows":[{"Name":"db1","Bytes":12345678901234567890}]}}`

	_, _, err := runCLI(t, in, "-format", "csv", "-out", dir, "-name", "usage")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "usage.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "db1,12345678901234567890\n")
}

func TestRunExportExcelFromFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "report.json")
	require.NoError(t, os.WriteFile(in, []byte(sampleReport), 0o644))

	_, _, err := runCLI(t, "", "-in", in, "-format", "xlsx", "-out", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "report.xlsx"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")))
}

func TestRunValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		stdout, _, err := runCLI(t, sampleReport, "-validate")
		require.NoError(t, err)
		assert.Contains(t, stdout, `"isValid": true`)
	})

	t.Run("invalid", func(t *testing.T) {
		stdout, _, err := runCLI(t, `{"mode":"single","report":{"rows":[]}}`, "-validate")
		assert.ErrorIs(t, err, errInvalidReport)
		assert.Contains(t, stdout, "Data columns are missing or invalid")
	})
}

func TestRunEstimate(t *testing.T) {
	stdout, _, err := runCLI(t, sampleReport, "-estimate", "-format", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf: 4 KB\n", stdout)
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  error
	}{
		{"invalid format", sampleReport, []string{"-format", "docx"}, report.ErrInvalidFormat},
		{"unknown mode", `{"mode":"triple"}`, []string{"-format", "csv"}, report.ErrUnknownMode},
		{"invalid report", `{"mode":"single","report":{"rows":[]}}`, []string{"-format", "csv"}, errInvalidReport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.stdin, tt.args...)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("bad json", func(t *testing.T) {
		_, _, err := runCLI(t, "{", "-format", "csv")
		assert.Error(t, err)
	})

	t.Run("stray arguments", func(t *testing.T) {
		_, _, err := runCLI(t, sampleReport, "extra")
		assert.Error(t, err)
	})
}

func TestRunHashToken(t *testing.T) {
	stdout, _, err := runCLI(t, "", "-hash-token", "s3cret-token", "-salt", "0123456789abcdef")
	require.NoError(t, err)

	var entries tokenEntries
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &entries))
	assert.Equal(t, "0123456789abcdef", entries.Security.AuthTokenSalt)

	verifier, err := security.NewTokenVerifier(entries.Security.AuthTokenHash, entries.Security.AuthTokenSalt, security.DefaultKDFConfig())
	require.NoError(t, err)
	assert.True(t, verifier.Verify("s3cret-token"))
	assert.False(t, verifier.Verify("other"))
}
