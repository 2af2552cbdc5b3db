package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportexport/internal/report"
)

func encodeCSV(t *testing.T, opts Options, r report.Report) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, NewCSVEncoder(opts).Encode(context.Background(), &buf, r))
	return buf.String()
}

func TestCSVEncoder_StatusScenario(t *testing.T) {
	out := encodeCSV(t, testOptions(), statusReport())

	expected := "Report Title,Cloud Status Report\n" +
		"Start Date,N/A\n" +
		"End Date,N/A\n" +
		"Total Rows,1\n" +
		"Generated At,2024-05-01 12:00:00\n" +
		"\n" +
		"Cloud Status Report\nName,Status\ndb1,OK\n"
	assert.Equal(t, expected, out)
}

func TestCSVEncoder_FieldCounts(t *testing.T) {
	r := report.Single{Data: report.Data{
		Title:   "Inventory",
		Columns: []string{"Name", "Location", "Note", "Size"},
		Rows: []report.Row{
			{"Name": "db1", "Location": "Tokyo, Japan", "Note": `say "hi"`, "Size": 12.5},
			{"Name": "db2", "Note": "line one\nline two"},
			{},
		},
	}}
	out := encodeCSV(t, testOptions(), r)

	reader := csv.NewReader(strings.NewReader(out))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)

	// 5 metadata lines, title, header, 3 rows
	require.Len(t, records, 10)
	header := records[6]
	assert.Equal(t, r.Data.Columns, header)
	for _, rec := range records[7:] {
		assert.Len(t, rec, len(header))
	}
}

func TestCSVEncoder_QuotedValuesRoundTrip(t *testing.T) {
	values := []string{"Tokyo, Japan", `27" monitor`, "multi\nline", "plain"}

	rows := make([]report.Row, len(values))
	for i, v := range values {
		rows[i] = report.Row{"Value": v}
	}
	out := encodeCSV(t, testOptions(), report.Single{Data: report.Data{
		Title:   "Values",
		Columns: []string{"Value"},
		Rows:    rows,
	}})

	assert.Contains(t, out, "\n\"Tokyo, Japan\"\n")
	assert.Contains(t, out, "\n\"27\"\" monitor\"\n")

	reader := csv.NewReader(strings.NewReader(out))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)
	body := records[len(records)-len(values):]
	for i, v := range values {
		assert.Equal(t, []string{v}, body[i])
	}
}

func TestCSVEncoder_EmptyRows(t *testing.T) {
	out := encodeCSV(t, testOptions(), report.Single{Data: report.Data{
		Title:   "Empty",
		Columns: []string{"A", "B"},
		Rows:    []report.Row{},
	}})
	assert.True(t, strings.HasSuffix(out, "\nEmpty\nA,B\n"), out)
}

func TestCSVEncoder_Combined(t *testing.T) {
	out := encodeCSV(t, testOptions(), combinedReport())

	assert.Contains(t, out, "Cloud Start Date,2024-04-01\n")
	assert.Contains(t, out, "Cloud Total Space Used,120.5 GB\n")
	assert.Contains(t, out, "Backup Start Date,N/A\n")
	assert.Contains(t, out, "Cloud Services\nService,Region,Size (GB)\nstorage,\"Tokyo, Japan\",120.5\n\nBackup Servers\nServer,Status\n")
}

func TestCSVEncoder_Idempotent(t *testing.T) {
	first := encodeCSV(t, testOptions(), combinedReport())
	second := encodeCSV(t, testOptions(), combinedReport())
	assert.Equal(t, first, second)
}

func TestCSVEncoder_BOM(t *testing.T) {
	opts := testOptions()
	opts.CSVBOM = true
	out := encodeCSV(t, opts, statusReport())
	assert.True(t, strings.HasPrefix(out, string(utf8BOM)))
}
