package exporter

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportexport/internal/report"
)

func TestPDFEncoder_SingleLayout(t *testing.T) {
	enc := NewPDFEncoder(testOptions(), nil)

	doc, err := enc.Layout(report.Single{Data: report.Data{
		Title:   "Cloud Status Report",
		Columns: []string{"Name", "Status"},
		Rows: []report.Row{
			{"Name": "db1", "Status": "OK"},
			{"Name": "<b>db2</b>"},
		},
	}})
	require.NoError(t, err)

	html := string(doc.HTML)
	assert.Contains(t, html, "Cloud Status Report")
	assert.Contains(t, html, "#2980b9")
	assert.Contains(t, html, `class="striped"`)
	assert.Contains(t, html, "&lt;b&gt;db2&lt;/b&gt;")
	assert.NotContains(t, html, "<b>db2</b>")

	assert.Contains(t, doc.Footer, "Generated on 2024-05-01 12:00:00")
	assert.Contains(t, doc.Footer, "Total rows: 2")
	assert.Contains(t, doc.Footer, `class="pageNumber"`)

	assert.True(t, doc.Page.Landscape)
	assert.Equal(t, 8.27, doc.Page.PaperWidth)
	assert.Equal(t, 11.69, doc.Page.PaperHeight)
}

func TestPDFEncoder_CombinedLayout(t *testing.T) {
	enc := NewPDFEncoder(testOptions(), nil)

	doc, err := enc.Layout(combinedReport())
	require.NoError(t, err)

	html := string(doc.HTML)
	assert.Contains(t, html, "Cloud Services &amp; Backup Servers Report")
	assert.Contains(t, html, report.SectionCloud)
	assert.Contains(t, html, report.SectionBackup)
	assert.Contains(t, html, "#2980b9")
	assert.Contains(t, html, "#27ae60")
	assert.Contains(t, html, "Tokyo, Japan")
	assert.Contains(t, html, "2024-04-01")
	assert.NotContains(t, html, `class="striped"`)

	assert.Contains(t, doc.Footer, "Cloud services: 1")
	assert.Contains(t, doc.Footer, "Backup servers: 0")
}

func TestPDFEncoder_LayoutIsDeterministic(t *testing.T) {
	enc := NewPDFEncoder(testOptions(), nil)

	first, err := enc.Layout(combinedReport())
	require.NoError(t, err)
	second, err := enc.Layout(combinedReport())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPDFEncoder_Encode(t *testing.T) {
	renderer := &fakeRenderer{}
	enc := NewPDFEncoder(testOptions(), renderer)

	var buf bytes.Buffer
	require.NoError(t, enc.Encode(context.Background(), &buf, statusReport()))
	assert.Equal(t, "%PDF-1.4 fake", buf.String())
	assert.Contains(t, string(renderer.last().HTML), "db1")
}

func TestPDFEncoder_Errors(t *testing.T) {
	var buf bytes.Buffer

	err := NewPDFEncoder(testOptions(), nil).Encode(context.Background(), &buf, statusReport())
	assert.ErrorIs(t, err, ErrNoRenderer)

	boom := errors.New("chrome crashed")
	err = NewPDFEncoder(testOptions(), &fakeRenderer{err: boom}).Encode(context.Background(), &buf, statusReport())
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, buf.Len())
}

func TestChromeRenderer_RenderPDF(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping headless browser test in short mode")
	}
	execPath := ""
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser"} {
		if p, err := exec.LookPath(name); err == nil {
			execPath = p
			break
		}
	}
	if execPath == "" {
		t.Skip("chrome not installed")
	}

	renderer := NewChromeRenderer(ChromeOptions{ExecPath: execPath, NoSandbox: true, Timeout: 30 * time.Second}, nil)
	doc, err := NewPDFEncoder(testOptions(), renderer).Layout(combinedReport())
	require.NoError(t, err)

	pdf, err := renderer.RenderPDF(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}
