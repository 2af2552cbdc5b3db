package exporter

import (
	"context"
	"io"
	"sync"
	"time"

	"reportexport/internal/report"
)

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return fixedTime }
	return opts
}

func statusReport() report.Single {
	return report.Single{Data: report.Data{
		Title:   "Cloud Status Report",
		Columns: []string{"Name", "Status"},
		Rows:    []report.Row{{"Name": "db1", "Status": "OK"}},
	}}
}

func combinedReport() report.Combined {
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)
	return report.Combined{
		Cloud: report.Data{
			Title:          "Cloud Services",
			Dates:          report.Dates{Start: &start, End: &end},
			Columns:        []string{"Service", "Region", "Size (GB)"},
			Rows:           []report.Row{{"Service": "storage", "Region": "Tokyo, Japan", "Size (GB)": 120.5}},
			TotalSpaceUsed: "120.5 GB",
		},
		Backup: report.Data{
			Title:   "Backup Servers",
			Columns: []string{"Server", "Status"},
			Rows:    []report.Row{},
		},
	}
}

// fakeRenderer records the document it was asked to print.
type fakeRenderer struct {
	mu   sync.Mutex
	docs []Document
	err  error
}

func (f *fakeRenderer) RenderPDF(ctx context.Context, doc Document) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.docs = append(f.docs, doc)
	return []byte("%PDF-1.4 fake"), nil
}

func (f *fakeRenderer) last() Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[len(f.docs)-1]
}

// blockingEncoder holds Encode until release is closed.
type blockingEncoder struct {
	started chan struct{}
	release chan struct{}
	err     error
}

func newBlockingEncoder() *blockingEncoder {
	return &blockingEncoder{started: make(chan struct{}, 4), release: make(chan struct{})}
}

func (b *blockingEncoder) Format() report.Format { return report.FormatCSV }

func (b *blockingEncoder) Encode(ctx context.Context, w io.Writer, r report.Report) error {
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	if b.err != nil {
		return b.err
	}
	_, err := io.WriteString(w, "ok")
	return err
}

// recordingNotifier keeps every notification.
type recordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recordingNotifier) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}
