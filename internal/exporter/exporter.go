package exporter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"reportexport/internal/report"
)

// DefaultBaseFilename names artifacts when the caller gives no name.
const DefaultBaseFilename = "report"

// ErrNoEncoder is returned when a valid format has no encoder registered.
var ErrNoEncoder = errors.New("no encoder registered for format")

// Encoder writes one report in one format.
type Encoder interface {
	Format() report.Format
	Encode(ctx context.Context, w io.Writer, r report.Report) error
}

// Options configures the encoders.
type Options struct {
	// Now stamps documents. Tests pin it for byte-identical output.
	Now func() time.Time

	// DefaultBaseFilename is used when Export gets an empty name.
	DefaultBaseFilename string

	// CSVBOM prefixes CSV output with a UTF-8 byte order mark.
	CSVBOM bool

	// ColumnWidth is the workbook column width hint.
	ColumnWidth float64

	PDF PDFStyle
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Now:                 time.Now,
		DefaultBaseFilename: DefaultBaseFilename,
		ColumnWidth:         20,
		PDF:                 DefaultPDFStyle(),
	}
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// Artifact is a produced file.
type Artifact struct {
	Filename    string        `json:"filename"`
	Format      report.Format `json:"format"`
	ContentType string        `json:"content_type"`
	Rows        int           `json:"rows"`
	Size        int           `json:"size"`
	Data        []byte        `json:"-"`
}

// Exporter selects an encoder by format and names the result.
type Exporter struct {
	encoders    map[report.Format]Encoder
	defaultBase string
	logger      *slog.Logger
}

// NewExporter creates an exporter with the CSV, Excel and PDF encoders.
func NewExporter(opts Options, renderer PDFRenderer, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultBaseFilename == "" {
		opts.DefaultBaseFilename = DefaultBaseFilename
	}
	return NewExporterWithEncoders(opts.DefaultBaseFilename, logger,
		NewCSVEncoder(opts),
		NewExcelEncoder(opts),
		NewPDFEncoder(opts, renderer),
	)
}

// NewExporterWithEncoders creates an exporter from explicit encoders.
func NewExporterWithEncoders(defaultBase string, logger *slog.Logger, encoders ...Encoder) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Exporter{
		encoders:    make(map[report.Format]Encoder, len(encoders)),
		defaultBase: defaultBase,
		logger:      logger.With(slog.String("component", "exporter")),
	}
	for _, enc := range encoders {
		e.encoders[enc.Format()] = enc
	}
	return e
}

// Export encodes r as f. The artifact is named <base>.<ext>.
func (e *Exporter) Export(ctx context.Context, r report.Report, f report.Format, base string) (*Artifact, error) {
	if !f.Valid() {
		return nil, report.ErrInvalidFormat
	}
	enc, ok := e.encoders[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoEncoder, f)
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := enc.Encode(ctx, &buf, r); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", f, err)
	}

	artifact := &Artifact{
		Filename:    Filename(base, f, e.defaultBase),
		Format:      f,
		ContentType: f.ContentType(),
		Rows:        report.TotalRows(r),
		Size:        buf.Len(),
		Data:        buf.Bytes(),
	}

	e.logger.DebugContext(ctx, "report encoded",
		slog.String("format", string(f)),
		slog.String("mode", string(r.Mode())),
		slog.String("filename", artifact.Filename),
		slog.Int("rows", artifact.Rows),
		slog.Int("bytes", artifact.Size),
		slog.Duration("duration", time.Since(start)))

	return artifact, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._ -]+`)

// Filename builds <base>.<ext>, falling back to fallback for an empty base.
// Directory parts and a repeated extension are dropped.
func Filename(base string, f report.Format, fallback string) string {
	base = strings.TrimSpace(filepath.Base(filepath.ToSlash(strings.TrimSpace(base))))
	base = strings.TrimSuffix(base, "."+f.Extension())
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, ". ")
	if base == "" {
		base = fallback
	}
	if base == "" {
		base = DefaultBaseFilename
	}
	return base + "." + f.Extension()
}
