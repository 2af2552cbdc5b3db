package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"reportexport/internal/exporter"
	"reportexport/internal/infrastructure"
	"reportexport/internal/operations"
	"reportexport/internal/report"
)

// TracerName names export spans.
const TracerName = "reportexport.export"

// Export outcomes recorded in exports_total.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeNoData     = "no_data"
	OutcomeRejected   = "rejected"
	OutcomeInProgress = "in_progress"
)

// Estimate is the predicted size of an export.
type Estimate struct {
	Format        report.Format `json:"format"`
	Mode          report.Mode   `json:"mode"`
	Cells         int           `json:"cells"`
	EstimatedSize string        `json:"estimated_size"`
	Bytes         int           `json:"estimated_bytes"`
}

// ExportService runs exports with tracing and metrics.
type ExportService struct {
	exporter   *exporter.Exporter
	dispatcher *exporter.Dispatcher
	metrics    *infrastructure.ExportMetrics
	tracer     trace.Tracer
	logger     *slog.Logger
}

// NewExportService wires the exporter to a per-client dispatcher that reports
// through notifier. notifier and metrics may be nil.
func NewExportService(exp *exporter.Exporter, notifier exporter.Notifier, metrics *infrastructure.ExportMetrics, logger *slog.Logger) *ExportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportService{
		exporter:   exp,
		dispatcher: exporter.NewDispatcher(exp, notifier, logger),
		metrics:    metrics,
		tracer:     otel.Tracer(TracerName),
		logger:     infrastructure.WithComponent(logger, "export_service"),
	}
}

// Validate checks the report's structure.
func (s *ExportService) Validate(r report.Report) report.ValidationResult {
	return report.Validate(r)
}

// Estimate predicts the output size of exporting r as f.
func (s *ExportService) Estimate(r report.Report, f report.Format) (Estimate, error) {
	n, err := report.EstimateBytes(r, f)
	if err != nil {
		return Estimate{}, err
	}
	est := Estimate{
		Format:        f,
		EstimatedSize: report.FormatBytes(n),
		Bytes:         n,
	}
	if r != nil {
		est.Mode = r.Mode()
		est.Cells = report.TotalCells(r)
	}
	return est, nil
}

// Status reports whether owner has an export in flight.
func (s *ExportService) Status(owner string) exporter.Status {
	return s.dispatcher.Status(owner)
}

// Export validates r and exports it as f for owner. A second export for the
// same owner while one is running fails with exporter.ErrExportInProgress.
func (s *ExportService) Export(ctx context.Context, owner string, r report.Report, f report.Format, base string) (*exporter.Artifact, error) {
	return s.run(ctx, "export.sync", owner, r, f, func(ctx context.Context) (*exporter.Artifact, error) {
		return s.dispatcher.Dispatch(ctx, owner, r, f, base)
	})
}

// Execute runs a queued export. The queue already serializes work, so the
// per-owner guard is bypassed.
func (s *ExportService) Execute(ctx context.Context, req operations.ExportRequest) (*exporter.Artifact, error) {
	return s.run(ctx, "export.job", req.Owner, req.Report, req.Format, func(ctx context.Context) (*exporter.Artifact, error) {
		if !report.HasData(req.Report) {
			return nil, exporter.ErrNoData
		}
		return s.exporter.Export(ctx, req.Report, req.Format, req.Filename)
	})
}

var _ operations.Executor = (*ExportService)(nil)

// CheckRequest rejects what cannot be exported before it is queued.
func (s *ExportService) CheckRequest(r report.Report, f report.Format) error {
	if !f.Valid() {
		return report.ErrInvalidFormat
	}
	if res := s.Validate(r); !res.IsValid {
		return &ReportError{Result: res}
	}
	return nil
}

func (s *ExportService) run(ctx context.Context, spanName, owner string, r report.Report, f report.Format, do func(context.Context) (*exporter.Artifact, error)) (*exporter.Artifact, error) {
	mode := ""
	if r != nil {
		mode = string(r.Mode())
	}

	ctx, span := s.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("export.owner", owner),
			attribute.String("export.format", string(f)),
			attribute.String("export.mode", mode),
		),
	)
	defer span.End()

	start := time.Now()
	if err := s.CheckRequest(r, f); err != nil {
		s.finish(ctx, span, f, mode, start, nil, err)
		return nil, err
	}

	s.metrics.TrackActive(ctx, 1, string(f))
	artifact, err := do(ctx)
	s.metrics.TrackActive(ctx, -1, string(f))

	s.finish(ctx, span, f, mode, start, artifact, err)
	return artifact, err
}

func (s *ExportService) finish(ctx context.Context, span trace.Span, f report.Format, mode string, start time.Time, artifact *exporter.Artifact, err error) {
	outcome := outcomeOf(err)
	size := 0
	if artifact != nil {
		size = artifact.Size
		span.SetAttributes(
			attribute.String("export.filename", artifact.Filename),
			attribute.Int("export.rows", artifact.Rows),
			attribute.Int("export.bytes", artifact.Size),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if outcome == OutcomeFailure {
			s.logger.ErrorContext(ctx, "export failed",
				slog.String("format", string(f)),
				slog.String("error", err.Error()))
		}
	}
	span.SetAttributes(attribute.String("export.outcome", outcome))
	s.metrics.RecordExport(ctx, string(f), mode, outcome, time.Since(start), size)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, exporter.ErrNoData):
		return OutcomeNoData
	case errors.Is(err, exporter.ErrExportInProgress):
		return OutcomeInProgress
	case errors.Is(err, ErrInvalidReport), errors.Is(err, report.ErrInvalidFormat):
		return OutcomeRejected
	default:
		return OutcomeFailure
	}
}
