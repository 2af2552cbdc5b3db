package http

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"reportexport/internal/config"
	apierrors "reportexport/internal/errors"
	"reportexport/internal/exporter"
	"reportexport/internal/middleware"
	"reportexport/internal/operations"
	"reportexport/internal/report"
	"reportexport/internal/services"
)

// ExportRowsHeader carries the number of exported rows on downloads.
const ExportRowsHeader = "X-Export-Rows"

// ExportService is the export behaviour the handler needs.
type ExportService interface {
	Validate(r report.Report) report.ValidationResult
	Estimate(r report.Report, f report.Format) (services.Estimate, error)
	Export(ctx context.Context, owner string, r report.Report, f report.Format, base string) (*exporter.Artifact, error)
	Status(owner string) exporter.Status
	CheckRequest(r report.Report, f report.Format) error
}

// JobQueue runs exports in the background.
type JobQueue interface {
	Enqueue(ctx context.Context, req operations.ExportRequest) (*operations.Job, error)
	Get(id string) (*operations.Job, error)
	List(filter operations.JobFilter) ([]*operations.Job, error)
	Artifact(id string) (*operations.Job, *exporter.Artifact, error)
}

// ExportRequest is the body of an export. The report travels in the same
// object as the format, e.g. {"format":"csv","mode":"single","report":{...}}.
type ExportRequest struct {
	Format   string `json:"format" validate:"required,exportformat"`
	Filename string `json:"filename,omitempty" validate:"omitempty,max=200,filename"`
	report.Envelope
}

// resolve returns the typed report and format.
func (req *ExportRequest) resolve() (report.Report, report.Format, error) {
	f, err := report.ParseFormat(req.Format)
	if err != nil {
		return nil, "", err
	}
	r, err := req.Envelope.Resolve()
	if err != nil {
		return nil, "", err
	}
	return r, f, nil
}

// ExportHandler serves the export API.
type ExportHandler struct {
	service      ExportService
	jobs         JobQueue
	validator    *middleware.RequestValidator
	params       *middleware.QueryParamValidator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewExportHandler creates an export handler. jobs may be nil, in which case
// the background job routes are not mounted.
func NewExportHandler(service ExportService, jobs JobQueue, validator *middleware.RequestValidator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *ExportHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	if validator == nil {
		validator = middleware.NewRequestValidator(config.DefaultMaxBodyBytes, logger)
	}
	return &ExportHandler{
		service:      service,
		jobs:         jobs,
		validator:    validator,
		params:       middleware.NewQueryParamValidator(errorHandler),
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "export")),
	}
}

// RegisterErrors teaches the error handler the job queue's errors.
func RegisterErrors(eh *apierrors.ErrorHandler) {
	eh.Register(operations.ErrJobNotFound, http.StatusNotFound, apierrors.TypeJobNotFound, "Export Job Not Found")
	eh.Register(operations.ErrQueueFull, http.StatusServiceUnavailable, apierrors.TypeQueueFull, "Export Queue Full")
	eh.Register(operations.ErrJobNotReady, http.StatusConflict, apierrors.TypeConflict, "Export Job Not Ready")
	eh.Register(operations.ErrQueueStopped, http.StatusServiceUnavailable, apierrors.TypeServiceDown, "Export Queue Stopped")
}

// Routes returns the export router, mounted under /api/exports.
func (h *ExportHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Export)
	r.Get("/status", h.Status)
	r.Post("/validate", h.Validate)
	r.Post("/estimate", h.Estimate)

	if h.jobs != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", h.CreateJob)
			r.Get("/", h.ListJobs)
			r.Get("/{id}", h.GetJob)
			r.Get("/{id}/download", h.DownloadJob)
		})
	}

	return r
}

// Validate handles POST /api/exports/validate. A structurally bad report is
// still a 200: the result describes what is wrong.
func (h *ExportHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var env report.Envelope
	if err := h.validator.DecodeAndValidate(w, r, &env); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	rep, err := env.Resolve()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, h.service.Validate(rep))
}

// Estimate handles POST /api/exports/estimate?format=
func (h *ExportHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	f, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var env report.Envelope
	if err := h.validator.DecodeAndValidate(w, r, &env); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	rep, err := env.Resolve()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	est, err := h.service.Estimate(rep, f)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, est)
}

// Status handles GET /api/exports/status
func (h *ExportHandler) Status(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Status(clientID(r)))
}

// Export handles POST /api/exports and streams the file back as an attachment.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	rep, f, req, ok := h.decodeExport(w, r)
	if !ok {
		return
	}

	artifact, err := h.service.Export(r.Context(), clientID(r), rep, f, req.Filename)
	if err != nil {
		h.handleExportError(w, r, err)
		return
	}
	h.writeArtifact(w, r, artifact)
}

// CreateJob handles POST /api/exports/jobs
func (h *ExportHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	rep, f, req, ok := h.decodeExport(w, r)
	if !ok {
		return
	}
	if err := h.service.CheckRequest(rep, f); err != nil {
		h.handleExportError(w, r, err)
		return
	}

	job, err := h.jobs.Enqueue(r.Context(), operations.ExportRequest{
		Owner:    clientID(r),
		Format:   f,
		Filename: req.Filename,
		Report:   rep,
		TraceID:  middleware.GetReqID(r.Context()),
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("export.job_id", job.ID),
		attribute.String("export.format", string(f)),
	)
	h.logger.InfoContext(r.Context(), "export job queued",
		slog.String("job_id", job.ID),
		slog.String("owner", job.Owner),
		slog.String("format", string(f)))

	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+job.ID)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, job)
}

// ListJobs handles GET /api/exports/jobs. Callers only see their own jobs.
func (h *ExportHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	status, ok := h.params.ValidateEnum(w, r, "status", []string{
		string(operations.JobStatusPending),
		string(operations.JobStatusRunning),
		string(operations.JobStatusCompleted),
		string(operations.JobStatusFailed),
	}, "")
	if !ok {
		return
	}
	limit, ok := h.params.ValidateInt(w, r, "limit", 0, 1000, 0)
	if !ok {
		return
	}

	jobs, err := h.jobs.List(operations.JobFilter{
		Owner:  clientID(r),
		Status: operations.JobStatus(status),
		Limit:  limit,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*operations.Job{}
	}

	render.JSON(w, r, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetJob handles GET /api/exports/jobs/{id}
func (h *ExportHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.ownJob(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, job)
}

// DownloadJob handles GET /api/exports/jobs/{id}/download
func (h *ExportHandler) DownloadJob(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ownJob(r); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	_, artifact, err := h.jobs.Artifact(chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.writeArtifact(w, r, artifact)
}

// ownJob loads the job named in the path. Jobs of other clients are
// reported as not found.
func (h *ExportHandler) ownJob(r *http.Request) (*operations.Job, error) {
	id := chi.URLParam(r, "id")
	job, err := h.jobs.Get(id)
	if err != nil {
		return nil, err
	}
	if job.Owner != clientID(r) {
		return nil, operations.ErrJobNotFound
	}
	return job, nil
}

func (h *ExportHandler) decodeExport(w http.ResponseWriter, r *http.Request) (report.Report, report.Format, *ExportRequest, bool) {
	var req ExportRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return nil, "", nil, false
	}
	rep, f, err := req.resolve()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return nil, "", nil, false
	}
	return rep, f, &req, true
}

func (h *ExportHandler) handleExportError(w http.ResponseWriter, r *http.Request, err error) {
	var reportErr *services.ReportError
	if errors.As(err, &reportErr) {
		h.errorHandler.HandleError(w, r, apierrors.InvalidReport(reportErr.Result.Errors))
		return
	}
	h.errorHandler.HandleError(w, r, err)
}

func (h *ExportHandler) writeArtifact(w http.ResponseWriter, r *http.Request, artifact *exporter.Artifact) {
	header := w.Header()
	header.Set("Content-Type", artifact.ContentType)
	header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": artifact.Filename,
	}))
	header.Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	header.Set(ExportRowsHeader, strconv.Itoa(artifact.Rows))
	header.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(artifact.Data); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write export",
			slog.String("filename", artifact.Filename),
			slog.String("error", err.Error()))
	}
}

// clientID identifies the caller for per-client export state.
func clientID(r *http.Request) string {
	if id := r.Header.Get(config.ClientIDHeader); id != "" {
		return id
	}
	return config.DefaultClientID
}
