package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"reportexport/internal/config"
	"reportexport/internal/exporter"
	"reportexport/internal/infrastructure"
)

// TracerName names the spans emitted by job workers.
const TracerName = "reportexport.jobs"

// Executor produces the artifact for a request.
type Executor interface {
	Execute(ctx context.Context, req ExportRequest) (*exporter.Artifact, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req ExportRequest) (*exporter.Artifact, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, req ExportRequest) (*exporter.Artifact, error) {
	return f(ctx, req)
}

// StatusBroadcaster publishes job transitions to the job owner.
type StatusBroadcaster interface {
	SendTo(ctx context.Context, owner, msgType string, data interface{})
}

// Options sizes the worker pool and the retention of finished jobs.
type Options struct {
	Workers       int
	QueueSize     int
	Retention     time.Duration
	SweepInterval time.Duration
}

// DefaultOptions returns the queue defaults.
func DefaultOptions() Options {
	return Options{
		Workers:       config.DefaultWorkers,
		QueueSize:     config.DefaultQueueSize,
		Retention:     config.DefaultRetention,
		SweepInterval: time.Minute,
	}
}

// OptionsFrom maps the export section of the application config.
func OptionsFrom(cfg config.ExportConfig) Options {
	o := DefaultOptions()
	if cfg.Workers > 0 {
		o.Workers = cfg.Workers
	}
	if cfg.QueueSize > 0 {
		o.QueueSize = cfg.QueueSize
	}
	if cfg.Retention > 0 {
		o.Retention = cfg.Retention
	}
	return o
}

// QueueStats is a snapshot of queue occupancy.
type QueueStats struct {
	Workers  int               `json:"workers"`
	Queued   int               `json:"queued"`
	Capacity int               `json:"capacity"`
	Jobs     map[JobStatus]int `json:"jobs,omitempty"`
}

type task struct {
	jobID string
	req   ExportRequest
}

// JobQueue manages background export execution
type JobQueue struct {
	opts        Options
	store       JobStore
	executor    Executor
	broadcaster StatusBroadcaster
	metrics     *infrastructure.ExportMetrics
	tracer      trace.Tracer
	logger      *slog.Logger

	tasks    chan task
	wg       sync.WaitGroup
	shutdown chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool

	now func() time.Time
}

// NewJobQueue creates a queue. broadcaster and metrics may be nil.
func NewJobQueue(opts Options, store JobStore, executor Executor, broadcaster StatusBroadcaster, metrics *infrastructure.ExportMetrics, logger *slog.Logger) *JobQueue {
	defaults := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = defaults.Workers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaults.QueueSize
	}
	if opts.Retention <= 0 {
		opts.Retention = defaults.Retention
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaults.SweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &JobQueue{
		opts:        opts,
		store:       store,
		executor:    executor,
		broadcaster: broadcaster,
		metrics:     metrics,
		tracer:      otel.Tracer(TracerName),
		logger:      infrastructure.WithComponent(logger, "jobqueue"),
		tasks:       make(chan task, opts.QueueSize),
		shutdown:    make(chan struct{}),
		now:         time.Now,
	}
}

// Start launches the workers and the retention sweeper. They run until ctx
// is cancelled or Stop is called.
func (q *JobQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true

	q.logger.Info("starting job queue",
		slog.Int("workers", q.opts.Workers),
		slog.Int("queue_size", q.opts.QueueSize),
		slog.Duration("retention", q.opts.Retention),
	)

	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.wg.Add(1)
	go q.sweeper(ctx)
}

// Stop waits up to timeout for in-flight jobs. Jobs still queued are marked
// failed.
func (q *JobQueue) Stop(timeout time.Duration) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	close(q.shutdown)
	q.mu.Unlock()

	q.logger.Info("stopping job queue")

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		q.logger.Warn("job queue stop timeout exceeded", slog.Duration("timeout", timeout))
		return fmt.Errorf("timeout waiting for export workers to finish")
	}

	q.abandonQueued()
	q.logger.Info("job queue stopped gracefully")
	return nil
}

func (q *JobQueue) abandonQueued() {
	for {
		select {
		case t := <-q.tasks:
			ctx := infrastructure.WithTraceID(context.Background(), t.req.TraceID)
			q.metrics.TrackQueued(ctx, -1)
			if job, err := q.store.GetJob(t.jobID); err == nil {
				q.finish(ctx, job, nil, ErrQueueStopped)
			}
		default:
			return
		}
	}
}

// Enqueue records a pending job and schedules it.
func (q *JobQueue) Enqueue(ctx context.Context, req ExportRequest) (*Job, error) {
	if req.Report == nil {
		return nil, errors.New("export request has no report")
	}
	if req.Owner == "" {
		req.Owner = config.DefaultClientID
	}

	job := &Job{
		ID:        uuid.New().String(),
		Owner:     req.Owner,
		Format:    req.Format,
		Mode:      req.Report.Mode(),
		Status:    JobStatusPending,
		Message:   "Export queued",
		TraceID:   req.TraceID,
		CreatedAt: q.now().UTC(),
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil, ErrQueueStopped
	}
	// only Enqueue sends on tasks and always under mu, so a free slot seen
	// here is still free for the send below
	if len(q.tasks) >= cap(q.tasks) {
		q.mu.Unlock()
		q.logger.WarnContext(ctx, "export queue full",
			slog.String("owner", req.Owner),
			slog.Int("capacity", q.opts.QueueSize))
		return nil, ErrQueueFull
	}
	if err := q.store.CreateJob(job); err != nil {
		q.mu.Unlock()
		return nil, fmt.Errorf("failed to save job: %w", err)
	}
	// pending goes out before a worker can see the task
	q.publish(ctx, job)
	q.metrics.TrackQueued(ctx, 1)
	q.tasks <- task{jobID: job.ID, req: req}
	q.mu.Unlock()

	q.logger.InfoContext(ctx, "job enqueued",
		slog.String("job_id", job.ID),
		slog.String("owner", job.Owner),
		slog.String("format", string(job.Format)),
	)

	return job, nil
}

// Get retrieves a job by ID
func (q *JobQueue) Get(id string) (*Job, error) {
	return q.store.GetJob(id)
}

// List returns jobs matching the filter, newest first
func (q *JobQueue) List(filter JobFilter) ([]*Job, error) {
	return q.store.ListJobs(filter)
}

// Artifact returns the finished file of a completed job.
func (q *JobQueue) Artifact(id string) (*Job, *exporter.Artifact, error) {
	job, err := q.store.GetJob(id)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != JobStatusCompleted {
		return job, nil, fmt.Errorf("job %s is %s: %w", id, job.Status, ErrJobNotReady)
	}
	artifact, err := q.store.GetArtifact(id)
	if err != nil {
		return job, nil, err
	}
	return job, artifact, nil
}

// Sweep removes expired jobs and returns how many went.
func (q *JobQueue) Sweep() int {
	n, err := q.store.DeleteExpired(q.now())
	if err != nil {
		q.logger.Error("failed to sweep expired jobs", slog.String("error", err.Error()))
		return 0
	}
	if n > 0 {
		q.logger.Info("expired jobs removed", slog.Int("count", n))
	}
	return n
}

// Stats returns queue statistics
func (q *JobQueue) Stats() QueueStats {
	stats := QueueStats{
		Workers:  q.opts.Workers,
		Queued:   len(q.tasks),
		Capacity: q.opts.QueueSize,
	}
	if s, ok := q.store.(interface{ Stats() map[JobStatus]int }); ok {
		stats.Jobs = s.Stats()
	}
	return stats
}

// worker processes jobs from the queue
func (q *JobQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	logger := q.logger.With(slog.Int("worker_id", workerID))
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker stopped by context")
			return
		case <-q.shutdown:
			logger.Debug("worker stopped by shutdown")
			return
		case t := <-q.tasks:
			q.process(ctx, t, logger)
		}
	}
}

func (q *JobQueue) sweeper(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.shutdown:
			return
		case <-ticker.C:
			q.Sweep()
		}
	}
}

// process executes a single job
func (q *JobQueue) process(ctx context.Context, t task, logger *slog.Logger) {
	if t.req.TraceID != "" {
		ctx = infrastructure.WithTraceID(ctx, t.req.TraceID)
		ctx = context.WithValue(ctx, middleware.RequestIDKey, t.req.TraceID)
	}
	ctx = infrastructure.EnsureTraceID(ctx)
	q.metrics.TrackQueued(ctx, -1)

	logger = logger.With(
		slog.String("job_id", t.jobID),
		slog.String("owner", t.req.Owner),
		slog.String("format", string(t.req.Format)),
	)

	job, err := q.store.GetJob(t.jobID)
	if err != nil {
		logger.WarnContext(ctx, "queued job vanished", slog.String("error", err.Error()))
		return
	}

	ctx, span := q.tracer.Start(ctx, "export.job",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("export.format", string(job.Format)),
			attribute.String("export.mode", string(job.Mode)),
		),
	)
	defer span.End()

	started := q.now().UTC()
	job.Status = JobStatusRunning
	job.StartedAt = &started
	job.Message = "Export running"
	if err := q.store.UpdateJob(job); err != nil {
		logger.ErrorContext(ctx, "failed to update job status", slog.String("error", err.Error()))
	}
	q.publish(ctx, job)
	logger.InfoContext(ctx, "processing job started")

	artifact, execErr := q.execute(ctx, t.req)
	if execErr != nil {
		span.RecordError(execErr)
		span.SetStatus(codes.Error, execErr.Error())
		logger.ErrorContext(ctx, "job failed", slog.String("error", execErr.Error()))
	} else {
		logger.InfoContext(ctx, "processing job completed",
			slog.String("filename", artifact.Filename),
			slog.Int("size", artifact.Size))
	}
	q.finish(ctx, job, artifact, execErr)
}

// execute runs the executor, converting a panic into an error so a bad
// report cannot take down the worker.
func (q *JobQueue) execute(ctx context.Context, req ExportRequest) (artifact *exporter.Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			artifact = nil
			err = fmt.Errorf("export panicked: %v", r)
		}
	}()
	return q.executor.Execute(ctx, req)
}

func (q *JobQueue) finish(ctx context.Context, job *Job, artifact *exporter.Artifact, err error) {
	completed := q.now().UTC()
	expires := completed.Add(q.opts.Retention)
	job.CompletedAt = &completed
	job.ExpiresAt = &expires

	if err == nil && artifact == nil {
		err = errors.New("export produced no artifact")
	}
	if err == nil {
		if saveErr := q.store.SaveArtifact(job.ID, artifact); saveErr != nil {
			err = fmt.Errorf("failed to store artifact: %w", saveErr)
		}
	}

	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err.Error()
		job.Message = "Export failed"
	} else {
		job.Status = JobStatusCompleted
		job.Message = "Export completed"
		job.Filename = artifact.Filename
		job.ContentType = artifact.ContentType
		job.Rows = artifact.Rows
		job.Size = artifact.Size
	}

	if updateErr := q.store.UpdateJob(job); updateErr != nil {
		q.logger.ErrorContext(ctx, "failed to update job completion",
			slog.String("job_id", job.ID),
			slog.String("error", updateErr.Error()))
	}
	q.publish(ctx, job)
}

func (q *JobQueue) publish(ctx context.Context, job *Job) {
	if q.broadcaster == nil {
		return
	}
	snapshot := *job
	q.broadcaster.SendTo(ctx, job.Owner, StatusMessageType, &snapshot)
}
