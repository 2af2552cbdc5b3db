package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"reportexport/internal/operations"
)

// ClientCounter reports connected notification clients.
type ClientCounter interface {
	ClientCount() int
}

// QueueStatter reports job queue occupancy.
type QueueStatter interface {
	Stats() operations.QueueStats
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	buildID   string
	hub       ClientCounter
	queue     QueueStatter
	pdf       bool
	startTime time.Time
	now       func() time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health states
const (
	StatusOK       = "ok"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
	StatusAlive    = "alive"
)

// HealthOptions carries build metadata and the components probed for
// readiness. Nil components are reported as not ready.
type HealthOptions struct {
	Version      string
	BuildTime    string
	BuildID      string
	Hub          ClientCounter
	Queue        QueueStatter
	PDFAvailable bool
}

// NewHealthService creates a new health service
func NewHealthService(opts HealthOptions, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "health_service"))
	logger.Debug("health service initialized",
		slog.String("version", opts.Version),
		slog.String("build_time", opts.BuildTime),
		slog.String("build_id", opts.BuildID))

	return &HealthService{
		version:   opts.Version,
		buildTime: opts.BuildTime,
		buildID:   opts.BuildID,
		hub:       opts.Hub,
		queue:     opts.Queue,
		pdf:       opts.PDFAvailable,
		startTime: time.Now(),
		now:       time.Now,
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusOK,
		Timestamp: hs.now().UTC(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports whether the export pipeline can take work.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusReady,
		Timestamp: hs.now().UTC(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"websocket": hs.checkWebSocket(),
			"jobs":      hs.checkJobs(),
			"pdf":       hs.checkPDF(),
		},
	}

	for name, svc := range status.Services {
		// PDF is optional; the other formats keep working without a browser
		if name != "pdf" && svc.Status != StatusReady {
			status.Status = StatusNotReady
		}
	}

	if status.Status != StatusReady {
		hs.logger.WarnContext(ctx, "readiness check failed", slog.Any("services", status.Services))
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusAlive,
		Timestamp: hs.now().UTC(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     hs.now().Sub(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":    hs.version,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"uptime":     hs.now().Sub(hs.startTime).Seconds(),
		"start_time": hs.startTime.UTC().Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" {
		result["build_id"] = hs.buildID
	}
	return result
}

func (hs *HealthService) checkWebSocket() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: StatusNotReady, Message: "notification hub not initialized"}
	}
	return ServiceHealth{
		Status:  StatusReady,
		Message: fmt.Sprintf("%d clients connected", hs.hub.ClientCount()),
	}
}

func (hs *HealthService) checkJobs() ServiceHealth {
	if hs.queue == nil {
		return ServiceHealth{Status: StatusNotReady, Message: "job queue not initialized"}
	}
	stats := hs.queue.Stats()
	if stats.Queued >= stats.Capacity {
		return ServiceHealth{
			Status:  StatusNotReady,
			Message: fmt.Sprintf("job queue saturated (%d/%d)", stats.Queued, stats.Capacity),
		}
	}
	return ServiceHealth{
		Status:  StatusReady,
		Message: fmt.Sprintf("%d/%d queued", stats.Queued, stats.Capacity),
	}
}

func (hs *HealthService) checkPDF() ServiceHealth {
	if !hs.pdf {
		return ServiceHealth{Status: StatusNotReady, Message: "no PDF renderer configured"}
	}
	return ServiceHealth{Status: StatusReady}
}
