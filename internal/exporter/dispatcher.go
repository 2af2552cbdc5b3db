package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"reportexport/internal/report"
)

// Dispatcher errors
var (
	ErrNoData           = errors.New("no data available to export")
	ErrExportInProgress = errors.New("export already in progress")
)

// State is the export state of one owner.
type State string

const (
	StateIdle      State = "idle"
	StateExporting State = "exporting"
)

// Status is a snapshot of an owner's state.
type Status struct {
	State  State         `json:"state"`
	Format report.Format `json:"format,omitempty"`
}

// Notification levels
const (
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notification is the user-facing outcome of an export.
type Notification struct {
	Owner    string        `json:"owner"`
	Level    string        `json:"level"`
	Message  string        `json:"message"`
	Format   report.Format `json:"format,omitempty"`
	Filename string        `json:"filename,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Notifier delivers notifications to the owner.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Dispatcher runs exports under the idle -> exporting -> idle state machine.
// Each owner (a client, a CLI run) may have one export in flight; a second
// request while exporting fails with ErrExportInProgress. The owner always
// returns to idle once the encoder settles.
type Dispatcher struct {
	exporter *Exporter
	notifier Notifier
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]report.Format
}

// NewDispatcher creates a dispatcher. notifier may be nil.
func NewDispatcher(exporter *Exporter, notifier Notifier, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		exporter: exporter,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "dispatcher")),
		active:   make(map[string]report.Format),
	}
}

// Status returns owner's current state.
func (d *Dispatcher) Status(owner string) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := d.active[owner]; ok {
		return Status{State: StateExporting, Format: f}
	}
	return Status{State: StateIdle}
}

// Dispatch exports r as f on behalf of owner.
func (d *Dispatcher) Dispatch(ctx context.Context, owner string, r report.Report, f report.Format, base string) (*Artifact, error) {
	if !report.HasData(r) {
		d.notify(ctx, Notification{
			Owner:   owner,
			Level:   LevelWarning,
			Message: "No data available to export",
			Format:  f,
			Error:   ErrNoData.Error(),
		})
		return nil, ErrNoData
	}

	if err := d.begin(owner, f); err != nil {
		return nil, err
	}
	defer d.end(owner)

	d.logger.InfoContext(ctx, "export started",
		slog.String("owner", owner),
		slog.String("format", string(f)),
		slog.String("mode", string(r.Mode())))

	artifact, err := d.exporter.Export(ctx, r, f, base)
	if err != nil {
		d.logger.ErrorContext(ctx, "export failed",
			slog.String("owner", owner),
			slog.String("format", string(f)),
			slog.String("error", err.Error()))
		d.notify(ctx, Notification{
			Owner:   owner,
			Level:   LevelError,
			Message: fmt.Sprintf("Failed to export report as %s", formatLabel(f)),
			Format:  f,
			Error:   err.Error(),
		})
		return nil, err
	}

	d.logger.InfoContext(ctx, "export completed",
		slog.String("owner", owner),
		slog.String("format", string(f)),
		slog.String("filename", artifact.Filename),
		slog.Int("bytes", artifact.Size))
	d.notify(ctx, Notification{
		Owner:    owner,
		Level:    LevelSuccess,
		Message:  fmt.Sprintf("Report exported as %s successfully", formatLabel(f)),
		Format:   f,
		Filename: artifact.Filename,
	})
	return artifact, nil
}

func (d *Dispatcher) begin(owner string, f report.Format) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if current, busy := d.active[owner]; busy {
		return fmt.Errorf("%w: %s export running", ErrExportInProgress, current)
	}
	d.active[owner] = f
	return nil
}

func (d *Dispatcher) end(owner string) {
	d.mu.Lock()
	delete(d.active, owner)
	d.mu.Unlock()
}

func (d *Dispatcher) notify(ctx context.Context, n Notification) {
	if d.notifier != nil {
		d.notifier.Notify(ctx, n)
	}
}

func formatLabel(f report.Format) string {
	if f == report.FormatExcel {
		return "Excel"
	}
	if f.Valid() {
		return strings.ToUpper(string(f))
	}
	return string(f)
}
