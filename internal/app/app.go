package app

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	promclient "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"reportexport/internal/config"
	apierrors "reportexport/internal/errors"
	"reportexport/internal/exporter"
	"reportexport/internal/infrastructure"
	customMiddleware "reportexport/internal/middleware"
	"reportexport/internal/operations"
	"reportexport/internal/security"
	"reportexport/internal/services"
	handlers "reportexport/internal/transport/http"
	ws "reportexport/internal/websocket"
)

var (
	// Version is overridden at link time.
	Version = config.AppVersion
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(Version))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// chromeBinaries are looked up on PATH when no Chrome executable is configured.
var chromeBinaries = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
	"chrome",
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Hub           *ws.Hub
	JobQueue      *operations.JobQueue
	ExportService *services.ExportService
	HealthService *services.HealthService
	ErrorHandler  *apierrors.ErrorHandler
	Metrics       *infrastructure.ExportMetrics
	OTelProviders *infrastructure.OTelProviders
	Logger        *slog.Logger

	renderer exporter.PDFRenderer
	registry *promclient.Registry
}

// Option customizes an Application.
type Option func(*Application)

// WithPDFRenderer replaces the headless Chrome renderer.
func WithPDFRenderer(r exporter.PDFRenderer) Option {
	return func(a *Application) { a.renderer = r }
}

// WithRegistry registers the Prometheus collectors on reg instead of the
// default registry.
func WithRegistry(reg *promclient.Registry) Option {
	return func(a *Application) { a.registry = reg }
}

// NewApplication wires every component from cfg. Nothing runs until Run.
func NewApplication(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &Application{Config: cfg, Logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	otelCfg := infrastructure.OTelConfigFrom(cfg.Telemetry)
	otelCfg.ServiceVersion = Version
	otelCfg.Registry = a.registry
	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTelProviders = providers

	metrics, err := infrastructure.CreateExportMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create export metrics: %w", err)
	}
	a.Metrics = metrics

	if err := a.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := a.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}

	a.createServer()
	return a, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	a.ErrorHandler = apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Level == "debug")
	handlers.RegisterErrors(a.ErrorHandler)

	pdfAvailable := a.renderer != nil
	if a.renderer == nil {
		a.renderer = exporter.NewChromeRenderer(a.Config.ChromeOptions(), a.Logger)
		pdfAvailable = chromeAvailable(a.Config.Export.Chrome.ExecPath)
		if !pdfAvailable {
			a.Logger.Warn("no Chrome executable found, PDF exports will fail")
		}
	}
	exp := exporter.NewExporter(a.Config.ExporterOptions(), a.renderer, a.Logger)

	a.Hub = ws.NewHub(ws.OptionsFrom(a.Config.WebSocket), a.Logger)
	a.ExportService = services.NewExportService(exp, a.Hub, a.Metrics, a.Logger)
	a.JobQueue = operations.NewJobQueue(
		operations.OptionsFrom(a.Config.Export),
		operations.NewMemoryJobStore(),
		a.ExportService,
		a.Hub,
		a.Metrics,
		a.Logger,
	)

	a.HealthService = services.NewHealthService(services.HealthOptions{
		Version:      Version,
		BuildTime:    BuildTime,
		BuildID:      BuildID,
		Hub:          a.Hub,
		Queue:        a.JobQueue,
		PDFAvailable: pdfAvailable,
	}, a.Logger)

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() error {
	var verifier customMiddleware.TokenVerifier
	if a.Config.Security.AuthEnabled() {
		v, err := security.NewTokenVerifier(
			a.Config.Security.AuthTokenHash,
			a.Config.Security.AuthTokenSalt,
			security.DefaultKDFConfig(),
		)
		if err != nil {
			return fmt.Errorf("invalid auth token hash: %w", err)
		}
		verifier = v
	}
	auth := customMiddleware.BearerAuth(verifier, a.Logger, a.ErrorHandler)

	r := chi.NewRouter()

	// These do not wrap the ResponseWriter, so the WebSocket upgrade still
	// sees a Hijacker.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger), auth).
		Handle("/ws", ws.NewHandler(a.Hub, a.Config.Security.AllowedOrigins, a.Logger))

	r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.ErrorHandler))
		r.Use(customMiddleware.SecurityHeaders)
		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
				a.ErrorHandler,
			).Handler)
		}

		a.setupAPIRoutes(r, auth)
	})

	a.Router = r
	return nil
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	timeout := customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Group(func(r chi.Router) {
			r.Use(timeout)

			healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
			r.Mount("/health", healthHandler.Routes())
			r.Get("/version", healthHandler.Version)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Use(customMiddleware.ContentTypeValidator(a.ErrorHandler, "application/json"))
			r.Use(timeout)

			exportHandler := handlers.NewExportHandler(
				a.ExportService,
				a.JobQueue,
				customMiddleware.NewRequestValidator(a.Config.Server.MaxBodyBytes, a.Logger),
				a.ErrorHandler,
				a.Logger,
			)
			r.Mount("/exports", exportHandler.Routes())
		})
	})
}

// getCORSConfig builds the CORS policy from the security section
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		ExposedHeaders: []string{
			"Content-Disposition",
			customMiddleware.RequestIDHeader,
			handlers.ExportRowsHeader,
			"Location",
		},
		AllowCredentials: a.Config.Security.AuthEnabled(),
		Logger:           a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(a.Logger.Handler(), slog.LevelError),
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the hub, the job queue and the HTTP server on ln. It returns
// after a graceful shutdown once ctx is cancelled or a component fails.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", Version),
		slog.String("address", ln.Addr().String()),
		slog.String("level", a.Config.Logging.Level))

	// running exports finish during shutdown; Stop bounds the wait
	a.JobQueue.Start(context.WithoutCancel(ctx))

	g.Go(func() error {
		return a.Hub.Run(ctx)
	})

	g.Go(func() error {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return a.Stop()
	})

	a.logReadiness(ctx)
	return g.Wait()
}

// Stop gracefully stops the application
func (a *Application) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	a.Logger.InfoContext(ctx, "Shutting down application")

	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	a.Hub.Stop()

	if err := a.JobQueue.Stop(a.Config.Server.ShutdownTimeout); err != nil {
		a.Logger.ErrorContext(ctx, "Failed to stop job queue gracefully", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.OTelProviders.Shutdown(ctx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// logReadiness reports the readiness of each component at startup
func (a *Application) logReadiness(ctx context.Context) {
	status := a.HealthService.ReadinessCheck(ctx)
	attrs := make([]any, 0, len(status.Services)+1)
	attrs = append(attrs, slog.String("status", status.Status))
	for name, svc := range status.Services {
		attrs = append(attrs, slog.String(name, svc.Status))
	}
	a.Logger.InfoContext(ctx, "Startup health check", attrs...)
}

// chromeAvailable reports whether a Chrome binary can be found for PDF output.
func chromeAvailable(execPath string) bool {
	if execPath != "" {
		_, err := exec.LookPath(execPath)
		return err == nil
	}
	for _, name := range chromeBinaries {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}
