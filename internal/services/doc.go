// Package services holds the export business logic shared by the HTTP
// transport and the command line.
//
// ExportService validates and estimates reports and runs exports, either
// synchronously through the per-client Dispatcher or on behalf of the job
// queue. Every export is traced and counted through the OpenTelemetry
// metrics in infrastructure.ExportMetrics.
//
// HealthService answers liveness, readiness and version probes.
package services
