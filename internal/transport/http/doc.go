// Package http implements the HTTP handlers of the export service. Handlers
// stay thin: they decode and validate the request, call the service layer and
// render the result.
//
// # Routes
//
//	POST /api/exports                    export and download the file
//	GET  /api/exports/status             export state of the calling client
//	POST /api/exports/validate           check a report's structure
//	POST /api/exports/estimate?format=   predict the output size
//	POST /api/exports/jobs               queue a background export
//	GET  /api/exports/jobs               list the caller's jobs
//	GET  /api/exports/jobs/{id}          job status
//	GET  /api/exports/jobs/{id}/download fetch a completed job's file
//	GET  /api/health[/ready|/live]       health probes
//	GET  /api/version                    build information
//
// The caller is identified by the X-Client-ID header. Requests without one
// share the "anonymous" client.
//
// # Error Handling
//
// Errors are rendered as RFC 7807 problem details by the errors package:
//
//	{
//	    "type": "/errors/export/invalid-format",
//	    "title": "Invalid Export Format",
//	    "status": 400,
//	    "detail": "Invalid export type",
//	    "instance": "/api/exports",
//	    "trace_id": "..."
//	}
package http
