// Package app wires the export service together and manages its lifecycle.
//
// # Initialization Flow
//
//	1. Configuration and logger are created by the caller
//	2. OpenTelemetry providers and the export metrics
//	3. Exporter (with the headless Chrome PDF renderer), notification hub,
//	   export service, job queue and health service
//	4. chi router with the middleware chain and the API routes
//	5. HTTP server
//
// # Usage
//
//	application, err := app.NewApplication(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// # Graceful Shutdown
//
// Run returns once ctx is cancelled. The HTTP server drains, WebSocket
// connections are closed, running export jobs get up to the shutdown timeout
// to finish and the telemetry providers are flushed. The app never calls
// os.Exit; main decides the exit code.
package app
