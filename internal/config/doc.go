// Package config loads the reportexport configuration.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources, later ones winning:
//
//	1. Built-in defaults (Default)
//	2. A YAML file: $REPORTEXPORT_CONFIG, ./config.yaml or ./configs/config.yaml
//	3. Environment variables prefixed with REPORTEXPORT_
//
// # Environment Variables
//
// Nested sections map to underscore separated names:
//
//	REPORTEXPORT_SERVER_PORT=8080
//	REPORTEXPORT_LOGGING_LEVEL=debug
//	REPORTEXPORT_EXPORT_WORKERS=4
//	REPORTEXPORT_EXPORT_PDF_HEADER_COLOR=#34495e
//	REPORTEXPORT_EXPORT_CHROME_NO_SANDBOX=true
//	REPORTEXPORT_SECURITY_AUTH_TOKEN_HASH=...
//
// # Example File
//
//	server:
//	  port: 9090
//	export:
//	  retention: 30m
//	  csv_bom: true
//	  pdf:
//	    font_size: 9
//
// The loaded configuration is validated before it is returned; every
// problem found is reported at once.
package config
