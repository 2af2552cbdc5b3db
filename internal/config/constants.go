package config

import "time"

// Application constants
const (
	AppName    = "reportexport"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable.
	EnvPrefix = "REPORTEXPORT"

	// ConfigFileEnv points at an explicit YAML file.
	ConfigFileEnv = "REPORTEXPORT_CONFIG"

	// ClientIDHeader identifies the session an HTTP export belongs to.
	ClientIDHeader  = "X-Client-ID"
	DefaultClientID = "anonymous"
)

// Defaults
const (
	DefaultPort            = 8080
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 2 * time.Minute
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 90 * time.Second
	DefaultMaxBodyBytes    = 32 << 20

	DefaultWorkers        = 2
	DefaultQueueSize      = 64
	DefaultRetention      = 15 * time.Minute
	DefaultRenderTimeout  = 60 * time.Second
	DefaultColumnWidth    = 20
	DefaultBaseFilename   = "report"
	DefaultLogFile        = "logs/reportexport.log"
	DefaultRateLimitRPS   = 20
	DefaultRateLimitBurst = 40

	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second
	WebSocketWriteWait  = 10 * time.Second
)
