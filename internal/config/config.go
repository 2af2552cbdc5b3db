package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"reportexport/internal/exporter"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Export    ExportConfig    `yaml:"export" envconfig:"EXPORT"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`

	// AuthTokenHash is the hex scrypt hash of the API bearer token. Empty
	// disables authentication.
	AuthTokenHash string `yaml:"auth_token_hash" envconfig:"AUTH_TOKEN_HASH"`
	AuthTokenSalt string `yaml:"auth_token_salt" envconfig:"AUTH_TOKEN_SALT"`
}

// AuthEnabled reports whether API requests need a bearer token.
func (s SecurityConfig) AuthEnabled() bool {
	return s.AuthTokenHash != ""
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// ExportConfig controls the encoders and the job queue.
type ExportConfig struct {
	DefaultBaseFilename string            `yaml:"default_base_filename" envconfig:"DEFAULT_BASE_FILENAME"`
	CSVBOM              bool              `yaml:"csv_bom" envconfig:"CSV_BOM"`
	ColumnWidth         float64           `yaml:"column_width" envconfig:"COLUMN_WIDTH"`
	Workers             int               `yaml:"workers" envconfig:"WORKERS"`
	QueueSize           int               `yaml:"queue_size" envconfig:"QUEUE_SIZE"`
	Retention           time.Duration     `yaml:"retention" envconfig:"RETENTION"`
	PDF                 exporter.PDFStyle `yaml:"pdf" envconfig:"PDF"`
	Chrome              ChromeConfig      `yaml:"chrome" envconfig:"CHROME"`
}

// ChromeConfig configures the headless browser used for PDF output.
type ChromeConfig struct {
	ExecPath  string        `yaml:"exec_path" envconfig:"EXEC_PATH"`
	NoSandbox bool          `yaml:"no_sandbox" envconfig:"NO_SANDBOX"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
	WriteWait       time.Duration `yaml:"write_wait" envconfig:"WRITE_WAIT"`
	MaxMessageSize  int64         `yaml:"max_message_size" envconfig:"MAX_MESSAGE_SIZE"`
	SendBuffer      int           `yaml:"send_buffer" envconfig:"SEND_BUFFER"`
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// ExporterOptions maps the export section to encoder options.
func (c *Config) ExporterOptions() exporter.Options {
	opts := exporter.DefaultOptions()
	opts.DefaultBaseFilename = c.Export.DefaultBaseFilename
	opts.CSVBOM = c.Export.CSVBOM
	opts.ColumnWidth = c.Export.ColumnWidth
	opts.PDF = c.Export.PDF
	return opts
}

// ChromeOptions maps the chrome section to renderer options.
func (c *Config) ChromeOptions() exporter.ChromeOptions {
	return exporter.ChromeOptions{
		ExecPath:  c.Export.Chrome.ExecPath,
		NoSandbox: c.Export.Chrome.NoSandbox,
		Timeout:   c.Export.Chrome.Timeout,
	}
}

// Load builds the configuration from defaults, the config file if one is
// found, and REPORTEXPORT_* environment variables, in increasing priority.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file. An empty path skips the file.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields without a matching variable keep their current value.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, errors.New("server read timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server write timeout must be positive"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server max body bytes must be positive"))
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("at least one allowed origin must be specified"))
	}
	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate limit rps and burst must be positive"))
	}
	if c.Security.AuthEnabled() && c.Security.AuthTokenSalt == "" {
		errs = append(errs, errors.New("auth token salt is required when an auth token hash is set"))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level: %q", c.Logging.Level))
	}
	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		errs = append(errs, fmt.Errorf("invalid log output: %q", c.Logging.Output))
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		errs = append(errs, errors.New("log file path is required for file output"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json":
		c.Logging.Format = "json"
	case "text":
		c.Logging.Format = "text"
	default:
		errs = append(errs, fmt.Errorf("invalid log format: %q", c.Logging.Format))
	}

	if c.Export.Workers <= 0 {
		errs = append(errs, fmt.Errorf("export workers must be positive: %d", c.Export.Workers))
	}
	if c.Export.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("export queue size must be positive: %d", c.Export.QueueSize))
	}
	if c.Export.Retention <= 0 {
		errs = append(errs, errors.New("export retention must be positive"))
	}
	if c.Export.ColumnWidth <= 0 {
		errs = append(errs, errors.New("export column width must be positive"))
	}
	if c.Export.PDF.FontSize <= 0 || c.Export.PDF.PaperWidth <= 0 || c.Export.PDF.PaperHeight <= 0 {
		errs = append(errs, errors.New("pdf font size and paper size must be positive"))
	}
	if c.Export.DefaultBaseFilename == "" {
		c.Export.DefaultBaseFilename = DefaultBaseFilename
	}

	if c.WebSocket.PongWait <= c.WebSocket.PingPeriod {
		errs = append(errs, errors.New("websocket pong wait must exceed ping period"))
	}

	return errors.Join(errs...)
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if path := os.Getenv(ConfigFileEnv); path != "" {
		return path
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: DefaultShutdownTimeout,
			RequestTimeout:  DefaultRequestTimeout,
			MaxBodyBytes:    DefaultMaxBodyBytes,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimitRPS,
				Burst:   DefaultRateLimitBurst,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: DefaultLogFile,
		},
		Export: ExportConfig{
			DefaultBaseFilename: DefaultBaseFilename,
			ColumnWidth:         DefaultColumnWidth,
			Workers:             DefaultWorkers,
			QueueSize:           DefaultQueueSize,
			Retention:           DefaultRetention,
			PDF:                 exporter.DefaultPDFStyle(),
			Chrome: ChromeConfig{
				Timeout: DefaultRenderTimeout,
			},
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      WebSocketPingPeriod,
			PongWait:        WebSocketPongWait,
			WriteWait:       WebSocketWriteWait,
			MaxMessageSize:  4096,
			SendBuffer:      256,
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}
