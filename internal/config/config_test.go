package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultReadTimeout, cfg.Server.ReadTimeout)
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.Server.MaxBodyBytes)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.Security.AllowedOrigins)
	assert.True(t, cfg.Security.RateLimit.Enabled)
	assert.False(t, cfg.Security.AuthEnabled())

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "console", cfg.Logging.Output)

	assert.Equal(t, "report", cfg.Export.DefaultBaseFilename)
	assert.Equal(t, DefaultWorkers, cfg.Export.Workers)
	assert.Equal(t, 15*time.Minute, cfg.Export.Retention)
	assert.Equal(t, "#2980b9", cfg.Export.PDF.HeaderColor)
	assert.Equal(t, 8.27, cfg.Export.PDF.PaperWidth)
	assert.False(t, cfg.Export.CSVBOM)
}

func TestLoadFrom_File(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
  read_timeout: 5s
logging:
  level: debug
export:
  csv_bom: true
  retention: 30m
  workers: 4
  pdf:
    header_color: "#34495e"
  chrome:
    no_sandbox: true
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, DefaultWriteTimeout, cfg.Server.WriteTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Export.CSVBOM)
	assert.Equal(t, 30*time.Minute, cfg.Export.Retention)
	assert.Equal(t, 4, cfg.Export.Workers)
	assert.Equal(t, "#34495e", cfg.Export.PDF.HeaderColor)
	// untouched fields of a partially specified section keep their defaults
	assert.Equal(t, "#27ae60", cfg.Export.PDF.BackupHeaderColor)
	assert.True(t, cfg.Export.Chrome.NoSandbox)
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9090\nexport:\n  workers: 4\n")
	t.Setenv("REPORTEXPORT_SERVER_PORT", "7070")
	t.Setenv("REPORTEXPORT_EXPORT_PDF_FONT_SIZE", "10")
	t.Setenv("REPORTEXPORT_SECURITY_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Export.Workers)
	assert.Equal(t, 10.0, cfg.Export.PDF.FontSize)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
}

func TestLoad_ConfigFileEnv(t *testing.T) {
	path := writeConfigFile(t, "export:\n  default_base_filename: inventory\n")
	t.Setenv(ConfigFileEnv, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "inventory", cfg.Export.DefaultBaseFilename)
}

func TestLoadFrom_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := LoadFrom(writeConfigFile(t, "server: [port"))
		assert.Error(t, err)
	})

	t.Run("bad env value", func(t *testing.T) {
		t.Setenv("REPORTEXPORT_SERVER_PORT", "not-a-number")
		_, err := LoadFrom("")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"no origins", func(c *Config) { c.Security.AllowedOrigins = nil }, "allowed origin"},
		{"no origins without cors", func(c *Config) {
			c.Security.AllowedOrigins = nil
			c.Security.EnableCORS = false
		}, ""},
		{"hash without salt", func(c *Config) { c.Security.AuthTokenHash = "abcd" }, "salt is required"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"bad output", func(c *Config) { c.Logging.Output = "syslog" }, "invalid log output"},
		{"bad log format", func(c *Config) { c.Logging.Format = "logfmt" }, "invalid log format"},
		{"zero workers", func(c *Config) { c.Export.Workers = 0 }, "workers must be positive"},
		{"zero retention", func(c *Config) { c.Export.Retention = 0 }, "retention must be positive"},
		{"pong before ping", func(c *Config) { c.WebSocket.PongWait = time.Second }, "pong wait"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Export.Workers = 0

	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
	assert.Contains(t, err.Error(), "workers must be positive")
}

func TestExporterOptions(t *testing.T) {
	cfg := Default()
	cfg.Export.CSVBOM = true
	cfg.Export.DefaultBaseFilename = "inventory"
	cfg.Export.Chrome.ExecPath = "/usr/bin/chromium"

	opts := cfg.ExporterOptions()
	assert.True(t, opts.CSVBOM)
	assert.Equal(t, "inventory", opts.DefaultBaseFilename)
	assert.Equal(t, cfg.Export.PDF, opts.PDF)
	assert.NotNil(t, opts.Now)

	assert.Equal(t, "/usr/bin/chromium", cfg.ChromeOptions().ExecPath)
	assert.Equal(t, ":8080", cfg.Server.Addr())
}
