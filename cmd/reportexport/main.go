// Command reportexport converts a report JSON file into an XLSX, CSV or PDF
// file, or validates and sizes it.
//
//	reportexport -in report.json -format csv -out exports -name status
//	reportexport -in report.json -validate
//	reportexport -in report.json -format pdf -estimate
//	reportexport -hash-token TOKEN
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gopkg.in/yaml.v2"

	"reportexport/internal/config"
	"reportexport/internal/exporter"
	"reportexport/internal/infrastructure"
	"reportexport/internal/report"
	"reportexport/internal/security"
	"reportexport/internal/services"
)

// cliOwner is the session every CLI export runs under.
const cliOwner = "cli"

var errInvalidReport = errors.New("report is invalid")

// options are the parsed command line flags.
type options struct {
	in         string
	format     string
	out        string
	name       string
	configPath string
	validate   bool
	estimate   bool
	hashToken  string
	salt       string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		stop()
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("reportexport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.in, "in", "-", "report JSON file, - for stdin")
	fs.StringVar(&opts.format, "format", "csv", "output format: excel, csv or pdf")
	fs.StringVar(&opts.out, "out", ".", "output directory")
	fs.StringVar(&opts.name, "name", "", "output file name without extension")
	fs.StringVar(&opts.configPath, "config", "", "config file (defaults to config.yaml or $"+config.ConfigFileEnv+")")
	fs.BoolVar(&opts.validate, "validate", false, "only validate the report")
	fs.BoolVar(&opts.estimate, "estimate", false, "only estimate the output size")
	fs.StringVar(&opts.hashToken, "hash-token", "", "print the config entries for an API bearer token and exit")
	fs.StringVar(&opts.salt, "salt", "", "salt for -hash-token, random when empty")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if opts.hashToken != "" {
		return hashToken(stdout, opts.hashToken, opts.salt)
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	logger := infrastructure.NewLogger(stderr, cfg.Logging.Level)

	r, err := readReport(opts.in, stdin)
	if err != nil {
		return err
	}

	switch {
	case opts.validate:
		return validate(stdout, r)
	case opts.estimate:
		return estimate(stdout, r, opts.format)
	}

	f, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	renderer := exporter.NewChromeRenderer(cfg.ChromeOptions(), logger)
	exp := exporter.NewExporter(cfg.ExporterOptions(), renderer, logger)
	notifier := exporter.NotifierFunc(func(ctx context.Context, n exporter.Notification) {
		level := slog.LevelInfo
		switch n.Level {
		case exporter.LevelWarning:
			level = slog.LevelWarn
		case exporter.LevelError:
			level = slog.LevelError
		}
		logger.Log(ctx, level, n.Message, slog.String("format", string(n.Format)))
	})
	svc := services.NewExportService(exp, notifier, nil, logger)

	artifact, err := svc.Export(ctx, cliOwner, r, f, opts.name)
	if err != nil {
		var reportErr *services.ReportError
		if errors.As(err, &reportErr) {
			return fmt.Errorf("%w: %v", errInvalidReport, reportErr.Result.Errors)
		}
		return err
	}

	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(opts.out, artifact.Filename)
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Fprintf(stdout, "%s (%d rows, %s)\n", path, artifact.Rows, report.FormatBytes(artifact.Size))
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

func readReport(path string, stdin io.Reader) (report.Report, error) {
	var src io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open report: %w", err)
		}
		defer f.Close()
		src = f
	}

	var env report.Envelope
	dec := json.NewDecoder(src)
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return env.Resolve()
}

func validate(w io.Writer, r report.Report) error {
	res := report.Validate(r)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.IsValid {
		return errInvalidReport
	}
	return nil
}

func estimate(w io.Writer, r report.Report, format string) error {
	f, err := report.ParseFormat(format)
	if err != nil {
		return err
	}
	size, err := report.EstimateSize(r, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %s\n", f, size)
	return nil
}

// tokenEntries is the security section snippet printed by -hash-token.
type tokenEntries struct {
	Security struct {
		AuthTokenHash string `yaml:"auth_token_hash"`
		AuthTokenSalt string `yaml:"auth_token_salt"`
	} `yaml:"security"`
}

func hashToken(w io.Writer, token, salt string) error {
	if salt == "" {
		var err error
		if salt, err = security.GenerateSecret(16); err != nil {
			return err
		}
	}
	hash, err := security.HashToken(token, salt, security.DefaultKDFConfig())
	if err != nil {
		return err
	}

	var entries tokenEntries
	entries.Security.AuthTokenHash = hash
	entries.Security.AuthTokenSalt = salt
	out, err := yaml.Marshal(entries)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
