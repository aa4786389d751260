package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/OCAP2/demotimeline/internal/config"
	"github.com/OCAP2/demotimeline/internal/influx"
	"github.com/OCAP2/demotimeline/internal/logging"
	intOtel "github.com/OCAP2/demotimeline/internal/otel"
	"github.com/OCAP2/demotimeline/internal/session"
)

// app holds the process-wide logging and telemetry for one command.
type app struct {
	started  time.Time
	logsDir  string
	slog     *logging.SlogManager
	logger   *slog.Logger
	zlog     zerolog.Logger
	otel     *intOtel.Provider
	session  *session.Context
	logFile  *os.File
	otelFile *os.File
}

func newApp(ctx context.Context, configDir string, stderr io.Writer) (*app, error) {
	a := &app{
		started: time.Now(),
		slog:    logging.NewSlogManager(),
		session: session.NewContext(),
	}

	configMissing := false
	if err := config.Load(configDir); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		configMissing = true
		config.LoadDefaults()
	}

	a.logsDir = viper.GetString("logsDir")
	if err := os.MkdirAll(a.logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs dir: %w", err)
	}

	var err error
	a.logFile, err = os.Create(logging.LogFilePath(a.logsDir, logging.ServiceName, a.started))
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	otelCfg := config.GetOTelConfig()
	var otelWriter io.Writer
	if otelCfg.Enabled {
		a.otelFile, err = os.Create(logging.LogFilePath(a.logsDir, logging.ServiceName+".otel", a.started))
		if err != nil {
			return nil, fmt.Errorf("failed to create otel log file: %w", err)
		}
		otelWriter = a.otelFile
	}
	a.otel, err = intOtel.New(ctx, intOtel.FromConfig(otelCfg, otelWriter))
	if err != nil {
		return nil, err
	}

	opts := logging.Options{
		Level:    viper.GetString("logLevel"),
		File:     a.logFile,
		Console:  stderr,
		Provider: a.otel.LoggerProvider(),
		Context:  a.session.LogAttrs,
	}
	if viper.GetBool("graylog.enabled") {
		opts.GraylogAddress = viper.GetString("graylog.address")
	}
	if err := a.slog.Setup(opts); err != nil {
		return nil, err
	}
	a.logger = a.slog.Logger()
	slog.SetDefault(a.logger)

	level, err := zerolog.ParseLevel(viper.GetString("logLevel"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	a.zlog = zerolog.New(a.logFile).Level(level).With().Timestamp().Logger()

	if configMissing {
		a.logger.Warn("No config file found, using defaults", "configDir", configDir, "file", config.ConfigName)
	}
	return a, nil
}

// connectInflux returns nil when influx is disabled.
func (a *app) connectInflux(ctx context.Context) *influx.Manager {
	cfg := config.GetInfluxConfig()
	if !cfg.Enabled {
		return nil
	}
	backupPath := filepath.Join(a.logsDir, fmt.Sprintf("influx_backup.%s.log.gz", a.started.Format("20060102_150405")))
	m := influx.NewManager(cfg, a.zlog.With().Str("component", "influx").Logger(), backupPath)
	m.SetBase(a.started)
	if err := m.Connect(ctx); err != nil {
		a.logger.Warn("InfluxDB unavailable, fire metrics disabled", "error", err)
		return nil
	}
	return m
}

func (a *app) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := a.slog.Flush(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "log flush failed:", err)
	}
	if err := a.otel.Shutdown(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "otel shutdown failed:", err)
	}
	_ = a.slog.Close()
	if a.otelFile != nil {
		_ = a.otelFile.Close()
	}
	_ = a.logFile.Close()
}
