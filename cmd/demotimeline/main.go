// Command demotimeline decodes demo headers and replays decoder notification
// transcripts into a fire timeline.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/OCAP2/demotimeline/internal/api"
	"github.com/OCAP2/demotimeline/internal/config"
	"github.com/OCAP2/demotimeline/internal/demo"
	"github.com/OCAP2/demotimeline/internal/geo"
	"github.com/OCAP2/demotimeline/internal/logging"
	"github.com/OCAP2/demotimeline/internal/monitor"
	"github.com/OCAP2/demotimeline/internal/session"
	"github.com/OCAP2/demotimeline/internal/storage"
	"github.com/OCAP2/demotimeline/pkg/core"
)

// BuildVersion and BuildDate can be set at build time via ldflags
var (
	BuildVersion = "0.0.1"
	BuildDate    = "unknown"
)

const usage = `usage:
  demotimeline header <file.dem>
  demotimeline replay [-config dir] [-demo file.dem] [-upload] <transcript>
  demotimeline version
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("invalid arguments")

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	switch args[0] {
	case "header":
		if len(args) != 2 {
			fmt.Fprint(stderr, usage)
			return errUsage
		}
		return runHeader(args[1], stdout)
	case "replay":
		return runReplay(ctx, args[1:], stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "demotimeline %s (%s)\n", BuildVersion, BuildDate)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func readHeaderFile(path string) (*core.DemoHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open demo: %w", err)
	}
	defer f.Close()

	header, err := demo.ReadHeader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return header, nil
}

func runHeader(path string, stdout io.Writer) error {
	header, err := readHeaderFile(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(header)
}

func runReplay(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := fs.String("config", ".", "directory containing "+config.ConfigName)
	demoPath := fs.String("demo", "", "demo file to read the header from")
	upload := fs.Bool("upload", false, "upload the exported timeline to api.serverUrl")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}
	transcriptPath := fs.Arg(0)

	a, err := newApp(ctx, *configDir, stderr)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	var header *core.DemoHeader
	name := filepath.Base(transcriptPath)
	if *demoPath != "" {
		if header, err = readHeaderFile(*demoPath); err != nil {
			return err
		}
		name = filepath.Base(*demoPath)
	}

	backend, cleanup, err := createStorageBackend(config.GetStorageConfig(), a)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			a.logger.Error("Storage cleanup failed", "error", err)
		}
	}()
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			a.logger.Error("Failed to close storage backend", "error", err)
		}
	}()

	metrics := a.connectInflux(ctx)
	if metrics != nil {
		defer func() {
			if err := metrics.Close(); err != nil {
				a.logger.Error("Failed to close influx", "error", err)
			}
		}()
	}

	deps := session.Dependencies{
		Logger:           a.logger,
		DispatcherLogger: logging.NewDispatcherLogger(a.zlog.With().Str("component", "dispatcher").Logger()),
		Geometry:         geo.NewCellGrid(config.GetGeometryConfig().CellBits),
		Backend:          backend,
		Context:          a.session,
	}
	if metrics != nil {
		deps.Metrics = metrics
	}
	sess, err := session.New(deps)
	if err != nil {
		return err
	}
	if err := sess.Start(name, header); err != nil {
		return err
	}

	mon := monitor.NewService(monitor.Dependencies{
		Logger:     a.logger,
		Source:     sess,
		StatusPath: filepath.Join(a.logsDir, "status.json"),
	})
	if err := mon.Start(); err != nil {
		a.logger.Warn("Status monitor unavailable", "error", err)
	}
	defer mon.Stop()

	f, err := os.Open(transcriptPath)
	if err != nil {
		return fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	if err := sess.Replay(ctx, f); err != nil {
		return fmt.Errorf("%s: %w", transcriptPath, err)
	}
	if err := sess.Close(); err != nil {
		return err
	}
	mon.Stop()

	stats := sess.Stats()
	fmt.Fprintf(stdout, "%s: %d fires started, %d fires ended, %d attributed starts\n",
		name, stats.FiresStarted, stats.FiresEnded, stats.Attributed)

	if !*upload {
		return nil
	}
	return uploadTimeline(ctx, backend, stdout)
}

func uploadTimeline(ctx context.Context, backend storage.Backend, stdout io.Writer) error {
	up, ok := backend.(storage.Uploadable)
	if !ok {
		return fmt.Errorf("storage backend %T does not export files", backend)
	}
	path := up.GetExportedFilePath()
	if path == "" {
		return errors.New("no exported timeline to upload")
	}

	client := api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
	if err := client.Healthcheck(ctx); err != nil {
		return err
	}
	if err := client.Upload(ctx, path, up.GetExportMetadata()); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "uploaded %s\n", filepath.Base(path))
	return nil
}
