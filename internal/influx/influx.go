// Package influx writes correlation outcomes to InfluxDB, one point per
// enriched event. When the server cannot be reached the points go to a
// gzip line-protocol backup file instead.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/OCAP2/demotimeline/internal/config"
	"github.com/OCAP2/demotimeline/pkg/core"
)

// Measurement is the measurement name of every fire point.
const Measurement = "fire"

// Phase tag values.
const (
	PhaseStarted = "started"
	PhaseEnded   = "ended"
)

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx is disabled")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Cfg          config.InfluxConfig
	Logger       zerolog.Logger
	BackupPath   string

	backupFile *os.File
	// base anchors demo time to wall-clock point timestamps.
	base time.Time
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		Cfg:        cfg,
		Logger:     log,
		BackupPath: backupPath,
		base:       time.Now(),
	}
}

// SetBase sets the wall-clock time that demo time 0 maps to.
func (m *Manager) SetBase(t time.Time) {
	m.base = t
}

// Connect establishes a connection to InfluxDB, falling back to the backup
// file when the server does not answer.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.Cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		m.Cfg.URL(),
		m.Cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Info().Err(err).Str("backupPath", m.BackupPath).
			Msg("Failed to reach InfluxDB, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("bucket", m.Cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	if m.BackupPath == "" {
		return errors.New("influx unreachable and no backup path set")
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.Client.OrganizationsAPI()

	org, err := orgs.FindOrganizationByName(ctx, m.Cfg.Org)
	if err != nil {
		m.Logger.Info().Str("org", m.Cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.Cfg.Org)
		if err != nil {
			return fmt.Errorf("error creating organization %s: %w", m.Cfg.Org, err)
		}
	}

	if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, m.Cfg.Bucket); err == nil {
		return nil
	}
	m.Logger.Info().Str("bucket", m.Cfg.Bucket).Msg("Bucket not found, creating")

	rule := domain.RetentionRuleTypeExpire
	_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, org, m.Cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: 60 * 60 * 24 * 90,
	})
	if err != nil {
		return fmt.Errorf("error creating bucket %s: %w", m.Cfg.Bucket, err)
	}
	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.Cfg.Org, m.Cfg.Bucket)

	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.Cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(m.Writer.Errors())
}

// FirePoint builds the point for one fire lifecycle event.
func FirePoint(base time.Time, phase string, kind core.EquipmentKind, pos core.Vector3, detonationID int, demoTime float64, thrower *core.Player) *influxdb2_write.Point {
	ts := base.Add(time.Duration(demoTime * float64(time.Second)))
	point := influxdb2_write.NewPointWithMeasurement(Measurement).
		AddTag("kind", kind.String()).
		AddTag("phase", phase).
		AddTag("attributed", strconv.FormatBool(thrower != nil)).
		AddField("detonation_id", detonationID).
		AddField("demo_time", demoTime).
		AddField("x", pos.X).
		AddField("y", pos.Y).
		AddField("z", pos.Z).
		SetTime(ts)
	if thrower != nil {
		point.AddField("thrower_slot", thrower.Slot)
		point.AddField("thrower_name", thrower.Name)
	}
	return point
}

// WriteFireStarted writes a fire start point.
func (m *Manager) WriteFireStarted(e *core.FireStarted) error {
	return m.WritePoint(FirePoint(m.base, PhaseStarted, e.Kind, e.Position, e.DetonationID, e.Time, e.ThrownBy))
}

// WriteFireEnded writes a fire end point.
func (m *Manager) WriteFireEnded(e *core.FireEnded) error {
	return m.WritePoint(FirePoint(m.base, PhaseEnded, e.Kind, e.Position, e.DetonationID, e.Time, e.ThrownBy))
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}
	if m.BackupWriter == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending writes and releases the client or backup file.
func (m *Manager) Close() error {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	if m.BackupWriter == nil {
		return nil
	}
	if err := m.BackupWriter.Close(); err != nil {
		return fmt.Errorf("error closing backup writer: %w", err)
	}
	m.BackupWriter = nil
	return m.backupFile.Close()
}
