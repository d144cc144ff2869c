// Package influx mirrors weapon telemetry and recorder performance to InfluxDB.
// When the server is unreachable, points are written as line protocol to a
// gzip backup file instead.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/coil/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Bucket names.
const (
	BucketTelemetry   = "coil_telemetry"
	BucketPerformance = "coil_performance"
)

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx.enabled is false")

// DefaultBucketNames are the buckets created on connect.
var DefaultBucketNames = []string{
	BucketTelemetry,
	BucketPerformance,
}

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	BucketNames  []string
	Logger       zerolog.Logger
	BackupPath   string

	mu         sync.Mutex
	backupFile *os.File
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		IsValid:     false,
		BucketNames: DefaultBucketNames,
		Logger:      log,
		BackupPath:  backupPath,
	}
}

// Connect establishes a connection to InfluxDB, falling back to the backup file.
func (m *Manager) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	running, err := m.Client.Ping(ctx)

	if err != nil || !running {
		m.IsValid = false
		m.Logger.Info().Str("backupPath", m.BackupPath).
			Msg("Failed to initialize InfluxDB client, writing to backup file")
		if err := m.openBackup(); err != nil {
			return err
		}
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	m.IsValid = true
	if err := m.setupOrganizationAndBuckets(); err != nil {
		return err
	}
	m.CreateWriters()
	m.Logger.Info().Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBuckets() error {
	ctx := context.Background()
	orgName := viper.GetString("influx.org")

	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure buckets exist with 90 day retention
	for _, bucket := range m.BucketNames {
		if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, bucket); err == nil {
			continue
		}
		m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90,
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

// CreateWriters creates write APIs for all configured buckets.
func (m *Manager) CreateWriters() {
	orgName := viper.GetString("influx.org")
	for _, bucket := range m.BucketNames {
		m.Writers[bucket] = m.Client.WriteAPI(orgName, bucket)

		errorsCh := m.Writers[bucket].Errors()
		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, errorsCh)
	}

	m.Logger.Debug().Int("buckets", len(m.BucketNames)).Msg("InfluxDB writers initialized")
}

// Enabled reports whether points have somewhere to go.
func (m *Manager) Enabled() bool {
	return m.IsValid || m.BackupWriter != nil
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(bucket string, point *influxdb2_write.Point) error {
	if m.IsValid {
		w, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		w.WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.BackupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// WriteWeaponState mirrors a weapon snapshot to the telemetry bucket.
func (m *Manager) WriteWeaponState(session string, s *core.WeaponState) error {
	return m.WritePoint(BucketTelemetry, WeaponStatePoint(session, s))
}

// WriteEngagementEvent mirrors an engagement event to the telemetry bucket.
func (m *Manager) WriteEngagementEvent(session string, e *core.EngagementEvent) error {
	return m.WritePoint(BucketTelemetry, EngagementEventPoint(session, e))
}

// Close flushes pending writes and closes the client and backup file.
func (m *Manager) Close() error {
	for _, w := range m.Writers {
		w.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// WeaponStatePoint builds the "weapon_state" measurement for a snapshot.
func WeaponStatePoint(session string, s *core.WeaponState) *influxdb2_write.Point {
	fill := 0.0
	if s.Capacity > 0 {
		fill = s.Reserve / s.Capacity
	}
	p := influxdb2_write.NewPointWithMeasurement("weapon_state").
		AddTag("session", session).
		AddTag("platform", string(s.PlatformID)).
		AddTag("weapon", string(s.WeaponID)).
		AddField("state", s.State.String()).
		AddField("reserve", s.Reserve).
		AddField("fill", fill).
		AddField("primary", s.Primary).
		AddField("autoFire", s.AutoFire).
		AddField("simTime", s.SimTime).
		SetTime(s.Time)
	if s.TargetID != "" {
		p.AddField("target", string(s.TargetID))
	}
	return p
}

// EngagementEventPoint builds the "engagement_event" measurement.
func EngagementEventPoint(session string, e *core.EngagementEvent) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement("engagement_event").
		AddTag("session", session).
		AddTag("platform", string(e.PlatformID)).
		AddTag("weapon", string(e.WeaponID)).
		AddTag("kind", e.Kind).
		AddField("reserve", e.Reserve).
		AddField("simTime", e.SimTime).
		SetTime(e.Time)
	if e.TargetID != "" {
		p.AddField("target", string(e.TargetID))
	}
	if e.Kind == core.EventDamage {
		p.AddField("blast", e.Blast).AddField("fire", e.Fire)
	}
	return p
}

// PerformancePoint builds the "coil_performance" measurement from named values.
func PerformancePoint(session string, at time.Time, fields map[string]any) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement("coil_performance").
		AddTag("session", session).
		SetTime(at)
	for k, v := range fields {
		p.AddField(k, v)
	}
	return p
}
