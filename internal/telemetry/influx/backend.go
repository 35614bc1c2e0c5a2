package influxtelemetry

import (
	"strconv"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/trackday/vehsim/pkg/core"
)

// Measurement is the InfluxDB measurement every sample is written to.
const Measurement = "vehicle_state"

var wheelNames = [core.WheelCount]string{"fl", "fr", "rl", "rr"}

// Backend streams samples as InfluxDB points.
type Backend struct {
	manager *Manager
	bucket  string
	session *core.Session
}

// New creates an InfluxDB telemetry backend writing into bucket.
func New(log zerolog.Logger, bucket, backupPath string) *Backend {
	return &Backend{
		manager: NewManager(log, backupPath, bucket),
		bucket:  bucket,
	}
}

// Manager exposes the connection manager.
func (b *Backend) Manager() *Manager {
	return b.manager
}

func (b *Backend) Init() error {
	return b.manager.Connect()
}

func (b *Backend) Close() error {
	return b.manager.Close()
}

func (b *Backend) StartSession(s *core.Session) error {
	b.session = s
	return nil
}

func (b *Backend) RecordSample(s *core.Sample) error {
	if b.session == nil {
		return core.ErrNoSession
	}
	return b.manager.WritePoint(b.bucket, samplePoint(b.session, s))
}

func (b *Backend) EndSession() error {
	if b.session == nil {
		return core.ErrNoSession
	}
	b.session = nil
	return b.manager.Flush()
}

func samplePoint(sess *core.Session, s *core.Sample) *influxdb2_write.Point {
	fields := map[string]interface{}{
		"tick":       s.Tick,
		"x":          s.Position.X(),
		"y":          s.Position.Y(),
		"z":          s.Position.Z(),
		"heading":    s.Heading,
		"speed":      s.Speed,
		"engine_rpm": s.EngineRPM,
		"gear":       s.Gear,
		"roll":       s.Roll,
		"pitch":      s.Pitch,
		"bounce":     s.Bounce,
	}
	for i, w := range wheelNames {
		fields["compression_"+w] = s.Compression[i]
		fields["tire_load_"+w] = s.TireLoad[i]
		fields["long_force_"+w] = s.LongForce[i]
		fields["lat_force_"+w] = s.LatForce[i]
		fields["torque_"+w] = s.WheelTorque[i]
	}

	tags := map[string]string{
		"vehicle": s.VehicleID,
		"session": strconv.FormatUint(uint64(sess.ID), 10),
	}
	if s.Preset != "" {
		tags["preset"] = s.Preset
	}

	return influxdb2_write.NewPoint(Measurement, tags, fields, s.Time)
}
