package gormtelemetry

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackday/vehsim/internal/database"
	"github.com/trackday/vehsim/internal/model"
	"github.com/trackday/vehsim/pkg/core"
)

var start = time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)

// newTestBackend opens a file-backed sqlite database in a temp dir.
func newTestBackend(t *testing.T, batch int) *Backend {
	t.Helper()
	db, err := database.GetSqliteDB(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)

	b := New(Dependencies{DB: db, Logger: zerolog.Nop(), BatchSize: batch})
	b.now = func() time.Time { return start.Add(5 * time.Minute) }
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func sample(id string, tick uint64, x, y float64) *core.Sample {
	return &core.Sample{
		VehicleID:   id,
		Preset:      "rally",
		Tick:        tick,
		Time:        start.Add(time.Duration(tick) * time.Second),
		Position:    core.Vec3{x, y, 0.45},
		Speed:       12.5,
		EngineRPM:   4200,
		Gear:        3,
		Compression: [core.WheelCount]float64{0.05, 0.05, 0.06, 0.06},
		TireLoad:    [core.WheelCount]float64{3500, 3500, 3900, 3900},
		WheelTorque: [core.WheelCount]float64{100, 100, 150, 150},
	}
}

func TestNew_DefaultBatch(t *testing.T) {
	b := New(Dependencies{Logger: zerolog.Nop()})
	assert.Equal(t, defaultBatchSize, b.batchSize)
	assert.Error(t, b.Init(), "no database")
}

func TestStartSession_AssignsID(t *testing.T) {
	b := newTestBackend(t, 10)

	s := &core.Session{Name: "stage 1", StartTime: start, TickRate: 60}
	require.NoError(t, b.StartSession(s))
	assert.NotZero(t, s.ID)

	var row model.Session
	require.NoError(t, b.DB().First(&row, s.ID).Error)
	assert.Equal(t, "stage 1", row.Name)
	assert.Equal(t, 60.0, row.TickRate)
}

func TestRecordSample_NoSession(t *testing.T) {
	b := newTestBackend(t, 10)
	assert.ErrorIs(t, b.RecordSample(sample("car-1", 1, 0, 0)), core.ErrNoSession)
	assert.ErrorIs(t, b.EndSession(), core.ErrNoSession)
}

func TestRecordSample_FlushesFullBatches(t *testing.T) {
	b := newTestBackend(t, 2)
	require.NoError(t, b.StartSession(&core.Session{Name: "batch", StartTime: start}))

	require.NoError(t, b.RecordSample(sample("car-1", 1, 0, 0)))
	var count int64
	require.NoError(t, b.DB().Model(&model.VehicleSample{}).Count(&count).Error)
	assert.Equal(t, int64(0), count, "first sample stays buffered")

	require.NoError(t, b.RecordSample(sample("car-1", 2, 0, 1)))
	require.NoError(t, b.DB().Model(&model.VehicleSample{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestEndSession_WritesSummaries(t *testing.T) {
	b := newTestBackend(t, 100)
	s := &core.Session{Name: "summary", StartTime: start, TickRate: 60}
	require.NoError(t, b.StartSession(s))

	require.NoError(t, b.RecordSample(sample("car-1", 10, 0, 0)))
	require.NoError(t, b.RecordSample(sample("car-2", 10, 10, 0)))
	require.NoError(t, b.RecordSample(sample("car-1", 20, 0, 30)))
	require.NoError(t, b.RecordSample(sample("car-1", 30, 40, 60)))
	require.NoError(t, b.EndSession())

	var sess model.Session
	require.NoError(t, b.DB().First(&sess, s.ID).Error)
	assert.Equal(t, uint(4), sess.Samples)
	assert.True(t, sess.EndTime.Equal(start.Add(5*time.Minute)))

	var vehicles []model.SessionVehicle
	require.NoError(t, b.DB().Where("session_id = ?", s.ID).Order("vehicle_id").Find(&vehicles).Error)
	require.Len(t, vehicles, 2)

	assert.Equal(t, "car-1", vehicles[0].VehicleID)
	assert.Equal(t, "rally", vehicles[0].Preset)
	assert.Equal(t, uint64(10), vehicles[0].FirstTick)
	assert.Equal(t, uint64(30), vehicles[0].LastTick)
	assert.InDelta(t, 80.0, vehicles[0].Distance, 1e-9)
	assert.Contains(t, vehicles[0].Trajectory, "LINESTRING Z")

	assert.Equal(t, "car-2", vehicles[1].VehicleID)
	assert.Empty(t, vehicles[1].Trajectory)

	var rows []model.VehicleSample
	require.NoError(t, b.DB().Where("vehicle_id = ?", "car-1").Order("tick").Find(&rows).Error)
	require.Len(t, rows, 3)
	assert.Equal(t, 3, rows[0].Gear)
	assert.Equal(t, 0.45, rows[0].Elevation)

	var loads [core.WheelCount]float64
	require.NoError(t, json.Unmarshal(rows[0].TireLoad, &loads))
	assert.Equal(t, [core.WheelCount]float64{3500, 3500, 3900, 3900}, loads)

	xy, ok := rows[2].Position.XY()
	require.True(t, ok)
	assert.Equal(t, 40.0, xy.X)
	assert.Equal(t, 60.0, xy.Y)
}

func TestEndSession_ParkedVehicle(t *testing.T) {
	b := newTestBackend(t, 100)
	s := &core.Session{Name: "parked", StartTime: start}
	require.NoError(t, b.StartSession(s))

	require.NoError(t, b.RecordSample(sample("car-1", 1, 5, 5)))
	require.NoError(t, b.RecordSample(sample("car-1", 2, 5, 5)))
	require.NoError(t, b.EndSession())

	var sv model.SessionVehicle
	require.NoError(t, b.DB().Where("session_id = ? AND vehicle_id = ?", s.ID, "car-1").First(&sv).Error)
	assert.Equal(t, uint64(2), sv.LastTick)
	assert.Empty(t, sv.Trajectory)
	assert.Zero(t, sv.Distance)
}
