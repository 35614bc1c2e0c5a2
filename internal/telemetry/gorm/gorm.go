// Package gormtelemetry records sessions into any gorm database. Samples are
// buffered and inserted in batches; per-vehicle paths are summarised into
// session_vehicles when the session ends.
package gormtelemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/trackday/vehsim/internal/database"
	"github.com/trackday/vehsim/internal/geo"
	"github.com/trackday/vehsim/internal/model"
	"github.com/trackday/vehsim/pkg/core"
)

const defaultBatchSize = 500

// Dependencies holds the collaborators of the gorm backend.
type Dependencies struct {
	DB        *gorm.DB
	Logger    zerolog.Logger
	BatchSize int
}

type vehiclePath struct {
	preset      string
	first, last uint64
	points      []core.Vec3
}

// Backend writes telemetry through gorm.
type Backend struct {
	db        *gorm.DB
	log       zerolog.Logger
	batchSize int
	now       func() time.Time

	mu      sync.Mutex
	session *model.Session
	pending []model.VehicleSample
	paths   map[string]*vehiclePath
	order   []string
	samples uint
}

// New creates a gorm backend. Init must be called before use.
func New(deps Dependencies) *Backend {
	batch := deps.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Backend{
		db:        deps.DB,
		log:       deps.Logger,
		batchSize: batch,
		now:       time.Now,
		paths:     make(map[string]*vehiclePath),
	}
}

// DB exposes the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.db
}

// Init migrates the telemetry schema.
func (b *Backend) Init() error {
	if b.db == nil {
		return errors.New("gorm backend has no database")
	}
	if err := database.Migrate(b.db); err != nil {
		return err
	}
	b.log.Info().Str("dialect", b.db.Dialector.Name()).Msg("Telemetry schema migrated")
	return nil
}

// Close flushes pending samples and closes the connection.
func (b *Backend) Close() error {
	b.mu.Lock()
	err := b.flushLocked()
	b.mu.Unlock()

	sqlDB, dbErr := b.db.DB()
	if dbErr != nil {
		return errors.Join(err, dbErr)
	}
	return errors.Join(err, sqlDB.Close())
}

// StartSession inserts the session row and writes its ID back into s.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	row := &model.Session{
		Name:      s.Name,
		StartTime: s.StartTime,
		TickRate:  s.TickRate,
	}
	if err := b.db.Create(row).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	s.ID = row.ID

	b.session = row
	b.pending = b.pending[:0]
	b.paths = make(map[string]*vehiclePath)
	b.order = nil
	b.samples = 0

	b.log.Info().Uint("session", row.ID).Str("name", row.Name).Msg("Session started")
	return nil
}

// RecordSample buffers a sample, flushing once a batch is full.
func (b *Backend) RecordSample(s *core.Sample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return core.ErrNoSession
	}

	row, err := toModel(b.session.ID, s)
	if err != nil {
		return err
	}
	b.pending = append(b.pending, row)
	b.samples++

	p, ok := b.paths[s.VehicleID]
	if !ok {
		p = &vehiclePath{preset: s.Preset, first: s.Tick}
		b.paths[s.VehicleID] = p
		b.order = append(b.order, s.VehicleID)
	}
	p.last = s.Tick
	p.points = append(p.points, s.Position)

	if len(b.pending) >= b.batchSize {
		return b.flushLocked()
	}
	return nil
}

// EndSession flushes samples and writes per-vehicle summaries.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return core.ErrNoSession
	}
	if err := b.flushLocked(); err != nil {
		return err
	}

	for _, id := range b.order {
		p := b.paths[id]
		sv := model.SessionVehicle{
			SessionID: b.session.ID,
			VehicleID: id,
			Preset:    p.preset,
			FirstTick: p.first,
			LastTick:  p.last,
		}
		ls, err := geo.Trajectory(p.points)
		switch {
		case errors.Is(err, geo.ErrTooFewPoints):
			// stationary vehicles have no path
		case err != nil:
			b.log.Warn().Err(err).Str("vehicle", id).Msg("Skipping trajectory")
		default:
			sv.Trajectory = ls.AsText()
			sv.Distance = geo.Distance(ls)
		}
		if err := b.db.Create(&sv).Error; err != nil {
			return fmt.Errorf("failed to write vehicle %s summary: %w", id, err)
		}
	}

	err := b.db.Model(b.session).Updates(map[string]any{
		"end_time": b.now(),
		"samples":  b.samples,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	b.log.Info().
		Uint("session", b.session.ID).
		Uint("samples", b.samples).
		Int("vehicles", len(b.order)).
		Msg("Session ended")
	b.session = nil
	return nil
}

func (b *Backend) flushLocked() error {
	if len(b.pending) == 0 {
		return nil
	}
	start := time.Now()
	if err := b.db.CreateInBatches(b.pending, b.batchSize).Error; err != nil {
		b.log.Error().Err(err).Int("count", len(b.pending)).Msg("Failed to insert samples")
		return fmt.Errorf("failed to insert samples: %w", err)
	}
	b.log.Debug().Int("count", len(b.pending)).Dur("took", time.Since(start)).Msg("Flushed samples")
	b.pending = b.pending[:0]
	return nil
}

func wheelJSON(v [core.WheelCount]float64) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func toModel(sessionID uint, s *core.Sample) (model.VehicleSample, error) {
	row := model.VehicleSample{
		Time:      s.Time,
		SessionID: sessionID,
		VehicleID: s.VehicleID,
		Tick:      s.Tick,
		Elevation: s.Position.Z(),
		Heading:   s.Heading,
		Speed:     s.Speed,
		EngineRPM: s.EngineRPM,
		Gear:      s.Gear,
		Roll:      s.Roll,
		Pitch:     s.Pitch,
		Bounce:    s.Bounce,
	}

	var err error
	if row.Position, err = geo.Point(s.Position); err != nil {
		return model.VehicleSample{}, err
	}

	wheels := []struct {
		dst *datatypes.JSON
		src [core.WheelCount]float64
	}{
		{&row.Compression, s.Compression},
		{&row.TireLoad, s.TireLoad},
		{&row.LongForce, s.LongForce},
		{&row.LatForce, s.LatForce},
		{&row.WheelTorque, s.WheelTorque},
	}
	for _, w := range wheels {
		if *w.dst, err = wheelJSON(w.src); err != nil {
			return model.VehicleSample{}, fmt.Errorf("encode wheel data: %w", err)
		}
	}
	return row, nil
}
