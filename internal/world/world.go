// Package world runs many independent vehicles side by side. Each vehicle's
// tick is sequential; different vehicles share nothing but their read-only
// preset configs, so a world tick steps them in parallel.
package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/trackday/vehsim/internal/cache"
	"github.com/trackday/vehsim/internal/config"
	"github.com/trackday/vehsim/internal/dynamics"
	"github.com/trackday/vehsim/internal/logging"
	"github.com/trackday/vehsim/internal/telemetry"
	"github.com/trackday/vehsim/pkg/core"
)

var (
	ErrVehicleExists   = errors.New("vehicle already exists")
	ErrVehicleNotFound = errors.New("vehicle not found")
)

// Dependencies holds the collaborators of a world.
type Dependencies struct {
	Presets *cache.PresetCache
	Backend telemetry.Backend // nil disables recording
	Logger  *slog.Logger
}

// Options tune stepping and recording.
type Options struct {
	TickRate    float64
	MaxDt       float64 // dt above this is clamped; 0 disables the clamp
	Workers     int     // 0 = GOMAXPROCS
	SampleEvery int     // record every Nth tick; 0 disables sampling
}

// OptionsFromConfig maps application config onto world options.
func OptionsFromConfig(sim config.SimConfig, tel config.TelemetryConfig) Options {
	return Options{
		TickRate:    float64(sim.TickRate),
		MaxDt:       sim.MaxDt,
		Workers:     sim.Workers,
		SampleEvery: tel.SampleEvery,
	}
}

type entry struct {
	id     string
	preset string
	v      *dynamics.Vehicle
}

// Stats is a point-in-time view of the world for status reporting.
type Stats struct {
	Tick         uint64        `json:"tick"`
	SimTime      time.Duration `json:"simTime"`
	Vehicles     int           `json:"vehicles"`
	Samples      int           `json:"samples"`
	RecordErrors int           `json:"recordErrors"`
	LastTick     time.Duration `json:"lastTick"`
	Recording    bool          `json:"recording"`
}

// World holds id-keyed vehicles and steps them together.
type World struct {
	deps Dependencies
	opts Options
	log  *slog.Logger

	mu       sync.RWMutex
	vehicles map[string]*entry
	order    []string // sorted ids

	tick     atomic.Uint64
	lastTick atomic.Int64
	elapsed  float64
	start    time.Time
	session  *core.Session

	samples      cache.SafeCounter
	recordErrors cache.SafeCounter

	metrics *metrics
}

// New creates an empty world.
func New(deps Dependencies, opts Options) (*World, error) {
	if deps.Presets == nil {
		return nil, errors.New("world requires a preset cache")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &World{
		deps:     deps,
		opts:     opts,
		log:      logger.With("component", "world"),
		vehicles: make(map[string]*entry),
		start:    time.Now(),
	}

	m, err := newMetrics(w)
	if err != nil {
		return nil, err
	}
	w.metrics = m
	return w, nil
}

// SetLogger swaps the logger, e.g. after logging is rebuilt with a tick
// context provider.
func (w *World) SetLogger(l *slog.Logger) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.log = l.With("component", "world")
}

// TickCounter exposes the tick counter for log context providers.
func (w *World) TickCounter() *atomic.Uint64 {
	return &w.tick
}

// Tick returns the number of completed ticks.
func (w *World) Tick() uint64 {
	return w.tick.Load()
}

// Len returns the number of vehicles.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.vehicles)
}

// IDs returns the vehicle ids in sorted order.
func (w *World) IDs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.order...)
}

// Spawn creates a vehicle from a cached preset.
func (w *World) Spawn(id, presetID string) error {
	cfg, err := w.deps.Presets.Get(presetID)
	if err != nil {
		return err
	}
	v, err := dynamics.NewVehicle(cfg)
	if err != nil {
		return fmt.Errorf("spawn %q: %w", id, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.vehicles[id]; ok {
		return fmt.Errorf("%w: %q", ErrVehicleExists, id)
	}
	w.vehicles[id] = &entry{id: id, preset: presetID, v: v}
	w.order = append(w.order, id)
	sort.Strings(w.order)

	w.log.Info("Vehicle spawned", "vehicle", id, "preset", presetID)
	return nil
}

// Remove deletes a vehicle.
func (w *World) Remove(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.vehicles[id]; !ok {
		return fmt.Errorf("%w: %q", ErrVehicleNotFound, id)
	}
	delete(w.vehicles, id)
	w.order = lo.Without(w.order, id)

	w.log.Info("Vehicle removed", "vehicle", id)
	return nil
}

// SetInput routes a raw driver input to one vehicle. It is used from the
// next tick on.
func (w *World) SetInput(id string, in core.ControlInput) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.vehicles[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrVehicleNotFound, id)
	}
	e.v.SetInput(in)
	return nil
}

// Reset respawns one vehicle at its preset spawn point.
func (w *World) Reset(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.vehicles[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrVehicleNotFound, id)
	}
	e.v.Reset()
	return nil
}

// Snapshot returns a copy of one vehicle's exposed state.
func (w *World) Snapshot(id string) (core.Snapshot, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.vehicles[id]
	if !ok {
		return core.Snapshot{}, fmt.Errorf("%w: %q", ErrVehicleNotFound, id)
	}
	return e.v.Snapshot(), nil
}

// Snapshots copies the state of every vehicle.
func (w *World) Snapshots() map[string]core.Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return lo.MapValues(w.vehicles, func(e *entry, _ string) core.Snapshot {
		return e.v.Snapshot()
	})
}

// Step advances every vehicle by dt using its stored input. dt is clamped to
// MaxDt. A cancelled context is reported before anything is stepped.
func (w *World) Step(ctx context.Context, dt float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.opts.MaxDt > 0 && dt > w.opts.MaxDt {
		w.log.Debug("Clamping dt", "dt", dt, "maxDt", w.opts.MaxDt)
		dt = w.opts.MaxDt
	}

	started := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(w.opts.Workers)
	for _, id := range w.order {
		e := w.vehicles[id]
		g.Go(func() error {
			e.v.Advance(dt)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	tick := w.tick.Add(1)
	if dt > 0 {
		w.elapsed += dt
	}
	w.recordLocked(ctx, tick)

	took := time.Since(started)
	w.lastTick.Store(int64(took))
	w.metrics.tickDuration.Record(ctx, took.Seconds())
	w.metrics.ticks.Add(ctx, 1)

	if dt > 0 && took.Seconds() > dt {
		w.log.Debug("Slow tick", "took", took, "dt", dt, "vehicles", len(w.order))
	}
	return nil
}

// simTime converts accumulated simulated seconds to wall-clock time since
// the session started.
func (w *World) simTime() time.Time {
	return w.start.Add(time.Duration(w.elapsed * float64(time.Second)))
}

func (w *World) recordLocked(ctx context.Context, tick uint64) {
	if w.session == nil || w.deps.Backend == nil || w.opts.SampleEvery <= 0 {
		return
	}
	if tick%uint64(w.opts.SampleEvery) != 0 {
		return
	}

	at := w.simTime()
	for _, id := range w.order {
		e := w.vehicles[id]
		sample := core.NewSample(id, e.preset, tick, at, e.v.Snapshot())
		if err := w.deps.Backend.RecordSample(&sample); err != nil {
			w.recordErrors.Inc()
			if n := w.recordErrors.Value(); n == 1 || n%100 == 0 {
				w.log.WarnContext(logging.WithVehicle(ctx, id), "Failed to record sample", "error", err, "failures", n)
			}
			continue
		}
		w.samples.Inc()
	}
}

// StartRecording opens a telemetry session. Without a backend it is a no-op
// and returns a nil session.
func (w *World) StartRecording(name string) (*core.Session, error) {
	if w.deps.Backend == nil {
		return nil, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session != nil {
		return nil, fmt.Errorf("session %d is already recording", w.session.ID)
	}

	s := &core.Session{
		Name:      name,
		StartTime: w.simTime(),
		TickRate:  w.opts.TickRate,
	}
	if err := w.deps.Backend.StartSession(s); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	w.session = s
	w.samples.Set(0)
	w.recordErrors.Set(0)

	w.log.Info("Recording started", "session", s.ID, "name", name)
	return s, nil
}

// StopRecording closes the current telemetry session.
func (w *World) StopRecording() error {
	if w.deps.Backend == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == nil {
		return core.ErrNoSession
	}
	s := w.session
	w.session = nil

	if err := w.deps.Backend.EndSession(); err != nil {
		return fmt.Errorf("failed to end session %d: %w", s.ID, err)
	}
	w.log.Info("Recording stopped",
		"session", s.ID,
		"samples", w.samples.Value(),
		"errors", w.recordErrors.Value(),
	)
	return nil
}

// Stats reports counters for status output.
func (w *World) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Stats{
		Tick:         w.tick.Load(),
		SimTime:      time.Duration(w.elapsed * float64(time.Second)),
		Vehicles:     len(w.vehicles),
		Samples:      w.samples.Value(),
		RecordErrors: w.recordErrors.Value(),
		LastTick:     time.Duration(w.lastTick.Load()),
		Recording:    w.session != nil,
	}
}
