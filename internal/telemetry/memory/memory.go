// internal/telemetry/memory/memory.go
package memory

import (
	"sync"
	"time"

	"github.com/trackday/vehsim/internal/config"
	"github.com/trackday/vehsim/pkg/core"
)

// VehicleRecord groups a vehicle with all its samples
type VehicleRecord struct {
	VehicleID string
	Preset    string
	Samples   []core.Sample
}

// Backend keeps a session in memory and exports it to JSON when it ends
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	vehicles map[string]*VehicleRecord
	order    []string // first-seen order, for stable exports

	nextID         uint
	lastExportPath string
	now            func() time.Time
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		vehicles: make(map[string]*VehicleRecord),
		now:      time.Now,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording. A zero session ID is replaced with the next
// local sequence number.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s.ID == 0 {
		b.nextID++
		s.ID = b.nextID
	}
	b.session = s
	b.vehicles = make(map[string]*VehicleRecord)
	b.order = nil
	return nil
}

// RecordSample appends a frame to its vehicle's record
func (b *Backend) RecordSample(s *core.Sample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return core.ErrNoSession
	}
	rec, ok := b.vehicles[s.VehicleID]
	if !ok {
		rec = &VehicleRecord{VehicleID: s.VehicleID, Preset: s.Preset}
		b.vehicles[s.VehicleID] = rec
		b.order = append(b.order, s.VehicleID)
	}
	rec.Samples = append(rec.Samples, *s)
	return nil
}

// EndSession exports the session and clears it
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return core.ErrNoSession
	}
	err := b.exportJSON()
	b.session = nil
	return err
}

// GetExportedFilePath returns the path of the last export, if any.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// Vehicle returns a copy of the record for id in the active session.
func (b *Backend) Vehicle(id string) (VehicleRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.vehicles[id]
	if !ok {
		return VehicleRecord{}, false
	}
	out := *rec
	out.Samples = append([]core.Sample(nil), rec.Samples...)
	return out, true
}
