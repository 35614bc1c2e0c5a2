package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/trackday/vehsim/internal/vehicle"
)

var ErrPresetNotFound = errors.New("preset not found")

// PresetCache holds one finalized config per preset id. Configs are shared
// read-only by every vehicle spawned from them, so spawning never re-reads
// or re-validates a preset.
type PresetCache struct {
	mu      sync.RWMutex
	presets map[string]*vehicle.Config
}

func NewPresetCache() *PresetCache {
	return &PresetCache{
		presets: make(map[string]*vehicle.Config),
	}
}

func (c *PresetCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presets = make(map[string]*vehicle.Config)
}

// Get returns the shared config for id.
func (c *PresetCache) Get(id string) (*vehicle.Config, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cfg, ok := c.presets[id]; ok {
		return cfg, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrPresetNotFound, id)
}

// Put stores an already finalized config.
func (c *PresetCache) Put(id string, cfg *vehicle.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presets[id] = cfg
}

// Add finalizes raw and stores it under id.
func (c *PresetCache) Add(id string, raw vehicle.Config) error {
	cfg, err := vehicle.Finalize(raw)
	if err != nil {
		return fmt.Errorf("preset %q: %w", id, err)
	}
	c.Put(id, cfg)
	return nil
}

// LoadBuiltins registers the presets compiled into the binary.
func (c *PresetCache) LoadBuiltins() error {
	for id, raw := range vehicle.Builtin() {
		if err := c.Add(id, raw); err != nil {
			return err
		}
	}
	return nil
}

// LoadDir loads every *.json preset in dir, keyed by file name without the
// extension. Files override presets already cached under the same id.
func (c *PresetCache) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read presets dir: %w", err)
	}
	var errs []error
	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		cfg, err := vehicle.LoadPreset(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, fmt.Errorf("preset %q: %w", id, err))
			continue
		}
		c.Put(id, cfg)
		loaded++
	}
	return loaded, errors.Join(errs...)
}

// IDs returns the cached preset ids in sorted order.
func (c *PresetCache) IDs() []string {
	c.mu.RLock()
	ids := lo.Keys(c.presets)
	c.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}

func (c *SafeCounter) Add(n int) {
	c.mu.Lock()
	c.v += n
	c.mu.Unlock()
}
