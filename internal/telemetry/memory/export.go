// internal/telemetry/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/trackday/vehsim/internal/geo"
	"github.com/trackday/vehsim/pkg/core"
)

// SessionExport is the root JSON structure
type SessionExport struct {
	SessionID uint            `json:"sessionId"`
	Name      string          `json:"name"`
	StartTime time.Time       `json:"startTime"`
	EndTime   time.Time       `json:"endTime"`
	TickRate  float64         `json:"tickRate"`
	Vehicles  []VehicleExport `json:"vehicles"`
}

// VehicleExport is one vehicle's recorded run
type VehicleExport struct {
	ID         string        `json:"id"`
	Preset     string        `json:"preset"`
	FirstTick  uint64        `json:"firstTick"`
	LastTick   uint64        `json:"lastTick"`
	TopSpeed   float64       `json:"topSpeed"`
	Distance   float64       `json:"distance"`
	Trajectory string        `json:"trajectory,omitempty"` // WKT LineString Z
	Bounds     *geo.Bounds   `json:"bounds,omitempty"`
	Samples    []core.Sample `json:"samples"`
}

// exportJSON writes the session to a (gzipped) JSON file
func (b *Backend) exportJSON() error {
	export, err := b.buildExport()
	if err != nil {
		return err
	}

	// Build filename
	name := strings.ReplaceAll(b.session.Name, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	if name == "" {
		name = "session"
	}
	timestamp := b.session.StartTime.Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s.json", name, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() (SessionExport, error) {
	export := SessionExport{
		SessionID: b.session.ID,
		Name:      b.session.Name,
		StartTime: b.session.StartTime,
		EndTime:   b.now(),
		TickRate:  b.session.TickRate,
		Vehicles:  make([]VehicleExport, 0, len(b.order)),
	}

	for _, id := range b.order {
		rec := b.vehicles[id]
		first, last := rec.Samples[0], rec.Samples[len(rec.Samples)-1]
		ve := VehicleExport{
			ID:        rec.VehicleID,
			Preset:    rec.Preset,
			FirstTick: first.Tick,
			LastTick:  last.Tick,
			TopSpeed:  lo.MaxBy(rec.Samples, func(a, b core.Sample) bool { return a.Speed > b.Speed }).Speed,
			Samples:   rec.Samples,
		}

		points := lo.Map(rec.Samples, func(s core.Sample, _ int) core.Vec3 { return s.Position })
		ls, err := geo.Trajectory(points)
		switch {
		case errors.Is(err, geo.ErrTooFewPoints):
			// stationary vehicles have no path
		case err != nil:
			return SessionExport{}, fmt.Errorf("vehicle %s trajectory: %w", id, err)
		default:
			ve.Trajectory = ls.AsText()
			ve.Distance = geo.Distance(ls)
			if bounds, ok := geo.PathBounds(ls); ok {
				ve.Bounds = &bounds
			}
		}

		export.Vehicles = append(export.Vehicles, ve)
	}

	return export, nil
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
