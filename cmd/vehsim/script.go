package main

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/trackday/vehsim/internal/vehicle"
	"github.com/trackday/vehsim/pkg/core"
)

// Script produces the raw driver input for the vehicle at index idx after t
// seconds of simulated time.
type Script func(t float64, idx int) core.ControlInput

var scripts = map[string]Script{
	"launch": func(t float64, _ int) core.ControlInput {
		return core.ControlInput{Throttle: 1}
	},
	"brake-test": func(t float64, _ int) core.ControlInput {
		if t < 6 {
			return core.ControlInput{Throttle: 1}
		}
		return core.ControlInput{Brake: 1}
	},
	"circle": func(t float64, idx int) core.ControlInput {
		dir := 1.0
		if idx%2 == 1 {
			dir = -1
		}
		return core.ControlInput{Throttle: 0.5, Steering: 0.6 * dir}
	},
	"slalom": func(t float64, idx int) core.ControlInput {
		// 4 s period, cars offset by a quarter period each
		phase := float64(idx) * math.Pi / 2
		return core.ControlInput{
			Throttle: 0.7,
			Steering: 0.8 * math.Sin(2*math.Pi*t/4+phase),
		}
	},
}

func scriptNames() []string {
	names := lo.Keys(scripts)
	sort.Strings(names)
	return names
}

func scriptByName(name string) (Script, error) {
	s, ok := scripts[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown script %q (want one of %s)", name, strings.Join(scriptNames(), ", "))
	}
	return s, nil
}

type spawnSpec struct {
	id     string
	preset string
}

// parseVehicles reads "id=preset" pairs. A bare preset gets an id derived
// from its position.
func parseVehicles(in []string) ([]spawnSpec, error) {
	if len(in) == 0 {
		in = []string{vehicle.PresetSportsCar}
	}
	specs := make([]spawnSpec, 0, len(in))
	seen := map[string]bool{}
	for i, raw := range in {
		raw = strings.TrimSpace(raw)
		id, preset, ok := strings.Cut(raw, "=")
		if !ok {
			id, preset = fmt.Sprintf("car-%d", i+1), raw
		}
		id, preset = strings.TrimSpace(id), strings.TrimSpace(preset)
		if id == "" || preset == "" {
			return nil, fmt.Errorf("invalid vehicle %q, want id=preset", raw)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate vehicle id %q", id)
		}
		seen[id] = true
		specs = append(specs, spawnSpec{id: id, preset: preset})
	}
	return specs, nil
}
