// pkg/core/session.go
package core

import (
	"errors"
	"time"
)

// ErrNoSession is returned by recorders when a sample arrives outside a session.
var ErrNoSession = errors.New("no active session")

// Session represents one recorded simulation run.
type Session struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"startTime"`
	TickRate  float64   `json:"tickRate"`
}

// Sample is one recorded frame of a single vehicle.
type Sample struct {
	VehicleID string    `json:"vehicleId"`
	Preset    string    `json:"preset"`
	Tick      uint64    `json:"tick"`
	Time      time.Time `json:"time"`

	Position  Vec3    `json:"position"`
	Heading   float64 `json:"heading"`
	Speed     float64 `json:"speed"`
	EngineRPM float64 `json:"engineRpm"`
	Gear      int     `json:"gear"`

	Roll   float64 `json:"roll"`
	Pitch  float64 `json:"pitch"`
	Bounce float64 `json:"bounce"`

	Compression [WheelCount]float64 `json:"compression"`
	TireLoad    [WheelCount]float64 `json:"tireLoad"`
	LongForce   [WheelCount]float64 `json:"longForce"`
	LatForce    [WheelCount]float64 `json:"latForce"`
	WheelTorque [WheelCount]float64 `json:"wheelTorque"`
}

// NewSample flattens a vehicle snapshot into a telemetry frame.
func NewSample(vehicleID, preset string, tick uint64, t time.Time, s Snapshot) Sample {
	out := Sample{
		VehicleID: vehicleID,
		Preset:    preset,
		Tick:      tick,
		Time:      t,
		Position:  s.Vehicle.Position,
		Heading:   s.Vehicle.Heading,
		Speed:     s.Vehicle.Speed,
		EngineRPM: s.Vehicle.EngineRPM,
		Gear:      s.Vehicle.Gear,
		Roll:      s.Pose.Roll,
		Pitch:     s.Pose.Pitch,
		Bounce:    s.Pose.Bounce,
	}
	for i := 0; i < WheelCount; i++ {
		out.Compression[i] = s.Suspension[i].Compression
		out.TireLoad[i] = s.Tires[i].Load
		out.LongForce[i] = s.Tires[i].LongForce
		out.LatForce[i] = s.Tires[i].LatForce
		out.WheelTorque[i] = s.Torques[i]
	}
	return out
}
