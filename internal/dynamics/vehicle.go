// Package dynamics is the per-vehicle simulation core. A tick is a pure
// function of the config, the previous state, the input and dt, and never
// blocks or logs.
package dynamics

import (
	"fmt"

	"github.com/trackday/vehsim/internal/vehicle"
	"github.com/trackday/vehsim/pkg/core"
)

// Vehicle owns every per-tick state structure of one simulated car and runs
// the systems in their fixed dependency order.
type Vehicle struct {
	cfg *vehicle.Config

	smoother   *InputSmoother
	physics    *PhysicsSystem
	wheelSys   *WheelSystem
	drivetrain *DrivetrainSystem
	suspension *SuspensionSystem
	tireSys    *TireSystem
	poseSys    *PoseSystem

	input      core.ControlInput
	state      core.VehicleState
	wheels     [core.WheelCount]core.WheelState
	suspStates [core.WheelCount]core.SuspensionState
	tires      [core.WheelCount]core.TireState
	pose       core.PoseState
	torques    core.WheelTorques
}

// NewVehicle builds a vehicle at its spawn point. cfg must come from
// vehicle.Finalize; it is shared, never copied or mutated.
func NewVehicle(cfg *vehicle.Config) (*Vehicle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", vehicle.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	v := &Vehicle{
		cfg:        cfg,
		smoother:   NewInputSmoother(cfg.Controls.Smoothing),
		physics:    NewPhysicsSystem(cfg),
		wheelSys:   NewWheelSystem(cfg),
		drivetrain: NewDrivetrainSystem(cfg),
		suspension: NewSuspensionSystem(cfg),
		tireSys:    NewTireSystem(cfg),
		poseSys:    NewPoseSystem(cfg),
	}
	v.Reset()
	return v, nil
}

// Config returns the shared configuration.
func (v *Vehicle) Config() *vehicle.Config { return v.cfg }

// Reset respawns the vehicle in first gear with settled suspension.
func (v *Vehicle) Reset() {
	v.input = core.ControlInput{}
	v.smoother.Reset()
	v.torques = core.WheelTorques{}
	v.tires = [core.WheelCount]core.TireState{}
	v.wheels = [core.WheelCount]core.WheelState{}
	v.state = core.VehicleState{
		Position:  v.cfg.Spawn.Position,
		Heading:   wrapAngle(v.cfg.Spawn.Heading),
		EngineRPM: v.cfg.Engine.IdleRPM,
		Gear:      1,
	}
	v.wheelSys.Place(&v.state, &v.wheels)
	v.suspension.Settle(&v.suspStates)
	v.poseSys.Settle(&v.state, &v.suspStates, &v.pose)
}

// SetInput stores the raw input used by Advance.
func (v *Vehicle) SetInput(in core.ControlInput) {
	v.input = in
}

// Input returns the last raw input.
func (v *Vehicle) Input() core.ControlInput {
	return v.input
}

// Advance steps with the stored input.
func (v *Vehicle) Advance(dt float64) {
	v.Step(dt, v.input)
}

// Step runs one tick. dt <= 0 leaves every state untouched.
func (v *Vehicle) Step(dt float64, in core.ControlInput) {
	v.input = in
	if dt <= 0 {
		return
	}
	smoothed := v.smoother.Update(dt, in)

	v.physics.Update(dt, smoothed, &v.state)
	v.wheelSys.Update(dt, &v.state, v.torques, &v.wheels)
	v.drivetrain.Update(dt, &v.state, smoothed, &v.wheels, &v.torques)
	v.suspension.Update(dt, &v.state, &v.wheels, &v.suspStates)
	v.tireSys.Update(dt, &v.state, &v.wheels, &v.suspStates, &v.tires)
	v.poseSys.Update(dt, &v.state, &v.suspStates, &v.pose)
	ApplyTireForces(&v.wheels, &v.tires, &v.state)
}

// State returns a copy of the body state.
func (v *Vehicle) State() core.VehicleState {
	return v.state
}

// Snapshot copies everything the vehicle exposes.
func (v *Vehicle) Snapshot() core.Snapshot {
	return core.Snapshot{
		Vehicle:    v.state,
		Wheels:     v.wheels,
		Suspension: v.suspStates,
		Tires:      v.tires,
		Pose:       v.pose,
		Torques:    v.torques,
	}
}
