// pkg/core/vehicle.go
package core

import "github.com/go-gl/mathgl/mgl64"

// Vec3 is the vector type shared by every per-tick structure.
// Vehicle frame: +X right, +Y forward, +Z up.
type Vec3 = mgl64.Vec3

// WheelCount is fixed for every vehicle class handled by the simulation.
const WheelCount = 4

// Wheel indices. Left/right pairs share an axle.
const (
	FL = iota
	FR
	RL
	RR
)

// Gear indices. Forward gears are 1..N.
const (
	GearReverse = -1
	GearNeutral = 0
)

// ControlInput is a raw or smoothed driver input sample.
type ControlInput struct {
	Throttle  float64 // 0..1
	Brake     float64 // 0..1
	Steering  float64 // -1 (left) .. 1 (right)
	Clutch    float64 // 0 engaged .. 1 disengaged
	Handbrake bool
	GearUp    bool
	GearDown  bool
}

// VehicleState is the body-level state of one vehicle.
type VehicleState struct {
	Position     Vec3
	Heading      float64 // radians, 0 = +Y, clockwise positive
	YawRate      float64 // rad/s
	Velocity     Vec3    // world frame, m/s
	Speed        float64 // signed forward speed, m/s
	Acceleration Vec3    // vehicle frame: X lateral, Y longitudinal, Z vertical

	SteeringAngle float64 // radians at the road wheel, before Ackermann split
	Throttle      float64
	Brake         float64
	Clutch        float64

	EngineRPM  float64
	Gear       int // 0 neutral, <0 reverse
	Shifting   bool
	ShiftTimer float64

	// TireForce is the summed tire force in the vehicle frame from the last
	// force application (X lateral, Y longitudinal).
	TireForce      Vec3
	AligningMoment float64
}

// WheelState is the kinematic state of one wheel.
type WheelState struct {
	Position        Vec3    // world frame
	LocalPosition   Vec3    // vehicle frame
	RotationAngle   float64 // radians, [0, 2π)
	AngularVelocity float64 // rad/s
	SteerAngle      float64 // radians
	LinearVelocity  Vec3    // vehicle frame, m/s
	DriveTorque     float64 // N·m applied last tick
}

// SuspensionState is the per-wheel suspension state.
type SuspensionState struct {
	Compression         float64 // m, positive = compressed
	CompressionVelocity float64 // m/s
	SpringForce         float64 // N
	DamperForce         float64 // N
	TotalForce          float64 // N, spring + damper + anti-roll
	WheelOffset         Vec3
	InAir               bool // travel within 1% of MaxCompression; reported only
}

// TireState is recomputed from scratch every tick.
type TireState struct {
	LongSlip       float64
	LatSlip        float64 // radians
	LongForce      float64 // N, wheel frame
	LatForce       float64 // N, wheel frame
	AligningMoment float64 // N·m
	Load           float64 // N
	NormalizedLoad float64
}

// PoseState is the visual body attitude layered over the vehicle state.
type PoseState struct {
	Roll           float64 // radians
	Pitch          float64 // radians
	Bounce         float64 // m
	RollVelocity   float64
	PitchVelocity  float64
	BounceVelocity float64

	BodyPosition  Vec3
	BodyRotation  Vec3 // roll, pitch, heading
	BodyTransform mgl64.Mat4
}

// WheelTorques is the drive torque per wheel, indexed FL, FR, RL, RR.
type WheelTorques [WheelCount]float64

// Snapshot is a value copy of everything a vehicle exposes after a tick.
type Snapshot struct {
	Vehicle    VehicleState
	Wheels     [WheelCount]WheelState
	Suspension [WheelCount]SuspensionState
	Tires      [WheelCount]TireState
	Pose       PoseState
	Torques    WheelTorques
}
