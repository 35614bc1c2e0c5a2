package dynamics

import (
	"math"

	"github.com/trackday/vehsim/internal/vehicle"
	"github.com/trackday/vehsim/pkg/core"
)

const (
	handbrakeFactor  = 0.8
	coastFactor      = 0.3
	reverseSpeedCap  = 0.3
	standstillSpeed  = 0.1
	minTurnSpeed     = 0.5
	minTurnRateScale = 0.3
)

// PhysicsSystem integrates the body along its heading. Longitudinal motion is
// kinematic (throttle/brake targets) plus last tick's tire force and drag.
type PhysicsSystem struct {
	cfg *vehicle.Config
}

// NewPhysicsSystem creates the kinematic body integrator for cfg.
func NewPhysicsSystem(cfg *vehicle.Config) *PhysicsSystem {
	return &PhysicsSystem{cfg: cfg}
}

// SteeringFactor returns the speed-sensitive steering scale at speed (m/s).
func (p *PhysicsSystem) SteeringFactor(speed float64) float64 {
	return interpolate(p.cfg.Controls.SteeringSpeedCurve, math.Abs(speed)*3.6)
}

// Update integrates speed, heading and position over dt.
func (p *PhysicsSystem) Update(dt float64, in core.ControlInput, st *core.VehicleState) {
	if dt <= 0 {
		return
	}
	m := p.cfg.Motion
	mass := p.cfg.Chassis.Mass
	v0 := st.Speed

	st.Throttle = in.Throttle
	st.Brake = in.Brake
	st.SteeringAngle = in.Steering * p.cfg.Controls.MaxSteerAngle * p.SteeringFactor(v0)

	var drive, resist float64
	switch {
	case in.Throttle > 0:
		drive = p.driveDirection(st.Gear) * m.Acceleration * in.Throttle
	case in.Brake > 0:
		resist = m.BrakeDeceleration * in.Brake
	case in.Handbrake:
		resist = handbrakeFactor * m.BrakeDeceleration
	default:
		resist = coastFactor * m.Deceleration
	}

	a := p.cfg.Aero
	drag := 0.5 * a.AirDensity * a.DragCoefficient * a.FrontalArea * v0 * math.Abs(v0) / mass
	external := st.TireForce.Y() / mass

	v := v0 + (drive+external-drag)*dt
	// Resistive terms stop the car but never reverse it.
	if v > 0 {
		v = math.Max(0, v-resist*dt)
	} else if v < 0 {
		v = math.Min(0, v+resist*dt)
	}
	v = clamp(v, -reverseSpeedCap*m.MaxSpeed, m.MaxSpeed)
	if math.Abs(v) < standstillSpeed && in.Throttle == 0 {
		v = 0
	}

	st.YawRate = 0
	if math.Abs(v) >= minTurnSpeed {
		scale := minTurnRateScale
		if m.SpeedForMinTurn > 0 {
			scale = math.Max(minTurnRateScale, 1-math.Abs(v)/m.SpeedForMinTurn)
		}
		st.YawRate = m.TurnSpeed * in.Steering * scale * sign(v)
	}
	st.Heading = wrapAngle(st.Heading + st.YawRate*dt)

	forward := core.Vec3{math.Sin(st.Heading), math.Cos(st.Heading), 0}
	st.Velocity = forward.Mul(v)
	st.Position = st.Position.Add(st.Velocity.Mul(dt))
	st.Speed = v
	st.Acceleration = core.Vec3{
		v*st.YawRate + st.TireForce.X()/mass,
		(v - v0) / dt,
		0,
	}
}

// driveDirection is the sign throttle pushes the car in for a gear. Neutral
// only revs the engine.
func (p *PhysicsSystem) driveDirection(gear int) float64 {
	switch {
	case gear < 0:
		return -1
	case gear == core.GearNeutral:
		return 0
	default:
		return 1
	}
}
