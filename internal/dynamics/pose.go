package dynamics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/trackday/vehsim/internal/vehicle"
	"github.com/trackday/vehsim/pkg/core"
)

const (
	antiRollReference = 10000.0
	maxAntiRollEffect = 0.3
)

// PoseSystem drives body roll, pitch and bounce toward targets derived from
// acceleration and suspension asymmetry through a damped spring each.
type PoseSystem struct {
	cfg           *vehicle.Config
	rollInertia   float64
	pitchInertia  float64
	bounceInertia float64
	antiRoll      float64
}

// NewPoseSystem creates a body pose system for cfg.
func NewPoseSystem(cfg *vehicle.Config) *PoseSystem {
	m := cfg.Chassis.Mass
	w, l := cfg.Chassis.TrackWidth, cfg.Chassis.Wheelbase
	return &PoseSystem{
		cfg:           cfg,
		rollInertia:   m * w * w / 12,
		pitchInertia:  m * l * l / 12,
		bounceInertia: m,
		antiRoll:      math.Min(maxAntiRollEffect, (cfg.AntiRoll.Front+cfg.AntiRoll.Rear)/antiRollReference),
	}
}

// Targets returns the attitude the body settles to for the current
// acceleration and suspension state.
func (p *PoseSystem) Targets(st *core.VehicleState, susp *[core.WheelCount]core.SuspensionState) (roll, pitch, bounce float64) {
	pc := p.cfg.Pose
	c := func(i int) float64 { return susp[i].Compression }

	left := (c(core.FL) + c(core.RL)) / 2
	right := (c(core.FR) + c(core.RR)) / 2
	roll = math.Atan2(st.Acceleration.X(), vehicle.Gravity) * (1 - p.antiRoll)
	roll += math.Atan2((left-right)*pc.RollSuspensionWeight, p.cfg.Chassis.TrackWidth)
	roll = clamp(roll, -pc.MaxRoll, pc.MaxRoll)

	front := (c(core.FL) + c(core.FR)) / 2
	rear := (c(core.RL) + c(core.RR)) / 2
	pitch = -math.Atan2(st.Acceleration.Y(), vehicle.Gravity)
	pitch += math.Atan2((front-rear)*pc.PitchSuspensionWeight, p.cfg.Chassis.Wheelbase)
	pitch = clamp(pitch, -pc.MaxPitch, pc.MaxPitch)

	bounce = (front + rear) / 2 * pc.BounceScale
	return roll, pitch, bounce
}

// Settle snaps the pose to its targets with zero velocity.
func (p *PoseSystem) Settle(st *core.VehicleState, susp *[core.WheelCount]core.SuspensionState, pose *core.PoseState) {
	roll, pitch, bounce := p.Targets(st, susp)
	*pose = core.PoseState{Roll: roll, Pitch: pitch, Bounce: bounce}
	p.updateTransform(st, pose)
}

// Update moves roll, pitch and bounce toward their targets and rebuilds the body transform.
func (p *PoseSystem) Update(dt float64, st *core.VehicleState, susp *[core.WheelCount]core.SuspensionState, pose *core.PoseState) {
	if dt <= 0 {
		return
	}
	pc := p.cfg.Pose
	roll, pitch, bounce := p.Targets(st, susp)

	pose.Roll, pose.RollVelocity = p.spring(dt, pose.Roll, pose.RollVelocity, roll,
		pc.RollStiffness, pc.RollDamping, p.rollInertia)
	pose.Pitch, pose.PitchVelocity = p.spring(dt, pose.Pitch, pose.PitchVelocity, pitch,
		pc.PitchStiffness, pc.PitchDamping, p.pitchInertia)
	pose.Bounce, pose.BounceVelocity = p.spring(dt, pose.Bounce, pose.BounceVelocity, bounce,
		pc.BounceStiffness, pc.BounceDamping, p.bounceInertia)

	pose.Roll, pose.RollVelocity = limit(pose.Roll, pose.RollVelocity, pc.MaxRoll)
	pose.Pitch, pose.PitchVelocity = limit(pose.Pitch, pose.PitchVelocity, pc.MaxPitch)

	p.updateTransform(st, pose)
}

func (p *PoseSystem) spring(dt, value, velocity, target, stiffness, damping, inertia float64) (float64, float64) {
	accel := ((target-value)*stiffness - velocity*damping) / inertia
	velocity += accel * dt
	value += velocity * dt
	velocity *= p.cfg.Pose.VelocityDecay
	return value, velocity
}

// limit clamps an angle and drops any velocity pushing further out.
func limit(value, velocity, bound float64) (float64, float64) {
	switch {
	case value > bound:
		return bound, math.Min(velocity, 0)
	case value < -bound:
		return -bound, math.Max(velocity, 0)
	default:
		return value, velocity
	}
}

func (p *PoseSystem) updateTransform(st *core.VehicleState, pose *core.PoseState) {
	pose.BodyPosition = st.Position.Sub(core.Vec3{0, 0, pose.Bounce})
	pose.BodyRotation = core.Vec3{pose.Roll, pose.Pitch, st.Heading}
	pose.BodyTransform = mgl64.Translate3D(pose.BodyPosition.Elem()).
		Mul4(mgl64.HomogRotate3DZ(-st.Heading)).
		Mul4(mgl64.HomogRotate3DX(pose.Pitch)).
		Mul4(mgl64.HomogRotate3DY(pose.Roll))
}
