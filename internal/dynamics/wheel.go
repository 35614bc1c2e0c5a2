package dynamics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/trackday/vehsim/internal/vehicle"
	"github.com/trackday/vehsim/pkg/core"
)

// WheelSystem places the wheels, splits the steering angle and derives spin.
type WheelSystem struct {
	cfg *vehicle.Config
}

// NewWheelSystem creates a wheel system for cfg.
func NewWheelSystem(cfg *vehicle.Config) *WheelSystem {
	return &WheelSystem{cfg: cfg}
}

// Ackermann splits a road-wheel angle (positive = right) into left and right
// angles so both front wheels track circles around a common centre.
func Ackermann(delta, wheelbase, track float64) (left, right float64) {
	if delta == 0 || wheelbase <= 0 {
		return delta, delta
	}
	r := wheelbase / math.Tan(math.Abs(delta))
	half := track / 2
	if r <= half {
		return delta, delta
	}
	inner := math.Atan(wheelbase / (r - half))
	outer := math.Atan(wheelbase / (r + half))
	if delta > 0 {
		return outer, inner
	}
	return -inner, -outer
}

// Place refreshes position, steer angle and local velocity without touching
// spin. Used at spawn and by Update.
func (w *WheelSystem) Place(st *core.VehicleState, wheels *[core.WheelCount]core.WheelState) {
	left, right := Ackermann(st.SteeringAngle, w.cfg.Chassis.Wheelbase, w.cfg.Chassis.TrackWidth)
	rot := mgl64.Rotate3DZ(-st.Heading)
	for i := range wheels {
		wc := w.cfg.Wheels[i]
		ws := &wheels[i]

		ws.SteerAngle = 0
		if wc.Steerable {
			if i == core.FL || i == core.RL {
				ws.SteerAngle = left
			} else {
				ws.SteerAngle = right
			}
		}

		ws.LocalPosition = wc.Position
		ws.Position = st.Position.Add(rot.Mul3x1(wc.Position))
		ws.LinearVelocity = core.Vec3{
			st.YawRate * wc.Position.Y(),
			st.Speed - st.YawRate*wc.Position.X(),
			0,
		}
	}
}

// Update advances wheel spin from the drive torque applied on the previous
// tick. Driven wheels turn slightly faster than the ground so the tire
// system sees the slip the torque would sustain.
func (w *WheelSystem) Update(dt float64, st *core.VehicleState, torques core.WheelTorques, wheels *[core.WheelCount]core.WheelState) {
	if dt <= 0 {
		return
	}
	w.Place(st, wheels)
	for i := range wheels {
		wc := w.cfg.Wheels[i]
		ws := &wheels[i]

		fwd, _ := wheelFrame(ws.LinearVelocity, ws.SteerAngle)
		driveSlip := clamp(torques[i]/(wc.Radius*w.cfg.Tires[i].LongStiffness), -1, 1)
		ws.AngularVelocity = (fwd + driveSlip*math.Max(math.Abs(fwd), SlipSpeedFloor)) / wc.Radius
		ws.RotationAngle = wrapAngle(ws.RotationAngle + ws.AngularVelocity*dt)
		ws.DriveTorque = torques[i]
	}
}

// wheelFrame projects a vehicle-frame velocity onto a wheel steered by delta.
func wheelFrame(v core.Vec3, delta float64) (forward, lateral float64) {
	s, c := math.Sincos(delta)
	forward = v.X()*s + v.Y()*c
	lateral = v.X()*c - v.Y()*s
	return forward, lateral
}
