package dynamics

import (
	"math"

	"github.com/trackday/vehsim/internal/vehicle"
	"github.com/trackday/vehsim/pkg/core"
)

// InputSmoother rate-limits raw driver input per channel. Moving away from
// zero uses the rise rate, moving back toward zero the fall rate.
type InputSmoother struct {
	rates   vehicle.Smoothing
	current core.ControlInput
}

// NewInputSmoother creates a smoother starting from zero input.
func NewInputSmoother(rates vehicle.Smoothing) *InputSmoother {
	return &InputSmoother{rates: rates}
}

// Current returns the last smoothed sample.
func (s *InputSmoother) Current() core.ControlInput {
	return s.current
}

// Reset drops back to zero input.
func (s *InputSmoother) Reset() {
	s.current = core.ControlInput{}
}

// Update advances the smoothed values toward raw and returns them.
func (s *InputSmoother) Update(dt float64, raw core.ControlInput) core.ControlInput {
	if dt <= 0 {
		return s.current
	}
	r := s.rates
	c := &s.current
	c.Throttle = smoothChannel(c.Throttle, clamp(raw.Throttle, 0, 1), r.ThrottleRise, r.ThrottleFall, dt)
	c.Brake = smoothChannel(c.Brake, clamp(raw.Brake, 0, 1), r.BrakeRise, r.BrakeFall, dt)
	c.Steering = smoothChannel(c.Steering, clamp(raw.Steering, -1, 1), r.SteeringRise, r.SteeringFall, dt)
	c.Clutch = smoothChannel(c.Clutch, clamp(raw.Clutch, 0, 1), r.ClutchRise, r.ClutchFall, dt)

	c.Handbrake = raw.Handbrake
	c.GearUp = raw.GearUp
	c.GearDown = raw.GearDown
	return *c
}

// smoothChannel moves current toward target by at most rate*dt. A
// non-positive rate disables smoothing for that direction.
func smoothChannel(current, target, rise, fall, dt float64) float64 {
	rising := math.Abs(target) > math.Abs(current) && current*target >= 0
	rate := fall
	if rising {
		rate = rise
	}
	if rate <= 0 {
		return target
	}
	step := rate * dt
	delta := target - current
	if math.Abs(delta) <= step {
		return target
	}
	return current + math.Copysign(step, delta)
}
