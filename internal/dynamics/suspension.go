package dynamics

import (
	"math"

	"github.com/trackday/vehsim/internal/vehicle"
	"github.com/trackday/vehsim/pkg/core"
)

const inAirRatio = 0.99

// SuspensionSystem computes per-corner compression and force. Spring and
// damper rates are derived once from the sprung masses.
type SuspensionSystem struct {
	cfg       *vehicle.Config
	stiffness [core.WheelCount]float64
	damping   [core.WheelCount]float64
}

// NewSuspensionSystem derives spring and damper rates from cfg.
func NewSuspensionSystem(cfg *vehicle.Config) *SuspensionSystem {
	s := &SuspensionSystem{cfg: cfg}
	for i, sc := range cfg.Suspension {
		m := cfg.SprungMasses[i]
		k := sc.NaturalFrequency * sc.NaturalFrequency * m
		s.stiffness[i] = k
		s.damping[i] = sc.DampingRatio * 2 * math.Sqrt(k*m)
	}
	return s
}

// Stiffness and Damping return the derived rates of corner i.
func (s *SuspensionSystem) Stiffness(i int) float64 { return s.stiffness[i] }
func (s *SuspensionSystem) Damping(i int) float64   { return s.damping[i] }

// StaticCompression is the clamped resting compression of corner i.
func (s *SuspensionSystem) StaticCompression(i int) float64 {
	sc := s.cfg.Suspension[i]
	x := s.cfg.SprungMasses[i] * vehicle.Gravity / s.stiffness[i]
	return clamp(x, -sc.MaxDroop, sc.MaxCompression)
}

// Settle puts every corner at its static compression with zero velocity.
func (s *SuspensionSystem) Settle(susp *[core.WheelCount]core.SuspensionState) {
	for i := range susp {
		x := s.StaticCompression(i)
		spring := -s.stiffness[i] * x
		susp[i] = core.SuspensionState{
			Compression: x,
			SpringForce: spring,
			TotalForce:  spring,
			WheelOffset: core.Vec3{0, 0, -x},
			InAir:       math.Abs(x) >= s.cfg.Suspension[i].MaxCompression*inAirRatio,
		}
	}
	s.applyAntiRoll(susp)
}

// Update recomputes compression and forces from body acceleration and wheel vertical velocity.
func (s *SuspensionSystem) Update(dt float64, st *core.VehicleState, wheels *[core.WheelCount]core.WheelState, susp *[core.WheelCount]core.SuspensionState) {
	if dt <= 0 {
		return
	}
	az := st.Acceleration.Z()
	for i := range susp {
		sc := s.cfg.Suspension[i]
		m := s.cfg.SprungMasses[i]
		k, c := s.stiffness[i], s.damping[i]
		ss := &susp[i]

		xStatic := m * vehicle.Gravity / k
		xDyn := m * az / k
		xVel := wheels[i].LinearVelocity.Z() * c / k
		x := clamp(xStatic+xDyn+xVel, -sc.MaxDroop, sc.MaxCompression)

		ss.CompressionVelocity = (x - ss.Compression) / dt
		ss.Compression = x
		ss.SpringForce = -k * x
		ss.DamperForce = -c * ss.CompressionVelocity
		ss.TotalForce = ss.SpringForce + ss.DamperForce
		ss.WheelOffset = core.Vec3{0, 0, -x}
		ss.InAir = math.Abs(x) >= sc.MaxCompression*inAirRatio
	}
	s.applyAntiRoll(susp)
}

// applyAntiRoll couples left and right of each axle after the spring and
// damper forces are known.
func (s *SuspensionSystem) applyAntiRoll(susp *[core.WheelCount]core.SuspensionState) {
	axles := [...]struct {
		left, right int
		stiffness   float64
	}{
		{core.FL, core.FR, s.cfg.AntiRoll.Front},
		{core.RL, core.RR, s.cfg.AntiRoll.Rear},
	}
	for _, a := range axles {
		f := a.stiffness * (susp[a.left].Compression - susp[a.right].Compression)
		susp[a.left].TotalForce += f
		susp[a.right].TotalForce -= f
	}
}
