package dynamics

import (
	"math"

	"github.com/trackday/vehsim/internal/vehicle"
	"github.com/trackday/vehsim/pkg/core"
)

// TireSystem recomputes slip and force for every tire each tick.
type TireSystem struct {
	cfg *vehicle.Config
}

// NewTireSystem creates a tire system for cfg.
func NewTireSystem(cfg *vehicle.Config) *TireSystem {
	return &TireSystem{cfg: cfg}
}

// SlipCurve is the normalized force factor for combined slip magnitude k.
// It rises to about 0.316 at k = 0.75 and falls back to zero at k = 3.
func SlipCurve(k float64) float64 {
	k2 := k * k
	f := k - k2 + k2*k/3 - k2*k2/27
	return clamp(f, 0, 1)
}

// TireForces returns the wheel-frame longitudinal and lateral force for a
// tire under load with slip ratio kappa and slip angle alpha.
func TireForces(t vehicle.Tire, load, kappa, alpha float64) (fx, fy float64) {
	slip := math.Hypot(kappa, alpha)
	if load <= 0 || slip == 0 {
		return 0, 0
	}
	grip := t.Friction * load
	k := math.Hypot(t.LatStiffness*alpha, t.LongStiffness*kappa) / grip
	mag := SlipCurve(k) * grip / slip
	return kappa * mag, -alpha * mag
}

// Slip returns the slip ratio and slip angle of a wheel. Both are zero below
// SlipSpeedFloor.
func Slip(ws core.WheelState, radius float64) (kappa, alpha float64) {
	fwd, lat := wheelFrame(ws.LinearVelocity, ws.SteerAngle)
	if math.Hypot(fwd, lat) < SlipSpeedFloor {
		return 0, 0
	}
	if math.Abs(fwd) >= SlipSpeedFloor {
		kappa = (ws.AngularVelocity*radius - fwd) / math.Abs(fwd)
	}
	alpha = math.Atan2(lat, math.Abs(fwd))
	return kappa, alpha
}

// Update recomputes load, slip and force for each tire from the current suspension and wheel state.
func (t *TireSystem) Update(dt float64, st *core.VehicleState, wheels *[core.WheelCount]core.WheelState,
	susp *[core.WheelCount]core.SuspensionState, tires *[core.WheelCount]core.TireState) {
	if dt <= 0 {
		return
	}
	for i := range tires {
		wc, tc := t.cfg.Wheels[i], t.cfg.Tires[i]

		load := math.Max(0, -susp[i].SpringForce+wc.Mass*vehicle.Gravity)
		normalized := 0.0
		if rest := t.cfg.RestLoads[i]; rest > 0 {
			normalized = load / rest
		}

		kappa, alpha := Slip(wheels[i], wc.Radius)
		fx, fy := TireForces(tc, load, kappa, alpha)

		tires[i] = core.TireState{
			LongSlip:       kappa,
			LatSlip:        alpha,
			LongForce:      fx,
			LatForce:       fy,
			AligningMoment: fy * tc.PneumaticTrail,
			Load:           load,
			NormalizedLoad: normalized,
		}
	}
}

// ApplyTireForces sums the tire forces into the vehicle frame. The result is
// the external force the physics system integrates on the next tick.
func ApplyTireForces(wheels *[core.WheelCount]core.WheelState, tires *[core.WheelCount]core.TireState, st *core.VehicleState) {
	var lateral, longitudinal, moment float64
	for i := range tires {
		s, c := math.Sincos(wheels[i].SteerAngle)
		fx, fy := tires[i].LongForce, tires[i].LatForce
		lateral += fx*s + fy*c
		longitudinal += fx*c - fy*s
		moment += tires[i].AligningMoment
	}
	st.TireForce = core.Vec3{lateral, longitudinal, 0}
	st.AligningMoment = moment
}
