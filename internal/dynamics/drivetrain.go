package dynamics

import (
	"math"

	"github.com/samber/lo"

	"github.com/trackday/vehsim/internal/vehicle"
	"github.com/trackday/vehsim/pkg/core"
)

const (
	dampingThrottleThreshold = 0.1
	dampingClutchThreshold   = 0.1
	rpmDampingScale          = 10
)

// DrivetrainSystem runs engine, clutch, gearbox and differential and owns the
// gear-shift state machine.
type DrivetrainSystem struct {
	cfg         *vehicle.Config
	driveRadius float64
}

// NewDrivetrainSystem caches the mean radius of the driven wheels.
func NewDrivetrainSystem(cfg *vehicle.Config) *DrivetrainSystem {
	driven := lo.Filter(cfg.Wheels[:], func(w vehicle.Wheel, _ int) bool { return w.Driven })
	radii := lo.Map(driven, func(w vehicle.Wheel, _ int) float64 { return w.Radius })
	r := cfg.Wheels[0].Radius
	if len(radii) > 0 {
		r = lo.Sum(radii) / float64(len(radii))
	}
	return &DrivetrainSystem{cfg: cfg, driveRadius: r}
}

// EngineTorque looks up the full-load torque at rpm. Below the first point
// the first value holds; above the last point the engine is cut.
func EngineTorque(curve []vehicle.CurvePoint, rpm float64) float64 {
	if len(curve) == 0 {
		return 0
	}
	if rpm < curve[0].X {
		return curve[0].Y
	}
	if rpm > curve[len(curve)-1].X {
		return 0
	}
	return interpolate(curve, rpm)
}

// TotalRatio is the gearbox ratio times the final drive for gear.
func (d *DrivetrainSystem) TotalRatio(gear int) float64 {
	return d.cfg.GearRatio(gear) * d.cfg.Gearbox.FinalRatio
}

// Update advances the shift state machine, then computes the per-wheel drive
// torque and the engine RPM fed back from road speed. Wheel spin rates are
// only read by the limited-slip differential.
func (d *DrivetrainSystem) Update(dt float64, st *core.VehicleState, in core.ControlInput,
	wheels *[core.WheelCount]core.WheelState, out *core.WheelTorques) {
	if dt <= 0 {
		return
	}
	gb := d.cfg.Gearbox

	if st.Shifting {
		st.ShiftTimer -= dt
		if st.ShiftTimer <= 0 {
			st.Shifting = false
			st.ShiftTimer = 0
		}
	} else if gb.AutoShift {
		d.autoShift(st)
	} else {
		d.manualShift(st, in)
	}

	clutch := in.Clutch
	if st.Shifting {
		clutch = 1
	}
	st.Clutch = clutch

	ratio := d.TotalRatio(st.Gear)
	engine := EngineTorque(d.cfg.Engine.TorqueCurve, st.EngineRPM) * in.Throttle
	*out = d.distribute(engine*(1-clutch)*ratio, st.Gear, wheels)

	st.EngineRPM = d.feedbackRPM(st.Speed, ratio)
	st.EngineRPM = math.Max(d.cfg.Engine.IdleRPM, st.EngineRPM-d.damping(in.Throttle, clutch)*dt*rpmDampingScale)
}

func (d *DrivetrainSystem) autoShift(st *core.VehicleState) {
	gb := d.cfg.Gearbox
	maxRPM := d.cfg.Engine.MaxRPM
	if st.Gear < 1 {
		return
	}
	switch {
	case st.EngineRPM > maxRPM*gb.UpshiftRatio && st.Gear+1 < d.cfg.GearCount():
		d.shift(st, st.Gear+1)
	case st.EngineRPM < maxRPM*gb.DownshiftRatio && st.Gear-1 >= 1:
		d.shift(st, st.Gear-1)
	}
}

// manualShift honours explicit requests and may cross neutral into reverse.
func (d *DrivetrainSystem) manualShift(st *core.VehicleState, in core.ControlInput) {
	switch {
	case in.GearUp && st.Gear+1 < d.cfg.GearCount():
		d.shift(st, st.Gear+1)
	case in.GearDown && st.Gear-1 >= core.GearReverse:
		d.shift(st, st.Gear-1)
	}
}

func (d *DrivetrainSystem) shift(st *core.VehicleState, gear int) {
	st.Gear = gear
	st.Shifting = true
	st.ShiftTimer = d.cfg.Gearbox.ShiftTime
	st.Clutch = 1
}

func (d *DrivetrainSystem) feedbackRPM(speed, ratio float64) float64 {
	idle := d.cfg.Engine.IdleRPM
	if ratio == 0 {
		return idle
	}
	wheelRPM := math.Abs(speed) / (2 * math.Pi * d.driveRadius) * 60
	return clamp(wheelRPM*math.Abs(ratio), idle, d.cfg.Engine.MaxRPM)
}

func (d *DrivetrainSystem) damping(throttle, clutch float64) float64 {
	e := d.cfg.Engine
	switch {
	case throttle > dampingThrottleThreshold:
		return e.DampingFullThrottle
	case clutch < dampingClutchThreshold:
		return e.DampingClutchEngaged
	default:
		return e.DampingClutchDisengaged
	}
}

// distribute splits gearbox output over the driven axles and wheels.
func (d *DrivetrainSystem) distribute(torque float64, gear int, wheels *[core.WheelCount]core.WheelState) core.WheelTorques {
	var out core.WheelTorques
	if gear == core.GearNeutral || torque == 0 {
		return out
	}
	diff := d.cfg.Differential

	front := 0.0
	switch diff.Layout {
	case vehicle.LayoutFWD:
		front = 1
	case vehicle.LayoutAWD:
		front = diff.FrontRearSplit
	}
	d.splitAxle(&out, core.FL, core.FR, torque*front, diff.FrontBias, wheels)
	d.splitAxle(&out, core.RL, core.RR, torque*(1-front), diff.RearBias, wheels)
	return out
}

func (d *DrivetrainSystem) splitAxle(out *core.WheelTorques, left, right int, torque, bias float64,
	wheels *[core.WheelCount]core.WheelState) {
	l, r := d.cfg.Wheels[left].Driven, d.cfg.Wheels[right].Driven
	switch {
	case l && r:
		half := torque / 2
		var transfer float64
		if d.cfg.Differential.Type == vehicle.DiffLimitedSlip {
			transfer = bias * (wheels[left].AngularVelocity - wheels[right].AngularVelocity)
			transfer = clamp(transfer, -math.Abs(half), math.Abs(half))
		}
		out[left] = half - transfer
		out[right] = half + transfer
	case l:
		out[left] = torque
	case r:
		out[right] = torque
	}
}
