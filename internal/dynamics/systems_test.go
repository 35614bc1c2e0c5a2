package dynamics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackday/vehsim/internal/vehicle"
	"github.com/trackday/vehsim/pkg/core"
)

const tick = 1.0 / 60

func sportsCar(t *testing.T) *vehicle.Config {
	t.Helper()
	cfg, err := vehicle.Finalize(vehicle.SportsCar())
	require.NoError(t, err)
	return cfg
}

func TestInputSmoother(t *testing.T) {
	s := NewInputSmoother(vehicle.Smoothing{
		ThrottleRise: 2, ThrottleFall: 4,
		BrakeRise: 0, BrakeFall: 0,
		SteeringRise: 1, SteeringFall: 2,
		ClutchRise: 5, ClutchFall: 5,
	})

	out := s.Update(0.1, core.ControlInput{Throttle: 1, Brake: 1, Steering: -1, Handbrake: true})
	assert.InDelta(t, 0.2, out.Throttle, 1e-9)
	assert.InDelta(t, 1.0, out.Brake, 1e-9, "zero rate passes through")
	assert.InDelta(t, -0.1, out.Steering, 1e-9)
	assert.True(t, out.Handbrake)

	out = s.Update(0.1, core.ControlInput{Throttle: 0, Steering: 1})
	assert.InDelta(t, 0.0, out.Throttle, 1e-9, "fall rate 4/s removes 0.4 in one step")
	assert.InDelta(t, 0.1, out.Steering, 1e-9, "crossing zero uses the fall rate")

	out = s.Update(0, core.ControlInput{Throttle: 1})
	assert.Equal(t, s.Current(), out)
	assert.InDelta(t, 0.0, out.Throttle, 1e-9)

	out = s.Update(1, core.ControlInput{Throttle: 3, Clutch: -2})
	assert.InDelta(t, 1.0, out.Throttle, 1e-9, "raw values are clamped")
	assert.InDelta(t, 0.0, out.Clutch, 1e-9)
}

func TestAckermann(t *testing.T) {
	t.Run("straight", func(t *testing.T) {
		l, r := Ackermann(0, 2.6, 1.6)
		assert.Zero(t, l)
		assert.Zero(t, r)
	})

	t.Run("right turn", func(t *testing.T) {
		delta := mgl64.DegToRad(20)
		l, r := Ackermann(delta, 2.6, 1.6)
		assert.Greater(t, r, delta, "inner wheel steers more")
		assert.Less(t, l, delta)
		assert.Greater(t, l, 0.0)

		// Both wheels share the turn centre.
		rad := 2.6 / math.Tan(delta)
		assert.InDelta(t, rad-0.8, 2.6/math.Tan(r), 1e-9)
		assert.InDelta(t, rad+0.8, 2.6/math.Tan(l), 1e-9)
	})

	t.Run("left turn mirrors", func(t *testing.T) {
		delta := mgl64.DegToRad(15)
		l, r := Ackermann(-delta, 2.6, 1.6)
		rl, rr := Ackermann(delta, 2.6, 1.6)
		assert.InDelta(t, -rr, l, 1e-12)
		assert.InDelta(t, -rl, r, 1e-12)
	})

	t.Run("radius inside track", func(t *testing.T) {
		l, r := Ackermann(1.5, 0.2, 1.6)
		assert.Equal(t, 1.5, l)
		assert.Equal(t, 1.5, r)
	})
}

func TestSlipCurve(t *testing.T) {
	assert.Zero(t, SlipCurve(0))
	assert.InDelta(t, 0.316, SlipCurve(0.75), 1e-3)
	assert.InDelta(t, 0.0, SlipCurve(3), 1e-9)
	assert.Zero(t, SlipCurve(5), "clamped, never negative")

	for k := 0.0; k <= 10; k += 0.05 {
		f := SlipCurve(k)
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	}
}

func TestTireForces(t *testing.T) {
	tc := vehicle.Tire{Friction: 1.1, LongStiffness: 60000, LatStiffness: 60000}
	const load = 4000.0

	t.Run("zero slip", func(t *testing.T) {
		fx, fy := TireForces(tc, load, 0, 0)
		assert.Zero(t, fx)
		assert.Zero(t, fy)
	})

	t.Run("zero load", func(t *testing.T) {
		fx, fy := TireForces(tc, 0, 0.1, 0.1)
		assert.Zero(t, fx)
		assert.Zero(t, fy)
	})

	t.Run("longitudinal sign follows slip", func(t *testing.T) {
		for _, kappa := range []float64{1e-4, 1e-3, 0.01, 0.02} {
			fx, fy := TireForces(tc, load, kappa, 0)
			assert.Greater(t, fx, 0.0, "kappa %v", kappa)
			assert.Zero(t, fy)

			fx, _ = TireForces(tc, load, -kappa, 0)
			assert.Less(t, fx, 0.0, "kappa %v", -kappa)
		}
	})

	t.Run("lateral opposes slip angle", func(t *testing.T) {
		_, fy := TireForces(tc, load, 0, 0.02)
		assert.Less(t, fy, 0.0)
		_, fy = TireForces(tc, load, 0, -0.02)
		assert.Greater(t, fy, 0.0)
	})

	t.Run("bounded by grip", func(t *testing.T) {
		for _, s := range []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1} {
			fx, fy := TireForces(tc, load, s, s)
			assert.LessOrEqual(t, math.Hypot(fx, fy), tc.Friction*load)
		}
	})
}

func TestSlip(t *testing.T) {
	ws := core.WheelState{LinearVelocity: core.Vec3{0, 0.2, 0}, AngularVelocity: 10}
	kappa, alpha := Slip(ws, 0.33)
	assert.Zero(t, kappa, "below floor")
	assert.Zero(t, alpha)

	ws = core.WheelState{LinearVelocity: core.Vec3{0, 20, 0}, AngularVelocity: 22 / 0.33}
	kappa, alpha = Slip(ws, 0.33)
	assert.InDelta(t, 0.1, kappa, 1e-9)
	assert.Zero(t, alpha)

	ws = core.WheelState{LinearVelocity: core.Vec3{1, 10, 0}, AngularVelocity: 10 / 0.33}
	_, alpha = Slip(ws, 0.33)
	assert.InDelta(t, math.Atan2(1, 10), alpha, 1e-9)
}

func TestEngineTorque(t *testing.T) {
	curve := []vehicle.CurvePoint{{X: 1000, Y: 200}, {X: 3000, Y: 300}, {X: 5000, Y: 250}}

	assert.Equal(t, 200.0, EngineTorque(curve, 500), "below first point clamps")
	assert.Equal(t, 200.0, EngineTorque(curve, 1000))
	assert.InDelta(t, 250.0, EngineTorque(curve, 2000), 1e-9)
	assert.InDelta(t, 275.0, EngineTorque(curve, 4000), 1e-9)
	assert.Equal(t, 250.0, EngineTorque(curve, 5000))
	assert.Zero(t, EngineTorque(curve, 5001), "cut-out above last point")
	assert.Zero(t, EngineTorque(nil, 3000))
}

func TestDrivetrain_AutoShiftBounds(t *testing.T) {
	cfg := sportsCar(t)
	d := NewDrivetrainSystem(cfg)
	var wheels [core.WheelCount]core.WheelState
	var torques core.WheelTorques

	st := core.VehicleState{Gear: 1, EngineRPM: cfg.Engine.IdleRPM}
	full := core.ControlInput{Throttle: 1}

	// Sweep road speed up to the top and back down again.
	speeds := make([]float64, 0, 1200)
	for i := 0; i < 600; i++ {
		speeds = append(speeds, float64(i)*cfg.Motion.MaxSpeed/600)
	}
	for i := 600; i > 0; i-- {
		speeds = append(speeds, float64(i)*cfg.Motion.MaxSpeed/600)
	}

	maxGear := 1
	for _, v := range speeds {
		st.Speed = v
		before := st.Gear
		d.Update(tick, &st, full, &wheels, &torques)

		assert.GreaterOrEqual(t, st.Gear, 1)
		assert.LessOrEqual(t, st.Gear, cfg.GearCount()-1)
		assert.LessOrEqual(t, abs(st.Gear-before), 1, "at most one shift per tick")
		if st.Gear > maxGear {
			maxGear = st.Gear
		}
	}
	assert.Equal(t, cfg.GearCount()-1, maxGear)
	assert.Less(t, st.Gear, maxGear, "downshifts on the way back")
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestDrivetrain_ShiftHoldsClutch(t *testing.T) {
	cfg := sportsCar(t)
	d := NewDrivetrainSystem(cfg)
	var wheels [core.WheelCount]core.WheelState
	var torques core.WheelTorques

	st := core.VehicleState{Gear: 1, EngineRPM: cfg.Engine.MaxRPM * 0.9, Speed: 18}
	d.Update(tick, &st, core.ControlInput{Throttle: 1}, &wheels, &torques)

	require.Equal(t, 2, st.Gear)
	assert.True(t, st.Shifting)
	assert.Equal(t, 1.0, st.Clutch)
	assert.Equal(t, core.WheelTorques{}, torques)

	// Even at red line no second shift happens until the timer runs out.
	steps := 0
	for st.Shifting {
		st.EngineRPM = cfg.Engine.MaxRPM
		d.Update(tick, &st, core.ControlInput{Throttle: 1}, &wheels, &torques)
		steps++
		if st.Shifting {
			assert.Equal(t, 2, st.Gear)
		}
	}
	assert.InDelta(t, cfg.Gearbox.ShiftTime/tick, float64(steps), 1)
}

func TestDrivetrain_Distribution(t *testing.T) {
	var wheels [core.WheelCount]core.WheelState

	t.Run("rwd only drives rear", func(t *testing.T) {
		cfg := sportsCar(t)
		d := NewDrivetrainSystem(cfg)
		out := d.distribute(1000, 1, &wheels)
		assert.Equal(t, core.WheelTorques{0, 0, 500, 500}, out)
	})

	t.Run("neutral sends nothing", func(t *testing.T) {
		d := NewDrivetrainSystem(sportsCar(t))
		assert.Equal(t, core.WheelTorques{}, d.distribute(1000, core.GearNeutral, &wheels))
	})

	t.Run("awd split", func(t *testing.T) {
		cfg, err := vehicle.Finalize(vehicle.Rally())
		require.NoError(t, err)
		d := NewDrivetrainSystem(cfg)
		out := d.distribute(1000, 1, &wheels)
		assert.InDelta(t, 200, out[core.FL], 1e-9)
		assert.InDelta(t, 200, out[core.FR], 1e-9)
		assert.InDelta(t, 300, out[core.RL], 1e-9)
		assert.InDelta(t, 300, out[core.RR], 1e-9)
	})

	t.Run("fwd open diff", func(t *testing.T) {
		cfg, err := vehicle.Finalize(vehicle.Hatchback())
		require.NoError(t, err)
		d := NewDrivetrainSystem(cfg)
		spinning := wheels
		spinning[core.FL].AngularVelocity = 50
		out := d.distribute(1000, 1, &spinning)
		assert.Equal(t, core.WheelTorques{500, 500, 0, 0}, out)
	})

	t.Run("limited slip favours slower wheel", func(t *testing.T) {
		d := NewDrivetrainSystem(sportsCar(t))
		spinning := wheels
		spinning[core.RL].AngularVelocity = 60
		spinning[core.RR].AngularVelocity = 50
		out := d.distribute(1000, 1, &spinning)
		assert.InDelta(t, 500-2*10, out[core.RL], 1e-9)
		assert.InDelta(t, 500+2*10, out[core.RR], 1e-9)
		assert.InDelta(t, 1000, out[core.RL]+out[core.RR], 1e-9)

		spinning[core.RL].AngularVelocity = 1000
		out = d.distribute(1000, 1, &spinning)
		assert.InDelta(t, 0, out[core.RL], 1e-9, "transfer clamped to half the axle")
		assert.InDelta(t, 1000, out[core.RR], 1e-9)
	})
}

func TestDrivetrain_RPMFeedback(t *testing.T) {
	cfg := sportsCar(t)
	d := NewDrivetrainSystem(cfg)
	var wheels [core.WheelCount]core.WheelState
	var torques core.WheelTorques

	st := core.VehicleState{Gear: core.GearNeutral, Speed: 30}
	d.Update(tick, &st, core.ControlInput{}, &wheels, &torques)
	assert.Equal(t, cfg.Engine.IdleRPM, st.EngineRPM)

	st = core.VehicleState{Gear: 3, Speed: 20, EngineRPM: 4000}
	d.Update(tick, &st, core.ControlInput{Throttle: 1}, &wheels, &torques)
	want := 20/(2*math.Pi*0.33)*60*1.5*3.7 - cfg.Engine.DampingFullThrottle*tick*10
	assert.InDelta(t, want, st.EngineRPM, 1e-6)
	assert.Greater(t, torques[core.RL], 0.0)
	assert.Zero(t, torques[core.FL])
}

func TestDrivetrain_ManualShift(t *testing.T) {
	raw := vehicle.SportsCar()
	raw.Gearbox.AutoShift = false
	cfg, err := vehicle.Finalize(raw)
	require.NoError(t, err)
	d := NewDrivetrainSystem(cfg)
	var wheels [core.WheelCount]core.WheelState
	var torques core.WheelTorques

	st := core.VehicleState{Gear: 1, EngineRPM: cfg.Engine.MaxRPM}
	d.Update(tick, &st, core.ControlInput{Throttle: 1}, &wheels, &torques)
	assert.Equal(t, 1, st.Gear, "no auto shift")

	st = core.VehicleState{Gear: 1}
	d.Update(tick, &st, core.ControlInput{GearDown: true}, &wheels, &torques)
	assert.Equal(t, core.GearNeutral, st.Gear)

	st.Shifting = false
	d.Update(tick, &st, core.ControlInput{GearDown: true}, &wheels, &torques)
	assert.Equal(t, core.GearReverse, st.Gear)

	st.Shifting = false
	d.Update(tick, &st, core.ControlInput{GearDown: true}, &wheels, &torques)
	assert.Equal(t, core.GearReverse, st.Gear, "nothing below reverse")
}

func TestSuspension_Settle(t *testing.T) {
	cfg := sportsCar(t)
	s := NewSuspensionSystem(cfg)
	var susp [core.WheelCount]core.SuspensionState
	s.Settle(&susp)

	for i := range susp {
		k := s.Stiffness(i)
		assert.InDelta(t, cfg.SprungMasses[i]*vehicle.Gravity/k, susp[i].Compression, 1e-12)
		assert.InDelta(t, -cfg.SprungMasses[i]*vehicle.Gravity, susp[i].SpringForce, 1e-9)
		assert.False(t, susp[i].InAir)
		assert.InDelta(t, 12*12*cfg.SprungMasses[i], k, 1e-9)
		assert.InDelta(t, 0.7*2*math.Sqrt(k*cfg.SprungMasses[i]), s.Damping(i), 1e-9)
	}
}

func TestSuspension_ClampAndAntiRoll(t *testing.T) {
	cfg := sportsCar(t)
	s := NewSuspensionSystem(cfg)
	var susp [core.WheelCount]core.SuspensionState
	var wheels [core.WheelCount]core.WheelState
	s.Settle(&susp)

	// A violent vertical load drives every corner to the bump stop.
	st := core.VehicleState{Acceleration: core.Vec3{0, 0, 100}}
	s.Update(tick, &st, &wheels, &susp)
	for i := range susp {
		assert.Equal(t, cfg.Suspension[i].MaxCompression, susp[i].Compression)
		assert.True(t, susp[i].InAir)
		assert.Greater(t, susp[i].CompressionVelocity, 0.0)
	}

	// Left rear pushed up by its wheel only: anti-roll moves force across.
	s.Settle(&susp)
	wheels[core.RL].LinearVelocity = core.Vec3{0, 0, 0.2}
	st = core.VehicleState{}
	s.Update(tick, &st, &wheels, &susp)
	diff := susp[core.RL].Compression - susp[core.RR].Compression
	require.Greater(t, diff, 0.0)
	assert.InDelta(t, susp[core.RL].SpringForce+susp[core.RL].DamperForce+cfg.AntiRoll.Rear*diff,
		susp[core.RL].TotalForce, 1e-9)
	assert.InDelta(t, susp[core.RR].SpringForce+susp[core.RR].DamperForce-cfg.AntiRoll.Rear*diff,
		susp[core.RR].TotalForce, 1e-9)
}

func TestTire_BottomedOutKeepsGrip(t *testing.T) {
	cfg := sportsCar(t)
	s := NewSuspensionSystem(cfg)
	ts := NewTireSystem(cfg)
	var susp [core.WheelCount]core.SuspensionState
	var wheels [core.WheelCount]core.WheelState
	var tires [core.WheelCount]core.TireState
	s.Settle(&susp)

	st := core.VehicleState{Acceleration: core.Vec3{0, 0, 100}}
	s.Update(tick, &st, &wheels, &susp)

	r := cfg.Wheels[core.RL].Radius
	for i := range wheels {
		wheels[i].LinearVelocity = core.Vec3{0, 20, 0}
		wheels[i].AngularVelocity = 22 / r
	}
	ts.Update(tick, &st, &wheels, &susp, &tires)

	for i := range tires {
		require.True(t, susp[i].InAir)
		assert.Greater(t, tires[i].Load, cfg.RestLoads[i])
		assert.Greater(t, tires[i].LongForce, 0.0)
	}
}

func TestSuspension_ZeroDt(t *testing.T) {
	s := NewSuspensionSystem(sportsCar(t))
	var susp [core.WheelCount]core.SuspensionState
	var wheels [core.WheelCount]core.WheelState
	s.Settle(&susp)
	before := susp

	s.Update(0, &core.VehicleState{Acceleration: core.Vec3{0, 0, 50}}, &wheels, &susp)
	assert.Equal(t, before, susp)
}

func TestPose_ClampsToLimits(t *testing.T) {
	cfg := sportsCar(t)
	p := NewPoseSystem(cfg)
	var susp [core.WheelCount]core.SuspensionState
	var pose core.PoseState

	st := core.VehicleState{Acceleration: core.Vec3{30, -30, 0}}
	for i := 0; i < 600; i++ {
		p.Update(tick, &st, &susp, &pose)
		assert.LessOrEqual(t, math.Abs(pose.Roll), cfg.Pose.MaxRoll)
		assert.LessOrEqual(t, math.Abs(pose.Pitch), cfg.Pose.MaxPitch)
	}
	assert.InDelta(t, cfg.Pose.MaxRoll, pose.Roll, 1e-3)
	assert.InDelta(t, cfg.Pose.MaxPitch, pose.Pitch, 1e-3, "braking pitches nose down")
}

func TestPose_Transform(t *testing.T) {
	cfg := sportsCar(t)
	p := NewPoseSystem(cfg)
	var susp [core.WheelCount]core.SuspensionState
	for i := range susp {
		susp[i].Compression = 0.05
	}
	st := core.VehicleState{Position: core.Vec3{10, 20, 0.5}, Heading: math.Pi / 2}
	var pose core.PoseState
	p.Settle(&st, &susp, &pose)

	assert.InDelta(t, 0.05*cfg.Pose.BounceScale, pose.Bounce, 1e-12)
	assert.InDelta(t, 0.5-pose.Bounce, pose.BodyPosition.Z(), 1e-12)
	assert.Equal(t, core.Vec3{0, 0, math.Pi / 2}, pose.BodyRotation)

	// Body-local forward maps onto world +X at heading 90°.
	fwd := pose.BodyTransform.Mul4x1(mgl64.Vec4{0, 1, 0, 0}).Vec3()
	assert.InDelta(t, 1, fwd.X(), 1e-9)
	assert.InDelta(t, 0, fwd.Y(), 1e-9)
	origin := pose.BodyTransform.Mul4x1(mgl64.Vec4{0, 0, 0, 1}).Vec3()
	assert.True(t, origin.ApproxEqual(pose.BodyPosition))
}

func TestWheelSystem_Place(t *testing.T) {
	cfg := sportsCar(t)
	w := NewWheelSystem(cfg)
	var wheels [core.WheelCount]core.WheelState

	st := core.VehicleState{Position: core.Vec3{100, 50, 0}, Heading: math.Pi / 2, SteeringAngle: 0.2, YawRate: 0.5, Speed: 10}
	w.Place(&st, &wheels)

	// Front-left wheel at local (-0.79, 1.3) ends up ahead (+X) and left (+Y).
	fl := wheels[core.FL]
	assert.InDelta(t, 101.3, fl.Position.X(), 1e-9)
	assert.InDelta(t, 50.79, fl.Position.Y(), 1e-9)

	assert.Greater(t, wheels[core.FR].SteerAngle, wheels[core.FL].SteerAngle)
	assert.Zero(t, wheels[core.RL].SteerAngle)

	// Outer (left) wheels travel faster in a right-hand turn.
	assert.Greater(t, wheels[core.RL].LinearVelocity.Y(), wheels[core.RR].LinearVelocity.Y())
	assert.InDelta(t, 0.5*1.3, fl.LinearVelocity.X(), 1e-9)
}

func TestWheelSystem_DriveSlip(t *testing.T) {
	cfg := sportsCar(t)
	w := NewWheelSystem(cfg)
	var wheels [core.WheelCount]core.WheelState
	st := core.VehicleState{Speed: 20}
	torques := core.WheelTorques{0, 0, 1000, 1000}

	w.Update(tick, &st, torques, &wheels)

	r := cfg.Wheels[core.RL].Radius
	assert.InDelta(t, 20/r, wheels[core.FL].AngularVelocity, 1e-9)
	kd := 1000 / (r * cfg.Tires[core.RL].LongStiffness)
	assert.InDelta(t, (20+kd*20)/r, wheels[core.RL].AngularVelocity, 1e-9)
	assert.Equal(t, 1000.0, wheels[core.RL].DriveTorque)

	kappa, _ := Slip(wheels[core.RL], r)
	assert.InDelta(t, kd, kappa, 1e-9)

	for _, ws := range wheels {
		assert.GreaterOrEqual(t, ws.RotationAngle, 0.0)
		assert.Less(t, ws.RotationAngle, 2*math.Pi)
	}
}

func TestPhysics_BrakeNeverReverses(t *testing.T) {
	cfg := sportsCar(t)
	p := NewPhysicsSystem(cfg)
	st := core.VehicleState{Speed: 1, Gear: 1}

	for i := 0; i < 120; i++ {
		p.Update(tick, core.ControlInput{Brake: 1}, &st)
		assert.GreaterOrEqual(t, st.Speed, 0.0)
	}
	assert.Zero(t, st.Speed)
}

func TestPhysics_TurnAndReverse(t *testing.T) {
	cfg := sportsCar(t)
	p := NewPhysicsSystem(cfg)

	st := core.VehicleState{Speed: 10, Gear: 1}
	p.Update(tick, core.ControlInput{Throttle: 0.2, Steering: 1}, &st)
	assert.Greater(t, st.YawRate, 0.0, "steering right turns clockwise")
	assert.Greater(t, st.Heading, 0.0)
	assert.Greater(t, st.Acceleration.X(), 0.0)

	st = core.VehicleState{Gear: core.GearReverse}
	for i := 0; i < 600; i++ {
		p.Update(tick, core.ControlInput{Throttle: 1}, &st)
	}
	assert.InDelta(t, -0.3*cfg.Motion.MaxSpeed, st.Speed, 1e-9, "reverse speed capped")
	assert.Less(t, st.Position.Y(), 0.0)

	st = core.VehicleState{Gear: core.GearNeutral}
	p.Update(tick, core.ControlInput{Throttle: 1}, &st)
	assert.Zero(t, st.Speed)
}
