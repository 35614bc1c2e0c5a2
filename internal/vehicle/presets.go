package vehicle

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/trackday/vehsim/pkg/core"
)

// Built-in preset names.
const (
	PresetSportsCar = "sports_car"
	PresetHatchback = "hatchback"
	PresetRally     = "rally"
)

// Builtin returns the raw (not yet finalized) built-in presets by name.
func Builtin() map[string]Config {
	return map[string]Config{
		PresetSportsCar: SportsCar(),
		PresetHatchback: Hatchback(),
		PresetRally:     Rally(),
	}
}

func cornerPositions(wheelbase, track, height float64) [core.WheelCount]core.Vec3 {
	hw, hl := track/2, wheelbase/2
	return [core.WheelCount]core.Vec3{
		FL: {-hw, hl, height},
		FR: {hw, hl, height},
		RL: {-hw, -hl, height},
		RR: {hw, -hl, height},
	}
}

// SportsCar is a 1500 kg rear-wheel-drive coupe with a six-speed gearbox.
func SportsCar() Config {
	const (
		wheelbase = 2.6
		track     = 1.58
		radius    = 0.33
	)
	c := Config{
		Name:  "Sports Car",
		Spawn: Spawn{Position: core.Vec3{0, 0, 0.5}},
		Chassis: Chassis{
			Mass:         1500,
			CGHeight:     0.45,
			CenterOfMass: core.Vec3{0, 0, 0.45},
			Wheelbase:    wheelbase,
			TrackWidth:   track,
		},
		Controls: Controls{
			MaxSteerAngle: mgl64.DegToRad(35),
			Smoothing: Smoothing{
				ThrottleRise: 3, ThrottleFall: 5,
				BrakeRise: 5, BrakeFall: 5,
				SteeringRise: 2.5, SteeringFall: 4,
				ClutchRise: 5, ClutchFall: 5,
			},
			SteeringSpeedCurve: []CurvePoint{{0, 1}, {60, 0.8}, {120, 0.6}},
		},
		Aero: Aero{DragCoefficient: 0.32, FrontalArea: 2.0, AirDensity: 1.225},
		Motion: Motion{
			MaxSpeed:          69,
			Acceleration:      7.5,
			Deceleration:      4,
			BrakeDeceleration: 11,
			TurnSpeed:         mgl64.DegToRad(90),
			SpeedForMinTurn:   45,
		},
		Engine: Engine{
			IdleRPM: 800,
			MaxRPM:  7000,
			TorqueCurve: []CurvePoint{
				{800, 220}, {2000, 320}, {3500, 380}, {5000, 400}, {6000, 360}, {7000, 250},
			},
			DampingFullThrottle:     0.15,
			DampingClutchEngaged:    2.0,
			DampingClutchDisengaged: 0.35,
		},
		Gearbox: Gearbox{
			Ratios:         []float64{0, 3.2, 2.1, 1.5, 1.15, 0.92, 0.75},
			FinalRatio:     3.7,
			ReverseRatio:   -3.3,
			AutoShift:      true,
			ShiftTime:      0.3,
			UpshiftRatio:   0.85,
			DownshiftRatio: 0.35,
		},
		Differential: Differential{
			Type:      DiffLimitedSlip,
			Layout:    LayoutRWD,
			FrontBias: 1.5,
			RearBias:  2.0,
		},
		AntiRoll: AntiRoll{Front: 8000, Rear: 6000},
		Pose: Pose{
			MaxRoll:               mgl64.DegToRad(5),
			MaxPitch:              mgl64.DegToRad(3),
			RollStiffness:         10000,
			PitchStiffness:        10000,
			BounceStiffness:       15000,
			RollDamping:           500,
			PitchDamping:          500,
			BounceDamping:         800,
			RollSuspensionWeight:  0.3,
			PitchSuspensionWeight: 0.3,
			BounceScale:           0.3,
			VelocityDecay:         0.95,
		},
	}
	for i, p := range cornerPositions(wheelbase, track, 0) {
		rear := i == RL || i == RR
		c.Wheels[i] = Wheel{Position: p, Radius: radius, Mass: 20, Steerable: !rear, Driven: rear}
		c.Tires[i] = Tire{Friction: 1.1, LongStiffness: 60000, LatStiffness: 60000, PneumaticTrail: 0.02}
		c.Suspension[i] = Suspension{
			NaturalFrequency: 12,
			DampingRatio:     0.7,
			RestLength:       0.3,
			MaxCompression:   0.1,
			MaxDroop:         0.1,
		}
	}
	return c
}

// Hatchback is a light front-wheel-drive car with an open differential.
func Hatchback() Config {
	c := SportsCar()
	c.Name = "Hatchback"
	c.Chassis.Mass = 1150
	c.Chassis.Wheelbase = 2.5
	c.Chassis.TrackWidth = 1.5
	c.Chassis.CenterOfMass = core.Vec3{0, 0.25, 0.5}
	c.Motion.MaxSpeed = 52
	c.Motion.Acceleration = 4.5
	c.Engine.MaxRPM = 6200
	c.Engine.TorqueCurve = []CurvePoint{{800, 120}, {2500, 170}, {4000, 190}, {5500, 175}, {6200, 140}}
	c.Gearbox.Ratios = []float64{0, 3.6, 2.2, 1.5, 1.1, 0.9}
	c.Gearbox.FinalRatio = 4.1
	c.Gearbox.ReverseRatio = -3.5
	c.Differential = Differential{Type: DiffOpen, Layout: LayoutFWD}
	c.AntiRoll = AntiRoll{Front: 5000, Rear: 3000}
	for i, p := range cornerPositions(c.Chassis.Wheelbase, c.Chassis.TrackWidth, 0) {
		front := i == FL || i == FR
		c.Wheels[i] = Wheel{Position: p, Radius: 0.31, Mass: 15, Steerable: front, Driven: front}
		c.Tires[i] = Tire{Friction: 1.0, LongStiffness: 45000, LatStiffness: 45000, PneumaticTrail: 0.02}
		c.Suspension[i].NaturalFrequency = 11
	}
	return c
}

// Rally is an all-wheel-drive car with limited-slip differentials and soft,
// long-travel suspension.
func Rally() Config {
	c := SportsCar()
	c.Name = "Rally"
	c.Chassis.Mass = 1300
	c.Differential = Differential{
		Type:           DiffLimitedSlip,
		Layout:         LayoutAWD,
		FrontRearSplit: 0.4,
		FrontBias:      1.5,
		RearBias:       2.0,
	}
	c.Pose.MaxRoll = mgl64.DegToRad(7)
	c.Pose.MaxPitch = mgl64.DegToRad(4)
	for i := range c.Wheels {
		c.Wheels[i].Driven = true
		c.Tires[i].Friction = 0.9
		c.Suspension[i].NaturalFrequency = 9
		c.Suspension[i].MaxCompression = 0.18
		c.Suspension[i].MaxDroop = 0.15
	}
	return c
}
