// Package vehicle holds the immutable per-vehicle parameter set read by every
// dynamics system. A Config is finalized once and then shared read-only,
// including across vehicle instances spawned from the same preset.
package vehicle

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/trackday/vehsim/pkg/core"
)

// Gravity is the gravitational acceleration used throughout the simulation.
const Gravity = 9.81

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid vehicle config")

// Layout describes which axles receive drive torque.
type Layout string

const (
	LayoutFWD Layout = "FWD"
	LayoutRWD Layout = "RWD"
	LayoutAWD Layout = "AWD"
)

// DiffType selects the differential model.
type DiffType string

const (
	DiffOpen        DiffType = "open"
	DiffLimitedSlip DiffType = "limited_slip"
)

// CurvePoint is one control point of a piecewise-linear curve.
type CurvePoint struct {
	X float64
	Y float64
}

// Spawn is where a vehicle appears on (re)spawn.
type Spawn struct {
	Position core.Vec3
	Heading  float64
}

// Chassis holds body mass properties.
type Chassis struct {
	Mass         float64
	CGHeight     float64
	CenterOfMass core.Vec3
	Wheelbase    float64
	TrackWidth   float64
	YawInertia   float64
}

// Smoothing holds per-channel input rate limits in units per second.
type Smoothing struct {
	ThrottleRise float64
	ThrottleFall float64
	BrakeRise    float64
	BrakeFall    float64
	SteeringRise float64
	SteeringFall float64
	ClutchRise   float64
	ClutchFall   float64
}

// Controls holds steering limits and input smoothing.
type Controls struct {
	MaxSteerAngle float64 // radians
	Smoothing     Smoothing
	// SteeringSpeedCurve maps speed (km/h) to a steering angle factor.
	SteeringSpeedCurve []CurvePoint
}

// Aero holds the drag model parameters.
type Aero struct {
	DragCoefficient float64
	FrontalArea     float64
	AirDensity      float64
}

// Motion holds the longitudinal and yaw response of the body.
type Motion struct {
	MaxSpeed          float64 // m/s
	Acceleration      float64 // m/s² at full throttle
	Deceleration      float64 // m/s² coasting reference
	BrakeDeceleration float64 // m/s² at full brake
	TurnSpeed         float64 // rad/s at full lock
	SpeedForMinTurn   float64 // m/s at which turn rate reaches its floor
}

// Engine holds the torque curve and RPM limits.
type Engine struct {
	IdleRPM                 float64
	MaxRPM                  float64
	TorqueCurve             []CurvePoint // RPM -> N·m, sorted by RPM
	DampingFullThrottle     float64
	DampingClutchEngaged    float64
	DampingClutchDisengaged float64
}

// Gearbox holds the ratio table. Ratios[0] is neutral.
type Gearbox struct {
	Ratios         []float64
	FinalRatio     float64
	ReverseRatio   float64
	AutoShift      bool
	ShiftTime      float64
	UpshiftRatio   float64 // fraction of MaxRPM
	DownshiftRatio float64 // fraction of MaxRPM
}

// Differential holds torque split parameters.
type Differential struct {
	Type           DiffType
	Layout         Layout
	FrontRearSplit float64 // fraction of torque sent to the front axle
	FrontBias      float64
	RearBias       float64
}

// Wheel is the geometry of one wheel.
type Wheel struct {
	Position  core.Vec3
	Radius    float64
	Mass      float64
	Steerable bool
	Driven    bool
}

// Tire holds the friction and stiffness of one tire.
type Tire struct {
	Friction       float64
	LongStiffness  float64 // N per unit slip ratio
	LatStiffness   float64 // N per radian
	PneumaticTrail float64 // m
}

// Suspension holds the spring/damper tuning of one corner.
type Suspension struct {
	NaturalFrequency float64 // rad/s
	DampingRatio     float64
	RestLength       float64
	MaxCompression   float64
	MaxDroop         float64
}

// AntiRoll holds anti-roll bar stiffness per axle in N/m.
type AntiRoll struct {
	Front float64
	Rear  float64
}

// Pose holds the body attitude spring-damper coefficients.
type Pose struct {
	MaxRoll  float64 // radians
	MaxPitch float64 // radians

	RollStiffness   float64
	PitchStiffness  float64
	BounceStiffness float64
	RollDamping     float64
	PitchDamping    float64
	BounceDamping   float64

	RollSuspensionWeight  float64
	PitchSuspensionWeight float64
	BounceScale           float64
	VelocityDecay         float64
}

// Config is the full parameter set of one vehicle.
type Config struct {
	Name         string
	Spawn        Spawn
	Chassis      Chassis
	Controls     Controls
	Aero         Aero
	Motion       Motion
	Engine       Engine
	Gearbox      Gearbox
	Differential Differential
	Wheels       [core.WheelCount]Wheel
	Tires        [core.WheelCount]Tire
	Suspension   [core.WheelCount]Suspension
	AntiRoll     AntiRoll
	Pose         Pose

	// Derived by Finalize.
	SprungMasses [core.WheelCount]float64
	RestLoads    [core.WheelCount]float64
}

// Finalize normalizes a copy of c, validates it and derives the cached mass
// distribution. The returned Config must not be mutated afterwards.
func Finalize(c Config) (*Config, error) {
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.SprungMasses = ComputeSprungMasses(c.Chassis.Mass, c.Chassis.CenterOfMass, c.wheelPositions())
	for i := range c.RestLoads {
		c.RestLoads[i] = (c.SprungMasses[i] + c.Wheels[i].Mass) * Gravity
	}
	return &c, nil
}

func (c *Config) wheelPositions() [core.WheelCount]core.Vec3 {
	var out [core.WheelCount]core.Vec3
	for i, w := range c.Wheels {
		out[i] = w.Position
	}
	return out
}

func (c *Config) normalize() {
	curve := make([]CurvePoint, len(c.Engine.TorqueCurve))
	copy(curve, c.Engine.TorqueCurve)
	sort.SliceStable(curve, func(i, j int) bool { return curve[i].X < curve[j].X })
	c.Engine.TorqueCurve = curve

	ratios := make([]float64, len(c.Gearbox.Ratios))
	copy(ratios, c.Gearbox.Ratios)
	c.Gearbox.Ratios = ratios

	if c.Chassis.TrackWidth <= 0 {
		c.Chassis.TrackWidth = math.Abs(c.Wheels[FR].Position.X() - c.Wheels[FL].Position.X())
	}
	if c.Chassis.Wheelbase <= 0 {
		c.Chassis.Wheelbase = math.Abs(c.Wheels[FL].Position.Y() - c.Wheels[RL].Position.Y())
	}
	if c.Chassis.YawInertia <= 0 {
		c.Chassis.YawInertia = EstimateYawInertia(c.Chassis.Mass, c.Chassis.Wheelbase, c.Chassis.TrackWidth)
	}
	if c.Differential.Layout == "" {
		c.Differential.Layout = InferLayout(c.Wheels)
	}
	if c.Differential.Type == "" {
		c.Differential.Type = DiffOpen
	}
}

// Axle-local aliases keep index arithmetic readable.
const (
	FL = core.FL
	FR = core.FR
	RL = core.RL
	RR = core.RR
)

// InferLayout derives the drivetrain layout from the driven flags.
func InferLayout(wheels [core.WheelCount]Wheel) Layout {
	front := wheels[FL].Driven || wheels[FR].Driven
	rear := wheels[RL].Driven || wheels[RR].Driven
	switch {
	case front && rear:
		return LayoutAWD
	case front:
		return LayoutFWD
	case rear:
		return LayoutRWD
	default:
		return LayoutAWD
	}
}

// EstimateYawInertia treats the body as a uniform rectangle, scaled up to
// match typical road-car values.
func EstimateYawInertia(mass, wheelbase, trackWidth float64) float64 {
	base := mass / 12 * (wheelbase*wheelbase + trackWidth*trackWidth)
	return math.Max(100, base*1.4)
}

// GearCount is the number of slots in the ratio table, neutral included.
func (c *Config) GearCount() int {
	return len(c.Gearbox.Ratios)
}

// GearRatio returns the gearbox ratio for a gear index.
func (c *Config) GearRatio(gear int) float64 {
	switch {
	case gear < 0:
		return c.Gearbox.ReverseRatio
	case gear >= len(c.Gearbox.Ratios):
		return 0
	default:
		return c.Gearbox.Ratios[gear]
	}
}

// Validate reports every out-of-range parameter at once.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(c.Chassis.Mass > 0, "chassis.mass must be > 0")
	check(c.Chassis.Wheelbase > 0, "chassis.wheelbase must be > 0")
	check(c.Chassis.TrackWidth > 0, "chassis.track_width must be > 0")
	check(c.Motion.MaxSpeed > 0, "motion.max_speed must be > 0")

	check(len(c.Engine.TorqueCurve) > 0, "engine.torque_curve must not be empty")
	check(c.Engine.IdleRPM > 0, "engine.idle_rpm must be > 0")
	check(c.Engine.MaxRPM > c.Engine.IdleRPM, "engine.max_rpm must exceed idle_rpm")

	check(len(c.Gearbox.Ratios) >= 2, "gearbox.ratios needs neutral plus at least one forward gear")
	check(c.Gearbox.FinalRatio > 0, "gearbox.final_ratio must be > 0")
	check(c.Gearbox.UpshiftRatio > c.Gearbox.DownshiftRatio, "gearbox upshift ratio must exceed downshift ratio")
	check(c.Gearbox.ShiftTime >= 0, "gearbox.shift_time must be >= 0")

	check(c.Differential.FrontRearSplit >= 0 && c.Differential.FrontRearSplit <= 1,
		"differential.front_rear_split must be within [0,1]")
	check(c.Differential.Type == DiffOpen || c.Differential.Type == DiffLimitedSlip,
		"differential.type %q unknown", c.Differential.Type)

	driven := false
	for i := 0; i < core.WheelCount; i++ {
		w, t, s := c.Wheels[i], c.Tires[i], c.Suspension[i]
		driven = driven || w.Driven
		check(w.Radius > 0, "wheels[%d].radius must be > 0", i)
		check(w.Mass >= 0, "wheels[%d].mass must be >= 0", i)
		check(t.Friction > 0, "tires[%d].friction must be > 0", i)
		check(t.LongStiffness > 0 && t.LatStiffness > 0, "tires[%d] stiffness must be > 0", i)
		check(s.NaturalFrequency > 0, "suspension[%d].natural_frequency must be > 0", i)
		check(s.DampingRatio >= 0, "suspension[%d].damping_ratio must be >= 0", i)
		check(s.MaxCompression > 0, "suspension[%d].max_compression must be > 0", i)
		check(s.MaxDroop >= 0, "suspension[%d].max_droop must be >= 0", i)
	}
	check(driven, "at least one wheel must be driven")

	check(c.Pose.MaxRoll > 0 && c.Pose.MaxPitch > 0, "pose max roll/pitch must be > 0")
	check(c.Pose.VelocityDecay > 0 && c.Pose.VelocityDecay <= 1, "pose.velocity_decay must be within (0,1]")

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
