package vehicle

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/viper"

	"github.com/trackday/vehsim/pkg/core"
)

// PresetVersion is the only preset schema version accepted.
const PresetVersion = 2

// The preset file schema. Units are carried in the key names; angles are in
// degrees on disk and radians once converted.
type presetFile struct {
	Version int    `mapstructure:"version"`
	Name    string `mapstructure:"name"`

	Spawn struct {
		PositionM  []float64 `mapstructure:"position_m"`
		HeadingDeg float64   `mapstructure:"heading_deg"`
	} `mapstructure:"spawn"`

	Chassis struct {
		MassKg         float64   `mapstructure:"mass_kg"`
		CGHeightM      float64   `mapstructure:"cg_height_m"`
		CGPositionM    []float64 `mapstructure:"cg_position_m"`
		WheelbaseM     float64   `mapstructure:"wheelbase_m"`
		TrackWidthM    float64   `mapstructure:"track_width_m"`
		YawInertiaKgm2 float64   `mapstructure:"yaw_inertia_kgm2"`
	} `mapstructure:"chassis"`

	Controls struct {
		SteerMaxDeg    float64            `mapstructure:"steer_max_deg"`
		InputSmoothing map[string]float64 `mapstructure:"input_smoothing"`
		SteeringCurve  [][]float64        `mapstructure:"steering_speed_curve"`
	} `mapstructure:"controls"`

	Aero struct {
		Cd            float64 `mapstructure:"cd"`
		FrontalAreaM2 float64 `mapstructure:"frontal_area_m2"`
		AirDensity    float64 `mapstructure:"air_density"`
	} `mapstructure:"aero"`

	SimplePhysics struct {
		MaxSpeedKmh          float64 `mapstructure:"max_speed_kmh"`
		AccelerationMps2     float64 `mapstructure:"acceleration_mps2"`
		DecelerationMps2     float64 `mapstructure:"deceleration_mps2"`
		BrakeDecelerationMps float64 `mapstructure:"brake_deceleration_mps2"`
		TurnSpeedDegS        float64 `mapstructure:"turn_speed_deg_s"`
		MinTurnSpeedKmh      float64 `mapstructure:"min_turn_speed_kmh"`
	} `mapstructure:"simple_physics"`

	Powertrain struct {
		Engine struct {
			IdleRPM                 float64     `mapstructure:"idle_rpm"`
			MaxRPM                  float64     `mapstructure:"max_rpm"`
			TorqueCurveNm           [][]float64 `mapstructure:"torque_curve_nm"`
			DampingFullThrottle     float64     `mapstructure:"damping_full_throttle"`
			DampingClutchEngaged    float64     `mapstructure:"damping_zero_throttle_clutch_engaged"`
			DampingClutchDisengaged float64     `mapstructure:"damping_zero_throttle_clutch_disengaged"`
		} `mapstructure:"engine"`
		Gearbox struct {
			Ratios            []float64 `mapstructure:"ratios"`
			FinalDrive        float64   `mapstructure:"final_drive"`
			ReverseRatio      float64   `mapstructure:"reverse_ratio"`
			AutoShift         bool      `mapstructure:"auto_shift"`
			ShiftTimeS        float64   `mapstructure:"shift_time_s"`
			UpshiftRPMRatio   float64   `mapstructure:"upshift_rpm_ratio"`
			DownshiftRPMRatio float64   `mapstructure:"downshift_rpm_ratio"`
		} `mapstructure:"gearbox"`
		Differential struct {
			Type           string  `mapstructure:"type"`
			Layout         string  `mapstructure:"layout"`
			FrontRearSplit float64 `mapstructure:"front_rear_split"`
			FrontBias      float64 `mapstructure:"front_bias"`
			RearBias       float64 `mapstructure:"rear_bias"`
		} `mapstructure:"differential"`
	} `mapstructure:"powertrain"`

	Wheels []struct {
		PositionLocalM []float64 `mapstructure:"position_local_m"`
		RadiusM        float64   `mapstructure:"radius_m"`
		MassKg         float64   `mapstructure:"mass_kg"`
		CanSteer       bool      `mapstructure:"can_steer"`
		IsDriven       bool      `mapstructure:"is_driven"`
	} `mapstructure:"wheels"`

	Tires []struct {
		Mu              float64 `mapstructure:"mu"`
		LongStiff       float64 `mapstructure:"long_stiff"`
		LatStiff        float64 `mapstructure:"lat_stiff"`
		PneumaticTrailM float64 `mapstructure:"pneumatic_trail_m"`
	} `mapstructure:"tires"`

	Suspension struct {
		AntiRollFront float64 `mapstructure:"anti_roll_front"`
		AntiRollRear  float64 `mapstructure:"anti_roll_rear"`
		Wheels        []struct {
			NaturalFrequencyRadS float64 `mapstructure:"natural_frequency_rad_s"`
			DampingRatio         float64 `mapstructure:"damping_ratio"`
			RestLengthM          float64 `mapstructure:"rest_length_m"`
			MaxCompressionM      float64 `mapstructure:"max_compression_m"`
			MaxDroopM            float64 `mapstructure:"max_droop_m"`
		} `mapstructure:"wheels"`
	} `mapstructure:"suspension"`

	Pose struct {
		MaxRollDeg            float64 `mapstructure:"max_roll_deg"`
		MaxPitchDeg           float64 `mapstructure:"max_pitch_deg"`
		RollStiffness         float64 `mapstructure:"roll_stiffness"`
		PitchStiffness        float64 `mapstructure:"pitch_stiffness"`
		BounceStiffness       float64 `mapstructure:"bounce_stiffness"`
		RollDamping           float64 `mapstructure:"roll_damping"`
		PitchDamping          float64 `mapstructure:"pitch_damping"`
		BounceDamping         float64 `mapstructure:"bounce_damping"`
		RollSuspensionWeight  float64 `mapstructure:"roll_suspension_weight"`
		PitchSuspensionWeight float64 `mapstructure:"pitch_suspension_weight"`
		BounceScale           float64 `mapstructure:"bounce_scale"`
		VelocityDecay         float64 `mapstructure:"velocity_decay"`
	} `mapstructure:"pose"`
}

func setPresetDefaults(v *viper.Viper) {
	v.SetDefault("name", "Vehicle")
	v.SetDefault("spawn.position_m", []float64{0, 0, 0.5})
	v.SetDefault("chassis.mass_kg", 1500.0)
	v.SetDefault("chassis.cg_height_m", 0.55)

	v.SetDefault("controls.steer_max_deg", 35.0)
	v.SetDefault("controls.steering_speed_curve", [][]float64{{0, 1}, {60, 0.8}, {120, 0.6}})

	v.SetDefault("aero.cd", 0.35)
	v.SetDefault("aero.frontal_area_m2", 2.2)
	v.SetDefault("aero.air_density", 1.225)

	v.SetDefault("simple_physics.max_speed_kmh", 160.0)
	v.SetDefault("simple_physics.acceleration_mps2", 5.0)
	v.SetDefault("simple_physics.deceleration_mps2", 3.0)
	v.SetDefault("simple_physics.brake_deceleration_mps2", 9.0)
	v.SetDefault("simple_physics.turn_speed_deg_s", 90.0)
	v.SetDefault("simple_physics.min_turn_speed_kmh", 150.0)

	v.SetDefault("powertrain.engine.idle_rpm", 800.0)
	v.SetDefault("powertrain.engine.max_rpm", 6000.0)
	v.SetDefault("powertrain.engine.damping_full_throttle", 0.15)
	v.SetDefault("powertrain.engine.damping_zero_throttle_clutch_engaged", 2.0)
	v.SetDefault("powertrain.engine.damping_zero_throttle_clutch_disengaged", 0.35)
	v.SetDefault("powertrain.gearbox.ratios", []float64{0, 3.5, 2.5, 1.8, 1.4, 1.0})
	v.SetDefault("powertrain.gearbox.final_drive", 3.5)
	v.SetDefault("powertrain.gearbox.reverse_ratio", -3.5)
	v.SetDefault("powertrain.gearbox.auto_shift", true)
	v.SetDefault("powertrain.gearbox.shift_time_s", 0.3)
	v.SetDefault("powertrain.gearbox.upshift_rpm_ratio", 0.85)
	v.SetDefault("powertrain.gearbox.downshift_rpm_ratio", 0.35)
	v.SetDefault("powertrain.differential.type", string(DiffLimitedSlip))
	v.SetDefault("powertrain.differential.front_rear_split", 0.5)
	v.SetDefault("powertrain.differential.front_bias", 1.5)
	v.SetDefault("powertrain.differential.rear_bias", 2.0)

	v.SetDefault("pose.max_roll_deg", 5.0)
	v.SetDefault("pose.max_pitch_deg", 3.0)
	v.SetDefault("pose.roll_stiffness", 10000.0)
	v.SetDefault("pose.pitch_stiffness", 10000.0)
	v.SetDefault("pose.bounce_stiffness", 15000.0)
	v.SetDefault("pose.roll_damping", 500.0)
	v.SetDefault("pose.pitch_damping", 500.0)
	v.SetDefault("pose.bounce_damping", 800.0)
	v.SetDefault("pose.roll_suspension_weight", 0.3)
	v.SetDefault("pose.pitch_suspension_weight", 0.3)
	v.SetDefault("pose.bounce_scale", 0.3)
	v.SetDefault("pose.velocity_decay", 0.95)
}

// LoadPreset reads a JSON preset file and returns a finalized Config.
func LoadPreset(path string) (*Config, error) {
	v := viper.New()
	setPresetDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read preset %s: %w", filepath.Base(path), err)
	}
	return decodePreset(v)
}

// ParsePreset is LoadPreset for an in-memory document.
func ParsePreset(r io.Reader) (*Config, error) {
	v := viper.New()
	setPresetDefaults(v)
	v.SetConfigType("json")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("parse preset: %w", err)
	}
	return decodePreset(v)
}

func decodePreset(v *viper.Viper) (*Config, error) {
	var raw presetFile
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("decode preset: %w", err)
	}
	if raw.Version != PresetVersion {
		return nil, fmt.Errorf("%w: preset version %d, want %d", ErrInvalidConfig, raw.Version, PresetVersion)
	}
	c, err := raw.toConfig()
	if err != nil {
		return nil, err
	}
	return Finalize(c)
}

func vec3(in []float64, def core.Vec3) core.Vec3 {
	if len(in) < 3 {
		return def
	}
	return core.Vec3{in[0], in[1], in[2]}
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func curve(in [][]float64) ([]CurvePoint, error) {
	out := make([]CurvePoint, 0, len(in))
	for i, p := range in {
		if len(p) < 2 {
			return nil, fmt.Errorf("%w: curve point %d needs two values", ErrInvalidConfig, i)
		}
		out = append(out, CurvePoint{X: p[0], Y: p[1]})
	}
	return out, nil
}

func (p *presetFile) toConfig() (Config, error) {
	var c Config
	if len(p.Wheels) != core.WheelCount || len(p.Tires) != core.WheelCount || len(p.Suspension.Wheels) != core.WheelCount {
		return c, fmt.Errorf("%w: wheels, tires and suspension.wheels need %d entries each (got %d/%d/%d)",
			ErrInvalidConfig, core.WheelCount, len(p.Wheels), len(p.Tires), len(p.Suspension.Wheels))
	}

	c.Name = p.Name
	c.Spawn = Spawn{
		Position: vec3(p.Spawn.PositionM, core.Vec3{0, 0, 0.5}),
		Heading:  mgl64.DegToRad(p.Spawn.HeadingDeg),
	}
	c.Chassis = Chassis{
		Mass:         p.Chassis.MassKg,
		CGHeight:     p.Chassis.CGHeightM,
		CenterOfMass: vec3(p.Chassis.CGPositionM, core.Vec3{0, 0, p.Chassis.CGHeightM}),
		Wheelbase:    p.Chassis.WheelbaseM,
		TrackWidth:   p.Chassis.TrackWidthM,
		YawInertia:   p.Chassis.YawInertiaKgm2,
	}

	steering, err := curve(p.Controls.SteeringCurve)
	if err != nil {
		return c, err
	}
	s := p.Controls.InputSmoothing
	c.Controls = Controls{
		MaxSteerAngle: mgl64.DegToRad(p.Controls.SteerMaxDeg),
		Smoothing: Smoothing{
			ThrottleRise: orDefault(s["throttle_rise"], 3),
			ThrottleFall: orDefault(s["throttle_fall"], 5),
			BrakeRise:    orDefault(s["brake_rise"], 5),
			BrakeFall:    orDefault(s["brake_fall"], 5),
			SteeringRise: orDefault(s["steering_rise"], 2.5),
			SteeringFall: orDefault(s["steering_fall"], 4),
			ClutchRise:   orDefault(s["clutch_rise"], 5),
			ClutchFall:   orDefault(s["clutch_fall"], 5),
		},
		SteeringSpeedCurve: steering,
	}
	c.Aero = Aero{
		DragCoefficient: p.Aero.Cd,
		FrontalArea:     p.Aero.FrontalAreaM2,
		AirDensity:      p.Aero.AirDensity,
	}
	c.Motion = Motion{
		MaxSpeed:          p.SimplePhysics.MaxSpeedKmh / 3.6,
		Acceleration:      p.SimplePhysics.AccelerationMps2,
		Deceleration:      p.SimplePhysics.DecelerationMps2,
		BrakeDeceleration: p.SimplePhysics.BrakeDecelerationMps,
		TurnSpeed:         mgl64.DegToRad(p.SimplePhysics.TurnSpeedDegS),
		SpeedForMinTurn:   p.SimplePhysics.MinTurnSpeedKmh / 3.6,
	}

	eng := p.Powertrain.Engine
	torque, err := curve(eng.TorqueCurveNm)
	if err != nil {
		return c, err
	}
	c.Engine = Engine{
		IdleRPM:                 eng.IdleRPM,
		MaxRPM:                  eng.MaxRPM,
		TorqueCurve:             torque,
		DampingFullThrottle:     eng.DampingFullThrottle,
		DampingClutchEngaged:    eng.DampingClutchEngaged,
		DampingClutchDisengaged: eng.DampingClutchDisengaged,
	}
	gb := p.Powertrain.Gearbox
	c.Gearbox = Gearbox{
		Ratios:         gb.Ratios,
		FinalRatio:     gb.FinalDrive,
		ReverseRatio:   gb.ReverseRatio,
		AutoShift:      gb.AutoShift,
		ShiftTime:      gb.ShiftTimeS,
		UpshiftRatio:   gb.UpshiftRPMRatio,
		DownshiftRatio: gb.DownshiftRPMRatio,
	}
	diff := p.Powertrain.Differential
	c.Differential = Differential{
		Type:           DiffType(strings.ToLower(diff.Type)),
		Layout:         Layout(strings.ToUpper(diff.Layout)),
		FrontRearSplit: diff.FrontRearSplit,
		FrontBias:      diff.FrontBias,
		RearBias:       diff.RearBias,
	}

	for i := 0; i < core.WheelCount; i++ {
		w, t, sw := p.Wheels[i], p.Tires[i], p.Suspension.Wheels[i]
		c.Wheels[i] = Wheel{
			Position:  vec3(w.PositionLocalM, core.Vec3{}),
			Radius:    orDefault(w.RadiusM, 0.35),
			Mass:      orDefault(w.MassKg, 20),
			Steerable: w.CanSteer,
			Driven:    w.IsDriven,
		}
		c.Tires[i] = Tire{
			Friction:       orDefault(t.Mu, 1.0),
			LongStiffness:  orDefault(t.LongStiff, 50000),
			LatStiffness:   orDefault(t.LatStiff, 50000),
			PneumaticTrail: orDefault(t.PneumaticTrailM, 0.02),
		}
		c.Suspension[i] = Suspension{
			NaturalFrequency: orDefault(sw.NaturalFrequencyRadS, 12),
			DampingRatio:     orDefault(sw.DampingRatio, 0.7),
			RestLength:       orDefault(sw.RestLengthM, 0.3),
			MaxCompression:   orDefault(sw.MaxCompressionM, 0.1),
			MaxDroop:         orDefault(sw.MaxDroopM, 0.1),
		}
	}
	c.AntiRoll = AntiRoll{Front: p.Suspension.AntiRollFront, Rear: p.Suspension.AntiRollRear}

	c.Pose = Pose{
		MaxRoll:               mgl64.DegToRad(p.Pose.MaxRollDeg),
		MaxPitch:              mgl64.DegToRad(p.Pose.MaxPitchDeg),
		RollStiffness:         p.Pose.RollStiffness,
		PitchStiffness:        p.Pose.PitchStiffness,
		BounceStiffness:       p.Pose.BounceStiffness,
		RollDamping:           p.Pose.RollDamping,
		PitchDamping:          p.Pose.PitchDamping,
		BounceDamping:         p.Pose.BounceDamping,
		RollSuspensionWeight:  p.Pose.RollSuspensionWeight,
		PitchSuspensionWeight: p.Pose.PitchSuspensionWeight,
		BounceScale:           p.Pose.BounceScale,
		VelocityDecay:         p.Pose.VelocityDecay,
	}
	return c, nil
}
