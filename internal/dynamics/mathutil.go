package dynamics

import (
	"math"

	"github.com/trackday/vehsim/internal/vehicle"
)

// SlipSpeedFloor is the speed below which slip ratios are undefined and
// tire forces are zero.
const SlipSpeedFloor = 0.5

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// wrapAngle maps a to [0, 2π).
func wrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// interpolate evaluates a sorted piecewise-linear curve, holding the end
// values outside the covered range.
func interpolate(curve []vehicle.CurvePoint, x float64) float64 {
	if len(curve) == 0 {
		return 1
	}
	if x <= curve[0].X {
		return curve[0].Y
	}
	for i := 1; i < len(curve); i++ {
		a, b := curve[i-1], curve[i]
		if x <= b.X {
			if b.X == a.X {
				return b.Y
			}
			t := (x - a.X) / (b.X - a.X)
			return a.Y + t*(b.Y-a.Y)
		}
	}
	return curve[len(curve)-1].Y
}
