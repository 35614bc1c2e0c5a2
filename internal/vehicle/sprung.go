package vehicle

import (
	"github.com/samber/lo"

	"github.com/trackday/vehsim/pkg/core"
)

// minLeverArm keeps a wheel sitting on the centre of mass from taking the
// whole body.
const minLeverArm = 0.1

// ComputeSprungMasses splits the body mass over the four corners by inverse
// planar distance to the centre of mass. The shares always sum to totalMass.
func ComputeSprungMasses(totalMass float64, com core.Vec3, wheels [core.WheelCount]core.Vec3) [core.WheelCount]float64 {
	var inv [core.WheelCount]float64
	for i, p := range wheels {
		d := p.Vec2().Sub(com.Vec2()).Len()
		if d < minLeverArm {
			d = minLeverArm
		}
		inv[i] = 1 / d
	}
	sum := lo.Sum(inv[:])

	var out [core.WheelCount]float64
	assigned := 0.0
	for i := 0; i < core.WheelCount-1; i++ {
		out[i] = totalMass * inv[i] / sum
		assigned += out[i]
	}
	// Remainder on the last corner so rounding never leaks mass.
	out[core.WheelCount-1] = totalMass - assigned
	return out
}
