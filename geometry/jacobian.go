package geometry

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Jacobian2x3 numerically estimates the 2x3 Jacobian d(pixel)/d(dir) of a
// camera projection at dir via central differences, for camera models that
// expose no closed-form derivative. Returns ok=false if any perturbed sample
// falls outside the region mapFn can project.
func Jacobian2x3(mapFn func(r3.Vector) (r2.Point, bool), dir r3.Vector) (jac [2][3]float64, ok bool) {
	const h = 1e-4
	axes := [3]r3.Vector{{X: 1}, {Y: 1}, {Z: 1}}
	for i, e := range axes {
		plus, okP := mapFn(dir.Add(e.Mul(h)))
		minus, okM := mapFn(dir.Sub(e.Mul(h)))
		if !okP || !okM {
			return jac, false
		}
		jac[0][i] = (plus.X - minus.X) / (2 * h)
		jac[1][i] = (plus.Y - minus.Y) / (2 * h)
	}
	return jac, true
}

// DirectionalPixelStep applies jac to delta and returns the pixel-space step
// that results, used to convert a 1-pixel image step into a step along delta
// (e.g. the alpha parameterization of an epipolar segment).
func DirectionalPixelStep(jac [2][3]float64, delta r3.Vector) r2.Point {
	return r2.Point{
		X: jac[0][0]*delta.X + jac[0][1]*delta.Y + jac[0][2]*delta.Z,
		Y: jac[1][0]*delta.X + jac[1][1]*delta.Y + jac[1][2]*delta.Z,
	}
}
