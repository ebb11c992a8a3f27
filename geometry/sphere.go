package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// IntersectOnSphere clips the great-circle segment between *dirMin and
// *dirMax (both unit vectors) to the spherical cap z >= cos(maxAngle) around
// the +Z axis, mutating the endpoints in place. It returns false if the
// intersection is empty (DegenerateGeometry).
//
// The mutated segment is guaranteed to be a subset of the input segment and
// to lie entirely within the cap, i.e. the "well-mapped" region of a camera
// model whose MaxAngle() is maxAngle.
func IntersectOnSphere(maxAngle float64, dirMin, dirMax *r3.Vector) bool {
	cosMax := math.Cos(maxAngle)

	zMin := zOf(*dirMin)
	zMax := zOf(*dirMax)

	insideMin := zMin >= cosMax
	insideMax := zMax >= cosMax

	if insideMin && insideMax {
		return true
	}
	if !insideMin && !insideMax {
		// Both endpoints outside the cap: either the whole segment misses
		// it, or it clips through a lens-shaped region. We walk the
		// segment to find crossings rather than assume a miss, since the
		// great-circle arc can dip into the cap between two out-of-cap
		// endpoints.
		return clipBothOutside(cosMax, dirMin, dirMax)
	}

	// Exactly one endpoint is inside: binary-search the crossing point
	// along the great-circle arc (angle param alpha in [0,1], matching the
	// dir(alpha) = (1-alpha)*dirMax + alpha*dirMin convention used for the
	// epipolar segment walk) and
	// replace the outside endpoint with it.
	a := findCrossing(cosMax, *dirMax, *dirMin)
	if insideMin {
		*dirMax = a
	} else {
		*dirMin = a
	}
	return true
}

func zOf(v r3.Vector) float64 {
	n := v.Norm()
	if n == 0 {
		return -1
	}
	return v.Z / n
}

// findCrossing bisects dir(alpha) = normalize((1-alpha)*from + alpha*to) for
// the alpha where z crosses cosMax, assuming z(from) and z(to) straddle it.
func findCrossing(cosMax float64, from, to r3.Vector) r3.Vector {
	lo, hi := 0.0, 1.0
	dirAt := func(alpha float64) r3.Vector {
		return from.Mul(1 - alpha).Add(to.Mul(alpha)).Normalize()
	}
	zLo := zOf(dirAt(lo)) - cosMax
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2
		zMid := zOf(dirAt(mid)) - cosMax
		if (zMid >= 0) == (zLo >= 0) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return dirAt((lo + hi) / 2)
}

// clipBothOutside handles the case where both endpoints sit outside the cap
// but the arc between them may still clip through it; it samples the arc to
// locate up to two crossings and keeps the inside sub-segment, if any.
func clipBothOutside(cosMax float64, dirMin, dirMax *r3.Vector) bool {
	const samples = 64
	from, to := *dirMax, *dirMin
	prevZ := zOf(from) - cosMax
	prevAlpha := 0.0
	var enter, exit *r3.Vector
	for i := 1; i <= samples; i++ {
		alpha := float64(i) / samples
		dir := from.Mul(1 - alpha).Add(to.Mul(alpha)).Normalize()
		z := zOf(dir) - cosMax
		if (z >= 0) != (prevZ >= 0) {
			c := findCrossing(cosMax, from.Mul(1-prevAlpha).Add(to.Mul(prevAlpha)).Normalize(), dir)
			if enter == nil {
				enter = &c
			} else {
				exit = &c
			}
		}
		prevZ = z
		prevAlpha = alpha
	}
	if enter == nil {
		return false
	}
	if exit == nil {
		exit = enter
	}
	*dirMax = *enter
	*dirMin = *exit
	return true
}

// SphericalPlus is a 2-DOF local parameterization for a 3-vector constrained
// to lie on a sphere of the given center/radius: it maps a tangent
// (delta.X, delta.Y) in the plane orthogonal to (base-center) to a new point
// on the sphere, used to fix the scale of the first-to-second keyframe
// baseline during BA.
func SphericalPlus(center r3.Vector, radius float64, base r3.Vector) func(delta [2]float64) r3.Vector {
	axis := base.Sub(center).Normalize()
	u, v := orthonormalBasis(axis)
	return func(delta [2]float64) r3.Vector {
		w := axis.Add(u.Mul(delta[0])).Add(v.Mul(delta[1])).Normalize()
		return center.Add(w.Mul(radius))
	}
}

// orthonormalBasis returns two unit vectors orthogonal to axis and to each
// other, using whichever coordinate axis is least parallel to axis as a seed
// to avoid the degenerate cross product near the poles.
func orthonormalBasis(axis r3.Vector) (r3.Vector, r3.Vector) {
	seed := r3.Vector{X: 1}
	if math.Abs(axis.X) > 0.9 {
		seed = r3.Vector{Y: 1}
	}
	u := axis.Cross(seed).Normalize()
	v := axis.Cross(u).Normalize()
	return u, v
}
