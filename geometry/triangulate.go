package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Triangulate performs a standard two-view midpoint triangulation of a
// correspondence given by two unit ray directions observed from frames
// related by baseToRef (dirRef is expressed in ref, dirBase in base).
//
// It returns the signed depths along each ray to the closest point of the two
// rays; ok is false when the rays are (numerically) parallel or either
// resulting depth is non-positive, in which case depthBase/depthRef are
// undefined (NumericInfeasibility).
func Triangulate(baseToRef SE3, dirBase, dirRef r3.Vector) (depthBase, depthRef float64, ok bool) {
	// Express both rays in the ref frame: ray 1 starts at the ref-frame
	// origin along dirRef; ray 2 starts at baseToRef.Trans (the base
	// camera center, expressed in ref) along baseToRef.ApplyRotation(dirBase).
	d1 := dirRef.Normalize()
	d2 := baseToRef.ApplyRotation(dirBase).Normalize()
	originDiff := baseToRef.Trans // ray2 origin minus ray1 origin

	// Solve the 2x2 normal-equations system for the closest-approach
	// parameters (s1 along d1, s2 along d2) via DLT-style least squares:
	// minimize || s1*d1 - s2*d2 - originDiff ||^2.
	a11 := d1.Dot(d1)
	a12 := -d1.Dot(d2)
	a22 := d2.Dot(d2)
	b1 := d1.Dot(originDiff)
	b2 := d2.Dot(originDiff)

	A := mat.NewDense(2, 2, []float64{a11, a12, a12, a22})
	b := mat.NewVecDense(2, []float64{b1, -b2})

	det := a11*a22 - a12*a12
	if math.Abs(det) < 1e-12 {
		return 0, 0, false
	}

	var x mat.VecDense
	if err := x.SolveVec(A, b); err != nil {
		return 0, 0, false
	}

	depthRef = x.AtVec(0)
	depthBase = x.AtVec(1)

	if depthRef <= 0 || depthBase <= 0 || math.IsNaN(depthRef) || math.IsNaN(depthBase) {
		return 0, 0, false
	}
	return depthBase, depthRef, true
}
