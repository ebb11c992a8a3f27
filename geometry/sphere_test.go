package geometry

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestIntersectOnSphereBothInside(t *testing.T) {
	maxAngle := math.Pi / 3
	dirMin := r3.Vector{X: 0.1, Y: 0, Z: 1}.Normalize()
	dirMax := r3.Vector{X: -0.1, Y: 0, Z: 1}.Normalize()
	origMin, origMax := dirMin, dirMax

	ok := IntersectOnSphere(maxAngle, &dirMin, &dirMax)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, dirMin, test.ShouldResemble, origMin)
	test.That(t, dirMax, test.ShouldResemble, origMax)
}

func TestIntersectOnSphereClipsOutside(t *testing.T) {
	maxAngle := math.Pi / 6 // 30 degrees
	// dirMax well inside the cap, dirMin well outside (near the equator).
	dirMax := r3.Vector{X: 0, Y: 0, Z: 1}
	dirMin := r3.Vector{X: 1, Y: 0, Z: 0.01}.Normalize()

	ok := IntersectOnSphere(maxAngle, &dirMin, &dirMax)
	test.That(t, ok, test.ShouldBeTrue)

	cosMax := math.Cos(maxAngle)
	test.That(t, zOf(dirMin), test.ShouldBeGreaterThanOrEqualTo, cosMax-1e-6)
	test.That(t, zOf(dirMax), test.ShouldBeGreaterThanOrEqualTo, cosMax-1e-6)
}

func TestIntersectOnSphereEmpty(t *testing.T) {
	maxAngle := math.Pi / 12
	dirMin := r3.Vector{X: 1, Y: 0, Z: 0}
	dirMax := r3.Vector{X: -1, Y: 0, Z: 0}

	ok := IntersectOnSphere(maxAngle, &dirMin, &dirMax)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestSphericalPlusOnManifold(t *testing.T) {
	center := r3.Vector{X: 1, Y: 2, Z: 3}
	radius := 2.5
	base := center.Add(r3.Vector{X: radius, Y: 0, Z: 0})

	plus := SphericalPlus(center, radius, base)

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 20; i++ {
		delta := [2]float64{rng.Float64()*2 - 1, rng.Float64()*2 - 1}
		p := plus(delta)
		test.That(t, p.Sub(center).Norm(), test.ShouldAlmostEqual, radius, 1e-9)
	}
}
