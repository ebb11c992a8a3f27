package camera

import (
	"image"
	"math"
	"testing"

	"go.viam.com/test"
)

func getMagnitudeAndDirection(x, y float64) (float64, float64) {
	return math.Hypot(x, y), math.Atan2(y, x)
}

func TestVectorFieldToDenseAndBack(t *testing.T) {
	width, height := 50, 30
	vf := MakeEmptyVectorField2D(width, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			mag, dir := getMagnitudeAndDirection(float64(x), float64(y))
			vf.Set(x, y, Vec2D{mag, dir})
		}
	}

	magMat := vf.MagnitudeField()
	dirMat := vf.DirectionField()
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			p := image.Point{X: x, Y: y}
			test.That(t, magMat.At(y, x), test.ShouldEqual, vf.Get(p).Magnitude())
			test.That(t, dirMat.At(y, x), test.ShouldEqual, vf.Get(p).Direction())
		}
	}

	vf2, err := VectorField2DFromDense(magMat, dirMat)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vf2.Width(), test.ShouldEqual, vf.Width())
	test.That(t, vf2.Height(), test.ShouldEqual, vf.Height())
	test.That(t, vf2.GetVec2D(7, 3), test.ShouldResemble, vf.GetVec2D(7, 3))
}

func TestRadZeroTo2Pi(t *testing.T) {
	test.That(t, radZeroTo2Pi(-math.Pi/2), test.ShouldAlmostEqual, 3*math.Pi/2, 1e-9)
	test.That(t, radZeroTo2Pi(5*math.Pi), test.ShouldAlmostEqual, math.Pi, 1e-9)
	test.That(t, radZeroTo2Pi(math.Pi/4), test.ShouldAlmostEqual, math.Pi/4, 1e-9)
}
