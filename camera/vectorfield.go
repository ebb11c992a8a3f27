package camera

import (
	"image"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Vec2D is a magnitude/direction pair, matching rdk's polar gradient
// representation rather than a raw (dx, dy) pair: the point engine and the
// gradient-weighted residual in bundle adjustment both want magnitude alone,
// and keeping direction alongside it keeps debug visualization cheap.
type Vec2D struct {
	mag, dir float64
}

// Magnitude returns the vector's length.
func (v Vec2D) Magnitude() float64 { return v.mag }

// Direction returns the vector's angle in radians.
func (v Vec2D) Direction() float64 { return v.dir }

// VectorField2D is a dense grid of Vec2D samples, one per pixel.
type VectorField2D struct {
	width, height int
	vectors       []Vec2D
}

// MakeEmptyVectorField2D allocates a zero-valued field of the given size.
func MakeEmptyVectorField2D(width, height int) VectorField2D {
	return VectorField2D{width: width, height: height, vectors: make([]Vec2D, width*height)}
}

// Width returns the field's pixel width.
func (vf *VectorField2D) Width() int { return vf.width }

// Height returns the field's pixel height.
func (vf *VectorField2D) Height() int { return vf.height }

func (vf *VectorField2D) index(x, y int) int { return y*vf.width + x }

// Set stores v at pixel (x, y).
func (vf *VectorField2D) Set(x, y int, v Vec2D) { vf.vectors[vf.index(x, y)] = v }

// Get returns the Vec2D at p.
func (vf *VectorField2D) Get(p image.Point) Vec2D { return vf.vectors[vf.index(p.X, p.Y)] }

// GetVec2D returns the Vec2D at pixel (x, y).
func (vf *VectorField2D) GetVec2D(x, y int) Vec2D { return vf.vectors[vf.index(x, y)] }

// MagnitudeField returns the field's magnitudes as a row-major gonum matrix,
// indexed [y][x] to match image convention.
func (vf *VectorField2D) MagnitudeField() *mat.Dense {
	m := mat.NewDense(vf.height, vf.width, nil)
	for y := 0; y < vf.height; y++ {
		for x := 0; x < vf.width; x++ {
			m.Set(y, x, vf.GetVec2D(x, y).mag)
		}
	}
	return m
}

// DirectionField returns the field's directions as a row-major gonum matrix,
// indexed [y][x].
func (vf *VectorField2D) DirectionField() *mat.Dense {
	m := mat.NewDense(vf.height, vf.width, nil)
	for y := 0; y < vf.height; y++ {
		for x := 0; x < vf.width; x++ {
			m.Set(y, x, vf.GetVec2D(x, y).dir)
		}
	}
	return m
}

// VectorField2DFromDense rebuilds a field from magnitude/direction matrices
// produced by MagnitudeField/DirectionField.
func VectorField2DFromDense(mag, dir *mat.Dense) (*VectorField2D, error) {
	h, w := mag.Dims()
	vf := MakeEmptyVectorField2D(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			vf.Set(x, y, Vec2D{mag: mag.At(y, x), dir: dir.At(y, x)})
		}
	}
	return &vf, nil
}

// radZeroTo2Pi folds an angle into [0, 2*pi).
func radZeroTo2Pi(rad float64) float64 {
	for rad < 0 {
		rad += 2 * math.Pi
	}
	for rad >= 2*math.Pi {
		rad -= 2 * math.Pi
	}
	return rad
}
