package camera

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// EquidistantFisheye is the reference Model implementation: an equidistant
// (f-theta) fisheye projection, r = f*theta, generalizing rdk's
// perspective-plus-radial-distortion BrownConrady model to the wide
// field-of-view lenses this pipeline is meant to run against.
type EquidistantFisheye struct {
	Width, Height  int
	Fx, Fy         float64
	Cx, Cy         float64
	MaxAngleRadius float64 // maximum theta this model will Map; Unmap does not check it
}

var _ Model = EquidistantFisheye{}

// Unmap converts pixel p into a unit ray.
func (c EquidistantFisheye) Unmap(p r2.Point) r3.Vector {
	dx := (p.X - c.Cx) / c.Fx
	dy := (p.Y - c.Cy) / c.Fy
	r := math.Hypot(dx, dy)
	if r < 1e-12 {
		return r3.Vector{X: 0, Y: 0, Z: 1}
	}
	theta := r
	phi := math.Atan2(dy, dx)
	sinTheta := math.Sin(theta)
	return r3.Vector{
		X: sinTheta * math.Cos(phi),
		Y: sinTheta * math.Sin(phi),
		Z: math.Cos(theta),
	}
}

// Map projects dir onto the pixel plane; ok is false past MaxAngle.
func (c EquidistantFisheye) Map(dir r3.Vector) (r2.Point, bool) {
	dir = dir.Normalize()
	theta := math.Acos(clamp(dir.Z, -1, 1))
	if theta > c.MaxAngleRadius {
		return r2.Point{}, false
	}
	phi := math.Atan2(dir.Y, dir.X)
	r := theta
	x := c.Cx + r*math.Cos(phi)*c.Fx
	y := c.Cy + r*math.Sin(phi)*c.Fy
	return r2.Point{X: x, Y: y}, true
}

// IsOnImage reports whether p lies at least border pixels inside bounds.
func (c EquidistantFisheye) IsOnImage(p r2.Point, border float64) bool {
	return p.X >= border && p.Y >= border &&
		p.X < float64(c.Width)-border && p.Y < float64(c.Height)-border
}

// MaxAngle returns the configured maximum field-of-view half-angle.
func (c EquidistantFisheye) MaxAngle() float64 { return c.MaxAngleRadius }

// Bounds returns the pixel-space image rectangle.
func (c EquidistantFisheye) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.Width, c.Height)
}

// ScaledBy returns this model with intrinsics and resolution scaled by
// factor (e.g. 0.5 for one pyramid octave down).
func (c EquidistantFisheye) ScaledBy(factor float64) Model {
	return EquidistantFisheye{
		Width:  int(float64(c.Width) * factor),
		Height: int(float64(c.Height) * factor),
		Fx:     c.Fx * factor, Fy: c.Fy * factor,
		Cx: c.Cx * factor, Cy: c.Cy * factor,
		MaxAngleRadius: c.MaxAngleRadius,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
