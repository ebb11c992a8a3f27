// Package camera defines the abstract camera projection contract the VO core
// depends on, plus a concrete equidistant-fisheye reference implementation
// and the grayscale image pyramid / gradient / bicubic-interpolation
// machinery the tracker and point engine consume.
package camera

import (
	"image"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Model is the external camera-projection contract. Every concrete
// implementation must be safe for concurrent read-only use: the pipeline
// shares one Model (per pyramid level) across every solver worker.
type Model interface {
	// Unmap converts a pixel into a unit ray in camera coordinates.
	Unmap(p r2.Point) r3.Vector

	// Map projects a direction back to a pixel. ok is false when dir falls
	// outside the region the model can represent (beyond MaxAngle()).
	Map(dir r3.Vector) (p r2.Point, ok bool)

	// IsOnImage reports whether p lies at least border pixels inside the
	// image bounds.
	IsOnImage(p r2.Point, border float64) bool

	// MaxAngle gives the maximum angle off the principal axis for which Map
	// is valid.
	MaxAngle() float64

	// Bounds returns the pixel-space image bounds this model projects onto.
	Bounds() image.Rectangle
}

// ScalableModel is a Model that knows how to rescale its intrinsics for a
// lower pyramid octave, matching rdk's camPyr() naming.
type ScalableModel interface {
	Model
	ScaledBy(factor float64) Model
}
