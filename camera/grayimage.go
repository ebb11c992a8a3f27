package camera

import (
	"image"
	"image/color"
	"math"
)

// GrayImage is a dense float64 single-channel image, the working
// representation for every pyramid level: photometric tracking and depth
// search both want sub-pixel intensity, not the 8-bit image.Gray the frame
// arrived as.
type GrayImage struct {
	width, height int
	pix           []float64
}

// NewGrayImage allocates a zero-valued image of the given size.
func NewGrayImage(width, height int) *GrayImage {
	return &GrayImage{width: width, height: height, pix: make([]float64, width*height)}
}

// GrayImageFromImage converts a standard library image into a GrayImage,
// using color.GrayModel's luminance-weighted conversion when the source
// isn't already gray.
func GrayImageFromImage(img image.Image) *GrayImage {
	b := img.Bounds()
	out := NewGrayImage(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			out.Set(x-b.Min.X, y-b.Min.Y, float64(g.Y))
		}
	}
	return out
}

// Width returns the image's pixel width.
func (g *GrayImage) Width() int { return g.width }

// Height returns the image's pixel height.
func (g *GrayImage) Height() int { return g.height }

// Bounds returns the image's bounding rectangle, with origin at (0, 0).
func (g *GrayImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.width, g.height)
}

// At returns the intensity at integer pixel (x, y).
func (g *GrayImage) At(x, y int) float64 { return g.pix[y*g.width+x] }

// Set stores the intensity at integer pixel (x, y).
func (g *GrayImage) Set(x, y int, v float64) { g.pix[y*g.width+x] = v }

func (g *GrayImage) clampedAt(x, y int) float64 {
	if x < 0 {
		x = 0
	}
	if x >= g.width {
		x = g.width - 1
	}
	if y < 0 {
		y = 0
	}
	if y >= g.height {
		y = g.height - 1
	}
	return g.At(x, y)
}

// cubic is the Catmull-Rom convolution kernel used for InterpolateBicubic.
func cubic(x float64) float64 {
	const a = -0.5
	x = math.Abs(x)
	switch {
	case x <= 1:
		return (a+2)*x*x*x - (a+3)*x*x + 1
	case x < 2:
		return a*x*x*x - 5*a*x*x + 8*a*x - 4*a
	default:
		return 0
	}
}

// InterpolateBicubic samples the image at sub-pixel coordinate (x, y) using
// Catmull-Rom bicubic interpolation over the surrounding 4x4 neighborhood,
// clamping at the border rather than rejecting it outright.
func (g *GrayImage) InterpolateBicubic(x, y float64) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	var rows [4]float64
	for j := -1; j <= 2; j++ {
		var v float64
		for i := -1; i <= 2; i++ {
			v += g.clampedAt(x0+i, y0+j) * cubic(float64(i)-fx)
		}
		rows[j+1] = v
	}
	var out float64
	for j := -1; j <= 2; j++ {
		out += rows[j+1] * cubic(float64(j)-fy)
	}
	return out
}

// InterpolateBicubicGrad returns the sampled intensity together with its
// (dIx, dIy) gradient, estimated by central differencing the interpolant.
func (g *GrayImage) InterpolateBicubicGrad(x, y float64) (v, dx, dy float64) {
	const h = 0.5
	v = g.InterpolateBicubic(x, y)
	dx = (g.InterpolateBicubic(x+h, y) - g.InterpolateBicubic(x-h, y)) / (2 * h)
	dy = (g.InterpolateBicubic(x, y+h) - g.InterpolateBicubic(x, y-h)) / (2 * h)
	return v, dx, dy
}

// PyrDown returns a half-resolution image built by averaging 2x2 blocks,
// matching rdk's pyramid downsampling convention.
func (g *GrayImage) PyrDown() *GrayImage {
	w, h := g.width/2, g.height/2
	out := NewGrayImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := g.At(2*x, 2*y) + g.At(2*x+1, 2*y) + g.At(2*x, 2*y+1) + g.At(2*x+1, 2*y+1)
			out.Set(x, y, sum/4)
		}
	}
	return out
}

// Convolve applies k to the image, clamping at borders, and returns the
// response as a new GrayImage the same size as g.
func (g *GrayImage) Convolve(k *Kernel) *GrayImage {
	out := NewGrayImage(g.width, g.height)
	half := k.Size() / 2
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			var sum float64
			for dy := -half; dy <= half; dy++ {
				for dx := -half; dx <= half; dx++ {
					sum += g.clampedAt(x+dx, y+dy) * k.At(dx, dy)
				}
			}
			out.Set(x, y, sum)
		}
	}
	return out
}

// SobelGradient computes the per-pixel gradient magnitude/direction field
// via 3x3 Sobel convolution, the basis for both the point-activation
// gradient score and the bundle-adjustment gradient weighting.
func SobelGradient(g *GrayImage) *VectorField2D {
	gx := g.Convolve(SobelX())
	gy := g.Convolve(SobelY())
	vf := MakeEmptyVectorField2D(g.width, g.height)
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			dx, dy := gx.At(x, y), gy.At(x, y)
			mag := math.Hypot(dx, dy)
			dir := math.Atan2(dy, dx)
			vf.Set(x, y, Vec2D{mag: mag, dir: dir})
		}
	}
	return &vf
}
