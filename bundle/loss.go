package bundle

import "math"

// HuberLoss returns the Huber penalty for residual r against threshold
// thresh: quadratic below the threshold, linear beyond it, so a handful of
// outlier pixels can't dominate the photometric cost the way a pure
// least-squares residual would.
func HuberLoss(r, thresh float64) float64 {
	ar := math.Abs(r)
	if ar <= thresh {
		return r * r
	}
	return thresh * (2*ar - thresh)
}

// HuberLossGrad returns d(HuberLoss)/dr.
func HuberLossGrad(r, thresh float64) float64 {
	if math.Abs(r) <= thresh {
		return 2 * r
	}
	if r > 0 {
		return 2 * thresh
	}
	return -2 * thresh
}

// GradWeight scales a residual's influence down where the underlying image
// gradient is weak and the photometric match is inherently less
// informative: weight = c / hypot(c, gradNorm).
func GradWeight(gradNorm, c float64) float64 {
	return c / math.Hypot(c, gradNorm)
}
