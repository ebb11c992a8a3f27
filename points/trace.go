package points

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/lumen-robotics/dso/dsoerrors"
	"github.com/lumen-robotics/dso/geometry"
)

// EpipolarConfig bundles the knobs TraceOn needs from dsoconfig, so the
// points package has no direct dependency on it.
type EpipolarConfig struct {
	Pattern               Pattern
	OnImageTestCount      int
	OutlierIntensityDiff  float64
	MinSecondBestDistance float64
	Border                float64
}

const farDepthSentinel = 1e6

// antipodalAngleSlack is the "π − angle(dirMin,dirMax) < slack" abort
// threshold: below it the two bracket endpoints point in nearly opposite
// directions and the great-circle arc between them is not well defined.
const antipodalAngleSlack = 1e-3

// slerp spherically interpolates between two unit vectors at t in [0, 1].
func slerp(a, b r3.Vector, t float64) r3.Vector {
	cosOmega := math.Max(-1, math.Min(1, a.Dot(b)))
	omega := math.Acos(cosOmega)
	if omega < 1e-9 {
		return a
	}
	sinOmega := math.Sin(omega)
	wa := math.Sin((1-t)*omega) / sinOmega
	wb := math.Sin(t*omega) / sinOmega
	return a.Mul(wa).Add(b.Mul(wb))
}

// pseudoHuberEnergy is the per-pixel residual energy: quadratic below
// outlierDiff, linear (2r-1) above it, so a handful of badly-matched pixels
// can't dominate the sum the way a pure squared-error energy would.
func pseudoHuberEnergy(r, outlierDiff float64) float64 {
	ar := math.Abs(r)
	if ar > outlierDiff {
		return 2*ar - 1
	}
	return ar * ar
}

// candidate is one sample along the epipolar segment: its image-space
// direction, the pixel it reprojects to, and its energy. Depth is not stored;
// TraceOn triangulates it from the best candidate's dir.
type candidate struct {
	dir    r3.Vector
	pix    r2.Point
	energy float64
}

// TraceOn performs the epipolar depth search for pt, hosted by host, against
// the candidate match frame target. On success it narrows pt's bracket and
// updates its quality score in place; on failure pt is left unchanged and a
// dsoerrors sentinel is returned, per the error-handling policy that
// degenerate traces abort without mutating state.
func TraceOn(pt *Point, host *KeyFrame, target *PreKeyFrame, cfg EpipolarConfig) error {
	if pt.Status() != StatusImmature {
		return errors.Errorf("cannot trace a %s point", pt.Status())
	}

	hostCam0 := host.Pyramid.Camera(0)
	targetCam0 := target.Pyramid.Camera(0)

	if !hostCam0.IsOnImage(pt.Pix, cfg.Border) {
		return dsoerrors.ErrOutOfImage
	}

	dirHost := hostCam0.Unmap(pt.Pix)
	hostToTarget := target.WorldToFrame.Compose(host.WorldToFrame.Inverse())
	lightRefToBase := host.Light.Compose(target.Light.Inverse())

	maxInv := pt.bracket.MaxInvDepth
	minInv := pt.bracket.MinInvDepth
	nearDepth := farDepthSentinel
	if maxInv > 0 {
		nearDepth = 1 / maxInv
	}
	farDepth := farDepthSentinel
	if minInv > 0 {
		farDepth = 1 / minInv
	}

	dirMin := hostToTarget.Apply(dirHost.Mul(nearDepth)).Normalize()
	dirMax := hostToTarget.Apply(dirHost.Mul(farDepth)).Normalize()

	segAngle := math.Acos(math.Max(-1, math.Min(1, dirMin.Dot(dirMax))))
	if math.Pi-segAngle < antipodalAngleSlack {
		return dsoerrors.ErrDegenerateGeometry
	}

	if !geometry.IntersectOnSphere(targetCam0.MaxAngle(), &dirMin, &dirMax) {
		return dsoerrors.ErrDegenerateGeometry
	}

	// Pick the pyramid level once for the whole trace from the segment's
	// reprojected spread, rather than per sample: re-deriving the level for
	// every candidate would mean re-walking the pyramid on every step for a
	// trace that already re-samples dozens of times, for a level choice that
	// rarely changes within one bracket. pixMin/pixMax may legitimately fail
	// to map (clipped to the cap but still outside the sensor); fall back to
	// level 0 rather than aborting the whole trace over a level estimate.
	level := 0
	if pixMin, ok := targetCam0.Map(dirMin); ok {
		if pixMax, ok := targetCam0.Map(dirMax); ok {
			spread := pixMin.Sub(pixMax).Norm()
			level = LevelForSpread(spread, cfg.Pattern.Spread(), target.Pyramid.NumLevels()-1)
		}
	}

	hostImg := host.Pyramid.Image(level)
	targetCam := target.Pyramid.Camera(level)
	targetImg := target.Pyramid.Image(level)
	scale := math.Pow(2, float64(-level))
	levelPix := r2.Point{X: pt.Pix.X * scale, Y: pt.Pix.Y * scale}

	hostIntensities := make([]float64, len(cfg.Pattern))
	for i, off := range cfg.Pattern {
		hostIntensities[i] = hostImg.InterpolateBicubic(levelPix.X+off.X, levelPix.Y+off.Y)
	}

	samples := cfg.OnImageTestCount
	if samples < 2 {
		samples = 2
	}

	evalAt := func(alpha float64) (candidate, bool) {
		dir := dirAtAlpha(dirMin, dirMax, alpha)
		pix, ok := targetCam.Map(dir)
		if !ok || !targetCam.IsOnImage(pix, cfg.Border) {
			return candidate{}, false
		}
		var energy float64
		for j, off := range cfg.Pattern {
			ti := targetImg.InterpolateBicubic(pix.X+off.X, pix.Y+off.Y)
			r := hostIntensities[j] - lightRefToBase.Apply(ti)
			energy += pseudoHuberEnergy(r, cfg.OutlierIntensityDiff)
		}
		return candidate{dir: dir, pix: pix, energy: energy}, true
	}

	candidates := walkEpipolarSegment(dirMin, dirMax, samples, targetCam.Map, evalAt)
	if len(candidates) == 0 {
		return dsoerrors.ErrDegenerateGeometry
	}

	bestIdx := 0
	for i := range candidates {
		if candidates[i].energy < candidates[bestIdx].energy {
			bestIdx = i
		}
	}
	best := candidates[bestIdx]

	secondBestEnergy := math.Inf(1)
	for i, c := range candidates {
		if i == bestIdx {
			continue
		}
		if c.pix.Sub(best.pix).Norm() < cfg.MinSecondBestDistance {
			continue
		}
		if c.energy < secondBestEnergy {
			secondBestEnergy = c.energy
		}
	}

	depthHost, _, ok := geometry.Triangulate(hostToTarget, dirHost, best.dir)
	if !ok || depthHost <= 0 || math.IsNaN(depthHost) {
		return dsoerrors.ErrNumericInfeasibility
	}

	newBracket := Bracket{MinInvDepth: 1 / (depthHost + 0.5), MaxInvDepth: math.Inf(1)}
	if depthHost-0.5 > 0 {
		newBracket.MaxInvDepth = 1 / (depthHost - 0.5)
	}
	quality := secondBestEnergy / best.energy

	return pt.NarrowBracket(newBracket, quality)
}

// dirAtAlpha evaluates the segment parameterization dir(alpha) = (1-alpha)*
// dirMax + alpha*dirMin, matching sphere.go's findCrossing convention.
func dirAtAlpha(dirMin, dirMax r3.Vector, alpha float64) r3.Vector {
	return dirMax.Mul(1 - alpha).Add(dirMin.Mul(alpha)).Normalize()
}

// walkEpipolarSegment samples the segment [dirMin, dirMax] adaptively: it
// converts a 1-pixel image step into a step in alpha via the segment's local
// image-space Jacobian (geometry.Jacobian2x3), walks outward in both
// directions from a seed alpha0 = 0.5 until it falls off the segment
// (samples that land off the image are skipped, not a stop), then makes a uniform coarse pass of step 1/(samples-1) to
// backstop any detail the Jacobian-driven walk could have stepped over.
func walkEpipolarSegment(
	dirMin, dirMax r3.Vector,
	samples int,
	mapFn func(r3.Vector) (r2.Point, bool),
	evalAt func(alpha float64) (candidate, bool),
) []candidate {
	delta := dirMin.Sub(dirMax)
	seen := make(map[int]bool)
	var out []candidate

	addAt := func(alpha float64) bool {
		if alpha < 0 || alpha > 1 {
			return false
		}
		key := int(math.Round(alpha * 1e6))
		if seen[key] {
			return true
		}
		seen[key] = true
		if c, ok := evalAt(alpha); ok {
			out = append(out, c)
			return true
		}
		return true
	}

	stepAt := func(alpha float64) float64 {
		dir := dirAtAlpha(dirMin, dirMax, alpha)
		jac, ok := geometry.Jacobian2x3(mapFn, dir)
		if !ok {
			return 1 / float64(samples-1)
		}
		pxStep := geometry.DirectionalPixelStep(jac, delta)
		mag := math.Hypot(pxStep.X, pxStep.Y)
		if mag < 1e-9 {
			return 1 / float64(samples-1)
		}
		da := 1 / mag
		min, max := 1.0/float64(4*samples), 1.0
		if da < min {
			da = min
		}
		if da > max {
			da = max
		}
		return da
	}

	const alpha0 = 0.5
	addAt(alpha0)
	for alpha := alpha0; alpha > 0; {
		alpha -= stepAt(alpha)
		if !addAt(alpha) {
			break
		}
	}
	for alpha := alpha0; alpha < 1; {
		alpha += stepAt(alpha)
		if !addAt(alpha) {
			break
		}
	}

	for i := 0; i < samples; i++ {
		addAt(float64(i) / float64(samples-1))
	}

	return out
}
