// Package tracker implements the photometric frame tracker: coarse-to-fine
// pose and light alignment of a new frame against the last tracked
// keyframe's depth map.
package tracker

import (
	"context"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/lumen-robotics/dso/bundle"
	"github.com/lumen-robotics/dso/geometry"
	"github.com/lumen-robotics/dso/logging"
	"github.com/lumen-robotics/dso/points"
)

// Config bundles the knobs TrackFrame needs from dsoconfig, so this
// package carries no direct dependency on it.
type Config struct {
	Pattern       points.Pattern
	OutlierDiff   float64
	PyrLevels     int
	MinInlierFrac float64
}

// Report summarizes one TrackFrame call, surfaced to the orchestrator so it
// can mark the frame's tracking degraded without the solver retrying
// automatically.
type Report struct {
	Converged      bool
	FinalCost      float64
	InlierFraction float64
}

// FrameTracker aligns incoming frames against a fixed reference keyframe's
// active, depth-known points.
type FrameTracker struct {
	ref    *points.KeyFrame
	cfg    Config
	logger logging.Logger
}

// NewFrameTracker builds a tracker against ref, whose active points supply
// the depth map every pyramid level is aligned to.
func NewFrameTracker(ref *points.KeyFrame, cfg Config, logger logging.Logger) *FrameTracker {
	return &FrameTracker{ref: ref, cfg: cfg, logger: logger}
}

// trackParams is the flat 8-vector the solver optimizes per level: an
// SE(3) tangent perturbation (ω, t) composed onto the incoming baseline
// pose, plus an additive affine-light perturbation (δa, δb).
type trackParams struct {
	w, t   [3]float64
	da, db float64
}

func unflatten(x []float64) trackParams {
	return trackParams{
		w:  [3]float64{x[0], x[1], x[2]},
		t:  [3]float64{x[3], x[4], x[5]},
		da: x[6], db: x[7],
	}
}

// TrackFrame refines predicted/lightPredicted against next, running a
// separate robustified least-squares solve at each pyramid level from
// coarsest to finest and carrying the refined estimate down to the next.
func (ft *FrameTracker) TrackFrame(
	ctx context.Context,
	predicted geometry.SE3,
	lightPredicted geometry.AffineLight,
	next *points.PreKeyFrame,
) (geometry.SE3, geometry.AffineLight, *Report, error) {
	if ft.ref.Pyramid == nil || next.Pyramid == nil {
		return geometry.SE3{}, geometry.AffineLight{}, nil, errors.New("tracker requires pyramided frames")
	}

	active := ft.ref.ActivePoints()
	if len(active) == 0 {
		return geometry.SE3{}, geometry.AffineLight{}, nil, errors.New("reference keyframe has no active points")
	}

	curPose := predicted
	curLight := lightPredicted
	report := &Report{}

	levels := ft.cfg.PyrLevels
	if levels > ft.ref.Pyramid.NumLevels() {
		levels = ft.ref.Pyramid.NumLevels()
	}
	if levels > next.Pyramid.NumLevels() {
		levels = next.Pyramid.NumLevels()
	}

	for level := levels - 1; level >= 0; level-- {
		select {
		case <-ctx.Done():
			return curPose, curLight, report, ctx.Err()
		default:
		}

		cost := ft.levelCost(level, active, next, curPose, curLight)

		problem, err := bundle.NewNloptProblem(8, nil, nil)
		if err != nil {
			return curPose, curLight, report, errors.Wrap(err, "building level solver")
		}

		x0 := make([]float64, 8)
		xopt, finalCost, err := problem.Solve(cost, x0)
		problem.Close()
		if err != nil {
			ft.logger.Debugf("tracker level %d: no improvement, keeping prior estimate", level)
			report.Converged = false
			continue
		}

		delta := unflatten(xopt)
		curPose = curPose.Compose(geometry.NewSE3(
			geometry.ExpSO3(vec3(delta.w)),
			vec3(delta.t),
		))
		curLight = geometry.AffineLight{A: curLight.A + delta.da, B: curLight.B + delta.db}
		report.Converged = true
		report.FinalCost = finalCost
	}

	report.InlierFraction = ft.inlierFraction(active, next, curPose, curLight)
	return curPose, curLight, report, nil
}

// levelCost builds the CostFunc for one pyramid level: total Huber-weighted
// photometric residual over every active reference point and pattern
// offset, with the gradient estimated by central differencing since the
// quaternion/camera-model Jacobians are non-trivial to derive in closed
// form (Design Notes: either numeric or automatic differentiation is
// acceptable).
func (ft *FrameTracker) levelCost(
	level int,
	active []*points.Point,
	next *points.PreKeyFrame,
	basePose geometry.SE3,
	baseLight geometry.AffineLight,
) bundle.CostFunc {
	refCam := ft.ref.Pyramid.Camera(level)
	refImg := ft.ref.Pyramid.Image(level)
	curCam := next.Pyramid.Camera(level)
	curImg := next.Pyramid.Image(level)
	scale := math.Pow(2, float64(-level))

	eval := func(x []float64) float64 {
		p := unflatten(x)
		pose := basePose.Compose(geometry.NewSE3(geometry.ExpSO3(vec3(p.w)), vec3(p.t)))
		light := geometry.AffineLight{A: baseLight.A + p.da, B: baseLight.B + p.db}
		hostNorm, curNorm := geometry.NormalizeMultiplier(ft.ref.Light, light)

		var total float64
		for _, pt := range active {
			depth := 1 / math.Exp(pt.LogInvDepth())
			hostPix := r2.Point{X: pt.Pix.X * scale, Y: pt.Pix.Y * scale}
			dir := refCam.Unmap(hostPix)
			X := dir.Mul(depth)
			Xc := pose.Apply(X)
			curPix, ok := curCam.Map(Xc)
			if !ok || !curCam.IsOnImage(curPix, 2) {
				continue
			}
			for _, off := range ft.cfg.Pattern {
				hi := refImg.InterpolateBicubic(hostPix.X+off.X, hostPix.Y+off.Y)
				ci := curImg.InterpolateBicubic(curPix.X+off.X, curPix.Y+off.Y)
				r := curNorm.Apply(ci) - hostNorm.Apply(hi)
				total += bundle.HuberLoss(r, ft.cfg.OutlierDiff)
			}
		}
		return total
	}

	return func(x, grad []float64) float64 {
		val := eval(x)
		if grad == nil {
			return val
		}
		const h = 1e-4
		for i := range x {
			xp := append([]float64(nil), x...)
			xm := append([]float64(nil), x...)
			xp[i] += h
			xm[i] -= h
			grad[i] = (eval(xp) - eval(xm)) / (2 * h)
		}
		return val
	}
}

// inlierFraction reports the share of reference active points whose
// current-frame projection both lands on-image and incurs a sub-threshold
// residual under the final pose/light estimate, the signal the keyframe
// policy uses to detect degraded tracking.
func (ft *FrameTracker) inlierFraction(active []*points.Point, next *points.PreKeyFrame, pose geometry.SE3, light geometry.AffineLight) float64 {
	if len(active) == 0 {
		return 0
	}
	curCam := next.Pyramid.Camera(0)
	curImg := next.Pyramid.Image(0)
	refCam := ft.ref.Pyramid.Camera(0)
	refImg := ft.ref.Pyramid.Image(0)
	hostNorm, curNorm := geometry.NormalizeMultiplier(ft.ref.Light, light)

	inliers := 0
	for _, pt := range active {
		depth := 1 / math.Exp(pt.LogInvDepth())
		dir := refCam.Unmap(pt.Pix)
		Xc := pose.Apply(dir.Mul(depth))
		curPix, ok := curCam.Map(Xc)
		if !ok || !curCam.IsOnImage(curPix, 2) {
			continue
		}
		hi := refImg.InterpolateBicubic(pt.Pix.X, pt.Pix.Y)
		ci := curImg.InterpolateBicubic(curPix.X, curPix.Y)
		if math.Abs(curNorm.Apply(ci)-hostNorm.Apply(hi)) <= ft.cfg.OutlierDiff {
			inliers++
		}
	}
	return float64(inliers) / float64(len(active))
}
