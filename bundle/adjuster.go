package bundle

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/lumen-robotics/dso/dsoerrors"
	"github.com/lumen-robotics/dso/geometry"
	"github.com/lumen-robotics/dso/logging"
	"github.com/lumen-robotics/dso/points"
)

// Config bundles the knobs Adjust needs from dsoconfig, so this package
// carries no direct dependency on it.
type Config struct {
	Pattern                     points.Pattern
	OutlierDiff                 float64
	GradWeightC                 float64
	DepthMin, DepthMax          float64
	FixedRotationOnSecondKF     bool
	FixedMotionOnFirstAdjustent bool
}

// Report summarizes one Adjust call.
type Report struct {
	Converged    bool
	FinalCost    float64
	NumResiduals int
}

// Adjuster runs windowed photometric bundle adjustment.
type Adjuster struct {
	cfg    Config
	logger logging.Logger
}

// NewAdjuster builds an Adjuster with the given configuration.
func NewAdjuster(cfg Config, logger logging.Logger) *Adjuster {
	return &Adjuster{cfg: cfg, logger: logger}
}

// pointRef identifies one active point by its host keyframe and id within
// that keyframe's point map.
type pointRef struct {
	kf *points.KeyFrame
	id int64
	pt *points.Point
}

// frameSlot describes how one keyframe's pose/light parameters are encoded
// in the flat parameter vector: either fixed (no parameters), a plain
// tangent perturbation, or the gauge-fixing sphere parameterization used
// for the second keyframe in the window.
type frameSlot struct {
	kf            *points.KeyFrame
	fixed         bool
	sphereGauge   bool
	fixedRotation bool
	offset        int
	length        int

	origPose   geometry.SE3
	origLight  geometry.AffineLight
	spherePlus func(delta [2]float64) r3.Vector
}

// Adjust refines every active point's depth and every non-fixed keyframe's
// pose/light in window jointly, per the gauge-fixation rules in the
// package's Design Notes: the first keyframe is always held fixed; the
// second keyframe's translation is constrained to a sphere derived from
// the initial two-view baseline; and, with exactly two keyframes in the
// window, FixedMotionOnFirstAdjustent freezes the second keyframe outright.
func (a *Adjuster) Adjust(window *points.Window) (*Report, error) {
	frames := window.All()
	if len(frames) < 2 {
		return &Report{Converged: true}, nil
	}

	frameRegistry = frames
	defer func() { frameRegistry = nil }()

	slots := a.buildFrameSlots(frames)
	refs := collectActivePoints(frames)
	if len(refs) == 0 {
		return nil, errors.New("no active points to adjust")
	}

	nDepth := len(refs)
	frameParamLen := 0
	for _, s := range slots {
		frameParamLen += s.length
		s.offset += nDepth // the frame block follows the depth block in x
	}
	dim := nDepth + frameParamLen

	x0 := make([]float64, dim)
	for i, r := range refs {
		x0[i] = r.pt.LogInvDepth()
	}

	lb := make([]float64, dim)
	ub := make([]float64, dim)
	maxInv := -math.Log(a.cfg.DepthMin)
	minInv := -math.Log(a.cfg.DepthMax)
	for i := range refs {
		lb[i] = minInv
		ub[i] = maxInv
	}
	for i := nDepth; i < dim; i++ {
		lb[i] = math.Inf(-1)
		ub[i] = math.Inf(1)
	}

	x0 = a.warmStartFrameBlock(refs, slots, nDepth, dim, x0)

	cost := a.buildCost(refs, slots, nDepth)

	problem, err := NewNloptProblem(dim, lb, ub)
	if err != nil {
		return nil, errors.Wrap(err, "building BA solver")
	}
	defer problem.Close()

	xopt, finalCost, err := problem.Solve(cost, x0)
	report := &Report{}
	if err != nil {
		if errors.Is(err, dsoerrors.ErrNoImprovement) {
			report.Converged = false
			return report, nil
		}
		return nil, err
	}
	report.Converged = true
	report.FinalCost = finalCost

	a.writeBack(refs, slots, nDepth, xopt)
	a.classifyOutliers(frames)
	report.NumResiduals = countResiduals(frames, a.cfg)
	return report, nil
}

func (a *Adjuster) buildFrameSlots(frames []*points.KeyFrame) []*frameSlot {
	slots := make([]*frameSlot, 0, len(frames))
	offset := 0
	for i, kf := range frames {
		s := &frameSlot{kf: kf, origPose: kf.WorldToFrame, origLight: kf.Light}
		switch {
		case i == 0:
			s.fixed = true
		case i == 1:
			if len(frames) == 2 && a.cfg.FixedMotionOnFirstAdjustent {
				s.fixed = true
				break
			}
			s.sphereGauge = true
			s.fixedRotation = a.cfg.FixedRotationOnSecondKF
			center := frames[0].WorldToFrame.Trans
			radius := kf.WorldToFrame.Trans.Sub(center).Norm()
			s.spherePlus = geometry.SphericalPlus(center, radius, kf.WorldToFrame.Trans)
			s.length = 2 // sphere delta
			if !s.fixedRotation {
				s.length += 3 // rotation tangent
			}
			s.length += 2 // light
		default:
			s.length = 8 // 3 rot + 3 trans + 2 light
		}
		if !s.fixed {
			s.offset = offset
			offset += s.length
		}
		slots = append(slots, s)
	}
	return slots
}

func collectActivePoints(frames []*points.KeyFrame) []pointRef {
	var refs []pointRef
	for _, kf := range frames {
		for id, p := range kf.Points() {
			if p.Status() == points.StatusActive {
				refs = append(refs, pointRef{kf: kf, id: id, pt: p})
			}
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].kf.GlobalFrameNum != refs[j].kf.GlobalFrameNum {
			return refs[i].kf.GlobalFrameNum < refs[j].kf.GlobalFrameNum
		}
		return refs[i].id < refs[j].id
	})
	return refs
}

// reconstructFrame decodes slot's pose/light from the shared parameter
// vector x.
func reconstructFrame(s *frameSlot, x []float64) (geometry.SE3, geometry.AffineLight) {
	if s.fixed {
		return s.origPose, s.origLight
	}
	seg := x[s.offset : s.offset+s.length]

	if s.sphereGauge {
		trans := s.spherePlus([2]float64{seg[0], seg[1]})
		i := 2
		rot := s.origPose.Rot
		if !s.fixedRotation {
			w := r3.Vector{X: seg[i], Y: seg[i+1], Z: seg[i+2]}
			rot = geometry.SE3{Rot: s.origPose.Rot}.Compose(geometry.SE3{Rot: geometry.ExpSO3(w)}).Rot
			i += 3
		}
		light := geometry.AffineLight{A: s.origLight.A + seg[i], B: s.origLight.B + seg[i+1]}
		return geometry.NewSE3(rot, trans), light
	}

	w := r3.Vector{X: seg[0], Y: seg[1], Z: seg[2]}
	t := r3.Vector{X: seg[3], Y: seg[4], Z: seg[5]}
	pose := s.origPose.Compose(geometry.NewSE3(geometry.ExpSO3(w), t))
	light := geometry.AffineLight{A: s.origLight.A + seg[6], B: s.origLight.B + seg[7]}
	return pose, light
}

// buildCost returns the joint CostFunc summing every (base, ref, point,
// pattern-offset) residual with Huber loss and gradient-norm weighting,
// its gradient estimated by central differencing (see tracker.levelCost
// for the same rationale).
func (a *Adjuster) buildCost(refs []pointRef, slots []*frameSlot, nDepth int) CostFunc {
	eval := func(x []float64) float64 {
		poses := make(map[int64]geometry.SE3, len(slots))
		lights := make(map[int64]geometry.AffineLight, len(slots))
		for _, s := range slots {
			p, l := reconstructFrame(s, x)
			poses[s.kf.GlobalFrameNum] = p
			lights[s.kf.GlobalFrameNum] = l
		}

		var total float64
		for i, ref := range refs {
			logInvDepth := x[i]
			total += residualEnergyForPoint(ref, logInvDepth, poses, lights, a.cfg)
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

// warmStartFrameBlock takes one Gauss-Newton step against a numeric
// Jacobian of residualVector, uses SchurReduce to eliminate the depth block
// from the resulting normal equations, and solves the reduced frame-block
// system directly. The depth entries of x0 are left untouched; nlopt's
// Huber-robustified local solve runs from there and refines both blocks
// jointly. This gives the frame parameters a GN-quality starting point
// without committing the joint solve itself to an unrobustified quadratic
// loss.
func (a *Adjuster) warmStartFrameBlock(refs []pointRef, slots []*frameSlot, nDepth, dim int, x0 []float64) []float64 {
	if dim == nDepth {
		return x0
	}

	r0 := a.residualVector(refs, slots, x0)
	m := len(r0)
	if m == 0 {
		return x0
	}

	const h = 1e-4
	jac := mat.NewDense(m, dim, nil)
	for j := 0; j < dim; j++ {
		xp := append([]float64(nil), x0...)
		xm := append([]float64(nil), x0...)
		xp[j] += h
		xm[j] -= h
		rp := a.residualVector(refs, slots, xp)
		rm := a.residualVector(refs, slots, xm)
		for i := range r0 {
			jac.Set(i, j, (rp[i]-rm[i])/(2*h))
		}
	}

	var jtj mat.Dense
	jtj.Mul(jac.T(), jac)
	var jtr mat.VecDense
	jtr.MulVec(jac.T(), mat.NewVecDense(m, r0))

	reducedA, reducedB, err := SchurReduce(&jtj, &jtr, nDepth)
	if err != nil {
		a.logger.Debugf("schur warm-start skipped: %v", err)
		return x0
	}

	var delta mat.VecDense
	if err := delta.SolveVec(reducedA, reducedB); err != nil {
		a.logger.Debugf("schur warm-start skipped: %v", err)
		return x0
	}

	out := append([]float64(nil), x0...)
	for j := 0; j < dim-nDepth; j++ {
		out[nDepth+j] -= delta.AtVec(j)
	}
	return out
}

// residualVector returns every (point, other-frame, pattern-offset) signed
// photometric residual at x, in the traversal order warmStartFrameBlock's
// Jacobian columns are built against.
func (a *Adjuster) residualVector(refs []pointRef, slots []*frameSlot, x []float64) []float64 {
	order := make([]int64, len(slots))
	poses := make(map[int64]geometry.SE3, len(slots))
	lights := make(map[int64]geometry.AffineLight, len(slots))
	for i, s := range slots {
		p, l := reconstructFrame(s, x)
		poses[s.kf.GlobalFrameNum] = p
		lights[s.kf.GlobalFrameNum] = l
		order[i] = s.kf.GlobalFrameNum
	}

	var out []float64
	for i, ref := range refs {
		out = append(out, pointResidualSamples(ref, x[i], order, poses, lights, a.cfg)...)
	}
	return out
}

// pointResidualSamples is residualEnergyForPoint's per-sample counterpart:
// it returns the raw signed residuals rather than their Huber/gradient-
// weighted sum, in the fixed frame order given by order (not map iteration,
// which Go randomizes per call and would scramble a Jacobian's rows across
// the finite-difference perturbations that build it).
func pointResidualSamples(
	ref pointRef,
	logInvDepth float64,
	order []int64,
	poses map[int64]geometry.SE3,
	lights map[int64]geometry.AffineLight,
	cfg Config,
) []float64 {
	base := ref.kf
	basePose := poses[base.GlobalFrameNum]
	baseLight := lights[base.GlobalFrameNum]
	baseCam := base.Pyramid.Camera(0)
	baseImg := base.Pyramid.Image(0)
	depth := 1 / math.Exp(logInvDepth)
	dir := baseCam.Unmap(ref.pt.Pix)

	var out []float64
	for _, refFrameID := range order {
		if refFrameID == base.GlobalFrameNum {
			continue
		}
		refPose := poses[refFrameID]
		refKF := findFrameByID(refFrameID)
		if refKF == nil {
			continue
		}
		refLight := lights[refFrameID]
		refCam := refKF.Pyramid.Camera(0)
		refImg := refKF.Pyramid.Image(0)

		baseNorm, refNorm := geometry.NormalizeMultiplier(baseLight, refLight)

		tBR := refPose.Compose(basePose.Inverse())
		Xc := tBR.Apply(dir.Mul(depth))
		pix, ok := refCam.Map(Xc)
		if !ok || !refCam.IsOnImage(pix, 2) {
			continue
		}
		for _, off := range cfg.Pattern {
			bi := baseImg.InterpolateBicubic(ref.pt.Pix.X+off.X, ref.pt.Pix.Y+off.Y)
			ri := refImg.InterpolateBicubic(pix.X+off.X, pix.Y+off.Y)
			out = append(out, refNorm.Apply(ri)-baseNorm.Apply(bi))
		}
	}
	return out
}

// residualEnergyForPoint sums the Huber/gradient-weighted residual energy
// of ref against every other keyframe currently in the window. Each
// base/ref light pair is passed through geometry.NormalizeMultiplier first
// so the base frame's multiplicative term is folded into the ref side,
// keeping the base-image intensities on a fixed scale across every ref
// frame a point reprojects into.
func residualEnergyForPoint(
	ref pointRef,
	logInvDepth float64,
	poses map[int64]geometry.SE3,
	lights map[int64]geometry.AffineLight,
	cfg Config,
) float64 {
	base := ref.kf
	basePose := poses[base.GlobalFrameNum]
	baseLight := lights[base.GlobalFrameNum]
	baseCam := base.Pyramid.Camera(0)
	baseImg := base.Pyramid.Image(0)
	depth := 1 / math.Exp(logInvDepth)
	dir := baseCam.Unmap(ref.pt.Pix)
	gradNorm := base.Pyramid.Gradient(0).GetVec2D(int(ref.pt.Pix.X), int(ref.pt.Pix.Y)).Magnitude()
	weight := GradWeight(gradNorm, cfg.GradWeightC)

	var total float64
	for refFrameID, refPose := range poses {
		if refFrameID == base.GlobalFrameNum {
			continue
		}
		refKF := findFrameByID(refFrameID)
		if refKF == nil {
			continue
		}
		refLight := lights[refFrameID]
		refCam := refKF.Pyramid.Camera(0)
		refImg := refKF.Pyramid.Image(0)

		baseNorm, refNorm := geometry.NormalizeMultiplier(baseLight, refLight)

		tBR := refPose.Compose(basePose.Inverse())
		Xc := tBR.Apply(dir.Mul(depth))
		pix, ok := refCam.Map(Xc)
		if !ok || !refCam.IsOnImage(pix, 2) {
			continue
		}
		for _, off := range cfg.Pattern {
			bi := baseImg.InterpolateBicubic(ref.pt.Pix.X+off.X, ref.pt.Pix.Y+off.Y)
			ri := refImg.InterpolateBicubic(pix.X+off.X, pix.Y+off.Y)
			r := refNorm.Apply(ri) - baseNorm.Apply(bi)
			total += weight * HuberLoss(r, cfg.OutlierDiff)
		}
	}
	return total
}

// findFrameByID resolves a keyframe by id among every keyframe the current
// Adjust call is operating on.
func findFrameByID(id int64) *points.KeyFrame {
	for _, kf := range frameRegistry {
		if kf.GlobalFrameNum == id {
			return kf
		}
	}
	return nil
}

// frameRegistry is populated by Adjust for the duration of one call so
// residualEnergyForPoint and pointResiduals can resolve a ref keyframe by id
// without carrying a full map[int64]*points.KeyFrame through every call
// signature.
var frameRegistry []*points.KeyFrame

func (a *Adjuster) writeBack(refs []pointRef, slots []*frameSlot, nDepth int, x []float64) {
	for i, ref := range refs {
		_ = ref.pt.SetLogInvDepth(x[i])
	}
	for _, s := range slots {
		if s.fixed {
			continue
		}
		pose, light := reconstructFrame(s, x)
		s.kf.WorldToFrame = pose
		s.kf.Light = light
	}
}

func (a *Adjuster) classifyOutliers(frames []*points.KeyFrame) {
	poses := make(map[int64]geometry.SE3, len(frames))
	lights := make(map[int64]geometry.AffineLight, len(frames))
	for _, kf := range frames {
		poses[kf.GlobalFrameNum] = kf.WorldToFrame
		lights[kf.GlobalFrameNum] = kf.Light
	}

	for _, kf := range frames {
		for _, p := range kf.ActivePoints() {
			residuals := pointResiduals(kf, p, poses, lights, a.cfg)
			if len(residuals) == 0 {
				_ = p.MarkOOB()
				continue
			}
			med := median(residuals)
			if med > a.cfg.OutlierDiff {
				_ = p.MarkOutlier()
			}
		}
	}
}

func pointResiduals(
	base *points.KeyFrame,
	p *points.Point,
	poses map[int64]geometry.SE3,
	lights map[int64]geometry.AffineLight,
	cfg Config,
) []float64 {
	basePose := poses[base.GlobalFrameNum]
	baseLight := lights[base.GlobalFrameNum]
	baseCam := base.Pyramid.Camera(0)
	baseImg := base.Pyramid.Image(0)
	depth := 1 / math.Exp(p.LogInvDepth())
	dir := baseCam.Unmap(p.Pix)

	var out []float64
	for _, refKF := range frameRegistry {
		if refKF.GlobalFrameNum == base.GlobalFrameNum {
			continue
		}
		refPose := poses[refKF.GlobalFrameNum]
		refLight := lights[refKF.GlobalFrameNum]
		refCam := refKF.Pyramid.Camera(0)
		refImg := refKF.Pyramid.Image(0)

		baseNorm, refNorm := geometry.NormalizeMultiplier(baseLight, refLight)

		tBR := refPose.Compose(basePose.Inverse())
		Xc := tBR.Apply(dir.Mul(depth))
		pix, ok := refCam.Map(Xc)
		if !ok || !refCam.IsOnImage(pix, 2) {
			continue
		}
		for _, off := range cfg.Pattern {
			bi := baseImg.InterpolateBicubic(p.Pix.X+off.X, p.Pix.Y+off.Y)
			ri := refImg.InterpolateBicubic(pix.X+off.X, pix.Y+off.Y)
			out = append(out, math.Abs(refNorm.Apply(ri)-baseNorm.Apply(bi)))
		}
	}
	return out
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func countResiduals(frames []*points.KeyFrame, cfg Config) int {
	count := 0
	for _, kf := range frames {
		count += len(kf.ActivePoints()) * len(cfg.Pattern) * (len(frames) - 1)
	}
	return count
}
