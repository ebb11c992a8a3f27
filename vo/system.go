// Package vo implements the per-frame orchestrator: bootstrap via the
// two-view initializer, then steady-state photometric tracking, keyframe
// promotion, and windowed bundle adjustment.
package vo

import (
	"context"
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/lumen-robotics/dso/bundle"
	"github.com/lumen-robotics/dso/camera"
	"github.com/lumen-robotics/dso/cloud"
	"github.com/lumen-robotics/dso/dsoconfig"
	"github.com/lumen-robotics/dso/geometry"
	"github.com/lumen-robotics/dso/initialize"
	"github.com/lumen-robotics/dso/logging"
	"github.com/lumen-robotics/dso/points"
	"github.com/lumen-robotics/dso/tracker"
)

// Config bundles the engine-wide dsoconfig.Config with the keyframe
// promotion policy's thresholds: translation/rotation distance from the
// reference keyframe, or a drop in tracked-inlier fraction, each independent
// triggers for promoting the current frame into a new keyframe.
type Config struct {
	Core dsoconfig.Config

	WindowCapacity          int
	KeyframeTransThreshold  float64
	KeyframeRotThreshold    float64
	KeyframeInlierThreshold float64
}

// System runs the full per-frame pipeline: bootstrap-until-initialized,
// then predict/track/promote/marginalize. Every exported mutation goes
// through a single mutex so the "tracking complete -> state update" block
// is applied atomically, per the Design Notes' ordering requirement.
type System struct {
	mu sync.Mutex

	cfg     Config
	pattern points.Pattern

	initializer *initialize.Initializer
	adjuster    *bundle.Adjuster
	trackerCfg  tracker.Config

	window *points.Window

	observers      MultiObserver
	cloudObservers cloud.MultiObserver

	logger logging.Logger

	initialized   bool
	pendingFrame0 *points.PreKeyFrame

	frameTracker *tracker.FrameTracker
	lastKF       *points.KeyFrame
	lboFrameNum  int64
	lastFrameNum int64

	tracked      map[int64]geometry.SE3
	predicted    map[int64]geometry.SE3
	lightTracked map[int64]geometry.AffineLight
}

// NewSystem validates cfg.Core and builds a System wired to matcher/terrain
// for bootstrap. A ConfigurationError from Validate is returned unwrapped so
// the caller can decide whether to exit.
func NewSystem(cfg Config, matcher initialize.StereoMatcher, terrain initialize.TerrainBuilder, logger logging.Logger) (*System, error) {
	if err := cfg.Core.Validate(); err != nil {
		return nil, err
	}

	pattern := points.PatternByName(cfg.Core.ResidualPattern.Pattern)

	ini, err := initialize.New(matcher, terrain, initialize.Config{
		FirstFramesSkip:    int64(cfg.Core.FirstFramesSkip),
		InterestPointsUsed: cfg.Core.InterestPointsUsed,
		ReselectionPasses:  1,
		Border:             float64(cfg.Core.ResidualPattern.Height),
		BracketHalfWidth:   0.2,
	}, logger.Sublogger("initialize"))
	if err != nil {
		return nil, errors.Wrap(err, "building initializer")
	}

	adj := bundle.NewAdjuster(bundle.Config{
		Pattern:                     pattern,
		OutlierDiff:                 cfg.Core.Intensity.OutlierDiff,
		GradWeightC:                 cfg.Core.GradWeighting.C,
		DepthMin:                    cfg.Core.Depth.Min,
		DepthMax:                    cfg.Core.Depth.Max,
		FixedRotationOnSecondKF:     cfg.Core.BundleAdjuster.FixedRotationOnSecondKF,
		FixedMotionOnFirstAdjustent: cfg.Core.BundleAdjuster.FixedMotionOnFirstAdjustent,
	}, logger.Sublogger("bundle"))

	return &System{
		cfg:         cfg,
		pattern:     pattern,
		initializer: ini,
		adjuster:    adj,
		trackerCfg: tracker.Config{
			Pattern:       pattern,
			OutlierDiff:   cfg.Core.Intensity.OutlierDiff,
			PyrLevels:     cfg.Core.PyrLevels,
			MinInlierFrac: cfg.KeyframeInlierThreshold,
		},
		window:       points.NewWindow(),
		logger:       logger,
		tracked:      map[int64]geometry.SE3{},
		predicted:    map[int64]geometry.SE3{},
		lightTracked: map[int64]geometry.AffineLight{},
	}, nil
}

// AddObserver registers a pose-stream observer.
func (s *System) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// AddCloudObserver registers a marginalized-point observer.
func (s *System) AddCloudObserver(o cloud.Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cloudObservers = append(s.cloudObservers, o)
}

// Trajectories is a snapshot of every frame's tracked and predicted world
// pose recorded so far.
type Trajectories struct {
	Tracked   map[int64]geometry.SE3
	Predicted map[int64]geometry.SE3
}

// Trajectories returns a copy of the tracked/predicted pose history.
func (s *System) Trajectories() Trajectories {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Trajectories{Tracked: make(map[int64]geometry.SE3, len(s.tracked)), Predicted: make(map[int64]geometry.SE3, len(s.predicted))}
	for k, v := range s.tracked {
		out.Tracked[k] = v
	}
	for k, v := range s.predicted {
		out.Predicted[k] = v
	}
	return out
}

// IngestFrame runs one frame through the pipeline: bootstrap while
// uninitialized, otherwise predict/track/promote.
func (s *System) IngestFrame(ctx context.Context, frameNum int64, img *camera.GrayImage, cam camera.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pyr := camera.BuildPyramidWithWorkers(img, cam, s.cfg.Core.PyrLevels, s.cfg.Core.Threading.NumThreads)
	pre := &points.PreKeyFrame{GlobalFrameNum: frameNum, Pyramid: pyr, WorldToFrame: geometry.Identity()}

	if !s.initialized {
		return s.ingestBootstrap(pre)
	}
	return s.ingestTracked(ctx, pre)
}

func (s *System) ingestBootstrap(pre *points.PreKeyFrame) error {
	if s.pendingFrame0 == nil {
		s.pendingFrame0 = pre
		return nil
	}

	kf0, kf1, err := s.initializer.Bootstrap(s.pendingFrame0, pre)
	if err != nil {
		s.pendingFrame0 = pre
		return err
	}

	if err := s.window.Insert(kf0); err != nil {
		return err
	}
	if err := s.window.Insert(kf1); err != nil {
		return err
	}

	// kf0 hosts every point the initializer seeded (frame1 only carries the
	// matcher's relative motion), so steady-state tracking resumes against
	// kf0 until the next promotion gives a later keyframe its own points.
	s.initialized = true
	s.lastKF = kf0
	s.lboFrameNum = kf0.GlobalFrameNum
	s.lastFrameNum = kf1.GlobalFrameNum
	s.tracked[kf0.GlobalFrameNum] = kf0.WorldToFrame
	s.tracked[kf1.GlobalFrameNum] = kf1.WorldToFrame
	s.predicted[kf0.GlobalFrameNum] = kf0.WorldToFrame
	s.predicted[kf1.GlobalFrameNum] = kf1.WorldToFrame
	s.lightTracked[kf0.GlobalFrameNum] = kf0.Light
	s.lightTracked[kf1.GlobalFrameNum] = kf1.Light

	s.frameTracker = tracker.NewFrameTracker(kf0, s.trackerCfg, s.logger.Sublogger("tracker"))

	s.observers.PrintTrackingInfo(kf0.GlobalFrameNum, kf0.WorldToFrame)
	s.observers.PrintTrackingInfo(kf1.GlobalFrameNum, kf1.WorldToFrame)
	s.observers.PrintMatcherInfo(kf1.GlobalFrameNum, kf1.WorldToFrame)
	return nil
}

func (s *System) ingestTracked(ctx context.Context, pre *points.PreKeyFrame) error {
	k := int(s.lastFrameNum - s.lboFrameNum)
	predictedKfToCur := PredictKfToCur(s.tracked[s.lboFrameNum], s.tracked[s.lastFrameNum], s.lastKF.WorldToFrame, k)
	lightPredicted := s.lightTracked[s.lastFrameNum]

	kfToCur, lightKfToCur, report, err := s.frameTracker.TrackFrame(ctx, predictedKfToCur, lightPredicted, pre)
	if err != nil {
		return errors.Wrap(err, "tracking frame")
	}

	worldToThis := kfToCur.Compose(s.lastKF.WorldToFrame)
	predictedWorld := predictedKfToCur.Compose(s.lastKF.WorldToFrame)

	s.lboFrameNum = s.lastFrameNum
	s.lastFrameNum = pre.GlobalFrameNum
	s.tracked[pre.GlobalFrameNum] = worldToThis
	s.predicted[pre.GlobalFrameNum] = predictedWorld
	s.lightTracked[pre.GlobalFrameNum] = lightKfToCur

	s.observers.PrintTrackingInfo(pre.GlobalFrameNum, worldToThis)
	s.observers.PrintPredictionInfo(pre.GlobalFrameNum, predictedWorld)

	if !report.Converged {
		s.logger.Debugf("frame %d: tracker did not converge", pre.GlobalFrameNum)
	}

	if s.shouldPromote(worldToThis, report) {
		pre.WorldToFrame = worldToThis
		pre.Light = lightKfToCur
		if err := s.promoteKeyFrame(pre); err != nil {
			return errors.Wrap(err, "promoting keyframe")
		}
	}
	return nil
}

func (s *System) shouldPromote(worldToThis geometry.SE3, report *tracker.Report) bool {
	rel := worldToThis.Compose(s.lastKF.WorldToFrame.Inverse())
	if rel.Trans.Norm() > s.cfg.KeyframeTransThreshold {
		return true
	}
	if rel.SO3Log().Norm() > s.cfg.KeyframeRotThreshold {
		return true
	}
	if report.InlierFraction < s.cfg.KeyframeInlierThreshold {
		return true
	}
	return false
}

// promoteKeyFrame promotes pre into the window: it traces every immature
// point still hosted by an existing window keyframe against pre (refining
// its depth bracket), activates the ones that qualify, seeds pre's own
// immature points, runs the bundle adjuster, and marginalizes the oldest
// keyframe if the window is now over capacity.
func (s *System) promoteKeyFrame(pre *points.PreKeyFrame) error {
	newKF := points.NewKeyFrame(*pre)

	traceCfg := points.EpipolarConfig{
		Pattern:               s.pattern,
		OnImageTestCount:      s.cfg.Core.EpipolarOnImageTestCount,
		OutlierIntensityDiff:  s.cfg.Core.EpipolarOutlierIntensityDiff,
		MinSecondBestDistance: s.cfg.Core.MinSecondBestDistance,
		Border:                float64(s.cfg.Core.ResidualPattern.Height),
	}
	for _, hosted := range s.window.All() {
		for _, p := range hosted.ImmaturePoints() {
			if err := points.TraceOn(p, hosted, pre, traceCfg); err != nil {
				s.logger.Debugf("trace against frame %d failed: %v", pre.GlobalFrameNum, err)
			}
		}
		points.ActivateReady(hosted, s.cfg.Core.ActivationMinQuality)
	}

	selected := points.SelectCandidates(newKF.Pyramid, nil, s.cfg.Core.InterestPointsUsed, float64(s.cfg.Core.ResidualPattern.Height), 1)
	for _, px := range selected {
		ip := points.NewImmaturePoint(px, newKF.GlobalFrameNum, 1/s.cfg.Core.Depth.Max, 1/s.cfg.Core.Depth.Min)
		newKF.AddImmaturePoint(ip)
	}

	if err := s.window.Insert(newKF); err != nil {
		return err
	}

	if _, err := s.adjuster.Adjust(s.window); err != nil {
		s.logger.Debugf("bundle adjust failed: %v", err)
	}

	for _, hosted := range s.window.All() {
		hosted.RemoveTerminalPoints()
	}

	if s.window.Len() > s.cfg.WindowCapacity {
		s.emitMarginalized(s.window.Marginalize())
	}

	// track_from_last_kf selects whether steady-state tracking resumes
	// against the keyframe just promoted or the one before it: newKF's own
	// points are still immature right after promotion, so only activate it
	// as the tracking reference once the flag says its points are ready to
	// be trusted.
	ref := newKF
	if !s.cfg.Core.TrackFromLastKF {
		if lbo := s.window.LastButOne(); lbo != nil {
			ref = lbo
		}
	}
	s.lastKF = ref
	s.frameTracker = tracker.NewFrameTracker(ref, s.trackerCfg, s.logger.Sublogger("tracker"))
	return nil
}

func (s *System) emitMarginalized(kf *points.KeyFrame) {
	if len(s.cloudObservers) == 0 || kf == nil {
		return
	}
	cam := kf.Pyramid.Camera(0)
	img := kf.Pyramid.Image(0)

	var pts []cloud.Point
	for _, p := range kf.ActivePoints() {
		depth := 1 / math.Exp(p.LogInvDepth())
		dir := cam.Unmap(p.Pix)
		worldPoint := kf.WorldToFrame.Inverse().Apply(dir.Mul(depth))
		gray := clampByte(img.At(int(p.Pix.X), int(p.Pix.Y)))
		pts = append(pts, cloud.Point{X: worldPoint.X, Y: worldPoint.Y, Z: worldPoint.Z, R: gray, G: gray, B: gray})
	}
	s.cloudObservers.OnMarginalized(pts)
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
