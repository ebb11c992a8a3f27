// Package initialize implements the two-view bootstrap that creates the
// first keyframe pair before steady-state tracking can start: an external
// stereo matcher supplies an initial relative motion and a sparse set of
// depthed correspondences, and a spherical terrain interpolates those into
// a per-pixel depth estimate for every selected point.
package initialize

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/lumen-robotics/dso/geometry"
	"github.com/lumen-robotics/dso/logging"
	"github.com/lumen-robotics/dso/points"
)

// MatchResult is what an external StereoMatcher reports for one frame pair:
// paired keypoints and per-keypoint depths in each frame, plus the relative
// motion between them.
type MatchResult struct {
	Keypoints [2][]r2.Point
	Depths    [2][]float64
	Motion    geometry.SE3
}

// StereoMatcher is the external contract this package bootstraps against;
// implementations are expected to wrap an ORB-style sparse matcher plus a
// two-view motion estimator.
type StereoMatcher interface {
	Match(frame0, frame1 *points.PreKeyFrame) (MatchResult, error)
}

// DepthedRay is one unit-direction sample with a known radius, the input a
// SphericalTerrain is built from.
type DepthedRay struct {
	Dir   r3.Vector
	Depth float64
}

// SphericalTerrain answers per-ray depth queries against a triangulation of
// DepthedRay samples on the unit sphere; Evaluate's second return is false
// when ray falls outside the triangulated hull.
type SphericalTerrain interface {
	Evaluate(ray r3.Vector) (depth float64, ok bool)
}

// TerrainBuilder constructs a SphericalTerrain from one frame's depthed
// rays; kept as a function value rather than a further interface since
// every implementation the initializer has seen is a pure constructor.
type TerrainBuilder func(rays []DepthedRay) (SphericalTerrain, error)

// Config bundles the knobs Bootstrap needs from dsoconfig, so this package
// carries no direct dependency on it.
type Config struct {
	FirstFramesSkip    int64
	InterestPointsUsed int
	ReselectionPasses  int
	Border             float64
	BracketHalfWidth   float64
}

// Initializer runs the two-view bootstrap.
type Initializer struct {
	matcher StereoMatcher
	terrain TerrainBuilder
	cfg     Config
	logger  logging.Logger
}

// New builds an Initializer. matcher must be non-nil: the initializer has
// no "pure" depth-free bootstrap path, by design (see Design Notes on the
// rejected dummy initializer path).
func New(matcher StereoMatcher, terrain TerrainBuilder, cfg Config, logger logging.Logger) (*Initializer, error) {
	if matcher == nil {
		return nil, errors.New("initialize: a non-nil StereoMatcher is required")
	}
	if terrain == nil {
		return nil, errors.New("initialize: a non-nil TerrainBuilder is required")
	}
	return &Initializer{matcher: matcher, terrain: terrain, cfg: cfg, logger: logger}, nil
}

// Bootstrap matches frame0 against frame1, interpolates per-pixel depth for
// a selected set of frame0 pixels via the resulting spherical terrain, and
// emits the two keyframes the rest of the system builds its window from:
// frame0 at worldToThis = identity, frame1 at the matcher's reported
// motion.
func (ini *Initializer) Bootstrap(frame0, frame1 *points.PreKeyFrame) (*points.KeyFrame, *points.KeyFrame, error) {
	if frame1.GlobalFrameNum-frame0.GlobalFrameNum < ini.cfg.FirstFramesSkip {
		return nil, nil, errors.New("initialize: frame1 too close to frame0")
	}

	match, err := ini.matcher.Match(frame0, frame1)
	if err != nil {
		return nil, nil, errors.Wrap(err, "matching frame pair")
	}
	if len(match.Keypoints[0]) != len(match.Depths[0]) {
		return nil, nil, errors.New("initialize: keypoint/depth count mismatch")
	}

	rays := make([]DepthedRay, len(match.Keypoints[0]))
	cam0 := frame0.Pyramid.Camera(0)
	for i, kp := range match.Keypoints[0] {
		rays[i] = DepthedRay{Dir: cam0.Unmap(kp), Depth: match.Depths[0][i]}
	}
	terrain, err := ini.terrain(rays)
	if err != nil {
		return nil, nil, errors.Wrap(err, "building spherical terrain")
	}

	kf0 := points.NewKeyFrame(points.PreKeyFrame{
		GlobalFrameNum: frame0.GlobalFrameNum,
		Pyramid:        frame0.Pyramid,
		WorldToFrame:   geometry.Identity(),
		Light:          frame0.Light,
	})

	wanted := ini.cfg.InterestPointsUsed
	passes := ini.cfg.ReselectionPasses
	if passes < 0 {
		passes = 0
	}

	var selected []r2.Point
	for pass := 0; pass <= passes; pass++ {
		selected = points.SelectCandidates(frame0.Pyramid, nil, wanted, ini.cfg.Border, 1)
		if len(selected) == 0 {
			break
		}

		inTriang := 0
		for _, px := range selected {
			if _, ok := terrain.Evaluate(cam0.Unmap(px)); ok {
				inTriang++
			}
		}
		total := len(selected)
		if pass == passes || inTriang == total {
			break
		}
		ratio := float64(total) / float64(maxInt(inTriang, 1))
		wanted = int(float64(ini.cfg.InterestPointsUsed) * ratio)
		ini.logger.Debugf("initializer reselection pass %d: %d/%d in hull, widening to %d candidates", pass, inTriang, total, wanted)
	}

	half := ini.cfg.BracketHalfWidth
	if half <= 0 {
		half = 0.2
	}
	for _, px := range selected {
		ray := cam0.Unmap(px)
		depth, ok := terrain.Evaluate(ray)
		if !ok {
			oob := points.NewImmaturePoint(px, kf0.GlobalFrameNum, 1e-3, 1e3)
			_ = oob.MarkOOB()
			kf0.AddImmaturePoint(oob)
			continue
		}
		invDepth := 1 / depth
		p := points.NewImmaturePoint(px, kf0.GlobalFrameNum, invDepth*(1-half), invDepth*(1+half))
		if err := p.Activate(-math.Log(depth)); err != nil {
			continue
		}
		kf0.AddImmaturePoint(p)
	}

	kf1 := points.NewKeyFrame(points.PreKeyFrame{
		GlobalFrameNum: frame1.GlobalFrameNum,
		Pyramid:        frame1.Pyramid,
		WorldToFrame:   match.Motion,
		Light:          frame1.Light,
	})

	return kf0, kf1, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
