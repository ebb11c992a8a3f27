package vo

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/lumen-robotics/dso/camera"
	"github.com/lumen-robotics/dso/dsoconfig"
	"github.com/lumen-robotics/dso/geometry"
	"github.com/lumen-robotics/dso/initialize"
	"github.com/lumen-robotics/dso/logging"
	"github.com/lumen-robotics/dso/points"
)

func voTestCam(size int) camera.EquidistantFisheye {
	return camera.EquidistantFisheye{
		Width: size, Height: size,
		Fx: float64(size), Fy: float64(size),
		Cx: float64(size) / 2, Cy: float64(size) / 2,
		MaxAngleRadius: math.Pi / 2 * 0.9,
	}
}

func voTestImage(size int) *camera.GrayImage {
	img := camera.NewGrayImage(size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, float64((x*13+y*7)%256))
		}
	}
	return img
}

func voTestConfig() Config {
	core := dsoconfig.Default()
	core.InterestPointsUsed = 30
	core.FirstFramesSkip = 1
	core.PyrLevels = 2
	return Config{
		Core:                    core,
		WindowCapacity:          5,
		KeyframeTransThreshold:  1e9,
		KeyframeRotThreshold:    1e9,
		KeyframeInlierThreshold: -1,
	}
}

type flatTerrainStub struct {
	depth float64
}

func (f flatTerrainStub) Evaluate(ray r3.Vector) (float64, bool) { return f.depth, true }

func flatTerrainBuilder(depth float64) initialize.TerrainBuilder {
	return func(rays []initialize.DepthedRay) (initialize.SphericalTerrain, error) {
		return flatTerrainStub{depth: depth}, nil
	}
}

type stubMatcher struct{}

func (stubMatcher) Match(frame0, frame1 *points.PreKeyFrame) (initialize.MatchResult, error) {
	kps := []r2.Point{{X: 16, Y: 16}, {X: 40, Y: 16}, {X: 16, Y: 40}, {X: 40, Y: 40}}
	depths := []float64{2, 2, 2, 2}
	return initialize.MatchResult{
		Keypoints: [2][]r2.Point{kps, kps},
		Depths:    [2][]float64{depths, depths},
		Motion:    geometry.NewSE3(geometry.ExpSO3(r3.Vector{}), r3.Vector{X: 0.05}),
	}, nil
}

func TestIngestFrameBuffersUntilSecondBootstrapFrame(t *testing.T) {
	size := 64
	sys, err := NewSystem(voTestConfig(), stubMatcher{}, flatTerrainBuilder(2.0), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	cam := voTestCam(size)
	err = sys.IngestFrame(context.Background(), 0, voTestImage(size), cam)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sys.initialized, test.ShouldBeFalse)
}

func TestIngestFrameBootstrapsAndTracksSubsequentFrame(t *testing.T) {
	size := 64
	sys, err := NewSystem(voTestConfig(), stubMatcher{}, flatTerrainBuilder(2.0), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	var tracking bytes.Buffer
	sys.AddObserver(WriterObserver{Tracking: &tracking})

	cam := voTestCam(size)
	ctx := context.Background()

	test.That(t, sys.IngestFrame(ctx, 0, voTestImage(size), cam), test.ShouldBeNil)
	test.That(t, sys.IngestFrame(ctx, 1, voTestImage(size), cam), test.ShouldBeNil)
	test.That(t, sys.initialized, test.ShouldBeTrue)

	test.That(t, sys.IngestFrame(ctx, 2, voTestImage(size), cam), test.ShouldBeNil)

	traj := sys.Trajectories()
	test.That(t, len(traj.Tracked), test.ShouldEqual, 3)
	test.That(t, tracking.Len(), test.ShouldBeGreaterThan, 0)
}

func TestNewSystemRejectsInvalidConfig(t *testing.T) {
	cfg := voTestConfig()
	cfg.Core.Depth.Min = 0
	_, err := NewSystem(cfg, stubMatcher{}, flatTerrainBuilder(2.0), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
