package initialize

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/lumen-robotics/dso/camera"
	"github.com/lumen-robotics/dso/geometry"
	"github.com/lumen-robotics/dso/logging"
	"github.com/lumen-robotics/dso/points"
)

func initTestCam(size int) camera.EquidistantFisheye {
	return camera.EquidistantFisheye{
		Width: size, Height: size,
		Fx: float64(size), Fy: float64(size),
		Cx: float64(size) / 2, Cy: float64(size) / 2,
		MaxAngleRadius: math.Pi / 2 * 0.9,
	}
}

func initTestImage(size int) *camera.GrayImage {
	img := camera.NewGrayImage(size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, float64((x*11+y*19)%256))
		}
	}
	return img
}

func testPreKeyFrame(num int64, size int) *points.PreKeyFrame {
	cam := initTestCam(size)
	pyr := camera.BuildPyramid(initTestImage(size), cam, 2)
	return &points.PreKeyFrame{GlobalFrameNum: num, Pyramid: pyr, WorldToFrame: geometry.Identity()}
}

type fakeMatcher struct {
	motion geometry.SE3
	err    error
}

func (m fakeMatcher) Match(frame0, frame1 *points.PreKeyFrame) (MatchResult, error) {
	if m.err != nil {
		return MatchResult{}, m.err
	}
	kps := []r2.Point{{X: 20, Y: 20}, {X: 40, Y: 20}, {X: 20, Y: 40}, {X: 40, Y: 40}}
	depths := []float64{2, 2, 2, 2}
	return MatchResult{
		Keypoints: [2][]r2.Point{kps, kps},
		Depths:    [2][]float64{depths, depths},
		Motion:    m.motion,
	}, nil
}

func flatTerrain(depth float64, ok bool) TerrainBuilder {
	return func(rays []DepthedRay) (SphericalTerrain, error) {
		return flatSphericalTerrain{depth: depth, ok: ok}, nil
	}
}

type flatSphericalTerrain struct {
	depth float64
	ok    bool
}

func (f flatSphericalTerrain) Evaluate(ray r3.Vector) (float64, bool) {
	return f.depth, f.ok
}

func defaultInitializeConfig() Config {
	return Config{
		FirstFramesSkip:    1,
		InterestPointsUsed: 20,
		ReselectionPasses:  1,
		Border:             4,
		BracketHalfWidth:   0.2,
	}
}

func TestBootstrapCreatesKeyFramesWithActivePoints(t *testing.T) {
	size := 64
	frame0 := testPreKeyFrame(0, size)
	frame1 := testPreKeyFrame(5, size)
	motion := geometry.NewSE3(geometry.ExpSO3(r3.Vector{}), r3.Vector{X: 0.1})

	ini, err := New(fakeMatcher{motion: motion}, flatTerrain(2.0, true), defaultInitializeConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	kf0, kf1, err := ini.Bootstrap(frame0, frame1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, kf0, test.ShouldNotBeNil)
	test.That(t, kf1, test.ShouldNotBeNil)

	test.That(t, kf0.WorldToFrame.Trans, test.ShouldResemble, geometry.Identity().Trans)
	test.That(t, kf1.WorldToFrame.Trans, test.ShouldResemble, motion.Trans)
	test.That(t, len(kf0.ActivePoints()), test.ShouldBeGreaterThan, 0)
}

func TestBootstrapMarksOutOfHullPointsOOB(t *testing.T) {
	size := 64
	frame0 := testPreKeyFrame(0, size)
	frame1 := testPreKeyFrame(5, size)

	ini, err := New(fakeMatcher{motion: geometry.Identity()}, flatTerrain(2.0, false), defaultInitializeConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	kf0, _, err := ini.Bootstrap(frame0, frame1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(kf0.ActivePoints()), test.ShouldEqual, 0)

	oobCount := 0
	for _, p := range kf0.Points() {
		if p.Status() == points.StatusOOB {
			oobCount++
		}
	}
	test.That(t, oobCount, test.ShouldBeGreaterThan, 0)
}

func TestBootstrapRejectsNilMatcher(t *testing.T) {
	_, err := New(nil, flatTerrain(2.0, true), defaultInitializeConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBootstrapRejectsFramesTooClose(t *testing.T) {
	size := 32
	frame0 := testPreKeyFrame(0, size)
	frame1 := testPreKeyFrame(0, size)

	ini, err := New(fakeMatcher{motion: geometry.Identity()}, flatTerrain(2.0, true), defaultInitializeConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, _, err = ini.Bootstrap(frame0, frame1)
	test.That(t, err, test.ShouldNotBeNil)
}
