package tracker

import (
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"github.com/lumen-robotics/dso/camera"
	"github.com/lumen-robotics/dso/geometry"
	"github.com/lumen-robotics/dso/logging"
	"github.com/lumen-robotics/dso/points"
)

func gradientImage(size int) *camera.GrayImage {
	img := camera.NewGrayImage(size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, float64((x*7+y*13)%256))
		}
	}
	return img
}

func trackerTestCam(size int) camera.EquidistantFisheye {
	return camera.EquidistantFisheye{
		Width: size, Height: size,
		Fx: float64(size), Fy: float64(size),
		Cx: float64(size) / 2, Cy: float64(size) / 2,
		MaxAngleRadius: math.Pi / 2 * 0.9,
	}
}

func TestTrackFrameStaticSceneStaysNearIdentity(t *testing.T) {
	size := 64
	cam := trackerTestCam(size)
	refPyr := camera.BuildPyramid(gradientImage(size), cam, 3)

	ref := points.NewKeyFrame(points.PreKeyFrame{
		GlobalFrameNum: 0,
		Pyramid:        refPyr,
		WorldToFrame:   geometry.Identity(),
	})

	for _, px := range []r2.Point{{X: 20, Y: 20}, {X: 40, Y: 20}, {X: 20, Y: 40}, {X: 40, Y: 40}, {X: 32, Y: 32}} {
		p := points.NewImmaturePoint(px, ref.GlobalFrameNum, 0.01, 1)
		test.That(t, p.Activate(0.0), test.ShouldBeNil) // logInvDepth=0 -> depth=1
		ref.AddImmaturePoint(p)
	}

	nextPyr := camera.BuildPyramid(gradientImage(size), cam, 3)
	next := &points.PreKeyFrame{GlobalFrameNum: 1, Pyramid: nextPyr, WorldToFrame: geometry.Identity()}

	cfg := Config{Pattern: points.Diamond8(), OutlierDiff: 50, PyrLevels: 3, MinInlierFrac: 0.5}
	ft := NewFrameTracker(ref, cfg, logging.NewLogger("tracker-test", logging.ERROR))

	pose, light, report, err := ft.TrackFrame(context.Background(), geometry.Identity(), geometry.AffineLight{}, next)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, report, test.ShouldNotBeNil)
	test.That(t, pose.Trans.Norm(), test.ShouldBeLessThan, 0.5)
	_ = light
}
