package bundle

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

func adjusterTestCam(size int) camera.EquidistantFisheye {
	return camera.EquidistantFisheye{
		Width: size, Height: size,
		Fx: float64(size), Fy: float64(size),
		Cx: float64(size) / 2, Cy: float64(size) / 2,
		MaxAngleRadius: math.Pi / 2 * 0.9,
	}
}

func checkerImage(size int) *camera.GrayImage {
	img := camera.NewGrayImage(size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, float64((x*11+y*17)%256))
		}
	}
	return img
}

func twoKeyFrameWindow(t *testing.T) *points.Window {
	size := 64
	cam := adjusterTestCam(size)

	pyr0 := camera.BuildPyramid(checkerImage(size), cam, 2)
	kf0 := points.NewKeyFrame(points.PreKeyFrame{
		GlobalFrameNum: 0,
		Pyramid:        pyr0,
		WorldToFrame:   geometry.Identity(),
	})

	pyr1 := camera.BuildPyramid(checkerImage(size), cam, 2)
	kf1 := points.NewKeyFrame(points.PreKeyFrame{
		GlobalFrameNum: 1,
		Pyramid:        pyr1,
		WorldToFrame:   geometry.NewSE3(geometry.ExpSO3(r3.Vector{}), r3.Vector{X: 0.1}),
	})

	for _, px := range []r2.Point{{X: 20, Y: 20}, {X: 40, Y: 20}, {X: 20, Y: 40}, {X: 40, Y: 40}, {X: 32, Y: 32}} {
		p0 := points.NewImmaturePoint(px, kf0.GlobalFrameNum, 0.5, 2)
		test.That(t, p0.Activate(0.0), test.ShouldBeNil)
		kf0.AddImmaturePoint(p0)
	}

	w := points.NewWindow()
	test.That(t, w.Insert(kf0), test.ShouldBeNil)
	test.That(t, w.Insert(kf1), test.ShouldBeNil)
	return w
}

func TestAdjustKeepsFirstKeyFrameFixed(t *testing.T) {
	w := twoKeyFrameWindow(t)
	origin := w.First().WorldToFrame

	cfg := Config{
		Pattern:     points.Diamond8(),
		OutlierDiff: 60,
		GradWeightC: 30,
		DepthMin:    0.1,
		DepthMax:    10,
	}
	a := NewAdjuster(cfg, logging.NewLogger("adjuster-test", logging.ERROR))
	report, err := a.Adjust(w)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, report, test.ShouldNotBeNil)

	test.That(t, w.First().WorldToFrame.Trans, test.ShouldResemble, origin.Trans)
	test.That(t, w.First().WorldToFrame.Rot, test.ShouldResemble, origin.Rot)
}

func TestAdjustFixedMotionFreezesSecondKeyFrame(t *testing.T) {
	w := twoKeyFrameWindow(t)
	before := w.Last().WorldToFrame

	cfg := Config{
		Pattern:                     points.Diamond8(),
		OutlierDiff:                 60,
		GradWeightC:                 30,
		DepthMin:                    0.1,
		DepthMax:                    10,
		FixedMotionOnFirstAdjustent: true,
	}
	a := NewAdjuster(cfg, logging.NewLogger("adjuster-test", logging.ERROR))
	_, err := a.Adjust(w)
	test.That(t, err, test.ShouldBeNil)

	after := w.Last().WorldToFrame
	test.That(t, after.Trans, test.ShouldResemble, before.Trans)
	test.That(t, after.Rot, test.ShouldResemble, before.Rot)
}

func TestAdjustTooFewKeyFramesIsNoOp(t *testing.T) {
	w := points.NewWindow()
	size := 32
	cam := adjusterTestCam(size)
	pyr := camera.BuildPyramid(checkerImage(size), cam, 2)
	kf := points.NewKeyFrame(points.PreKeyFrame{GlobalFrameNum: 0, Pyramid: pyr, WorldToFrame: geometry.Identity()})
	test.That(t, w.Insert(kf), test.ShouldBeNil)

	a := NewAdjuster(Config{Pattern: points.Diamond8(), OutlierDiff: 40}, logging.NewLogger("adjuster-test", logging.ERROR))
	report, err := a.Adjust(w)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, report.Converged, test.ShouldBeTrue)
}
