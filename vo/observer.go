package vo

import (
	"fmt"
	"io"

	"github.com/lumen-robotics/dso/geometry"
)

// Observer receives one fixed-column pose line per frame for each of the
// four pose streams the system produces. Implementations are expected to be
// cheap and non-blocking; System calls them synchronously from inside its
// ingest lock.
type Observer interface {
	PrintTrackingInfo(frameNum int64, pose geometry.SE3)
	PrintPredictionInfo(frameNum int64, pose geometry.SE3)
	PrintGroundTruthInfo(frameNum int64, pose geometry.SE3)
	PrintMatcherInfo(frameNum int64, pose geometry.SE3)
}

// WriterObserver streams every pose stream to its own io.Writer as
// "globalFrameNum qx qy qz qw tx ty tz" lines, the wire format this system
// reports trajectories in. Any of the four writers may be nil to drop that
// stream.
type WriterObserver struct {
	Tracking, Prediction, GroundTruth, Matcher io.Writer
}

func writePoseLine(w io.Writer, frameNum int64, pose geometry.SE3) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "%d %g %g %g %g %g %g %g\n",
		frameNum,
		pose.Rot.Imag, pose.Rot.Jmag, pose.Rot.Kmag, pose.Rot.Real,
		pose.Trans.X, pose.Trans.Y, pose.Trans.Z,
	)
}

func (o WriterObserver) PrintTrackingInfo(frameNum int64, pose geometry.SE3) {
	writePoseLine(o.Tracking, frameNum, pose)
}

func (o WriterObserver) PrintPredictionInfo(frameNum int64, pose geometry.SE3) {
	writePoseLine(o.Prediction, frameNum, pose)
}

func (o WriterObserver) PrintGroundTruthInfo(frameNum int64, pose geometry.SE3) {
	writePoseLine(o.GroundTruth, frameNum, pose)
}

func (o WriterObserver) PrintMatcherInfo(frameNum int64, pose geometry.SE3) {
	writePoseLine(o.Matcher, frameNum, pose)
}

// MultiObserver fans every call out to each registered Observer, mirroring
// cloud.MultiObserver.
type MultiObserver []Observer

func (m MultiObserver) PrintTrackingInfo(frameNum int64, pose geometry.SE3) {
	for _, o := range m {
		o.PrintTrackingInfo(frameNum, pose)
	}
}

func (m MultiObserver) PrintPredictionInfo(frameNum int64, pose geometry.SE3) {
	for _, o := range m {
		o.PrintPredictionInfo(frameNum, pose)
	}
}

func (m MultiObserver) PrintGroundTruthInfo(frameNum int64, pose geometry.SE3) {
	for _, o := range m {
		o.PrintGroundTruthInfo(frameNum, pose)
	}
}

func (m MultiObserver) PrintMatcherInfo(frameNum int64, pose geometry.SE3) {
	for _, o := range m {
		o.PrintMatcherInfo(frameNum, pose)
	}
}
