package points

import (
	"github.com/lumen-robotics/dso/camera"
	"github.com/lumen-robotics/dso/geometry"
)

// PreKeyFrame is a frame that has been pyramided and pose-estimated by the
// tracker but not (yet, or ever) promoted to a keyframe: it carries its own
// pyramid handle, its world-to-frame pose and its light estimate, exactly the state the tracker needs and nothing a keyframe's
// point map would add.
type PreKeyFrame struct {
	GlobalFrameNum int64
	Pyramid        *camera.Pyramid
	WorldToFrame   geometry.SE3
	Light          geometry.AffineLight
}

// KeyFrame is a PreKeyFrame promoted into the optimization window: it owns
// the immature and active points it hosts. Points reference their host by
// GlobalFrameNum rather than a pointer, resolved through the owning
// Window — see Design Notes on back-pointers.
type KeyFrame struct {
	PreKeyFrame

	points      map[int64]*Point
	nextPointID int64
}

// NewKeyFrame promotes pre into an empty keyframe.
func NewKeyFrame(pre PreKeyFrame) *KeyFrame {
	return &KeyFrame{PreKeyFrame: pre, points: make(map[int64]*Point)}
}

// AddImmaturePoint registers pt as a point hosted by this keyframe under a
// fresh id, returning that id.
func (kf *KeyFrame) AddImmaturePoint(pt *Point) int64 {
	id := kf.nextPointID
	kf.nextPointID++
	kf.points[id] = pt
	return id
}

// Point returns the point registered under id, or nil if absent.
func (kf *KeyFrame) Point(id int64) *Point { return kf.points[id] }

// Points returns every point hosted by this keyframe, in no particular
// order.
func (kf *KeyFrame) Points() map[int64]*Point { return kf.points }

// ImmaturePoints returns the subset of hosted points still in
// StatusImmature.
func (kf *KeyFrame) ImmaturePoints() []*Point {
	var out []*Point
	for _, p := range kf.points {
		if p.Status() == StatusImmature {
			out = append(out, p)
		}
	}
	return out
}

// ActivePoints returns the subset of hosted points in StatusActive.
func (kf *KeyFrame) ActivePoints() []*Point {
	var out []*Point
	for _, p := range kf.points {
		if p.Status() == StatusActive {
			out = append(out, p)
		}
	}
	return out
}

// RemoveTerminalPoints prunes every OOB/Outlier point from the keyframe,
// called after bundle adjustment has classified them.
func (kf *KeyFrame) RemoveTerminalPoints() {
	for id, p := range kf.points {
		if p.IsTerminal() {
			delete(kf.points, id)
		}
	}
}
