package points

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Status tags a Point's current variant, making the illegal-transition
// states the source's flag-based representation allowed unrepresentable.
type Status int

const (
	// StatusImmature points carry a depth bracket and quality score but no
	// committed inverse depth.
	StatusImmature Status = iota
	// StatusActive points have been promoted by activation and carry a
	// committed inverse depth the bundle adjuster refines.
	StatusActive
	// StatusOOB is a terminal state: the point left every keyframe's field
	// of view.
	StatusOOB
	// StatusOutlier is a terminal state: the point's residual was
	// classified as unreliable by the bundle adjuster.
	StatusOutlier
)

func (s Status) String() string {
	switch s {
	case StatusImmature:
		return "immature"
	case StatusActive:
		return "active"
	case StatusOOB:
		return "oob"
	case StatusOutlier:
		return "outlier"
	default:
		return "unknown"
	}
}

// Bracket is the [min, max] inverse-depth search range an immature point
// narrows as traces accumulate evidence.
type Bracket struct {
	MinInvDepth, MaxInvDepth float64
}

// Point is a single tracked feature, host-anchored in one keyframe and
// resolved to a depth by epipolar search and, once activated, refined by
// bundle adjustment. It holds its host keyframe's id rather than a pointer
// to the frame itself: the window is the single owner of KeyFrame values,
// and points resolve their host by lookup to avoid raw back-pointers.
type Point struct {
	Pix     r2.Point
	HostID  int64
	status  Status
	bracket Bracket
	quality float64

	logInvDepth float64
}

// NewImmaturePoint creates a point anchored at pix in the keyframe hostID,
// with an initial depth search bracket spanning the configured depth range.
func NewImmaturePoint(pix r2.Point, hostID int64, minInvDepth, maxInvDepth float64) *Point {
	return &Point{
		Pix:     pix,
		HostID:  hostID,
		status:  StatusImmature,
		bracket: Bracket{MinInvDepth: minInvDepth, MaxInvDepth: maxInvDepth},
	}
}

// Status returns the point's current variant tag.
func (p *Point) Status() Status { return p.status }

// Bracket returns the immature search bracket. Only meaningful while
// Status() == StatusImmature.
func (p *Point) Bracket() Bracket { return p.bracket }

// Quality returns the immature point's best trace quality score so far.
func (p *Point) Quality() float64 { return p.quality }

// LogInvDepth returns the committed inverse-depth parameter. Only
// meaningful once Status() == StatusActive.
func (p *Point) LogInvDepth() float64 { return p.logInvDepth }

// NarrowBracket updates the immature point's search bracket and quality
// score after a trace, without changing its status.
func (p *Point) NarrowBracket(b Bracket, quality float64) error {
	if p.status != StatusImmature {
		return errors.Errorf("cannot narrow bracket of a %s point", p.status)
	}
	p.bracket = b
	p.quality = quality
	return nil
}

// Activate promotes an immature point to active with a committed inverse
// depth, the only legal entry into StatusActive.
func (p *Point) Activate(logInvDepth float64) error {
	if p.status != StatusImmature {
		return errors.Errorf("cannot activate a %s point", p.status)
	}
	p.status = StatusActive
	p.logInvDepth = logInvDepth
	return nil
}

// SetLogInvDepth updates the committed inverse depth of an already-active
// point, the bundle adjuster's per-iteration update.
func (p *Point) SetLogInvDepth(logInvDepth float64) error {
	if p.status != StatusActive {
		return errors.Errorf("cannot update depth of a %s point", p.status)
	}
	p.logInvDepth = logInvDepth
	return nil
}

// MarkOOB transitions the point to the terminal StatusOOB state. Legal from
// StatusImmature (a point that never resolves a depth before drifting out
// of every keyframe's field of view) or StatusActive (an active point that
// drifts out of every keyframe's field of view); illegal once already
// terminal.
func (p *Point) MarkOOB() error {
	if p.status == StatusOOB || p.status == StatusOutlier {
		return errors.Errorf("cannot mark a terminal %s point as OOB", p.status)
	}
	p.status = StatusOOB
	return nil
}

// MarkOutlier transitions an active point to the terminal StatusOutlier
// state, once the bundle adjuster classifies its residual as unreliable.
func (p *Point) MarkOutlier() error {
	if p.status != StatusActive {
		return errors.Errorf("cannot mark a %s point as outlier", p.status)
	}
	p.status = StatusOutlier
	return nil
}

// IsTerminal reports whether the point has reached OOB or Outlier.
func (p *Point) IsTerminal() bool {
	return p.status == StatusOOB || p.status == StatusOutlier
}
