// Package geometry holds the SE(3)/SO(3) pose representation, the affine
// photometric transform, and the epipolar/spherical primitives shared by the
// initializer, tracker and bundle adjuster.
package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// SE3 is a rigid-body transform, split into a unit-quaternion rotation and a
// translation — the same Point()/Orientation() split rdk's spatialmath
// package exposes on its Pose interface, collapsed here into a single
// concrete struct since the core never needs more than one pose
// representation.
type SE3 struct {
	Rot   quat.Number // must stay unit-norm; Normalize() restores this after accumulation
	Trans r3.Vector
}

// Identity returns the identity transform.
func Identity() SE3 {
	return SE3{Rot: quat.Number{Real: 1}, Trans: r3.Vector{}}
}

// NewSE3 builds a pose from a rotation quaternion (not required to be
// pre-normalized) and a translation.
func NewSE3(rot quat.Number, trans r3.Vector) SE3 {
	s := SE3{Rot: rot, Trans: trans}
	s.Normalize()
	return s
}

// Normalize rescales Rot to unit norm in place; repeated composition can let
// floating-point drift accumulate, and a long tracking run must not let the
// rotation quaternion silently become a non-rotation.
func (s *SE3) Normalize() {
	n := math.Sqrt(s.Rot.Real*s.Rot.Real + s.Rot.Imag*s.Rot.Imag + s.Rot.Jmag*s.Rot.Jmag + s.Rot.Kmag*s.Rot.Kmag)
	if n == 0 {
		s.Rot = quat.Number{Real: 1}
		return
	}
	s.Rot = quat.Scale(1/n, s.Rot)
}

// Apply transforms a point by the pose: Rot*p + Trans.
func (s SE3) Apply(p r3.Vector) r3.Vector {
	return rotateVector(s.Rot, p).Add(s.Trans)
}

// ApplyRotation rotates a direction without translating it, used when
// projecting unit rays rather than world points.
func (s SE3) ApplyRotation(v r3.Vector) r3.Vector {
	return rotateVector(s.Rot, v)
}

// Compose returns s * other, i.e. "apply other, then s" in the convention
// used throughout the spec (baseToRef = refFrame.WorldToThis.Compose(baseFrame.WorldToThis.Inverse())).
func (s SE3) Compose(other SE3) SE3 {
	rot := quat.Mul(s.Rot, other.Rot)
	trans := rotateVector(s.Rot, other.Trans).Add(s.Trans)
	out := SE3{Rot: rot, Trans: trans}
	out.Normalize()
	return out
}

// Inverse returns the pose such that s.Compose(s.Inverse()) == Identity().
func (s SE3) Inverse() SE3 {
	rinv := quat.Conj(s.Rot) // unit quaternion: conjugate == inverse
	return SE3{Rot: rinv, Trans: rotateVector(rinv, s.Trans).Mul(-1)}
}

// SO3Log returns the rotation-vector (axis*angle) tangent of s.Rot.
func (s SE3) SO3Log() r3.Vector {
	return quatLog(s.Rot)
}

// ExpSO3 builds a unit quaternion from a rotation-vector tangent.
func ExpSO3(w r3.Vector) quat.Number {
	theta := w.Norm()
	if theta < 1e-12 {
		// first-order Taylor expansion keeps this branch numerically stable
		// near zero rotation, where axis/theta is otherwise 0/0.
		return quat.Number{Real: 1, Imag: w.X / 2, Jmag: w.Y / 2, Kmag: w.Z / 2}
	}
	half := theta / 2
	s := math.Sin(half) / theta
	return quat.Number{Real: math.Cos(half), Imag: w.X * s, Jmag: w.Y * s, Kmag: w.Z * s}
}

func quatLog(q quat.Number) r3.Vector {
	vNorm := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if vNorm < 1e-12 {
		return r3.Vector{}
	}
	real := q.Real
	if real > 1 {
		real = 1
	} else if real < -1 {
		real = -1
	}
	angle := 2 * math.Atan2(vNorm, real)
	scale := angle / vNorm
	return r3.Vector{X: q.Imag * scale, Y: q.Jmag * scale, Z: q.Kmag * scale}
}

func rotateVector(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}
