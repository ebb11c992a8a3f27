package geometry

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func randomSE3(rng *rand.Rand) SE3 {
	w := r3.Vector{X: rng.Float64() - 0.5, Y: rng.Float64() - 0.5, Z: rng.Float64() - 0.5}
	return NewSE3(ExpSO3(w), r3.Vector{X: rng.Float64()*4 - 2, Y: rng.Float64()*4 - 2, Z: rng.Float64()*4 - 2})
}

func TestSE3ComposeMatchesNestedApply(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		s := randomSE3(rng)
		other := randomSE3(rng)
		p := r3.Vector{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}

		got := s.Compose(other).Apply(p)
		want := s.Apply(other.Apply(p))
		test.That(t, got.X, test.ShouldAlmostEqual, want.X, 1e-9)
		test.That(t, got.Y, test.ShouldAlmostEqual, want.Y, 1e-9)
		test.That(t, got.Z, test.ShouldAlmostEqual, want.Z, 1e-9)
	}
}

func TestSE3InverseIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		s := randomSE3(rng)
		id := s.Compose(s.Inverse())
		test.That(t, id.Trans.Norm(), test.ShouldAlmostEqual, 0.0, 1e-8)
		test.That(t, math.Abs(id.Rot.Real-1), test.ShouldBeLessThan, 1e-8)
	}
}

func TestExpLogSO3RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 20; i++ {
		w := r3.Vector{X: rng.Float64() - 0.5, Y: rng.Float64() - 0.5, Z: rng.Float64() - 0.5}
		s := SE3{Rot: ExpSO3(w)}
		got := s.SO3Log()
		test.That(t, got.X, test.ShouldAlmostEqual, w.X, 1e-8)
		test.That(t, got.Y, test.ShouldAlmostEqual, w.Y, 1e-8)
		test.That(t, got.Z, test.ShouldAlmostEqual, w.Z, 1e-8)
	}
}
