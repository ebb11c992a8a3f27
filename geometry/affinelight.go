package geometry

import "math"

// AffineLight is the per-frame photometric correction x -> exp(A)*(x+B),
// logged in A so that composition is linear in A and affine in B.
type AffineLight struct {
	A, B float64
}

// Apply evaluates the transform at intensity x.
func (t AffineLight) Apply(x float64) float64 {
	return math.Exp(t.A) * (x + t.B)
}

// Compose returns t o other, i.e. Compose(t,other).Apply(x) ==
// t.Apply(other.Apply(x)) for all x. The multiplicative term adds in the
// exponent; the additive term folds other.B in directly and rescales t.B by
// the inverse of other's multiplier so the two intensity scalings line up.
func (t AffineLight) Compose(other AffineLight) AffineLight {
	return AffineLight{
		A: t.A + other.A,
		B: other.B + math.Exp(-other.A)*t.B,
	}
}

// Inverse returns the transform that undoes t: t.Compose(t.Inverse())
// reduces to the identity (0,0).
func (t AffineLight) Inverse() AffineLight {
	// x = exp(a)(y+b) => y = exp(-a)*x - b
	return AffineLight{A: -t.A, B: -math.Exp(t.A) * t.B}
}

// Clamp box-constrains t to the given bounds, used when the optimizer is
// configured with affineLight.{min,max}AffineLight{A,B}.
func (t AffineLight) Clamp(aMin, aMax, bMin, bMax float64) AffineLight {
	return AffineLight{
		A: clampFloat(t.A, aMin, aMax),
		B: clampFloat(t.B, bMin, bMax),
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NormalizeMultiplier shifts T's multiplicative term into R so that T.A == 0
// while T.Compose(R) is left pointwise unchanged. This is used at BA assembly
// time so every residual pair multiplies a zero-gauge base transform by a
// relative one.
func NormalizeMultiplier(t, r AffineLight) (AffineLight, AffineLight) {
	tPrime := AffineLight{A: 0, B: math.Exp(t.A) * t.B}
	rPrime := AffineLight{A: t.A + r.A, B: r.B}
	return tPrime, rPrime
}
