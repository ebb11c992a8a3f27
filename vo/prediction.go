package vo

import "github.com/lumen-robotics/dso/geometry"

// PredictKfToCur predicts the keyframe-to-current motion from a constant
// local-velocity model built off the last two tracked poses, worldToLbo
// ("last but one") and worldToLast, separated by k frames: it extrapolates
// their relative motion forward by one step of size 1/k and composes the
// result onto worldToLast, then expresses it relative to worldToLastKf.
//
// Called with the predicted-trajectory history instead of the tracked one,
// this is also the "pure" dead-reckoning variant used for diagnostics.
func PredictKfToCur(worldToLbo, worldToLast, worldToLastKf geometry.SE3, k int) geometry.SE3 {
	if k <= 0 {
		k = 1
	}
	lboToLast := worldToLast.Compose(worldToLbo.Inverse())
	alpha := 1 / float64(k)

	rot := geometry.ExpSO3(lboToLast.SO3Log().Mul(alpha))

	invRotOnly := lboToLast.Inverse()
	v := invRotOnly.ApplyRotation(lboToLast.Trans)
	rotOnly := geometry.SE3{Rot: rot}
	t := rotOnly.ApplyRotation(v).Mul(alpha)

	predictedMotion := geometry.NewSE3(rot, t)
	return predictedMotion.Compose(worldToLast).Compose(worldToLastKf.Inverse())
}
